package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

// ListSessions returns the tenant's sessions, newest first.
func (s *CalendarService) ListSessions(ctx context.Context, tenant *models.Tenant, filter models.SessionFilter) ([]models.AcademicSession, *models.Pagination, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, invalidArgument(fmt.Sprintf("unknown status %q", filter.Status))
	}
	filter.TenantID = tenant.ID
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, storageError(err, "failed to list academic sessions")
	}
	return sessions, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetSession returns a live session with its live terms.
func (s *CalendarService) GetSession(ctx context.Context, tenant *models.Tenant, id string) (*models.AcademicSession, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	session, err := s.loadSession(ctx, tenant.ID, id, false)
	if err != nil {
		return nil, err
	}
	if session.Terms, err = s.liveTerms(ctx, tenant.ID, session.ID); err != nil {
		return nil, err
	}
	return session, nil
}

// GetCurrentSession returns the tenant's current session.
func (s *CalendarService) GetCurrentSession(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	session, err := s.sessions.FindCurrent(ctx, tenant.ID)
	if err != nil {
		return nil, lookupError(err, "no current academic session", "failed to load current academic session")
	}
	if session.Terms, err = s.liveTerms(ctx, tenant.ID, session.ID); err != nil {
		return nil, err
	}
	return session, nil
}

// CreateSession stores a pending session together with its three generated
// terms.
func (s *CalendarService) CreateSession(ctx context.Context, tenant *models.Tenant, req CreateSessionRequest) (*models.AcademicSession, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	ranges, ok := models.SplitIntoThirds(start, end)
	if !ok {
		return nil, invalidArgument("academic session must span at least three days")
	}

	session := &models.AcademicSession{
		TenantID:  tenant.ID,
		Name:      strings.TrimSpace(req.Name),
		StartDate: start,
		EndDate:   end,
		Status:    models.CalendarStatusPending,
	}
	err = s.run(ctx, tenant, calendarOp{entity: models.AuditTargetSession, action: "create"}, func(ctx context.Context) (models.Document, error) {
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, storageError(err, "failed to create academic session")
		}
		session.Terms = make([]models.Term, 0, len(ranges))
		for i, r := range ranges {
			term := &models.Term{
				AcademicSessionID: session.ID,
				TenantID:          tenant.ID,
				Name:              models.AutoTermNames[i],
				StartDate:         r.Start,
				EndDate:           r.End,
				Status:            models.CalendarStatusPending,
				OrdinalNumber:     i + 1,
			}
			if err := s.terms.Create(ctx, term); err != nil {
				return nil, storageError(err, "failed to create term")
			}
			session.Terms = append(session.Terms, *term)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateSession renames or re-dates a session. The new range must still hold
// every live term.
func (s *CalendarService) UpdateSession(ctx context.Context, tenant *models.Tenant, id string, req UpdatePeriodRequest) (*models.AcademicSession, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	var session *models.AcademicSession
	err := s.run(ctx, tenant, calendarOp{entity: models.AuditTargetSession, action: "update", targetID: id}, func(ctx context.Context) (models.Document, error) {
		var err error
		if session, err = s.loadSession(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		if session.Status == models.CalendarStatusArchived {
			return nil, stateTransition("archived academic sessions cannot be edited")
		}
		name, start, end, err := applyPeriod(req, session.Name, session.StartDate, session.EndDate)
		if err != nil {
			return nil, err
		}
		redated := !start.Equal(session.StartDate) || !end.Equal(session.EndDate)
		if redated && session.Status == models.CalendarStatusClosed {
			return nil, stateTransition("closed academic sessions cannot be re-dated, reopen the session instead")
		}
		if redated {
			following, err := s.sessions.FindNext(ctx, tenant.ID, start, session.ID)
			if err != nil {
				return nil, storageError(err, "failed to load next academic session")
			}
			if following != nil && !end.Before(following.StartDate) {
				return nil, dateConflict(fmt.Sprintf("end_date overlaps academic session %q starting %s", following.Name, following.StartDate.Format(dateLayout)))
			}
		}
		candidate := *session
		candidate.Name, candidate.StartDate, candidate.EndDate = name, start, end

		terms, err := s.liveTerms(ctx, tenant.ID, session.ID)
		if err != nil {
			return nil, err
		}
		for _, term := range terms {
			if !candidate.Contains(term.StartDate, term.EndDate) {
				return nil, dateConflict(fmt.Sprintf("academic session dates must contain term %q", term.Name))
			}
		}
		if err := s.sessions.Update(ctx, &candidate); err != nil {
			return nil, storageError(err, "failed to update academic session")
		}
		*session = candidate
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ActivateSession makes the session the tenant's only current session. The
// previous current session stays active but is no longer current. When the
// session has no current term yet its first open term becomes current too.
func (s *CalendarService) ActivateSession(ctx context.Context, tenant *models.Tenant, id string) (*models.AcademicSession, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	var session *models.AcademicSession
	op := calendarOp{entity: models.AuditTargetSession, action: string(models.CalendarActionActivate), audit: models.AuditActionActivate, targetID: id}
	err := s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		if err := s.sessions.LockTenant(ctx, tenant.ID); err != nil {
			return nil, storageError(err, "failed to lock academic sessions")
		}
		var err error
		if session, err = s.loadSession(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		if session.IsCurrent {
			return nil, stateTransition("academic session is already current")
		}
		next, ok := models.NextCalendarStatus(session.Status, models.CalendarActionActivate)
		if !ok {
			return nil, transitionError(models.AuditTargetSession, session.Status, models.CalendarActionActivate)
		}

		cleared, err := s.sessions.ClearCurrent(ctx, tenant.ID, session.ID)
		if err != nil {
			return nil, storageError(err, "failed to clear current academic session")
		}
		previous := session.Status
		session.Status = next
		session.IsCurrent = true
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, storageError(err, "failed to activate academic session")
		}

		termID, err := s.promoteFirstTerm(ctx, tenant.ID, session.ID)
		if err != nil {
			return nil, err
		}
		return models.Document{"from": string(previous), "cleared_current": cleared, "current_term_id": termID}, nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// promoteFirstTerm makes the lowest ordinal pending or active term current
// when the session has no current term. It returns the promoted term id.
func (s *CalendarService) promoteFirstTerm(ctx context.Context, tenantID, sessionID string) (string, error) {
	if err := s.terms.LockSession(ctx, sessionID); err != nil {
		return "", storageError(err, "failed to lock terms")
	}
	terms, err := s.liveTerms(ctx, tenantID, sessionID)
	if err != nil {
		return "", err
	}
	for _, term := range terms {
		if term.IsCurrent {
			return "", nil
		}
	}
	for i := range terms {
		term := &terms[i]
		if term.Status != models.CalendarStatusPending && term.Status != models.CalendarStatusActive {
			continue
		}
		term.Status = models.CalendarStatusActive
		term.IsCurrent = true
		if err := s.terms.Update(ctx, term); err != nil {
			return "", storageError(err, "failed to activate term")
		}
		return term.ID, nil
	}
	return "", nil
}

// CloseSession closes an active, non-current session whose current term has
// already been closed.
func (s *CalendarService) CloseSession(ctx context.Context, tenant *models.Tenant, id, reason string) (*models.AcademicSession, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := s.checkReason(reason); err != nil {
		return nil, err
	}
	var session *models.AcademicSession
	op := calendarOp{entity: models.AuditTargetSession, action: string(models.CalendarActionClose), audit: models.AuditActionClose, targetID: id, reason: strings.TrimSpace(reason)}
	err := s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if session, err = s.loadSession(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		next, ok := models.NextCalendarStatus(session.Status, models.CalendarActionClose)
		if !ok {
			return nil, transitionError(models.AuditTargetSession, session.Status, models.CalendarActionClose)
		}
		if session.IsCurrent {
			return nil, stateTransition("the current academic session cannot be closed; activate another session first")
		}
		open, err := s.terms.CountActiveCurrent(ctx, session.ID)
		if err != nil {
			return nil, storageError(err, "failed to inspect terms")
		}
		if open > 0 {
			return nil, stateTransition("close the current term before closing the academic session")
		}
		session.Status = next
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, storageError(err, "failed to close academic session")
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ReopenSession moves a closed session back to active with a new end date.
// The end date may not reach the next session's start or cut off a live term.
func (s *CalendarService) ReopenSession(ctx context.Context, tenant *models.Tenant, id, reason, endDate string) (*models.AcademicSession, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := s.checkReason(reason); err != nil {
		return nil, err
	}
	newEnd, err := parseDate("end_date", endDate)
	if err != nil {
		return nil, err
	}
	var session *models.AcademicSession
	op := calendarOp{entity: models.AuditTargetSession, action: string(models.CalendarActionReopen), audit: models.AuditActionReopen, targetID: id, reason: strings.TrimSpace(reason)}
	err = s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if session, err = s.loadSession(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		next, ok := models.NextCalendarStatus(session.Status, models.CalendarActionReopen)
		if !ok {
			return nil, transitionError(models.AuditTargetSession, session.Status, models.CalendarActionReopen)
		}
		if newEnd.Before(session.StartDate) {
			return nil, dateConflict("end_date must not be before the academic session start date")
		}
		following, err := s.sessions.FindNext(ctx, tenant.ID, session.StartDate, session.ID)
		if err != nil {
			return nil, storageError(err, "failed to load next academic session")
		}
		if following != nil && !newEnd.Before(following.StartDate) {
			return nil, dateConflict(fmt.Sprintf("end_date overlaps academic session %q starting %s", following.Name, following.StartDate.Format(dateLayout)))
		}
		terms, err := s.liveTerms(ctx, tenant.ID, session.ID)
		if err != nil {
			return nil, err
		}
		for _, term := range terms {
			if term.EndDate.After(newEnd) {
				return nil, dateConflict(fmt.Sprintf("end_date cuts off term %q", term.Name))
			}
		}

		previousEnd := session.EndDate
		session.Status = next
		session.EndDate = newEnd
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, storageError(err, "failed to reopen academic session")
		}
		return models.Document{"previous_end_date": previousEnd.Format(dateLayout), "end_date": newEnd.Format(dateLayout)}, nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ArchiveSession retires a closed session.
func (s *CalendarService) ArchiveSession(ctx context.Context, tenant *models.Tenant, id string) (*models.AcademicSession, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	var session *models.AcademicSession
	op := calendarOp{entity: models.AuditTargetSession, action: string(models.CalendarActionArchive), audit: models.AuditActionArchive, targetID: id}
	err := s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if session, err = s.loadSession(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		next, ok := models.NextCalendarStatus(session.Status, models.CalendarActionArchive)
		if !ok {
			return nil, transitionError(models.AuditTargetSession, session.Status, models.CalendarActionArchive)
		}
		session.Status = next
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, storageError(err, "failed to archive academic session")
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession soft deletes a session that is not current.
func (s *CalendarService) DeleteSession(ctx context.Context, tenant *models.Tenant, id string) error {
	if err := requireTenant(tenant); err != nil {
		return err
	}
	op := calendarOp{entity: models.AuditTargetSession, action: "delete", audit: models.AuditActionDelete, targetID: id}
	return s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		session, err := s.loadSession(ctx, tenant.ID, id, false)
		if err != nil {
			return nil, err
		}
		if session.IsCurrent {
			return nil, stateTransition("the current academic session cannot be deleted")
		}
		if _, err := s.sessions.SoftDeleteMany(ctx, tenant.ID, []string{session.ID}, s.now().UTC()); err != nil {
			return nil, storageError(err, "failed to delete academic session")
		}
		return nil, nil
	})
}

// BulkDeleteSessions soft deletes the listed sessions, silently skipping the
// current one, and returns how many were deleted.
func (s *CalendarService) BulkDeleteSessions(ctx context.Context, tenant *models.Tenant, req BulkDeleteRequest) (int64, error) {
	if err := requireTenant(tenant); err != nil {
		return 0, err
	}
	if err := s.validate(req); err != nil {
		return 0, err
	}
	ids := dedupeIDs(req.IDs)
	var deleted int64
	op := calendarOp{entity: models.AuditTargetSession, action: "bulk_delete", audit: models.AuditActionDelete, targetID: strings.Join(ids, ",")}
	err := s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if deleted, err = s.sessions.SoftDeleteMany(ctx, tenant.ID, ids, s.now().UTC()); err != nil {
			return nil, storageError(err, "failed to delete academic sessions")
		}
		return models.Document{"requested": len(ids), "deleted": deleted}, nil
	})
	return deleted, err
}

// ForceDeleteSession removes a session for good. It refuses current sessions
// and sessions that still own terms, trashed ones included.
func (s *CalendarService) ForceDeleteSession(ctx context.Context, tenant *models.Tenant, id string) error {
	if err := requireTenant(tenant); err != nil {
		return err
	}
	op := calendarOp{entity: models.AuditTargetSession, action: "force_delete", audit: models.AuditActionForceDelete, targetID: id}
	return s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		session, err := s.loadSession(ctx, tenant.ID, id, true)
		if err != nil {
			return nil, err
		}
		if session.IsCurrent {
			return nil, stateTransition("the current academic session cannot be deleted")
		}
		count, err := s.terms.CountBySession(ctx, session.ID, true)
		if err != nil {
			return nil, storageError(err, "failed to count terms")
		}
		if count > 0 {
			return nil, stateTransition(fmt.Sprintf("academic session still has %d terms", count))
		}
		if err := s.sessions.ForceDelete(ctx, tenant.ID, session.ID); err != nil {
			return nil, storageError(err, "failed to delete academic session")
		}
		return models.Document{"name": session.Name}, nil
	})
}

// RestoreSession brings back a soft deleted session unless a later session is
// already active or current.
func (s *CalendarService) RestoreSession(ctx context.Context, tenant *models.Tenant, id string) (*models.AcademicSession, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	var session *models.AcademicSession
	op := calendarOp{entity: models.AuditTargetSession, action: "restore", audit: models.AuditActionRestore, targetID: id}
	err := s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if session, err = s.loadSession(ctx, tenant.ID, id, true); err != nil {
			return nil, err
		}
		if !session.Trashed() {
			return nil, stateTransition("academic session is not deleted")
		}
		newer, err := s.sessions.ExistsNewerLive(ctx, tenant.ID, session.StartDate, session.ID)
		if err != nil {
			return nil, storageError(err, "failed to inspect newer academic sessions")
		}
		if newer {
			return nil, stateTransition("a later academic session is already active")
		}
		session.DeletedAt = nil
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, storageError(err, "failed to restore academic session")
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
