package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

// ListTerms returns the terms of a session ordered by ordinal number.
func (s *CalendarService) ListTerms(ctx context.Context, tenant *models.Tenant, sessionID string, withTrashed bool) ([]models.Term, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if _, err := s.loadSession(ctx, tenant.ID, sessionID, true); err != nil {
		return nil, err
	}
	terms, err := s.terms.List(ctx, models.TermFilter{TenantID: tenant.ID, AcademicSessionID: sessionID, WithTrashed: withTrashed})
	if err != nil {
		return nil, storageError(err, "failed to list terms")
	}
	return terms, nil
}

// GetTerm returns a live term.
func (s *CalendarService) GetTerm(ctx context.Context, tenant *models.Tenant, id string) (*models.Term, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	return s.loadTerm(ctx, tenant.ID, id, false)
}

// GetCurrentTerm returns the current term of sessionID, or of the tenant's
// current session when sessionID is empty.
func (s *CalendarService) GetCurrentTerm(ctx context.Context, tenant *models.Tenant, sessionID string) (*models.Term, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if sessionID == "" {
		session, err := s.sessions.FindCurrent(ctx, tenant.ID)
		if err != nil {
			return nil, lookupError(err, "no current academic session", "failed to load current academic session")
		}
		sessionID = session.ID
	} else if _, err := s.loadSession(ctx, tenant.ID, sessionID, false); err != nil {
		return nil, err
	}
	term, err := s.terms.FindCurrent(ctx, sessionID)
	if err != nil {
		return nil, lookupError(err, "no current term", "failed to load current term")
	}
	return term, nil
}

// CreateTerm adds a pending term inside the session's date range.
func (s *CalendarService) CreateTerm(ctx context.Context, tenant *models.Tenant, sessionID string, req CreateTermRequest) (*models.Term, error) {
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
	term := &models.Term{
		AcademicSessionID: sessionID,
		TenantID:          tenant.ID,
		Name:              strings.TrimSpace(req.Name),
		StartDate:         start,
		EndDate:           end,
		Status:            models.CalendarStatusPending,
	}
	err = s.run(ctx, tenant, calendarOp{entity: models.AuditTargetTerm, action: "create"}, func(ctx context.Context) (models.Document, error) {
		session, err := s.loadSession(ctx, tenant.ID, sessionID, false)
		if err != nil {
			return nil, err
		}
		if session.Status == models.CalendarStatusArchived {
			return nil, stateTransition("terms cannot be added to an archived academic session")
		}
		if !session.Contains(start, end) {
			return nil, dateConflict("term must lie within the academic session dates")
		}
		max, err := s.terms.MaxOrdinal(ctx, session.ID)
		if err != nil {
			return nil, storageError(err, "failed to number term")
		}
		term.OrdinalNumber = max + 1
		if err := s.terms.Create(ctx, term); err != nil {
			return nil, storageError(err, "failed to create term")
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return term, nil
}

// UpdateTerm renames or re-dates a term within its session.
func (s *CalendarService) UpdateTerm(ctx context.Context, tenant *models.Tenant, id string, req UpdatePeriodRequest) (*models.Term, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	var term *models.Term
	err := s.run(ctx, tenant, calendarOp{entity: models.AuditTargetTerm, action: "update", targetID: id}, func(ctx context.Context) (models.Document, error) {
		var err error
		if term, err = s.loadTerm(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		if term.Status == models.CalendarStatusArchived {
			return nil, stateTransition("archived terms cannot be edited")
		}
		session, err := s.loadSession(ctx, tenant.ID, term.AcademicSessionID, true)
		if err != nil {
			return nil, err
		}
		name, start, end, err := applyPeriod(req, term.Name, term.StartDate, term.EndDate)
		if err != nil {
			return nil, err
		}
		redated := !start.Equal(term.StartDate) || !end.Equal(term.EndDate)
		if redated && term.Status == models.CalendarStatusClosed {
			return nil, stateTransition("closed terms cannot be re-dated, reopen the term instead")
		}
		if !session.Contains(start, end) {
			return nil, dateConflict("term must lie within the academic session dates")
		}
		if redated {
			following, err := s.terms.FindNext(ctx, term.AcademicSessionID, start, term.ID)
			if err != nil {
				return nil, storageError(err, "failed to load next term")
			}
			if following != nil && !end.Before(following.StartDate) {
				return nil, dateConflict(fmt.Sprintf("end_date overlaps term %q starting %s", following.Name, following.StartDate.Format(dateLayout)))
			}
		}
		term.Name, term.StartDate, term.EndDate = name, start, end
		if err := s.terms.Update(ctx, term); err != nil {
			return nil, storageError(err, "failed to update term")
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return term, nil
}

// ActivateTerm makes the term the only current term of its session.
func (s *CalendarService) ActivateTerm(ctx context.Context, tenant *models.Tenant, id string) (*models.Term, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	probe, err := s.loadTerm(ctx, tenant.ID, id, false)
	if err != nil {
		return nil, err
	}
	var term *models.Term
	op := calendarOp{entity: models.AuditTargetTerm, action: string(models.CalendarActionActivate), audit: models.AuditActionActivate, targetID: id}
	err = s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		if err := s.terms.LockSession(ctx, probe.AcademicSessionID); err != nil {
			return nil, storageError(err, "failed to lock terms")
		}
		var err error
		if term, err = s.loadTerm(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		session, err := s.loadSession(ctx, tenant.ID, term.AcademicSessionID, true)
		if err != nil {
			return nil, err
		}
		if err := termParentOpen(session, "activated"); err != nil {
			return nil, err
		}
		if term.IsCurrent {
			return nil, stateTransition("term is already current")
		}
		next, ok := models.NextCalendarStatus(term.Status, models.CalendarActionActivate)
		if !ok {
			return nil, transitionError(models.AuditTargetTerm, term.Status, models.CalendarActionActivate)
		}
		cleared, err := s.terms.ClearCurrent(ctx, term.AcademicSessionID, term.ID)
		if err != nil {
			return nil, storageError(err, "failed to clear current term")
		}
		previous := term.Status
		term.Status = next
		term.IsCurrent = true
		if err := s.terms.Update(ctx, term); err != nil {
			return nil, storageError(err, "failed to activate term")
		}
		return models.Document{"from": string(previous), "cleared_current": cleared}, nil
	})
	if err != nil {
		return nil, err
	}
	return term, nil
}

// CloseTerm closes an active term. A current term stops being current.
func (s *CalendarService) CloseTerm(ctx context.Context, tenant *models.Tenant, id, reason string) (*models.Term, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	if err := s.checkReason(reason); err != nil {
		return nil, err
	}
	var term *models.Term
	op := calendarOp{entity: models.AuditTargetTerm, action: string(models.CalendarActionClose), audit: models.AuditActionClose, targetID: id, reason: strings.TrimSpace(reason)}
	err := s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if term, err = s.loadTerm(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		next, ok := models.NextCalendarStatus(term.Status, models.CalendarActionClose)
		if !ok {
			return nil, transitionError(models.AuditTargetTerm, term.Status, models.CalendarActionClose)
		}
		wasCurrent := term.IsCurrent
		term.Status = next
		term.IsCurrent = false
		if err := s.terms.Update(ctx, term); err != nil {
			return nil, storageError(err, "failed to close term")
		}
		return models.Document{"was_current": wasCurrent}, nil
	})
	if err != nil {
		return nil, err
	}
	return term, nil
}

// ReopenTerm moves a closed term back to active with a new end date inside
// its session and before the next term starts.
func (s *CalendarService) ReopenTerm(ctx context.Context, tenant *models.Tenant, id, reason, endDate string) (*models.Term, error) {
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
	var term *models.Term
	op := calendarOp{entity: models.AuditTargetTerm, action: string(models.CalendarActionReopen), audit: models.AuditActionReopen, targetID: id, reason: strings.TrimSpace(reason)}
	err = s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if term, err = s.loadTerm(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		next, ok := models.NextCalendarStatus(term.Status, models.CalendarActionReopen)
		if !ok {
			return nil, transitionError(models.AuditTargetTerm, term.Status, models.CalendarActionReopen)
		}
		session, err := s.loadSession(ctx, tenant.ID, term.AcademicSessionID, true)
		if err != nil {
			return nil, err
		}
		if err := termParentOpen(session, "reopened"); err != nil {
			return nil, err
		}
		if newEnd.Before(term.StartDate) {
			return nil, dateConflict("end_date must not be before the term start date")
		}
		if newEnd.After(session.EndDate) {
			return nil, dateConflict("end_date must not be after the academic session end date")
		}
		following, err := s.terms.FindNext(ctx, term.AcademicSessionID, term.StartDate, term.ID)
		if err != nil {
			return nil, storageError(err, "failed to load next term")
		}
		if following != nil && !newEnd.Before(following.StartDate) {
			return nil, dateConflict(fmt.Sprintf("end_date overlaps term %q starting %s", following.Name, following.StartDate.Format(dateLayout)))
		}

		previousEnd := term.EndDate
		term.Status = next
		term.EndDate = newEnd
		if err := s.terms.Update(ctx, term); err != nil {
			return nil, storageError(err, "failed to reopen term")
		}
		return models.Document{"previous_end_date": previousEnd.Format(dateLayout), "end_date": newEnd.Format(dateLayout)}, nil
	})
	if err != nil {
		return nil, err
	}
	return term, nil
}

// ArchiveTerm retires a closed term.
func (s *CalendarService) ArchiveTerm(ctx context.Context, tenant *models.Tenant, id string) (*models.Term, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	var term *models.Term
	op := calendarOp{entity: models.AuditTargetTerm, action: string(models.CalendarActionArchive), audit: models.AuditActionArchive, targetID: id}
	err := s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if term, err = s.loadTerm(ctx, tenant.ID, id, false); err != nil {
			return nil, err
		}
		next, ok := models.NextCalendarStatus(term.Status, models.CalendarActionArchive)
		if !ok {
			return nil, transitionError(models.AuditTargetTerm, term.Status, models.CalendarActionArchive)
		}
		term.Status = next
		if err := s.terms.Update(ctx, term); err != nil {
			return nil, storageError(err, "failed to archive term")
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return term, nil
}

// DeleteTerm soft deletes a term that is not current.
func (s *CalendarService) DeleteTerm(ctx context.Context, tenant *models.Tenant, id string) error {
	if err := requireTenant(tenant); err != nil {
		return err
	}
	op := calendarOp{entity: models.AuditTargetTerm, action: "delete", audit: models.AuditActionDelete, targetID: id}
	return s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		term, err := s.loadTerm(ctx, tenant.ID, id, false)
		if err != nil {
			return nil, err
		}
		if term.IsCurrent {
			return nil, stateTransition("the current term cannot be deleted")
		}
		if _, err := s.terms.SoftDeleteMany(ctx, tenant.ID, []string{term.ID}, s.now().UTC()); err != nil {
			return nil, storageError(err, "failed to delete term")
		}
		return nil, nil
	})
}

// BulkDeleteTerms soft deletes the listed terms, skipping current ones, and
// returns how many were deleted.
func (s *CalendarService) BulkDeleteTerms(ctx context.Context, tenant *models.Tenant, req BulkDeleteRequest) (int64, error) {
	if err := requireTenant(tenant); err != nil {
		return 0, err
	}
	if err := s.validate(req); err != nil {
		return 0, err
	}
	ids := dedupeIDs(req.IDs)
	var deleted int64
	op := calendarOp{entity: models.AuditTargetTerm, action: "bulk_delete", audit: models.AuditActionDelete, targetID: strings.Join(ids, ",")}
	err := s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if deleted, err = s.terms.SoftDeleteMany(ctx, tenant.ID, ids, s.now().UTC()); err != nil {
			return nil, storageError(err, "failed to delete terms")
		}
		return models.Document{"requested": len(ids), "deleted": deleted}, nil
	})
	return deleted, err
}

// ForceDeleteTerm removes a non-current term for good.
func (s *CalendarService) ForceDeleteTerm(ctx context.Context, tenant *models.Tenant, id string) error {
	if err := requireTenant(tenant); err != nil {
		return err
	}
	op := calendarOp{entity: models.AuditTargetTerm, action: "force_delete", audit: models.AuditActionForceDelete, targetID: id}
	return s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		term, err := s.loadTerm(ctx, tenant.ID, id, true)
		if err != nil {
			return nil, err
		}
		if term.IsCurrent {
			return nil, stateTransition("the current term cannot be deleted")
		}
		if err := s.terms.ForceDelete(ctx, tenant.ID, term.ID); err != nil {
			return nil, storageError(err, "failed to delete term")
		}
		return models.Document{"name": term.Name, "academic_session_id": term.AcademicSessionID}, nil
	})
}

// RestoreTerm brings back a soft deleted term of a live session unless a
// later term of that session is already active or current.
func (s *CalendarService) RestoreTerm(ctx context.Context, tenant *models.Tenant, id string) (*models.Term, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	var term *models.Term
	op := calendarOp{entity: models.AuditTargetTerm, action: "restore", audit: models.AuditActionRestore, targetID: id}
	err := s.run(ctx, tenant, op, func(ctx context.Context) (models.Document, error) {
		var err error
		if term, err = s.loadTerm(ctx, tenant.ID, id, true); err != nil {
			return nil, err
		}
		if !term.Trashed() {
			return nil, stateTransition("term is not deleted")
		}
		session, err := s.loadSession(ctx, tenant.ID, term.AcademicSessionID, true)
		if err != nil {
			return nil, err
		}
		if session.Trashed() {
			return nil, stateTransition("restore the academic session before its terms")
		}
		newer, err := s.terms.ExistsNewerLive(ctx, term.AcademicSessionID, term.StartDate, term.ID)
		if err != nil {
			return nil, storageError(err, "failed to inspect newer terms")
		}
		if newer {
			return nil, stateTransition("a later term is already active")
		}
		term.DeletedAt = nil
		if err := s.terms.Update(ctx, term); err != nil {
			return nil, storageError(err, "failed to restore term")
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return term, nil
}

// termParentOpen rejects term transitions into active while the parent
// session is deleted or no longer pending or active.
func termParentOpen(session *models.AcademicSession, verb string) error {
	if session.Trashed() {
		return stateTransition("the academic session of this term is deleted")
	}
	if session.Status != models.CalendarStatusPending && session.Status != models.CalendarStatusActive {
		return stateTransition(fmt.Sprintf("terms of a %s academic session cannot be %s", session.Status, verb))
	}
	return nil
}
