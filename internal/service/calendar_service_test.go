package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/internal/repository/memory"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
)

const validReason = "End of first term, all grades submitted"

type calendarFixture struct {
	svc      *CalendarService
	sessions *memory.SessionRepository
	terms    *memory.TermRepository
	audit    *auditSinkStub
	metrics  *MetricsService
	tenant   *models.Tenant
}

func newCalendarFixture(t *testing.T) *calendarFixture {
	t.Helper()
	store := memory.NewStore()
	f := &calendarFixture{
		sessions: memory.NewSessionRepository(store),
		terms:    memory.NewTermRepository(store),
		audit:    &auditSinkStub{},
		metrics:  NewMetricsService(),
		tenant:   &models.Tenant{ID: "tenant-1", Code: "GVH"},
	}
	f.svc = NewCalendarService(store, f.sessions, f.terms, f.audit, f.metrics, nil, nil, CalendarServiceConfig{})
	f.svc.now = func() time.Time { return time.Date(2025, time.October, 1, 8, 0, 0, 0, time.UTC) }
	return f
}

func (f *calendarFixture) createSession(t *testing.T, name, start, end string) *models.AcademicSession {
	t.Helper()
	session, err := f.svc.CreateSession(context.Background(), f.tenant, CreateSessionRequest{Name: name, StartDate: start, EndDate: end})
	require.NoError(t, err)
	return session
}

func assertCode(t *testing.T, err error, code *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, appErrors.HasCode(err, code), "expected %s, got %v", code.Code, err)
}

func TestCalendarEndToEndScenario(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := WithActor(context.Background(), "registrar-7")

	session := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")
	require.Len(t, session.Terms, 3)
	for i, term := range session.Terms {
		assert.Equal(t, models.CalendarStatusPending, term.Status)
		assert.Equal(t, i+1, term.OrdinalNumber)
		assert.Equal(t, models.AutoTermNames[i], term.Name)
	}
	assert.Equal(t, date(2025, 9, 1), session.Terms[0].StartDate)
	assert.Equal(t, date(2026, 7, 31), session.Terms[2].EndDate)

	activated, err := f.svc.ActivateSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsCurrent)
	assert.Equal(t, models.CalendarStatusActive, activated.Status)

	err = f.svc.DeleteSession(ctx, f.tenant, session.ID)
	assertCode(t, err, appErrors.ErrStateTransition)

	current, err := f.svc.GetCurrentTerm(ctx, f.tenant, "")
	require.NoError(t, err)
	assert.Equal(t, session.Terms[0].ID, current.ID)

	closed, err := f.svc.CloseTerm(ctx, f.tenant, current.ID, validReason)
	require.NoError(t, err)
	assert.Equal(t, models.CalendarStatusClosed, closed.Status)
	assert.False(t, closed.IsCurrent)

	_, err = f.svc.ReopenTerm(ctx, f.tenant, current.ID, validReason, "2025-08-15")
	assertCode(t, err, appErrors.ErrDateConflict)

	assert.Equal(t, []string{models.AuditActionActivate, models.AuditActionClose}, f.audit.actions())
	assert.Equal(t, "registrar-7", f.audit.events[1].Actor)
	require.NotNil(t, f.audit.events[1].Reason)
	assert.Equal(t, validReason, *f.audit.events[1].Reason)
}

func TestCreateSessionValidation(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSession(ctx, f.tenant, CreateSessionRequest{Name: "x", StartDate: "2025-09-01", EndDate: "2025-08-01"})
	assertCode(t, err, appErrors.ErrInvalidArgument)

	_, err = f.svc.CreateSession(ctx, f.tenant, CreateSessionRequest{Name: "x", StartDate: "01/09/2025", EndDate: "2026-07-31"})
	assertCode(t, err, appErrors.ErrInvalidArgument)

	_, err = f.svc.CreateSession(ctx, f.tenant, CreateSessionRequest{Name: "x", StartDate: "2025-09-01", EndDate: "2025-09-02"})
	assertCode(t, err, appErrors.ErrInvalidArgument)

	_, err = f.svc.CreateSession(ctx, nil, CreateSessionRequest{Name: "x", StartDate: "2025-09-01", EndDate: "2026-07-31"})
	assertCode(t, err, appErrors.ErrInvalidArgument)
}

func TestActivateSessionSwapsCurrent(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	first := f.createSession(t, "2024/2025", "2024-09-01", "2025-07-31")
	second := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")

	_, err := f.svc.ActivateSession(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	_, err = f.svc.ActivateSession(ctx, f.tenant, second.ID)
	require.NoError(t, err)

	current, err := f.svc.GetCurrentSession(ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	previous, err := f.svc.GetSession(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	assert.False(t, previous.IsCurrent)
	assert.Equal(t, models.CalendarStatusActive, previous.Status)

	_, err = f.svc.ActivateSession(ctx, f.tenant, second.ID)
	assertCode(t, err, appErrors.ErrStateTransition)

	_, err = f.svc.ActivateSession(ctx, f.tenant, first.ID)
	require.NoError(t, err)
}

func TestActivateSessionConcurrentCallersLeaveOneCurrent(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()

	ids := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		start := time.Date(2010+i, time.September, 1, 0, 0, 0, 0, time.UTC)
		session := f.createSession(t, start.Format("2006")+"/next", start.Format(dateLayout), start.AddDate(0, 10, 0).Format(dateLayout))
		ids = append(ids, session.ID)
	}

	var wg sync.WaitGroup
	for round := 0; round < 5; round++ {
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, _ = f.svc.ActivateSession(ctx, f.tenant, id)
			}(id)
		}
	}
	wg.Wait()

	sessions, _, err := f.svc.ListSessions(ctx, f.tenant, models.SessionFilter{PageSize: 100})
	require.NoError(t, err)
	currentCount := 0
	for _, s := range sessions {
		if s.IsCurrent {
			currentCount++
		}
	}
	assert.Equal(t, 1, currentCount)
}

func TestCloseSessionGuards(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	first := f.createSession(t, "2024/2025", "2024-09-01", "2025-07-31")
	second := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")

	_, err := f.svc.CloseSession(ctx, f.tenant, first.ID, "too short")
	assertCode(t, err, appErrors.ErrInvalidArgument)

	_, err = f.svc.CloseSession(ctx, f.tenant, first.ID, validReason)
	assertCode(t, err, appErrors.ErrStateTransition)

	_, err = f.svc.ActivateSession(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	_, err = f.svc.CloseSession(ctx, f.tenant, first.ID, validReason)
	assertCode(t, err, appErrors.ErrStateTransition)

	_, err = f.svc.ActivateSession(ctx, f.tenant, second.ID)
	require.NoError(t, err)
	_, err = f.svc.CloseSession(ctx, f.tenant, first.ID, validReason)
	assertCode(t, err, appErrors.ErrStateTransition)

	term, err := f.svc.GetCurrentTerm(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	_, err = f.svc.CloseTerm(ctx, f.tenant, term.ID, validReason)
	require.NoError(t, err)

	closed, err := f.svc.CloseSession(ctx, f.tenant, first.ID, "   "+validReason+"   ")
	require.NoError(t, err)
	assert.Equal(t, models.CalendarStatusClosed, closed.Status)
}

func TestReasonLengthCountsCharacters(t *testing.T) {
	f := newCalendarFixture(t)
	assert.Error(t, f.svc.checkReason("ééééééééééééééééééé"))
	assert.NoError(t, f.svc.checkReason("éééééééééééééééééééé"))
}

func TestReopenSessionDateGuards(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	first := f.createSession(t, "2024/2025", "2024-09-01", "2025-07-31")
	f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")

	_, err := f.svc.ActivateSession(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	term, err := f.svc.GetCurrentTerm(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	_, err = f.svc.CloseTerm(ctx, f.tenant, term.ID, validReason)
	require.NoError(t, err)
	second, _, err := f.svc.ListSessions(ctx, f.tenant, models.SessionFilter{})
	require.NoError(t, err)
	_, err = f.svc.ActivateSession(ctx, f.tenant, second[0].ID)
	require.NoError(t, err)
	_, err = f.svc.CloseSession(ctx, f.tenant, first.ID, validReason)
	require.NoError(t, err)

	_, err = f.svc.ReopenSession(ctx, f.tenant, first.ID, validReason, "2024-08-01")
	assertCode(t, err, appErrors.ErrDateConflict)

	_, err = f.svc.ReopenSession(ctx, f.tenant, first.ID, validReason, "2025-09-01")
	assertCode(t, err, appErrors.ErrDateConflict)

	_, err = f.svc.ReopenSession(ctx, f.tenant, first.ID, validReason, "2025-06-30")
	assertCode(t, err, appErrors.ErrDateConflict)

	reopened, err := f.svc.ReopenSession(ctx, f.tenant, first.ID, validReason, "2025-08-31")
	require.NoError(t, err)
	assert.Equal(t, models.CalendarStatusActive, reopened.Status)
	assert.Equal(t, date(2025, 8, 31), reopened.EndDate)
}

func TestArchiveRequiresClosed(t *testing.T) {
	f := newCalendarFixture(t)
	session := f.createSession(t, "2024/2025", "2024-09-01", "2025-07-31")
	_, err := f.svc.ArchiveSession(context.Background(), f.tenant, session.ID)
	assertCode(t, err, appErrors.ErrStateTransition)
}

func TestBulkDeleteSkipsCurrentSession(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	a := f.createSession(t, "A", "2023-09-01", "2024-07-31")
	b := f.createSession(t, "B", "2024-09-01", "2025-07-31")
	c := f.createSession(t, "C", "2025-09-01", "2026-07-31")
	_, err := f.svc.ActivateSession(ctx, f.tenant, c.ID)
	require.NoError(t, err)

	deleted, err := f.svc.BulkDeleteSessions(ctx, f.tenant, BulkDeleteRequest{IDs: []string{a.ID, b.ID, c.ID, a.ID, "missing"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	current, err := f.svc.GetCurrentSession(ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, c.ID, current.ID)

	trashed, _, err := f.svc.ListSessions(ctx, f.tenant, models.SessionFilter{OnlyTrashed: true})
	require.NoError(t, err)
	assert.Len(t, trashed, 2)

	_, err = f.svc.BulkDeleteSessions(ctx, f.tenant, BulkDeleteRequest{})
	assertCode(t, err, appErrors.ErrInvalidArgument)
}

func TestForceDeleteAndRestoreSession(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	old := f.createSession(t, "2023/2024", "2023-09-01", "2024-07-31")
	newer := f.createSession(t, "2024/2025", "2024-09-01", "2025-07-31")

	require.NoError(t, f.svc.DeleteSession(ctx, f.tenant, old.ID))
	_, err := f.svc.GetSession(ctx, f.tenant, old.ID)
	assertCode(t, err, appErrors.ErrNotFound)

	err = f.svc.ForceDeleteSession(ctx, f.tenant, old.ID)
	assertCode(t, err, appErrors.ErrStateTransition)

	_, err = f.svc.ActivateSession(ctx, f.tenant, newer.ID)
	require.NoError(t, err)
	_, err = f.svc.RestoreSession(ctx, f.tenant, old.ID)
	assertCode(t, err, appErrors.ErrStateTransition)

	_, err = f.svc.RestoreSession(ctx, f.tenant, newer.ID)
	assertCode(t, err, appErrors.ErrStateTransition)
}

func TestRestoreSessionWithoutNewerLiveSession(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	session := f.createSession(t, "2023/2024", "2023-09-01", "2024-07-31")
	require.NoError(t, f.svc.DeleteSession(ctx, f.tenant, session.ID))

	restored, err := f.svc.RestoreSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	found, err := f.svc.GetSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	assert.Len(t, found.Terms, 3)
}

func TestForceDeleteSessionWithoutTerms(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	session := f.createSession(t, "2023/2024", "2023-09-01", "2024-07-31")
	for _, term := range session.Terms {
		require.NoError(t, f.svc.ForceDeleteTerm(ctx, f.tenant, term.ID))
	}
	require.NoError(t, f.svc.ForceDeleteSession(ctx, f.tenant, session.ID))

	_, err := f.svc.RestoreSession(ctx, f.tenant, session.ID)
	assertCode(t, err, appErrors.ErrNotFound)
}

func TestUpdateSessionMustContainTerms(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	session := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")

	end := "2026-06-30"
	_, err := f.svc.UpdateSession(ctx, f.tenant, session.ID, UpdatePeriodRequest{EndDate: &end})
	assertCode(t, err, appErrors.ErrDateConflict)

	name := "Academic Year 2025/2026"
	updated, err := f.svc.UpdateSession(ctx, f.tenant, session.ID, UpdatePeriodRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
}

func TestUpdateSessionDateGuards(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	first := f.createSession(t, "2024/2025", "2024-09-01", "2025-07-31")
	second := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")

	overlap := "2025-09-15"
	_, err := f.svc.UpdateSession(ctx, f.tenant, first.ID, UpdatePeriodRequest{EndDate: &overlap})
	assertCode(t, err, appErrors.ErrDateConflict)

	_, err = f.svc.ActivateSession(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	_, err = f.svc.CloseTerm(ctx, f.tenant, first.Terms[0].ID, validReason)
	require.NoError(t, err)
	_, err = f.svc.ActivateSession(ctx, f.tenant, second.ID)
	require.NoError(t, err)
	_, err = f.svc.CloseSession(ctx, f.tenant, first.ID, validReason)
	require.NoError(t, err)

	extended := "2025-08-20"
	_, err = f.svc.UpdateSession(ctx, f.tenant, first.ID, UpdatePeriodRequest{EndDate: &extended})
	assertCode(t, err, appErrors.ErrStateTransition)

	name := "Academic Year 2024/2025"
	renamed, err := f.svc.UpdateSession(ctx, f.tenant, first.ID, UpdatePeriodRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, renamed.Name)
	assert.Equal(t, date(2025, 7, 31), renamed.EndDate)
}

func TestListSessionsRejectsUnknownStatus(t *testing.T) {
	f := newCalendarFixture(t)
	f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")

	_, _, err := f.svc.ListSessions(context.Background(), f.tenant, models.SessionFilter{Status: "finished"})
	assertCode(t, err, appErrors.ErrInvalidArgument)

	sessions, page, err := f.svc.ListSessions(context.Background(), f.tenant, models.SessionFilter{Status: models.CalendarStatusPending})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, 1, page.TotalCount)
}

func TestTermLifecycle(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	session := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")
	_, err := f.svc.ActivateSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)

	second := session.Terms[1]
	activated, err := f.svc.ActivateTerm(ctx, f.tenant, second.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsCurrent)

	first, err := f.svc.GetTerm(ctx, f.tenant, session.Terms[0].ID)
	require.NoError(t, err)
	assert.False(t, first.IsCurrent)
	assert.Equal(t, models.CalendarStatusActive, first.Status)

	_, err = f.svc.ActivateTerm(ctx, f.tenant, second.ID)
	assertCode(t, err, appErrors.ErrStateTransition)

	err = f.svc.DeleteTerm(ctx, f.tenant, second.ID)
	assertCode(t, err, appErrors.ErrStateTransition)
	err = f.svc.ForceDeleteTerm(ctx, f.tenant, second.ID)
	assertCode(t, err, appErrors.ErrStateTransition)

	_, err = f.svc.CloseTerm(ctx, f.tenant, second.ID, "short")
	assertCode(t, err, appErrors.ErrInvalidArgument)
	_, err = f.svc.CloseTerm(ctx, f.tenant, second.ID, validReason)
	require.NoError(t, err)

	_, err = f.svc.ReopenTerm(ctx, f.tenant, second.ID, validReason, "2026-08-15")
	assertCode(t, err, appErrors.ErrDateConflict)
	_, err = f.svc.ReopenTerm(ctx, f.tenant, second.ID, validReason, session.Terms[2].StartDate.Format(dateLayout))
	assertCode(t, err, appErrors.ErrDateConflict)

	reopened, err := f.svc.ReopenTerm(ctx, f.tenant, second.ID, validReason, "2026-02-20")
	require.NoError(t, err)
	assert.Equal(t, models.CalendarStatusActive, reopened.Status)
	assert.Equal(t, date(2026, 2, 20), reopened.EndDate)

	_, err = f.svc.ArchiveTerm(ctx, f.tenant, second.ID)
	assertCode(t, err, appErrors.ErrStateTransition)
}

func TestUpdateTermDateGuards(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	session := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")
	_, err := f.svc.ActivateSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	first, second, third := session.Terms[0], session.Terms[1], session.Terms[2]

	_, err = f.svc.CloseTerm(ctx, f.tenant, first.ID, validReason)
	require.NoError(t, err)
	_, err = f.svc.ReopenTerm(ctx, f.tenant, first.ID, validReason, "2026-01-15")
	assertCode(t, err, appErrors.ErrDateConflict)

	overlap := "2026-01-15"
	_, err = f.svc.UpdateTerm(ctx, f.tenant, first.ID, UpdatePeriodRequest{EndDate: &overlap})
	assertCode(t, err, appErrors.ErrStateTransition)
	closed, err := f.svc.GetTerm(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.EndDate, closed.EndDate)

	name := "Autumn Term"
	renamed, err := f.svc.UpdateTerm(ctx, f.tenant, first.ID, UpdatePeriodRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, renamed.Name)

	reaching := third.StartDate.Format(dateLayout)
	_, err = f.svc.UpdateTerm(ctx, f.tenant, second.ID, UpdatePeriodRequest{EndDate: &reaching})
	assertCode(t, err, appErrors.ErrDateConflict)

	earlier := third.StartDate.AddDate(0, 0, -5).Format(dateLayout)
	updated, err := f.svc.UpdateTerm(ctx, f.tenant, second.ID, UpdatePeriodRequest{EndDate: &earlier})
	require.NoError(t, err)
	assert.Equal(t, third.StartDate.AddDate(0, 0, -5), updated.EndDate)
}

func TestTermTransitionsRequireOpenSession(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	first := f.createSession(t, "2024/2025", "2024-09-01", "2025-07-31")
	second := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")

	_, err := f.svc.ActivateSession(ctx, f.tenant, first.ID)
	require.NoError(t, err)
	term := first.Terms[0]
	_, err = f.svc.CloseTerm(ctx, f.tenant, term.ID, validReason)
	require.NoError(t, err)
	_, err = f.svc.ActivateSession(ctx, f.tenant, second.ID)
	require.NoError(t, err)
	_, err = f.svc.CloseSession(ctx, f.tenant, first.ID, validReason)
	require.NoError(t, err)

	_, err = f.svc.ReopenTerm(ctx, f.tenant, term.ID, validReason, term.EndDate.AddDate(0, 0, -5).Format(dateLayout))
	assertCode(t, err, appErrors.ErrStateTransition)
	_, err = f.svc.ActivateTerm(ctx, f.tenant, first.Terms[1].ID)
	assertCode(t, err, appErrors.ErrStateTransition)

	reopened, err := f.svc.GetTerm(ctx, f.tenant, term.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CalendarStatusClosed, reopened.Status)
}

func TestCreateTermMustFitSession(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	session := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")

	_, err := f.svc.CreateTerm(ctx, f.tenant, session.ID, CreateTermRequest{Name: "Summer", StartDate: "2026-07-01", EndDate: "2026-08-15"})
	assertCode(t, err, appErrors.ErrDateConflict)

	term, err := f.svc.CreateTerm(ctx, f.tenant, session.ID, CreateTermRequest{Name: "Summer", StartDate: "2026-07-01", EndDate: "2026-07-31"})
	require.NoError(t, err)
	assert.Equal(t, 4, term.OrdinalNumber)
	assert.Equal(t, models.CalendarStatusPending, term.Status)

	_, err = f.svc.CreateTerm(ctx, f.tenant, "missing", CreateTermRequest{Name: "X", StartDate: "2026-07-01", EndDate: "2026-07-31"})
	assertCode(t, err, appErrors.ErrNotFound)

	late := "2026-09-01"
	_, err = f.svc.UpdateTerm(ctx, f.tenant, term.ID, UpdatePeriodRequest{EndDate: &late})
	assertCode(t, err, appErrors.ErrDateConflict)

	terms, err := f.svc.ListTerms(ctx, f.tenant, session.ID, false)
	require.NoError(t, err)
	assert.Len(t, terms, 4)
}

func TestBulkDeleteAndRestoreTerms(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	session := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")
	_, err := f.svc.ActivateSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)

	ids := []string{session.Terms[0].ID, session.Terms[1].ID, session.Terms[2].ID}
	deleted, err := f.svc.BulkDeleteTerms(ctx, f.tenant, BulkDeleteRequest{IDs: ids})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	all, err := f.svc.ListTerms(ctx, f.tenant, session.ID, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	live, err := f.svc.ListTerms(ctx, f.tenant, session.ID, false)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, session.Terms[0].ID, live[0].ID)

	restored, err := f.svc.RestoreTerm(ctx, f.tenant, session.Terms[2].ID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	_, err = f.svc.RestoreTerm(ctx, f.tenant, session.Terms[2].ID)
	assertCode(t, err, appErrors.ErrStateTransition)

	_, err = f.svc.ActivateTerm(ctx, f.tenant, session.Terms[2].ID)
	require.NoError(t, err)
	_, err = f.svc.RestoreTerm(ctx, f.tenant, session.Terms[1].ID)
	assertCode(t, err, appErrors.ErrStateTransition)
}

func TestRestoreTermRequiresLiveSession(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	session := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")
	require.NoError(t, f.svc.DeleteTerm(ctx, f.tenant, session.Terms[0].ID))
	require.NoError(t, f.svc.DeleteSession(ctx, f.tenant, session.ID))

	_, err := f.svc.RestoreTerm(ctx, f.tenant, session.Terms[0].ID)
	assertCode(t, err, appErrors.ErrStateTransition)
}

func TestCalendarTransitionsAreCounted(t *testing.T) {
	f := newCalendarFixture(t)
	ctx := context.Background()
	session := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")
	_, err := f.svc.ActivateSession(ctx, f.tenant, session.ID)
	require.NoError(t, err)
	_ = f.svc.DeleteSession(ctx, f.tenant, session.ID)

	assert.Equal(t, uint64(3), f.metrics.Snapshot().Transitions)
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	f := newCalendarFixture(t)
	f.audit.err = assert.AnError
	session := f.createSession(t, "2025/2026", "2025-09-01", "2026-07-31")

	_, err := f.svc.ActivateSession(context.Background(), f.tenant, session.ID)
	require.NoError(t, err)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
