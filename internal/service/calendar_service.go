package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
)

const dateLayout = "2006-01-02"

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.AcademicSession, int, error)
	FindByID(ctx context.Context, tenantID, id string, withTrashed bool) (*models.AcademicSession, error)
	FindCurrent(ctx context.Context, tenantID string) (*models.AcademicSession, error)
	LockTenant(ctx context.Context, tenantID string) error
	Create(ctx context.Context, session *models.AcademicSession) error
	Update(ctx context.Context, session *models.AcademicSession) error
	ClearCurrent(ctx context.Context, tenantID, exceptID string) (int64, error)
	FindNext(ctx context.Context, tenantID string, after time.Time, excludeID string) (*models.AcademicSession, error)
	ExistsNewerLive(ctx context.Context, tenantID string, after time.Time, excludeID string) (bool, error)
	SoftDeleteMany(ctx context.Context, tenantID string, ids []string, at time.Time) (int64, error)
	ForceDelete(ctx context.Context, tenantID, id string) error
}

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, error)
	FindByID(ctx context.Context, tenantID, id string, withTrashed bool) (*models.Term, error)
	FindCurrent(ctx context.Context, sessionID string) (*models.Term, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	LockSession(ctx context.Context, sessionID string) error
	ClearCurrent(ctx context.Context, sessionID, exceptID string) (int64, error)
	FindNext(ctx context.Context, sessionID string, after time.Time, excludeID string) (*models.Term, error)
	ExistsNewerLive(ctx context.Context, sessionID string, after time.Time, excludeID string) (bool, error)
	CountBySession(ctx context.Context, sessionID string, withTrashed bool) (int, error)
	CountActiveCurrent(ctx context.Context, sessionID string) (int, error)
	MaxOrdinal(ctx context.Context, sessionID string) (int, error)
	SoftDeleteMany(ctx context.Context, tenantID string, ids []string, at time.Time) (int64, error)
	ForceDelete(ctx context.Context, tenantID, id string) error
}

// CreateSessionRequest describes a new academic session.
type CreateSessionRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// CreateTermRequest describes a term added to an existing session.
type CreateTermRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// UpdatePeriodRequest edits the name or dates of a session or term. Nil
// fields are left unchanged.
type UpdatePeriodRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=100"`
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// BulkDeleteRequest lists ids to soft delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required"`
}

// CalendarServiceConfig tunes lifecycle guards.
type CalendarServiceConfig struct {
	MinReasonLength int
}

// CalendarService runs the academic session and term lifecycle.
type CalendarService struct {
	tx        txRunner
	sessions  sessionRepository
	terms     termRepository
	audit     AuditSink
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CalendarServiceConfig
	now       func() time.Time
}

// NewCalendarService constructs the lifecycle service.
func NewCalendarService(tx txRunner, sessions sessionRepository, terms termRepository, audit AuditSink, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg CalendarServiceConfig) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinReasonLength <= 0 {
		cfg.MinReasonLength = 20
	}
	return &CalendarService{
		tx:        tx,
		sessions:  sessions,
		terms:     terms,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// calendarOp describes one lifecycle operation for logging, metrics and audit.
type calendarOp struct {
	entity   string
	action   string
	audit    string
	targetID string
	reason   string
}

// run executes fn in one transaction. On success the audit event is recorded
// after commit; failures are logged by severity and counted by error code.
func (s *CalendarService) run(ctx context.Context, tenant *models.Tenant, op calendarOp, fn func(ctx context.Context) (models.Document, error)) error {
	var payload models.Document
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		payload, err = fn(ctx)
		return err
	})
	if err != nil {
		err = storageError(err, fmt.Sprintf("failed to %s %s", op.action, strings.ReplaceAll(op.entity, "_", " ")))
		logFailure(s.logger, err, "calendar operation failed",
			zap.String("tenant_id", tenant.ID),
			zap.String("entity", op.entity),
			zap.String("id", op.targetID),
			zap.String("operation", op.action))
		s.metrics.RecordTransition(op.entity, op.action, appErrors.FromError(err).Code)
		return err
	}

	s.metrics.RecordTransition(op.entity, op.action, "ok")
	if op.audit != "" {
		recordAudit(ctx, s.audit, s.logger, models.AuditEvent{
			TenantID:   stringPtr(tenant.ID),
			Action:     op.audit,
			TargetType: op.entity,
			TargetID:   op.targetID,
			Reason:     stringPtr(op.reason),
			Payload:    payload,
		})
	}
	s.logger.Info("calendar operation applied",
		zap.String("tenant_id", tenant.ID),
		zap.String("entity", op.entity),
		zap.String("id", op.targetID),
		zap.String("operation", op.action))
	return nil
}

func (s *CalendarService) loadSession(ctx context.Context, tenantID, id string, withTrashed bool) (*models.AcademicSession, error) {
	session, err := s.sessions.FindByID(ctx, tenantID, id, withTrashed)
	if err != nil {
		return nil, lookupError(err, "academic session not found", "failed to load academic session")
	}
	return session, nil
}

func (s *CalendarService) loadTerm(ctx context.Context, tenantID, id string, withTrashed bool) (*models.Term, error) {
	term, err := s.terms.FindByID(ctx, tenantID, id, withTrashed)
	if err != nil {
		return nil, lookupError(err, "term not found", "failed to load term")
	}
	return term, nil
}

func (s *CalendarService) liveTerms(ctx context.Context, tenantID, sessionID string) ([]models.Term, error) {
	terms, err := s.terms.List(ctx, models.TermFilter{TenantID: tenantID, AcademicSessionID: sessionID})
	if err != nil {
		return nil, storageError(err, "failed to list terms")
	}
	return terms, nil
}

func (s *CalendarService) validate(req interface{}) error {
	if err := s.validator.Struct(req); err != nil {
		return invalidArgument(err.Error())
	}
	return nil
}

func (s *CalendarService) checkReason(reason string) error {
	if utf8.RuneCountInString(strings.TrimSpace(reason)) < s.cfg.MinReasonLength {
		return invalidArgument(fmt.Sprintf("reason must be at least %d characters", s.cfg.MinReasonLength))
	}
	return nil
}

func requireTenant(tenant *models.Tenant) error {
	if tenant == nil || tenant.ID == "" {
		return invalidArgument("tenant context is required")
	}
	return nil
}

func parseDate(field, raw string) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, invalidArgument(fmt.Sprintf("%s must be a date formatted as YYYY-MM-DD", field))
	}
	return parsed, nil
}

func parseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := parseDate("start_date", startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("end_date", endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, invalidArgument("end_date must not be before start_date")
	}
	return start, end, nil
}

// applyPeriod merges req over the current name and dates.
func applyPeriod(req UpdatePeriodRequest, name string, start, end time.Time) (string, time.Time, time.Time, error) {
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return "", time.Time{}, time.Time{}, invalidArgument("name must not be empty")
		}
	}
	var err error
	if req.StartDate != nil {
		if start, err = parseDate("start_date", *req.StartDate); err != nil {
			return "", time.Time{}, time.Time{}, err
		}
	}
	if req.EndDate != nil {
		if end, err = parseDate("end_date", *req.EndDate); err != nil {
			return "", time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		return "", time.Time{}, time.Time{}, invalidArgument("end_date must not be before start_date")
	}
	return name, start, end, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func transitionError(entity string, from models.CalendarStatus, action models.CalendarAction) error {
	return stateTransition(fmt.Sprintf("cannot %s a %s %s", action, from, strings.ReplaceAll(entity, "_", " ")))
}
