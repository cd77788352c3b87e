package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/pkg/export"
)

type calendarReader interface {
	ListSessions(ctx context.Context, tenant *models.Tenant, filter models.SessionFilter) ([]models.AcademicSession, *models.Pagination, error)
	GetSession(ctx context.Context, tenant *models.Tenant, id string) (*models.AcademicSession, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CalendarExportRequest selects what to export. An empty SessionID exports
// every live session of the tenant.
type CalendarExportRequest struct {
	SessionID string
	Format    string
}

// ExportService renders a tenant's academic calendar for download.
type ExportService struct {
	calendar calendarReader
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(calendar calendarReader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{calendar: calendar, logger: logger, now: time.Now}
}

var calendarExportHeaders = []string{"Session", "Session Status", "Current Session", "Term", "No.", "Start Date", "End Date", "Status", "Current Term"}

// ExportCalendar renders sessions and their live terms, one row per term.
func (s *ExportService) ExportCalendar(ctx context.Context, tenant *models.Tenant, req CalendarExportRequest) (*ExportFile, error) {
	if err := requireTenant(tenant); err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, invalidArgument(err.Error())
	}

	sessions, err := s.collect(ctx, tenant, req.SessionID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("Academic calendar - %s", schoolLabel(tenant)),
		Headers: calendarExportHeaders,
	}
	for _, session := range sessions {
		if len(session.Terms) == 0 {
			dataset.Rows = append(dataset.Rows, sessionRow(session))
			continue
		}
		for _, term := range session.Terms {
			row := sessionRow(session)
			row["Term"] = term.Name
			row["No."] = strconv.Itoa(term.OrdinalNumber)
			row["Start Date"] = term.StartDate.Format(dateLayout)
			row["End Date"] = term.EndDate.Format(dateLayout)
			row["Status"] = string(term.Status)
			row["Current Term"] = yesNo(term.IsCurrent)
			dataset.Rows = append(dataset.Rows, row)
		}
	}

	payload, err := export.Render(format, dataset)
	if err != nil {
		err = internalError(err, "failed to render calendar export")
		logFailure(s.logger, err, "calendar export failed", zap.String("tenant_id", tenant.ID), zap.String("format", string(format)))
		return nil, err
	}

	return &ExportFile{
		Filename:    calendarFilename(tenant, req.SessionID, format, s.now()),
		ContentType: format.ContentType(),
		Data:        payload,
	}, nil
}

func (s *ExportService) collect(ctx context.Context, tenant *models.Tenant, sessionID string) ([]models.AcademicSession, error) {
	if sessionID != "" {
		session, err := s.calendar.GetSession(ctx, tenant, sessionID)
		if err != nil {
			return nil, err
		}
		return []models.AcademicSession{*session}, nil
	}

	var out []models.AcademicSession
	filter := models.SessionFilter{Page: 1, PageSize: 100}
	for {
		page, pagination, err := s.calendar.ListSessions(ctx, tenant, filter)
		if err != nil {
			return nil, err
		}
		for _, session := range page {
			full, err := s.calendar.GetSession(ctx, tenant, session.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, *full)
		}
		if len(page) == 0 || filter.Page*filter.PageSize >= pagination.TotalCount {
			return out, nil
		}
		filter.Page++
	}
}

func sessionRow(session models.AcademicSession) map[string]string {
	return map[string]string{
		"Session":         session.Name,
		"Session Status":  string(session.Status),
		"Current Session": yesNo(session.IsCurrent),
		"Start Date":      session.StartDate.Format(dateLayout),
		"End Date":        session.EndDate.Format(dateLayout),
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func schoolLabel(tenant *models.Tenant) string {
	if tenant.Code != "" {
		return tenant.Code
	}
	return tenant.ID
}

func calendarFilename(tenant *models.Tenant, sessionID string, format export.Format, at time.Time) string {
	scope := "all"
	if sessionID != "" {
		scope = sanitizeFilename(sessionID)
	}
	return fmt.Sprintf("calendar_%s_%s_%s.%s", sanitizeFilename(schoolLabel(tenant)), scope, at.UTC().Format("20060102_150405"), format)
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}
