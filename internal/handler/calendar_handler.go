package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-tenant-core/internal/dto"
	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/internal/service"
	"github.com/noah-isme/edu-tenant-core/pkg/response"
)

type calendarService interface {
	ListSessions(ctx context.Context, tenant *models.Tenant, filter models.SessionFilter) ([]models.AcademicSession, *models.Pagination, error)
	GetSession(ctx context.Context, tenant *models.Tenant, id string) (*models.AcademicSession, error)
	GetCurrentSession(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error)
	CreateSession(ctx context.Context, tenant *models.Tenant, req service.CreateSessionRequest) (*models.AcademicSession, error)
	UpdateSession(ctx context.Context, tenant *models.Tenant, id string, req service.UpdatePeriodRequest) (*models.AcademicSession, error)
	ActivateSession(ctx context.Context, tenant *models.Tenant, id string) (*models.AcademicSession, error)
	CloseSession(ctx context.Context, tenant *models.Tenant, id, reason string) (*models.AcademicSession, error)
	ReopenSession(ctx context.Context, tenant *models.Tenant, id, reason, endDate string) (*models.AcademicSession, error)
	ArchiveSession(ctx context.Context, tenant *models.Tenant, id string) (*models.AcademicSession, error)
	DeleteSession(ctx context.Context, tenant *models.Tenant, id string) error
	BulkDeleteSessions(ctx context.Context, tenant *models.Tenant, req service.BulkDeleteRequest) (int64, error)
	ForceDeleteSession(ctx context.Context, tenant *models.Tenant, id string) error
	RestoreSession(ctx context.Context, tenant *models.Tenant, id string) (*models.AcademicSession, error)

	ListTerms(ctx context.Context, tenant *models.Tenant, sessionID string, withTrashed bool) ([]models.Term, error)
	GetTerm(ctx context.Context, tenant *models.Tenant, id string) (*models.Term, error)
	GetCurrentTerm(ctx context.Context, tenant *models.Tenant, sessionID string) (*models.Term, error)
	CreateTerm(ctx context.Context, tenant *models.Tenant, sessionID string, req service.CreateTermRequest) (*models.Term, error)
	UpdateTerm(ctx context.Context, tenant *models.Tenant, id string, req service.UpdatePeriodRequest) (*models.Term, error)
	ActivateTerm(ctx context.Context, tenant *models.Tenant, id string) (*models.Term, error)
	CloseTerm(ctx context.Context, tenant *models.Tenant, id, reason string) (*models.Term, error)
	ReopenTerm(ctx context.Context, tenant *models.Tenant, id, reason, endDate string) (*models.Term, error)
	ArchiveTerm(ctx context.Context, tenant *models.Tenant, id string) (*models.Term, error)
	DeleteTerm(ctx context.Context, tenant *models.Tenant, id string) error
	BulkDeleteTerms(ctx context.Context, tenant *models.Tenant, req service.BulkDeleteRequest) (int64, error)
	ForceDeleteTerm(ctx context.Context, tenant *models.Tenant, id string) error
	RestoreTerm(ctx context.Context, tenant *models.Tenant, id string) (*models.Term, error)
}

// CalendarHandler exposes academic session and term endpoints.
type CalendarHandler struct {
	calendar calendarService
}

// NewCalendarHandler constructs a calendar handler.
func NewCalendarHandler(calendar calendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

// ListSessions godoc
// @Summary List academic sessions
// @Tags Calendar
// @Produce json
// @Param status query string false "Filter by status"
// @Param trashed query string false "with or only"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions [get]
func (h *CalendarHandler) ListSessions(c *gin.Context) {
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	filter := models.SessionFilter{Status: models.CalendarStatus(strings.ToLower(c.Query("status")))}
	switch c.Query("trashed") {
	case "with":
		filter.WithTrashed = true
	case "only":
		filter.OnlyTrashed = true
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	sessions, pagination, err := h.calendar.ListSessions(c.Request.Context(), tenant, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, sessions, pagination)
}

// GetSession godoc
// @Summary Get an academic session with its terms
// @Tags Calendar
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id} [get]
func (h *CalendarHandler) GetSession(c *gin.Context) {
	h.sessionResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error) {
		return h.calendar.GetSession(ctx, tenant, c.Param("id"))
	})
}

// CurrentSession godoc
// @Summary Get the current academic session
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/current [get]
func (h *CalendarHandler) CurrentSession(c *gin.Context) {
	h.sessionResult(c, h.calendar.GetCurrentSession)
}

// CreateSession godoc
// @Summary Create an academic session and its three terms
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /calendar/sessions [post]
func (h *CalendarHandler) CreateSession(c *gin.Context) {
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	var req service.CreateSessionRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	session, err := h.calendar.CreateSession(c.Request.Context(), tenant, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, session, nil)
}

// UpdateSession godoc
// @Summary Update an academic session
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.UpdatePeriodRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id} [put]
func (h *CalendarHandler) UpdateSession(c *gin.Context) {
	var req service.UpdatePeriodRequest
	h.sessionResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, invalidPayload(err, "invalid session payload")
		}
		return h.calendar.UpdateSession(ctx, tenant, c.Param("id"), req)
	})
}

// ActivateSession godoc
// @Summary Make a session current
// @Tags Calendar
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id}/activate [post]
func (h *CalendarHandler) ActivateSession(c *gin.Context) {
	h.sessionResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error) {
		return h.calendar.ActivateSession(ctx, tenant, c.Param("id"))
	})
}

// CloseSession godoc
// @Summary Close a session
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.TransitionRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id}/close [post]
func (h *CalendarHandler) CloseSession(c *gin.Context) {
	var req dto.TransitionRequest
	h.sessionResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, invalidPayload(err, "invalid close payload")
		}
		return h.calendar.CloseSession(ctx, tenant, c.Param("id"), req.Reason)
	})
}

// ReopenSession godoc
// @Summary Reopen a closed session with a new end date
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.ReopenRequest true "Reason and end date"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id}/reopen [post]
func (h *CalendarHandler) ReopenSession(c *gin.Context) {
	var req dto.ReopenRequest
	h.sessionResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, invalidPayload(err, "invalid reopen payload")
		}
		return h.calendar.ReopenSession(ctx, tenant, c.Param("id"), req.Reason, req.EndDate)
	})
}

// ArchiveSession godoc
// @Summary Archive a session
// @Tags Calendar
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id}/archive [post]
func (h *CalendarHandler) ArchiveSession(c *gin.Context) {
	h.sessionResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error) {
		return h.calendar.ArchiveSession(ctx, tenant, c.Param("id"))
	})
}

// RestoreSession godoc
// @Summary Restore a soft deleted session
// @Tags Calendar
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id}/restore [post]
func (h *CalendarHandler) RestoreSession(c *gin.Context) {
	h.sessionResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error) {
		return h.calendar.RestoreSession(ctx, tenant, c.Param("id"))
	})
}

// DeleteSession godoc
// @Summary Soft delete a session
// @Tags Calendar
// @Param id path string true "Session ID"
// @Success 204
// @Router /calendar/sessions/{id} [delete]
func (h *CalendarHandler) DeleteSession(c *gin.Context) {
	h.noContent(c, func(ctx context.Context, tenant *models.Tenant) error {
		return h.calendar.DeleteSession(ctx, tenant, c.Param("id"))
	})
}

// ForceDeleteSession godoc
// @Summary Permanently delete a session and its terms
// @Tags Calendar
// @Param id path string true "Session ID"
// @Success 204
// @Router /calendar/sessions/{id}/force [delete]
func (h *CalendarHandler) ForceDeleteSession(c *gin.Context) {
	h.noContent(c, func(ctx context.Context, tenant *models.Tenant) error {
		return h.calendar.ForceDeleteSession(ctx, tenant, c.Param("id"))
	})
}

// BulkDeleteSessions godoc
// @Summary Soft delete several sessions
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.BulkDeleteRequest true "Session IDs"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/bulk-delete [post]
func (h *CalendarHandler) BulkDeleteSessions(c *gin.Context) {
	h.bulkDelete(c, h.calendar.BulkDeleteSessions)
}

// ListTerms godoc
// @Summary List the terms of a session
// @Tags Calendar
// @Produce json
// @Param id path string true "Session ID"
// @Param trashed query string false "with"
// @Success 200 {object} response.Envelope
// @Router /calendar/sessions/{id}/terms [get]
func (h *CalendarHandler) ListTerms(c *gin.Context) {
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	terms, err := h.calendar.ListTerms(c.Request.Context(), tenant, c.Param("id"), c.Query("trashed") == "with")
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, terms, nil)
}

// CreateTerm godoc
// @Summary Add a term to a session
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.CreateTermRequest true "Term payload"
// @Success 201 {object} response.Envelope
// @Router /calendar/sessions/{id}/terms [post]
func (h *CalendarHandler) CreateTerm(c *gin.Context) {
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	var req service.CreateTermRequest
	if !bindJSON(c, &req, "invalid term payload") {
		return
	}
	term, err := h.calendar.CreateTerm(c.Request.Context(), tenant, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, term, nil)
}

// CurrentTerm godoc
// @Summary Get the current term
// @Tags Calendar
// @Produce json
// @Param session_id query string false "Session ID, defaults to the current session"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/current [get]
func (h *CalendarHandler) CurrentTerm(c *gin.Context) {
	h.termResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.Term, error) {
		return h.calendar.GetCurrentTerm(ctx, tenant, c.Query("session_id"))
	})
}

// GetTerm godoc
// @Summary Get a term
// @Tags Calendar
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/{id} [get]
func (h *CalendarHandler) GetTerm(c *gin.Context) {
	h.termResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.Term, error) {
		return h.calendar.GetTerm(ctx, tenant, c.Param("id"))
	})
}

// UpdateTerm godoc
// @Summary Update a term
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Term ID"
// @Param payload body service.UpdatePeriodRequest true "Term payload"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/{id} [put]
func (h *CalendarHandler) UpdateTerm(c *gin.Context) {
	var req service.UpdatePeriodRequest
	h.termResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.Term, error) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, invalidPayload(err, "invalid term payload")
		}
		return h.calendar.UpdateTerm(ctx, tenant, c.Param("id"), req)
	})
}

// ActivateTerm godoc
// @Summary Make a term current within its session
// @Tags Calendar
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/{id}/activate [post]
func (h *CalendarHandler) ActivateTerm(c *gin.Context) {
	h.termResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.Term, error) {
		return h.calendar.ActivateTerm(ctx, tenant, c.Param("id"))
	})
}

// CloseTerm godoc
// @Summary Close a term
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Term ID"
// @Param payload body dto.TransitionRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/{id}/close [post]
func (h *CalendarHandler) CloseTerm(c *gin.Context) {
	var req dto.TransitionRequest
	h.termResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.Term, error) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, invalidPayload(err, "invalid close payload")
		}
		return h.calendar.CloseTerm(ctx, tenant, c.Param("id"), req.Reason)
	})
}

// ReopenTerm godoc
// @Summary Reopen a closed term with a new end date
// @Tags Calendar
// @Accept json
// @Produce json
// @Param id path string true "Term ID"
// @Param payload body dto.ReopenRequest true "Reason and end date"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/{id}/reopen [post]
func (h *CalendarHandler) ReopenTerm(c *gin.Context) {
	var req dto.ReopenRequest
	h.termResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.Term, error) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, invalidPayload(err, "invalid reopen payload")
		}
		return h.calendar.ReopenTerm(ctx, tenant, c.Param("id"), req.Reason, req.EndDate)
	})
}

// ArchiveTerm godoc
// @Summary Archive a term
// @Tags Calendar
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/{id}/archive [post]
func (h *CalendarHandler) ArchiveTerm(c *gin.Context) {
	h.termResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.Term, error) {
		return h.calendar.ArchiveTerm(ctx, tenant, c.Param("id"))
	})
}

// RestoreTerm godoc
// @Summary Restore a soft deleted term
// @Tags Calendar
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/{id}/restore [post]
func (h *CalendarHandler) RestoreTerm(c *gin.Context) {
	h.termResult(c, func(ctx context.Context, tenant *models.Tenant) (*models.Term, error) {
		return h.calendar.RestoreTerm(ctx, tenant, c.Param("id"))
	})
}

// DeleteTerm godoc
// @Summary Soft delete a term
// @Tags Calendar
// @Param id path string true "Term ID"
// @Success 204
// @Router /calendar/terms/{id} [delete]
func (h *CalendarHandler) DeleteTerm(c *gin.Context) {
	h.noContent(c, func(ctx context.Context, tenant *models.Tenant) error {
		return h.calendar.DeleteTerm(ctx, tenant, c.Param("id"))
	})
}

// ForceDeleteTerm godoc
// @Summary Permanently delete a term
// @Tags Calendar
// @Param id path string true "Term ID"
// @Success 204
// @Router /calendar/terms/{id}/force [delete]
func (h *CalendarHandler) ForceDeleteTerm(c *gin.Context) {
	h.noContent(c, func(ctx context.Context, tenant *models.Tenant) error {
		return h.calendar.ForceDeleteTerm(ctx, tenant, c.Param("id"))
	})
}

// BulkDeleteTerms godoc
// @Summary Soft delete several terms
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.BulkDeleteRequest true "Term IDs"
// @Success 200 {object} response.Envelope
// @Router /calendar/terms/bulk-delete [post]
func (h *CalendarHandler) BulkDeleteTerms(c *gin.Context) {
	h.bulkDelete(c, h.calendar.BulkDeleteTerms)
}

func (h *CalendarHandler) sessionResult(c *gin.Context, fn func(ctx context.Context, tenant *models.Tenant) (*models.AcademicSession, error)) {
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	session, err := fn(c.Request.Context(), tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, session, nil)
}

func (h *CalendarHandler) termResult(c *gin.Context, fn func(ctx context.Context, tenant *models.Tenant) (*models.Term, error)) {
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	term, err := fn(c.Request.Context(), tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, term, nil)
}

func (h *CalendarHandler) noContent(c *gin.Context, fn func(ctx context.Context, tenant *models.Tenant) error) {
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	if err := fn(c.Request.Context(), tenant); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *CalendarHandler) bulkDelete(c *gin.Context, fn func(ctx context.Context, tenant *models.Tenant, req service.BulkDeleteRequest) (int64, error)) {
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	var req service.BulkDeleteRequest
	if !bindJSON(c, &req, "invalid bulk delete payload") {
		return
	}
	deleted, err := fn(c.Request.Context(), tenant, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, dto.BulkDeleteResult{Requested: len(req.IDs), Deleted: deleted}, nil)
}
