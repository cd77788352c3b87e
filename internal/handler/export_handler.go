package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/internal/service"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
	"github.com/noah-isme/edu-tenant-core/pkg/response"
)

type calendarExporter interface {
	ExportCalendar(ctx context.Context, tenant *models.Tenant, req service.CalendarExportRequest) (*service.ExportFile, error)
}

// ExportHandler streams calendar exports.
type ExportHandler struct {
	exporter calendarExporter
	enabled  bool
}

// NewExportHandler constructs an export handler. A disabled handler answers
// every request with 404.
func NewExportHandler(exporter calendarExporter, enabled bool) *ExportHandler {
	return &ExportHandler{exporter: exporter, enabled: enabled}
}

// Calendar godoc
// @Summary Download the academic calendar
// @Tags Calendar
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param session_id query string false "Limit the export to one session"
// @Success 200 {file} file
// @Router /calendar/export [get]
func (h *ExportHandler) Calendar(c *gin.Context) {
	if !h.enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "calendar export is disabled"))
		return
	}
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	file, err := h.exporter.ExportCalendar(c.Request.Context(), tenant, service.CalendarExportRequest{
		SessionID: c.Query("session_id"),
		Format:    c.Query("format"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
