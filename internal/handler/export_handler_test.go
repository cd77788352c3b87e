package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/internal/service"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
)

type calendarExporterStub struct {
	req  service.CalendarExportRequest
	file *service.ExportFile
	err  error
}

func (s *calendarExporterStub) ExportCalendar(ctx context.Context, tenant *models.Tenant, req service.CalendarExportRequest) (*service.ExportFile, error) {
	s.req = req
	return s.file, s.err
}

func TestExportHandlerStreamsFile(t *testing.T) {
	stub := &calendarExporterStub{file: &service.ExportFile{Filename: "calendar_GVH_all.csv", ContentType: "text/csv", Data: []byte("a,b\n")}}
	h := NewExportHandler(stub, true)

	c, w := newTestContext(t, http.MethodGet, "/calendar/export?format=csv&session_id=s1", nil, tenantClaims())
	h.Calendar(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", stub.req.SessionID)
	assert.Equal(t, "csv", stub.req.Format)
	assert.Equal(t, `attachment; filename="calendar_GVH_all.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", w.Body.String())
}

func TestExportHandlerDisabled(t *testing.T) {
	h := NewExportHandler(&calendarExporterStub{}, false)
	c, w := newTestContext(t, http.MethodGet, "/calendar/export", nil, tenantClaims())
	h.Calendar(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerPropagatesErrors(t *testing.T) {
	stub := &calendarExporterStub{err: appErrors.Clone(appErrors.ErrInvalidArgument, "unsupported export format \"xls\"")}
	h := NewExportHandler(stub, true)
	c, w := newTestContext(t, http.MethodGet, "/calendar/export?format=xls", nil, tenantClaims())
	h.Calendar(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	stub.err = errors.New("boom")
	c, w = newTestContext(t, http.MethodGet, "/calendar/export", nil, tenantClaims())
	h.Calendar(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
