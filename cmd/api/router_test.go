package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/pkg/config"
)

type testServer struct {
	router http.Handler
	svc    *services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		Database:  config.DatabaseConfig{Driver: driverMemory},
		JWT:       config.JWTConfig{Secret: "test-secret", Issuer: "edu-tenant-core"},
		Settings:  config.SettingsConfig{CacheTTL: time.Minute, DefaultsFile: "../../configs/settings.defaults.yaml"},
		Calendar:  config.CalendarConfig{TxTimeout: time.Second, MinReasonLength: 10, ExportEnabled: true},
	}
	svc, cleanup, err := buildServices(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	require.NoError(t, seedDefaults(context.Background(), cfg, svc.settings, zap.NewNop()))
	return &testServer{router: newRouter(cfg, zap.NewNop(), svc), svc: svc}
}

func (s *testServer) token(t *testing.T, claims models.AccessClaims) string {
	t.Helper()
	token, _, err := s.svc.tokens.Issue("user-1", claims)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestRouterRejectsMissingToken(t *testing.T) {
	srv := newTestServer(t)
	w := srv.do(t, http.MethodGet, "/api/v1/settings/company", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterSettingsPermissions(t *testing.T) {
	srv := newTestServer(t)
	reader := srv.token(t, models.AccessClaims{TenantID: "tenant-1", Role: "teacher"})
	admin := srv.token(t, models.AccessClaims{TenantID: "tenant-1", Role: "admin", Permissions: []string{models.PermissionManageSettings}})

	w := srv.do(t, http.MethodPatch, "/api/v1/settings/company", reader, map[string]interface{}{"name": "GVH"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(t, http.MethodPatch, "/api/v1/settings/company", admin, map[string]interface{}{"name": "GVH"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = srv.do(t, http.MethodGet, "/api/v1/settings/company", reader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"GVH"`)
	assert.Contains(t, w.Body.String(), `"request_id"`)
}

func TestRouterCalendarFlow(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, models.AccessClaims{TenantID: "tenant-1", TenantCode: "GVH", Permissions: []string{models.PermissionManageCalendar}})

	w := srv.do(t, http.MethodPost, "/api/v1/calendar/sessions", token, map[string]string{"name": "2025/2026", "start_date": "2025-07-01", "end_date": "2026-06-30"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data models.AcademicSession `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = srv.do(t, http.MethodPost, "/api/v1/calendar/sessions/"+created.Data.ID+"/activate", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = srv.do(t, http.MethodGet, "/api/v1/calendar/sessions/current", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), created.Data.ID)

	w = srv.do(t, http.MethodGet, "/api/v1/calendar/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), "attachment;"))
	assert.Contains(t, w.Body.String(), "First Term")

	snapshot := srv.svc.metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.Transitions)
}

func TestRouterCalendarRejectsGlobalToken(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, models.AccessClaims{Permissions: []string{models.PermissionManagePlatform}})
	w := srv.do(t, http.MethodGet, "/api/v1/calendar/sessions", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouterIssuesIdentifiers(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, models.AccessClaims{TenantID: "tenant-1", Permissions: []string{models.PermissionIssueIDs}})

	w := srv.do(t, http.MethodPost, "/api/v1/identifiers/invoice", token, map[string]int{"year": 2025})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "INV/2025/000001")
}
