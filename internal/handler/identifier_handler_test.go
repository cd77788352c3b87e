package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-tenant-core/internal/dto"
	"github.com/noah-isme/edu-tenant-core/internal/repository/memory"
	"github.com/noah-isme/edu-tenant-core/internal/service"
)

func newIdentifierHandler() *IdentifierHandler {
	store := memory.NewStore()
	settings := service.NewSettingsService(memory.NewSettingsRepository(store), nil, nil, nil, nil)
	return NewIdentifierHandler(service.NewIdentifierService(settings, memory.NewSequenceRepository(store), nil, nil))
}

func TestIdentifierHandlerGenerate(t *testing.T) {
	h := newIdentifierHandler()

	c, w := newTestContext(t, http.MethodPost, "/identifiers/Student", dto.IdentifierRequest{Year: 2025}, tenantClaims())
	c.Params = gin.Params{{Key: "type", Value: "Student"}}
	h.Generate(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.IdentifierResponse
	decode(t, w, &resp)
	assert.Equal(t, "student", resp.Type)
	assert.Equal(t, "STU-2025-0001", resp.Identifier)

	c, w = newTestContext(t, http.MethodPost, "/identifiers/student", nil, tenantClaims())
	c.Params = gin.Params{{Key: "type", Value: "student"}}
	h.Generate(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &resp)
	assert.Equal(t, fmt.Sprintf("STU-%d-0001", time.Now().Year()), resp.Identifier)
}

func TestIdentifierHandlerUnknownType(t *testing.T) {
	h := newIdentifierHandler()
	c, w := newTestContext(t, http.MethodPost, "/identifiers/locker", nil, tenantClaims())
	c.Params = gin.Params{{Key: "type", Value: "locker"}}
	h.Generate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdentifierHandlerNeedsTenant(t *testing.T) {
	h := newIdentifierHandler()
	c, w := newTestContext(t, http.MethodPost, "/identifiers/student", nil, nil)
	c.Params = gin.Params{{Key: "type", Value: "student"}}
	h.Generate(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
