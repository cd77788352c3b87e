package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-tenant-core/internal/dto"
	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/pkg/response"
)

type identifierGenerator interface {
	Generate(ctx context.Context, idType string, tenant *models.Tenant, year int) (string, error)
}

// IdentifierHandler issues formatted sequential identifiers.
type IdentifierHandler struct {
	generator identifierGenerator
}

// NewIdentifierHandler constructs an identifier handler.
func NewIdentifierHandler(generator identifierGenerator) *IdentifierHandler {
	return &IdentifierHandler{generator: generator}
}

// Generate godoc
// @Summary Issue the next identifier of a type
// @Tags Identifiers
// @Accept json
// @Produce json
// @Param type path string true "Identifier type"
// @Param payload body dto.IdentifierRequest false "Year override"
// @Success 201 {object} response.Envelope
// @Router /identifiers/{type} [post]
func (h *IdentifierHandler) Generate(c *gin.Context) {
	tenant := requireTenant(c)
	if tenant == nil {
		return
	}
	var req dto.IdentifierRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid identifier payload") {
		return
	}
	idType := strings.ToLower(c.Param("type"))
	id, err := h.generator.Generate(c.Request.Context(), idType, tenant, req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusCreated, dto.IdentifierResponse{Type: idType, Identifier: id}, nil)
}
