package dto

import "github.com/noah-isme/edu-tenant-core/internal/models"

// SettingsDocument is the resolved or stored document for one key.
type SettingsDocument struct {
	Key   string          `json:"key"`
	Scope string          `json:"scope"`
	Value models.Document `json:"value"`
}

// IdentifierRequest asks for the next identifier of a type. Zero year means
// the current year.
type IdentifierRequest struct {
	Year int `json:"year"`
}

// IdentifierResponse is a generated identifier.
type IdentifierResponse struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// FlagResponse reports a boolean policy answer.
type FlagResponse struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}
