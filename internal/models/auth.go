package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Permissions carried in access tokens.
const (
	PermissionManageSettings = "settings:manage"
	PermissionManageCalendar = "calendar:manage"
	PermissionManagePlatform = "platform:manage"
	PermissionIssueIDs       = "identifiers:issue"
)

// AccessClaims is the payload of a bearer token. Tokens without a tenant id
// act at the global scope.
type AccessClaims struct {
	TenantID    string   `json:"tenant_id,omitempty"`
	TenantCode  string   `json:"tenant_code,omitempty"`
	BranchID    string   `json:"branch_id,omitempty"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Tenant returns the tenant context of the token, or nil for global tokens.
func (c *AccessClaims) Tenant() *Tenant {
	if c == nil || strings.TrimSpace(c.TenantID) == "" {
		return nil
	}
	return &Tenant{ID: c.TenantID, Code: c.TenantCode, BranchID: c.BranchID}
}

// Can reports whether the token grants permission. Platform tokens hold
// every permission.
func (c *AccessClaims) Can(permission string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Permissions {
		if p == permission || p == PermissionManagePlatform {
			return true
		}
	}
	return false
}
