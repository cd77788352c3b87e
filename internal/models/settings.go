package models

import (
	"fmt"
	"regexp"
	"time"
)

// ScopeLevel is the precedence level a settings document is stored at.
type ScopeLevel string

const (
	ScopeGlobal       ScopeLevel = "GLOBAL"
	ScopeTenant       ScopeLevel = "TENANT"
	ScopeTenantBranch ScopeLevel = "TENANT_BRANCH"
)

// Well-known settings keys.
const (
	SettingsKeyAuthentication = "authentication"
	SettingsKeyUserManagement = "user_management"
	SettingsKeyIDFormats      = "website.id_formats"
	SettingsKeyPrefixes       = "website.prefixes"
	SettingsKeyCompany        = "company"
	SettingsKeyThemes         = "themes"
	SettingsKeyNotifications  = "general.notifications"
	SettingsKeyIntegrations   = "general.integrations"
	SettingsKeyAPIKeys        = "general.api_keys"
	SettingsKeyFeatures       = "general.features"
)

const maxSettingsKeyLength = 128

var settingsKeyPattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)*$`)

// ValidSettingsKey reports whether key is a dot-namespaced settings key.
func ValidSettingsKey(key string) bool {
	return len(key) <= maxSettingsKeyLength && settingsKeyPattern.MatchString(key)
}

// Scope addresses one precedence layer.
type Scope struct {
	Level    ScopeLevel
	TenantID string
	BranchID string
}

// GlobalScope is the lowest precedence layer.
func GlobalScope() Scope {
	return Scope{Level: ScopeGlobal}
}

// TenantScope addresses a tenant override layer.
func TenantScope(tenantID string) Scope {
	return Scope{Level: ScopeTenant, TenantID: tenantID}
}

// BranchScope addresses a branch override layer.
func BranchScope(tenantID, branchID string) Scope {
	return Scope{Level: ScopeTenantBranch, TenantID: tenantID, BranchID: branchID}
}

// ScopeFor returns the most specific scope the tenant context writes to.
func ScopeFor(tenant *Tenant) Scope {
	switch {
	case tenant == nil:
		return GlobalScope()
	case tenant.HasBranch():
		return BranchScope(tenant.ID, tenant.BranchID)
	default:
		return TenantScope(tenant.ID)
	}
}

// Key renders the scope as the persisted scope_key column.
func (s Scope) Key() string {
	switch s.Level {
	case ScopeTenant:
		return fmt.Sprintf("tenant:%s", s.TenantID)
	case ScopeTenantBranch:
		return fmt.Sprintf("tenant:%s:branch:%s", s.TenantID, s.BranchID)
	default:
		return "global"
	}
}

// TenantIDPtr returns the nullable tenant_id column value.
func (s Scope) TenantIDPtr() *string {
	if s.Level == ScopeGlobal || s.TenantID == "" {
		return nil
	}
	id := s.TenantID
	return &id
}

// BranchIDPtr returns the nullable branch_id column value.
func (s Scope) BranchIDPtr() *string {
	if s.Level != ScopeTenantBranch || s.BranchID == "" {
		return nil
	}
	id := s.BranchID
	return &id
}

// SettingsRecord is one persisted (scope, key) document.
type SettingsRecord struct {
	ScopeKey   string     `db:"scope_key" json:"scope"`
	ScopeLevel ScopeLevel `db:"scope_level" json:"scope_level"`
	TenantID   *string    `db:"tenant_id" json:"tenant_id,omitempty"`
	BranchID   *string    `db:"branch_id" json:"branch_id,omitempty"`
	Key        string     `db:"key" json:"key"`
	Value      Document   `db:"value" json:"value"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// NewSettingsRecord builds a record for scope and key.
func NewSettingsRecord(scope Scope, key string, value Document) *SettingsRecord {
	return &SettingsRecord{
		ScopeKey:   scope.Key(),
		ScopeLevel: scope.Level,
		TenantID:   scope.TenantIDPtr(),
		BranchID:   scope.BranchIDPtr(),
		Key:        key,
		Value:      value,
	}
}
