package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

type settingsResolver interface {
	Resolve(ctx context.Context, key string, tenant *models.Tenant) (models.Document, error)
}

// LoginThrottle limits failed sign-in attempts.
type LoginThrottle struct {
	Attempts       int `mapstructure:"attempts" json:"attempts"`
	LockoutMinutes int `mapstructure:"lockout_minutes" json:"lockout_minutes"`
}

// AuthenticationPolicy is the typed view of the authentication document.
type AuthenticationPolicy struct {
	Throttle                 LoginThrottle `mapstructure:"throttle" json:"throttle"`
	RequireEmailVerification bool          `mapstructure:"require_email_verification" json:"require_email_verification"`
	TwoFactor                bool          `mapstructure:"two_factor" json:"two_factor"`
}

// DefaultAuthenticationPolicy applies when nothing is configured.
var DefaultAuthenticationPolicy = AuthenticationPolicy{
	Throttle: LoginThrottle{Attempts: 5, LockoutMinutes: 15},
}

// PolicyService reads typed policies out of resolved settings.
type PolicyService struct {
	settings settingsResolver
	logger   *zap.Logger
}

// NewPolicyService constructs a policy service.
func NewPolicyService(settings settingsResolver, logger *zap.Logger) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{settings: settings, logger: logger}
}

// AuthenticationPolicy returns the tenant's sign-in policy. Malformed fields
// fall back to the defaults.
func (s *PolicyService) AuthenticationPolicy(ctx context.Context, tenant *models.Tenant) (AuthenticationPolicy, error) {
	doc, err := s.settings.Resolve(ctx, models.SettingsKeyAuthentication, tenant)
	if err != nil {
		return AuthenticationPolicy{}, err
	}
	policy := DefaultAuthenticationPolicy
	if err := weakDecode(map[string]interface{}(doc), &policy); err != nil {
		s.logger.Warn("authentication settings malformed, using defaults", tenantField(tenant), zap.Error(err))
		return DefaultAuthenticationPolicy, nil
	}
	if policy.Throttle.Attempts <= 0 {
		policy.Throttle.Attempts = DefaultAuthenticationPolicy.Throttle.Attempts
	}
	if policy.Throttle.LockoutMinutes <= 0 {
		policy.Throttle.LockoutMinutes = DefaultAuthenticationPolicy.Throttle.LockoutMinutes
	}
	return policy, nil
}

// RoleSignInAllowed reports whether users of role may sign in. Roles are
// allowed unless user_management.<role>_sign_in is false.
func (s *PolicyService) RoleSignInAllowed(ctx context.Context, tenant *models.Tenant, role string) (bool, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false, invalidArgument("role is required")
	}
	doc, err := s.settings.Resolve(ctx, models.SettingsKeyUserManagement, tenant)
	if err != nil {
		return false, err
	}
	return boolSetting(doc, fmt.Sprintf("%s_sign_in", role), true), nil
}

// FeatureEnabled reports whether a tenant feature toggle is on. Unknown
// features are off.
func (s *PolicyService) FeatureEnabled(ctx context.Context, tenant *models.Tenant, feature string) (bool, error) {
	feature = strings.TrimSpace(feature)
	if feature == "" {
		return false, invalidArgument("feature is required")
	}
	doc, err := s.settings.Resolve(ctx, models.SettingsKeyFeatures, tenant)
	if err != nil {
		return false, err
	}
	return boolSetting(doc, feature, false), nil
}

func boolSetting(doc models.Document, path string, fallback bool) bool {
	raw, ok := doc.Lookup(path)
	if !ok || raw == nil {
		return fallback
	}
	var value bool
	if err := weakDecode(raw, &value); err != nil {
		return fallback
	}
	return value
}

func tenantField(tenant *models.Tenant) zap.Field {
	if tenant == nil {
		return zap.String("tenant_id", "")
	}
	return zap.String("tenant_id", tenant.ID)
}
