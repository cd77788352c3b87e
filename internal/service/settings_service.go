package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/pkg/cache"
)

type settingsRepository interface {
	Get(ctx context.Context, scope models.Scope, key string) (*models.SettingsRecord, error)
	Set(ctx context.Context, scope models.Scope, key string, doc models.Document) error
	InsertIfAbsent(ctx context.Context, scope models.Scope, key string, doc models.Document) (bool, error)
	ListByScope(ctx context.Context, scope models.Scope) ([]models.SettingsRecord, error)
}

// SettingsService resolves settings documents across the global, tenant and
// branch scopes and owns their write path.
type SettingsService struct {
	repo    settingsRepository
	cache   *CacheService
	audit   AuditSink
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSettingsService constructs the service. cache, audit and metrics may be nil.
func NewSettingsService(repo settingsRepository, cache *CacheService, audit AuditSink, metrics *MetricsService, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, cache: cache, audit: audit, metrics: metrics, logger: logger}
}

// Resolve returns the effective document for key. A nil tenant yields the
// global document as stored. Otherwise the tenant document and, when the
// tenant carries a branch, the branch document are merged over it; null
// leaves never erase lower layers and lists replace whole.
func (s *SettingsService) Resolve(ctx context.Context, key string, tenant *models.Tenant) (models.Document, error) {
	if !models.ValidSettingsKey(key) {
		return nil, invalidArgument(fmt.Sprintf("invalid settings key %q", key))
	}

	resolved, err := s.load(ctx, models.GlobalScope(), key)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return resolved, nil
	}

	scopes := []models.Scope{models.TenantScope(tenant.ID)}
	if tenant.HasBranch() {
		scopes = append(scopes, models.BranchScope(tenant.ID, tenant.BranchID))
	}
	for _, scope := range scopes {
		override, err := s.load(ctx, scope, key)
		if err != nil {
			return nil, err
		}
		resolved = models.MergeDocuments(resolved, override)
	}
	return resolved, nil
}

// Save writes doc verbatim at the tenant's own scope, replacing whatever was
// stored there for key. Fields missing from doc are dropped at that scope; use
// Patch to keep them.
func (s *SettingsService) Save(ctx context.Context, key string, doc models.Document, tenant *models.Tenant) error {
	if err := validateSettingsWrite(key, doc); err != nil {
		return err
	}
	return s.write(ctx, models.ScopeFor(tenant), key, doc, "save")
}

// Patch merges partial into the document stored at the tenant's own scope and
// saves the result. Null leaves in partial are ignored.
func (s *SettingsService) Patch(ctx context.Context, key string, partial models.Document, tenant *models.Tenant) (models.Document, error) {
	if err := validateSettingsWrite(key, partial); err != nil {
		return nil, err
	}
	scope := models.ScopeFor(tenant)
	current, err := s.load(ctx, scope, key)
	if err != nil {
		return nil, err
	}
	merged := models.MergeDocuments(current, partial)
	if err := validateSettingsWrite(key, merged); err != nil {
		return nil, err
	}
	if err := s.write(ctx, scope, key, merged, "patch"); err != nil {
		return nil, err
	}
	return merged, nil
}

// Stored returns the raw documents kept at the tenant's own scope, by key.
func (s *SettingsService) Stored(ctx context.Context, tenant *models.Tenant) ([]models.SettingsRecord, error) {
	scope := models.ScopeFor(tenant)
	records, err := s.repo.ListByScope(ctx, scope)
	if err != nil {
		err = storageError(err, "failed to list settings")
		logFailure(s.logger, err, "list settings failed", zap.String("scope", scope.Key()))
		return nil, err
	}
	return records, nil
}

// SeedDefaults stores every default document that has no global record yet
// and returns how many were inserted. Existing global documents are kept.
func (s *SettingsService) SeedDefaults(ctx context.Context, defaults map[string]models.Document) (int, error) {
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	inserted := 0
	for _, key := range keys {
		doc := defaults[key]
		if err := validateSettingsWrite(key, doc); err != nil {
			return inserted, fmt.Errorf("default %q: %w", key, err)
		}
		ok, err := s.repo.InsertIfAbsent(ctx, models.GlobalScope(), key, doc)
		if err != nil {
			err = storageError(err, "failed to seed settings")
			logFailure(s.logger, err, "seed settings failed", zap.String("key", key))
			return inserted, err
		}
		if ok {
			inserted++
			s.cache.Invalidate(ctx, cache.SettingsKey(models.GlobalScope().Key(), key))
		}
	}
	return inserted, nil
}

func (s *SettingsService) load(ctx context.Context, scope models.Scope, key string) (models.Document, error) {
	cacheKey := cache.SettingsKey(scope.Key(), key)
	if doc, ok := s.cache.Get(ctx, cacheKey); ok {
		return doc, nil
	}

	record, err := s.repo.Get(ctx, scope, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.cache.Set(ctx, cacheKey, models.Document{})
			return models.Document{}, nil
		}
		err = storageError(err, "failed to load settings")
		logFailure(s.logger, err, "load settings failed",
			zap.String("scope", scope.Key()),
			zap.String("key", key),
			zap.String("operation", "resolve"))
		return nil, err
	}

	doc := record.Value
	if doc == nil {
		doc = models.Document{}
	}
	s.cache.Set(ctx, cacheKey, doc)
	return doc.Clone(), nil
}

func (s *SettingsService) write(ctx context.Context, scope models.Scope, key string, doc models.Document, op string) error {
	if err := s.repo.Set(ctx, scope, key, doc); err != nil {
		err = storageError(err, "failed to save settings")
		logFailure(s.logger, err, "save settings failed",
			zap.String("scope", scope.Key()),
			zap.String("key", key),
			zap.String("operation", op))
		return err
	}
	s.cache.Invalidate(ctx, cache.SettingsKey(scope.Key(), key))
	s.metrics.RecordSettingsWrite(string(scope.Level))

	recordAudit(ctx, s.audit, s.logger, models.AuditEvent{
		TenantID:   scope.TenantIDPtr(),
		Action:     models.AuditActionSettingsSet,
		TargetType: models.AuditTargetSettings,
		TargetID:   scope.Key() + "/" + key,
		Payload:    models.Document{"operation": op},
	})
	s.logger.Info("settings saved", zap.String("scope", scope.Key()), zap.String("key", key), zap.String("operation", op))
	return nil
}

func validateSettingsWrite(key string, doc models.Document) error {
	if !models.ValidSettingsKey(key) {
		return invalidArgument(fmt.Sprintf("invalid settings key %q", key))
	}
	if len(doc) == 0 {
		return invalidArgument("settings document must not be empty")
	}
	if key == models.SettingsKeyIDFormats {
		if _, err := decodeIDFormats(doc); err != nil {
			return invalidArgument(err.Error())
		}
	}
	return nil
}

// decodeIDFormats parses a website.id_formats document and checks every
// entry. Null entries are skipped.
func decodeIDFormats(doc models.Document) (map[string]models.IDFormat, error) {
	formats := make(map[string]models.IDFormat, len(doc))
	for name, raw := range doc {
		if raw == nil {
			continue
		}
		var format models.IDFormat
		if err := weakDecode(raw, &format); err != nil {
			return nil, fmt.Errorf("id format %q: %w", name, err)
		}
		if format.Pattern != "" && !models.ValidIDPattern(format.Pattern) {
			return nil, fmt.Errorf("id format %q: invalid pattern %q", name, format.Pattern)
		}
		if format.SequenceLength != 0 && (format.SequenceLength < 1 || format.SequenceLength > models.MaxSequenceLength) {
			return nil, fmt.Errorf("id format %q: sequence_length must be between 1 and %d", name, models.MaxSequenceLength)
		}
		formats[name] = format
	}
	return formats, nil
}

func weakDecode(input interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
