package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
)

type sequenceRepository interface {
	Next(ctx context.Context, tenantID, idType string, year int) (int64, error)
}

// IdentifierService formats tenant scoped, sequence numbered identifiers.
type IdentifierService struct {
	settings  settingsResolver
	sequences sequenceRepository
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewIdentifierService constructs the generator.
func NewIdentifierService(settings settingsResolver, sequences sequenceRepository, metrics *MetricsService, logger *zap.Logger) *IdentifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentifierService{settings: settings, sequences: sequences, metrics: metrics, logger: logger, now: time.Now}
}

// Generate claims the next sequence number for (tenant, idType, year) and
// renders it through the tenant's configured pattern. A zero year means the
// current year.
func (s *IdentifierService) Generate(ctx context.Context, idType string, tenant *models.Tenant, year int) (string, error) {
	def, ok := models.LookupIDType(idType)
	if !ok {
		return "", invalidArgument(fmt.Sprintf("unknown id type %q", idType))
	}
	if tenant == nil || tenant.ID == "" {
		return "", invalidArgument("identifier generation requires a tenant")
	}
	if year == 0 {
		year = s.now().Year()
	}
	if year < 1 || year > 9999 {
		return "", invalidArgument(fmt.Sprintf("invalid year %d", year))
	}

	format, err := s.format(ctx, def, tenant)
	if err != nil {
		return "", err
	}
	prefix, err := s.prefix(ctx, def, tenant)
	if err != nil {
		return "", err
	}

	seq, err := s.sequences.Next(ctx, tenant.ID, string(def.Type), year)
	if err != nil {
		err = storageError(err, "failed to advance identifier sequence")
		logFailure(s.logger, err, "identifier sequence failed",
			zap.String("tenant_id", tenant.ID),
			zap.String("id_type", string(def.Type)),
			zap.Int("year", year))
		return "", err
	}

	school := tenant.Code
	if school == "" {
		school = tenant.ID
	}
	id := strings.NewReplacer(
		models.PlaceholderPrefix, prefix,
		models.PlaceholderSchool, school,
		models.PlaceholderYear, strconv.Itoa(year),
		models.PlaceholderSequence, fmt.Sprintf("%0*d", format.SequenceLength, seq),
	).Replace(format.Pattern)

	s.metrics.RecordIdentifierIssued(string(def.Type))
	return id, nil
}

// format resolves the pattern and sequence length for the id type. Corrupt values
// are reported and replaced by the built-in defaults.
func (s *IdentifierService) format(ctx context.Context, def models.IDTypeDef, tenant *models.Tenant) (models.IDFormat, error) {
	fallback := models.IDFormat{Pattern: models.DefaultIDPattern, SequenceLength: def.SequenceLength}
	if fallback.SequenceLength == 0 {
		fallback.SequenceLength = models.DefaultSequenceLength
	}

	doc, err := s.settings.Resolve(ctx, models.SettingsKeyIDFormats, tenant)
	if err != nil {
		return models.IDFormat{}, err
	}
	raw, ok := doc[string(def.Type)]
	if !ok || raw == nil {
		return fallback, nil
	}

	var format models.IDFormat
	if err := weakDecode(raw, &format); err != nil {
		s.configurationWarning(tenant, def, "undecodable id format", err)
		return fallback, nil
	}
	if format.Pattern == "" {
		format.Pattern = fallback.Pattern
	} else if !models.ValidIDPattern(format.Pattern) {
		s.configurationWarning(tenant, def, "corrupt id pattern", fmt.Errorf("pattern %q", format.Pattern))
		format.Pattern = models.DefaultIDPattern
	}
	if format.SequenceLength == 0 {
		format.SequenceLength = fallback.SequenceLength
	} else if format.SequenceLength < 1 || format.SequenceLength > models.MaxSequenceLength {
		s.configurationWarning(tenant, def, "sequence length out of range", fmt.Errorf("sequence_length %d", format.SequenceLength))
		format.SequenceLength = fallback.SequenceLength
	}
	return format, nil
}

func (s *IdentifierService) prefix(ctx context.Context, def models.IDTypeDef, tenant *models.Tenant) (string, error) {
	doc, err := s.settings.Resolve(ctx, models.SettingsKeyPrefixes, tenant)
	if err != nil {
		return "", err
	}
	if value, ok := doc[string(def.Type)].(string); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}
	return def.Prefix, nil
}

func (s *IdentifierService) configurationWarning(tenant *models.Tenant, def models.IDTypeDef, msg string, cause error) {
	err := appErrors.Wrap(cause, appErrors.ErrConfiguration.Code, appErrors.ErrConfiguration.Status, msg)
	s.logger.Warn("id format configuration invalid, using default",
		zap.String("tenant_id", tenant.ID),
		zap.String("id_type", string(def.Type)),
		zap.String("code", err.Code),
		zap.Error(err))
}
