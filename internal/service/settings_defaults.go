package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

// LoadSettingsDefaults reads a YAML file mapping settings keys to their global
// default documents.
func LoadSettingsDefaults(path string) (map[string]models.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings defaults: %w", err)
	}
	return ParseSettingsDefaults(raw)
}

// ParseSettingsDefaults decodes YAML defaults. Every top-level value must be a
// mapping.
func ParseSettingsDefaults(raw []byte) (map[string]models.Document, error) {
	var parsed map[string]map[string]interface{}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse settings defaults: %w", err)
	}
	defaults := make(map[string]models.Document, len(parsed))
	for key, doc := range parsed {
		if !models.ValidSettingsKey(key) {
			return nil, fmt.Errorf("settings defaults: invalid key %q", key)
		}
		defaults[key] = models.Document(doc)
	}
	return defaults, nil
}
