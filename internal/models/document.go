package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// Document is an arbitrary nested settings value stored as JSONB.
type Document map[string]interface{}

// Value implements the driver.Valuer interface.
func (d Document) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface.
func (d *Document) Scan(value interface{}) error {
	if value == nil {
		*d = Document{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("document: unsupported scan source")
	}

	if len(raw) == 0 {
		*d = Document{}
		return nil
	}

	result := make(Document)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*d = result
	return nil
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return Document{}
	}
	return Document(cloneMap(d))
}

// Lookup walks a dot separated path through nested maps.
func (d Document) Lookup(path string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Map returns the nested map stored under key, if any.
func (d Document) Map(key string) (map[string]interface{}, bool) {
	value, ok := d[key]
	if !ok {
		return nil, false
	}
	return asMap(value)
}

// MergeDocuments layers override on top of base and returns a new document.
//
// Null leaves in override never erase base values. Nested maps merge key by
// key; any other value, lists included, replaces the base value whole.
func MergeDocuments(base, override Document) Document {
	result := base.Clone()
	mergeInto(result, override)
	return result
}

func mergeInto(dst, src map[string]interface{}) {
	for key, value := range src {
		if value == nil {
			continue
		}
		srcMap, isMap := asMap(value)
		if !isMap {
			dst[key] = cloneValue(value)
			continue
		}
		if dstMap, ok := asMap(dst[key]); ok {
			merged := cloneMap(dstMap)
			mergeInto(merged, srcMap)
			dst[key] = merged
			continue
		}
		filtered := filterNulls(srcMap)
		if _, exists := dst[key]; exists && len(filtered) == 0 {
			continue
		}
		dst[key] = filtered
	}
}

func filterNulls(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src))
	for key, value := range src {
		if value == nil {
			continue
		}
		if nested, ok := asMap(value); ok {
			out[key] = filterNulls(nested)
			continue
		}
		out[key] = cloneValue(value)
	}
	return out
}

func asMap(value interface{}) (map[string]interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, true
	case Document:
		return map[string]interface{}(v), true
	default:
		return nil, false
	}
}

func cloneMap(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src))
	for key, value := range src {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value interface{}) interface{} {
	if m, ok := asMap(value); ok {
		return cloneMap(m)
	}
	if list, ok := value.([]interface{}); ok {
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = cloneValue(item)
		}
		return out
	}
	return value
}
