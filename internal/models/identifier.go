package models

import (
	"regexp"
	"sort"
	"strings"
)

// IDType names an entity class that receives generated identifiers.
type IDType string

const (
	IDTypeStudent   IDType = "student"
	IDTypeStaff     IDType = "staff"
	IDTypeInvoice   IDType = "invoice"
	IDTypeAdmission IDType = "admission"
	IDTypeReceipt   IDType = "receipt"
)

// Identifier placeholders substituted into id patterns.
const (
	PlaceholderPrefix   = "{PREFIX}"
	PlaceholderSchool   = "{SCHOOL}"
	PlaceholderYear     = "{YEAR}"
	PlaceholderSequence = "{SEQUENCE}"

	DefaultIDPattern      = PlaceholderPrefix + "-" + PlaceholderYear + "-" + PlaceholderSequence
	DefaultSequenceLength = 4
	MaxSequenceLength     = 12
)

// IDTypeDef holds the built-in defaults for one id type.
type IDTypeDef struct {
	Type           IDType
	Prefix         string
	Pattern        string
	SequenceLength int
}

var idTypeRegistry = map[IDType]IDTypeDef{
	IDTypeStudent:   {Type: IDTypeStudent, Prefix: "STU", Pattern: DefaultIDPattern, SequenceLength: 4},
	IDTypeStaff:     {Type: IDTypeStaff, Prefix: "STF", Pattern: DefaultIDPattern, SequenceLength: 4},
	IDTypeInvoice:   {Type: IDTypeInvoice, Prefix: "INV", Pattern: DefaultIDPattern, SequenceLength: 6},
	IDTypeAdmission: {Type: IDTypeAdmission, Prefix: "ADM", Pattern: DefaultIDPattern, SequenceLength: 4},
	IDTypeReceipt:   {Type: IDTypeReceipt, Prefix: "RCT", Pattern: DefaultIDPattern, SequenceLength: 6},
}

// LookupIDType resolves a friendly name to its registered definition.
func LookupIDType(name string) (IDTypeDef, bool) {
	def, ok := idTypeRegistry[IDType(strings.ToLower(strings.TrimSpace(name)))]
	return def, ok
}

// IDTypes lists registered id types in a stable order.
func IDTypes() []IDType {
	types := make([]IDType, 0, len(idTypeRegistry))
	for t := range idTypeRegistry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// IDFormat is the per id type entry of the website.id_formats document.
type IDFormat struct {
	Pattern        string `mapstructure:"pattern" json:"pattern"`
	SequenceLength int    `mapstructure:"sequence_length" json:"sequence_length"`
}

var idPatternRegexp = regexp.MustCompile(`^(?:[A-Za-z0-9_./-]|\{[A-Z_]+\})+$`)

// ValidIDPattern reports whether pattern only holds alphanumerics, simple
// separators and {PLACEHOLDER} tokens, and carries a {SEQUENCE} token.
func ValidIDPattern(pattern string) bool {
	return idPatternRegexp.MatchString(pattern) && strings.Contains(pattern, PlaceholderSequence)
}
