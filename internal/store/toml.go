package store

import (
	"fmt"
	"strings"

	"github.com/auditgraph/vet/internal/audit"
)

// This file mirrors golang-dep's toml.go: a set of raw* structs matching the
// on-disk TOML shape exactly, with explicit to/from conversions into the
// domain types in internal/audit, rather than tagging the domain types
// themselves with `toml:"..."`. Keeping the wire shape and the domain shape
// separate is what let spec changes (e.g. the delta-string encoding) land
// without touching internal/audit at all.

type rawConfig struct {
	DefaultCriteria []string                    `toml:"default-criteria,omitempty"`
	Imports         map[string]rawImport        `toml:"imports,omitempty"`
	Policy          map[string]rawPolicy        `toml:"policy,omitempty"`
	Exemptions      map[string][]rawExemption   `toml:"exemptions,omitempty"`
	Unaudited       map[string][]rawExemption   `toml:"unaudited,omitempty"`
}

type rawImport struct {
	URL         string             `toml:"url"`
	Exclude     []string           `toml:"exclude,omitempty"`
	CriteriaMap []rawCriteriaMap   `toml:"criteria-map,omitempty"`
}

type rawCriteriaMap struct {
	Ours   string   `toml:"ours"`
	Theirs []string `toml:"theirs"`
}

type rawPolicy struct {
	AuditAsCratesIO    *bool               `toml:"audit-as-crates-io,omitempty"`
	Criteria           rawCriteriaField    `toml:"criteria,omitempty"`
	DevCriteria        rawCriteriaField    `toml:"dev-criteria,omitempty"`
	DependencyCriteria map[string][]string `toml:"dependency-criteria,omitempty"`
}

type rawExemption struct {
	Version  string           `toml:"version"`
	Criteria rawCriteriaField `toml:"criteria"`
	Suggest  *bool            `toml:"suggest,omitempty"`
	Notes    string           `toml:"notes,omitempty"`
}

type rawAuditsFile struct {
	Criteria map[string]rawCriteriaEntry  `toml:"criteria,omitempty"`
	Audits   map[string][]rawAuditEntry   `toml:"audits,omitempty"`
}

type rawCriteriaEntry struct {
	Description    string   `toml:"description,omitempty"`
	DescriptionURL string   `toml:"description-url,omitempty"`
	Implies        []string `toml:"implies,omitempty"`
	AggregatedFrom []string `toml:"aggregated-from,omitempty"`
}

type rawAuditEntry struct {
	Version        string           `toml:"version,omitempty"`
	Delta          string           `toml:"delta,omitempty"`
	Violation      string           `toml:"violation,omitempty"`
	Criteria       rawCriteriaField `toml:"criteria"`
	Who            []string         `toml:"who,omitempty"`
	Notes          string           `toml:"notes,omitempty"`
	AggregatedFrom []string         `toml:"aggregated-from,omitempty"`
}

type rawImportsLock struct {
	Audits map[string]rawAuditsFile `toml:"audits"`
}

// rawCriteriaField accepts spec §6's "string or list of strings" shape:
// UnmarshalTOML stores a bare string as a one-element list, and
// MarshalTOML writes a single criterion back as a bare string and several
// as a list, matching how golang-dep's manifest.go handles similarly
// permissive fields (see gpsVer unmarshaling).
type rawCriteriaField struct {
	values []string
}

// IsZero reports whether f carries no criteria at all, letting go-toml/v2's
// omitempty recognize an explicitly-empty field the same way it recognizes a
// nil one. Without it, a rawPolicy or rawExemption built from an empty (but
// non-nil) criteria slice would still call MarshalTOML and render an
// unwanted "criteria = []" instead of being omitted.
func (f rawCriteriaField) IsZero() bool { return len(f.values) == 0 }

func (f rawCriteriaField) MarshalTOML() ([]byte, error) {
	if len(f.values) == 1 {
		return []byte(fmt.Sprintf("%q", f.values[0])), nil
	}
	parts := make([]string, len(f.values))
	for i, v := range f.values {
		parts[i] = fmt.Sprintf("%q", v)
	}
	return []byte("[" + strings.Join(parts, ", ") + "]"), nil
}

func (f *rawCriteriaField) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		f.values = []string{v}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("criteria list entry %v is not a string", item)
			}
			f.values = append(f.values, s)
		}
	default:
		return fmt.Errorf("criteria field has unsupported shape %T", data)
	}
	return nil
}

func criteriaFieldOf(names []audit.CriteriaName) rawCriteriaField {
	f := rawCriteriaField{}
	for _, n := range names {
		f.values = append(f.values, string(n))
	}
	return f
}

func (f rawCriteriaField) criteriaNames() []audit.CriteriaName {
	out := make([]audit.CriteriaName, len(f.values))
	for i, v := range f.values {
		out[i] = audit.CriteriaName(v)
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
