package models

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType is the coercion target for a declared field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldFloat
	FieldDate
)

// String returns the lowercase name of the field type.
func (t FieldType) String() string {
	switch t {
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldDate:
		return "date"
	default:
		return "string"
	}
}

// Key fields may reference these pipeline-supplied values in addition to
// declared fields.
const (
	KeyEntityID   = "entity_id"
	KeySeason     = "season"
	KeySeasonType = "season_type"
)

// FieldRule declares one canonical field: its lowercase name, coercion type,
// and the header spellings under which the source publishes it. The source
// is inconsistent about header casing ("Team" vs "TEAM"), so every rule
// carries an explicit alias list instead of scattering fallback lookups.
type FieldRule struct {
	Name    string
	Type    FieldType
	Aliases []string
}

// CategoryDescriptor is the data-only description of one statistic category.
// It replaces the per-category subclassing of the source site's tables: the
// orchestrator is generic over this descriptor.
type CategoryDescriptor struct {
	Name              string
	TableSelector     string
	EntityPathSegment string // href segment that marks an entity link, e.g. "/game/"
	KeyFields         []string
	Fields            []FieldRule
}

// Validate checks the descriptor is coherent. A malformed descriptor is a
// fatal condition: the run cannot start without a table selector, key fields,
// and a consistent field list.
func (d *CategoryDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor missing name")
	}
	if d.TableSelector == "" {
		return fmt.Errorf("descriptor %q missing table selector", d.Name)
	}
	if len(d.KeyFields) == 0 {
		return fmt.Errorf("descriptor %q missing key fields", d.Name)
	}

	declared := make(map[string]struct{}, len(d.Fields))
	seenAlias := make(map[string]string)
	for _, f := range d.Fields {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if name == "" {
			return fmt.Errorf("descriptor %q has a field with no name", d.Name)
		}
		if name != f.Name {
			return fmt.Errorf("descriptor %q field %q must be lowercase", d.Name, f.Name)
		}
		if _, ok := declared[name]; ok {
			return fmt.Errorf("descriptor %q declares field %q twice", d.Name, name)
		}
		declared[name] = struct{}{}
		for _, a := range f.Aliases {
			key := strings.ToLower(strings.TrimSpace(a))
			if key == "" {
				return fmt.Errorf("descriptor %q field %q has an empty alias", d.Name, name)
			}
			if owner, ok := seenAlias[key]; ok && owner != name {
				return fmt.Errorf("descriptor %q alias %q claimed by both %q and %q", d.Name, a, owner, name)
			}
			seenAlias[key] = name
		}
	}

	for _, k := range d.KeyFields {
		switch k {
		case KeyEntityID, KeySeason, KeySeasonType:
			continue
		}
		if _, ok := declared[k]; !ok {
			return fmt.Errorf("descriptor %q key field %q is not declared", d.Name, k)
		}
	}
	return nil
}

// Field returns the rule for a canonical field name.
func (d *CategoryDescriptor) Field(name string) (FieldRule, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldRule{}, false
}

var registry = map[string]*CategoryDescriptor{}

// RegisterCategory adds a descriptor to the global registry. It panics on a
// duplicate name; registration happens from package init only.
func RegisterCategory(d *CategoryDescriptor) {
	if _, ok := registry[d.Name]; ok {
		panic(fmt.Sprintf("models: category %q registered twice", d.Name))
	}
	registry[d.Name] = d
}

// LookupCategory resolves a category name to its descriptor.
func LookupCategory(name string) (*CategoryDescriptor, error) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown category %q (known: %s)", name, strings.Join(CategoryNames(), ", "))
	}
	return d, nil
}

// CategoryNames lists the registered category names, sorted.
func CategoryNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
