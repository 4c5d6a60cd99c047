package processor

import (
	"fmt"
	"strings"

	"github.com/ORAITApps/attachment-migrator/internal/models"
)

// Transform is the reviewed field mapping applied to a payload before it is created in
// the target org. Field names match case-insensitively, as they do in the REST API.
// Excludes are matched on source field names, the prefix on the resulting Name field,
// and a renamed value replaces any field already holding the target name.
type Transform struct {
	NamePrefix string            `mapstructure:"name_prefix" yaml:"name_prefix"`
	Rename     map[string]string `mapstructure:"rename" yaml:"rename"`
	Exclude    []string          `mapstructure:"exclude" yaml:"exclude"`
}

// Apply returns a transformed copy of fields.
func (t Transform) Apply(fields map[string]any) map[string]any {
	excluded := make(map[string]bool, len(t.Exclude))
	for _, f := range t.Exclude {
		excluded[strings.ToLower(f)] = true
	}
	renames := make(map[string]string, len(t.Rename))
	for from, to := range t.Rename {
		renames[strings.ToLower(from)] = to
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		lk := strings.ToLower(k)
		if _, renamed := renames[lk]; renamed || excluded[lk] {
			continue
		}
		out[k] = v
	}
	for k, v := range fields {
		lk := strings.ToLower(k)
		to, renamed := renames[lk]
		if !renamed || excluded[lk] {
			continue
		}
		if existing, ok := findKey(out, to); ok {
			delete(out, existing)
		}
		out[to] = v
	}

	if t.NamePrefix != "" {
		if key, ok := findKey(out, models.FieldName); ok {
			if name, isString := out[key].(string); isString {
				out[key] = t.NamePrefix + name
			}
		}
	}
	return out
}

func findKey(fields map[string]any, name string) (string, bool) {
	if _, ok := fields[name]; ok {
		return name, true
	}
	for k := range fields {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

// validate rejects mappings that would send server-managed keys or touch protected ones.
func (t Transform) validate(protected ...string) error {
	for from, to := range t.Rename {
		if strings.TrimSpace(to) == "" {
			return fmt.Errorf("rename of %s has an empty target", from)
		}
		if strings.EqualFold(to, models.FieldID) || strings.EqualFold(to, models.FieldAttributes) {
			return fmt.Errorf("rename of %s targets reserved field %s", from, to)
		}
	}
	for _, p := range protected {
		for from, to := range t.Rename {
			if strings.EqualFold(from, p) {
				return fmt.Errorf("field %s cannot be renamed", p)
			}
			if strings.EqualFold(to, p) {
				return fmt.Errorf("rename of %s would overwrite %s", from, p)
			}
		}
		for _, e := range t.Exclude {
			if strings.EqualFold(e, p) {
				return fmt.Errorf("field %s cannot be excluded", p)
			}
		}
	}
	return nil
}
