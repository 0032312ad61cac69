package core

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// requiredFields lists the frontmatter fields each kind must carry.
// Everything else passes through opaquely.
var requiredFields = map[Kind][]string{
	KindAgent: {"name", "description"},
	KindSkill: {"name", "description"},
}

// Classify parses the item's frontmatter and validates it against the
// kind's schema, returning a new item with either Meta or Invalid set.
// It never returns an error: malformed input is a classification, not a
// failure.
func Classify(item *ContentItem) *ContentItem {
	out := *item
	out.Name = baseName(item.RelPath)

	fields, reason := parseFrontmatter(item.RawBytes)
	if reason != "" {
		out.Invalid = reason
		return &out
	}

	if name, ok := fields["name"].(string); ok && name != "" {
		out.Name = name
	}

	for _, field := range requiredFields[item.Kind] {
		v, ok := fields[field]
		if !ok {
			out.Invalid = fmt.Sprintf("missing required field: %s", field)
			return &out
		}
		s, isStr := v.(string)
		if !isStr || strings.TrimSpace(s) == "" {
			out.Invalid = fmt.Sprintf("missing required field: %s", field)
			return &out
		}
	}

	desc, _ := fields["description"].(string)
	out.Meta = &Metadata{
		Name:        out.Name,
		Description: desc,
		Fields:      fields,
	}
	return &out
}

// parseFrontmatter locates the leading --- delimited block and parses it
// as YAML into a generic map. Block-style lists of scalars are normalized
// to []string; nested mappings are kept as-is. The second return value is
// a non-empty classification reason on failure.
func parseFrontmatter(raw []byte) (map[string]any, string) {
	content := strings.TrimPrefix(string(raw), "\ufeff")

	if !strings.HasPrefix(content, "---") {
		return nil, "no frontmatter"
	}

	rest := trimLeadingNewline(content[3:])

	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, "no closing frontmatter delimiter"
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &fields); err != nil {
		return nil, fmt.Sprintf("invalid frontmatter: %v", err)
	}
	if fields == nil {
		fields = make(map[string]any)
	}

	for k, v := range fields {
		if list, ok := scalarList(v); ok {
			fields[k] = list
		}
	}
	return fields, ""
}

// scalarList converts a YAML sequence of scalars to []string, preserving
// order. Sequences containing non-scalar elements are left untouched.
func scalarList(v any) ([]string, bool) {
	seq, ok := v.([]any)
	if !ok {
		return nil, false
	}
	list := make([]string, 0, len(seq))
	for _, elem := range seq {
		switch e := elem.(type) {
		case string:
			list = append(list, e)
		case int, int64, float64, bool:
			list = append(list, fmt.Sprint(e))
		default:
			return nil, false
		}
	}
	return list, true
}

func trimLeadingNewline(s string) string {
	if strings.HasPrefix(s, "\r\n") {
		return s[2:]
	}
	if strings.HasPrefix(s, "\n") {
		return s[1:]
	}
	return s
}

// baseName returns the file base name without the .md extension.
func baseName(relPath string) string {
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
