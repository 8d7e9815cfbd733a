// Package style converts host-language style/prop mappings into
// target-convention form: snake_case and kebab-case keys become
// camelCase, nested maps convert recursively, and Var values render
// to their expression text.
package style

import (
	"strings"

	"github.com/recera/pulse/pkg/vars"
)

// Style is a formatted style mapping attached to a component and
// later merged into its tag.
type Style map[string]any

// ToCamelCase converts a snake_case or kebab-case key to camelCase.
// Keys already in camelCase pass through unchanged. A leading
// underscore (pseudo-selector convention) is preserved.
func ToCamelCase(key string) string {
	prefix := ""
	for strings.HasPrefix(key, "_") {
		prefix += "_"
		key = key[1:]
	}
	return prefix + camelCase(key)
}

func camelCase(key string) string {
	sep := "_"
	if !strings.Contains(key, sep) {
		if !strings.Contains(key, "-") {
			return key
		}
		sep = "-"
	}
	parts := strings.Split(key, sep)
	out := parts[0]
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		out += strings.ToUpper(part[:1]) + part[1:]
	}
	return out
}

// Format converts a raw style mapping into target-convention form.
func Format(raw map[string]any) Style {
	out := make(Style, len(raw))
	for key, value := range raw {
		out[ToCamelCase(key)] = formatValue(value)
	}
	return out
}

func formatValue(value any) any {
	switch v := value.(type) {
	case vars.Var:
		return v.String()
	case *vars.Var:
		return v.String()
	case map[string]any:
		return map[string]any(Format(v))
	case Style:
		return map[string]any(Format(v))
	default:
		return value
	}
}

// Merge folds src into dst without overriding keys dst already sets.
func Merge(dst Style, src Style) Style {
	if dst == nil {
		dst = make(Style, len(src))
	}
	for key, value := range src {
		if _, taken := dst[key]; !taken {
			dst[key] = value
		}
	}
	return dst
}
