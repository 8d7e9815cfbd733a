// Package tag holds the render-time intermediate representation of
// one markup element: a name, a prop mapping, child contents, and
// bare "special" props. A Tag renders to the final markup string.
package tag

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/recera/pulse/pkg/event"
	"github.com/recera/pulse/pkg/style"
	"github.com/recera/pulse/pkg/vars"
)

// Tag is the markup-element mirror of a component at render time.
type Tag struct {
	Name     string
	Props    map[string]any
	Special  []string
	Contents string
}

// New returns an empty tag with the given element name. An empty
// name renders as a bare fragment.
func New(name string) *Tag {
	return &Tag{Name: name, Props: make(map[string]any)}
}

// AddProps merges name/value pairs into the tag's prop mapping.
// Props with invalid values (nil, empty maps) are skipped. Names are
// camelCased. Event chains and raw mappings are stored as-is;
// everything else is wrapped through vars.Create.
func (t *Tag) AddProps(props map[string]any) error {
	for name, value := range props {
		if !validProp(value) {
			continue
		}
		name = style.ToCamelCase(name)
		switch v := value.(type) {
		case event.Chain:
			t.Props[name] = v
		case map[string]any:
			t.Props[name] = v
		case style.Style:
			t.Props[name] = map[string]any(v)
		default:
			wrapped, err := vars.Create(value)
			if err != nil {
				return fmt.Errorf("tag: prop %q: %w", name, err)
			}
			t.Props[name] = wrapped
		}
	}
	return nil
}

// AddSpecial appends a bare non-key-value prop token.
func (t *Tag) AddSpecial(tokens ...string) {
	t.Special = append(t.Special, tokens...)
}

func validProp(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case map[string]any:
		return len(v) > 0
	case style.Style:
		return len(v) > 0
	default:
		return true
	}
}

// FormatProp renders a single prop value to target-language text.
// This is the one formatting dispatcher used for every prop kind.
func FormatProp(value any) (string, error) {
	switch v := value.(type) {
	case vars.Var:
		return formatVarProp(v), nil
	case *vars.Var:
		return formatVarProp(*v), nil
	case event.Chain:
		return formatChain(v)
	case string:
		// Already-wrapped expressions pass through unquoted.
		if strings.HasPrefix(v, "{") && strings.HasSuffix(v, "}") {
			return v, nil
		}
		return strconv.Quote(v), nil
	case map[string]any:
		return formatDict(v)
	case style.Style:
		return formatDict(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("tag: cannot format prop value %v: %w", v, err)
		}
		return "{" + string(b) + "}", nil
	}
}

func formatVarProp(v vars.Var) string {
	if v.IsString {
		return strconv.Quote(v.Name)
	}
	if v.IsLocal {
		return v.FullName()
	}
	return "{" + v.FullName() + "}"
}

// formatChain renders an event chain as an arrow-function literal
// dispatching one runtime call per chained handler. Controlled
// chains take the emitted browser event as a parameter and pass it
// through to the dispatcher as full-control framing.
func formatChain(c event.Chain) (string, error) {
	if len(c.Specs) == 0 {
		return "", fmt.Errorf("tag: empty event chain")
	}
	calls := make([]string, 0, len(c.Specs))
	for _, spec := range c.Specs {
		pairs := make([]string, 0, len(spec.Args))
		for _, arg := range spec.Args {
			pairs = append(pairs, arg.Name+":"+arg.Value)
		}
		calls = append(calls, fmt.Sprintf(
			"E(%q, {%s})", spec.Handler.FullName(), strings.Join(pairs, ","),
		))
	}
	events := "[" + strings.Join(calls, ",") + "]"
	if c.IsControlled() {
		params := strings.Join(c.LocalArgNames(), ",")
		return fmt.Sprintf("{(%s) => Event(%s, %s, true)}", params, events, params), nil
	}
	return fmt.Sprintf("{() => Event(%s)}", events), nil
}

// braceQuoted matches a JSON string whose contents are wrapped in
// interpolation braces.
var braceQuoted = regexp.MustCompile(`"(\{(?:[^"\\]|\\.)*\})"`)

// formatDict JSON-dumps a mapping, then strips one layer of quoting
// around brace-wrapped inner values so an embedded Var renders as a
// live expression rather than a string.
func formatDict(m map[string]any) (string, error) {
	b, err := json.Marshal(prepDict(m))
	if err != nil {
		return "", fmt.Errorf("tag: cannot format dict prop: %w", err)
	}
	out := braceQuoted.ReplaceAllStringFunc(string(b), func(match string) string {
		inner := match[1 : len(match)-1]
		return strings.ReplaceAll(inner, `\"`, `"`)
	})
	return "{" + out + "}", nil
}

func prepDict(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		switch v := value.(type) {
		case vars.Var:
			out[key] = v.String()
		case *vars.Var:
			out[key] = v.String()
		case map[string]any:
			out[key] = prepDict(v)
		case style.Style:
			out[key] = prepDict(v)
		default:
			out[key] = value
		}
	}
	return out
}

// FormatProps renders all props sorted by name, skipping nil values,
// with special props appended as bare tokens.
func (t *Tag) FormatProps() (string, error) {
	names := make([]string, 0, len(t.Props))
	for name, value := range t.Props {
		if value == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+len(t.Special))
	for _, name := range names {
		text, err := FormatProp(t.Props[name])
		if err != nil {
			return "", err
		}
		parts = append(parts, name+"="+text)
	}
	parts = append(parts, t.Special...)
	return strings.Join(parts, " "), nil
}

// Render returns the markup string for the tag: a bare fragment when
// nameless, self-closing when empty, a full element otherwise. A
// nameless tag carrying props renders as an explicit Fragment element,
// since the shorthand form cannot hold a key.
func (t *Tag) Render() (string, error) {
	name := t.Name
	props, err := t.FormatProps()
	if err != nil {
		return "", fmt.Errorf("tag %q: %w", name, err)
	}
	if name == "" {
		if props == "" {
			return "<>" + t.Contents + "</>", nil
		}
		name = "Fragment"
	}
	open := "<" + name
	if props != "" {
		open += " " + props
	}
	if t.Contents == "" {
		return open + "/>", nil
	}
	return open + ">" + t.Contents + "</" + name + ">", nil
}
