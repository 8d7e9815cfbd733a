// Package compiler emits page modules for the target runtime: the
// merged import manifest, the event-endpoint constant, the
// JSON-seeded state declaration, the dispatch glue, and the rendered
// markup, plus one exported function per custom component the page
// uses.
package compiler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/recera/pulse/pkg/component"
	"github.com/recera/pulse/pkg/state"
)

const (
	reactLibrary   = "react"
	runtimeLibrary = "/pulse/runtime"
)

var reactImports = []string{"useEffect", "useRef", "useState"}

var runtimeImports = []string{"E", "Event", "connect", "getRouter", "useColorMode"}

// Options configure page emission.
type Options struct {
	// EventEndpoint is the URL events are submitted to. Defaults to
	// "/_event".
	EventEndpoint string
	// Sheet is the app-wide style sheet applied to custom component
	// expansions at emission time.
	Sheet component.StyleSheet
}

func (o Options) endpoint() string {
	if o.EventEndpoint == "" {
		return "/_event"
	}
	return o.EventEndpoint
}

// Compiler turns component trees into page source files. It is
// stateless and safe for concurrent use per page.
type Compiler struct {
	opts Options
}

// New returns a compiler with the given options.
func New(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

// CompilePage emits the complete module for one route. The state
// instance seeds the client-side store; a nil instance seeds an empty
// one.
func (c *Compiler) CompilePage(route string, root component.Component, seed *state.Instance) (string, error) {
	markup, err := root.Render()
	if err != nil {
		return "", fmt.Errorf("compiler: render %s: %w", route, err)
	}

	customs := make(map[string]*component.CustomDef)
	component.DiscoverCustom(root, customs)

	var b strings.Builder
	if err := writeImports(&b, root, customs); err != nil {
		return "", err
	}

	fmt.Fprintf(&b, "const EVENT = %q\n\n", c.opts.endpoint())

	initial, err := stateSeed(seed)
	if err != nil {
		return "", fmt.Errorf("compiler: seed %s: %w", route, err)
	}
	fmt.Fprintf(&b, "const initialState = %s\n\n", initial)

	if err := writeCustomDefs(&b, customs, c.opts.Sheet); err != nil {
		return "", err
	}

	fmt.Fprintf(&b, "export default function %s() {\n", PageName(route))
	b.WriteString("  const [state, setState] = useState(initialState)\n")
	b.WriteString("  const [ready, setReady] = useState(false)\n")
	b.WriteString("  const router = getRouter()\n")
	b.WriteString("  const socket = useRef(null)\n")
	b.WriteString("  const { colorMode, toggleColorMode } = useColorMode()\n\n")
	b.WriteString("  useEffect(() => connect(socket, setState, setReady, EVENT), [])\n\n")
	b.WriteString("  return (\n")
	b.WriteString("    " + markup + "\n")
	b.WriteString("  )\n")
	b.WriteString("}\n")
	return b.String(), nil
}

// writeImports emits the merged manifest: the fixed target-runtime
// imports first, then every component library in sorted order with
// sorted tag lists.
func writeImports(b *strings.Builder, root component.Component, customs map[string]*component.CustomDef) error {
	manifest := make(component.ImportMap)
	manifest.Merge(root.Imports())
	for _, def := range customs {
		manifest.Merge(def.BodyImports())
	}

	// The fixed runtime hooks and any component tags imported from the
	// react package itself share one import line.
	for _, name := range reactImports {
		manifest.Add(reactLibrary, name)
	}
	fmt.Fprintf(b, "import { %s } from %q\n", strings.Join(manifest.Tags(reactLibrary), ", "), reactLibrary)
	fmt.Fprintf(b, "import { %s } from %q\n", strings.Join(runtimeImports, ", "), runtimeLibrary)
	for _, lib := range manifest.Libraries() {
		if lib == reactLibrary {
			continue
		}
		tags := manifest.Tags(lib)
		if len(tags) == 0 {
			continue
		}
		fmt.Fprintf(b, "import { %s } from %q\n", strings.Join(tags, ", "), lib)
	}
	b.WriteString("\n")
	return nil
}

// writeCustomDefs emits one exported function per discovered custom
// component, sorted by tag for deterministic output.
func writeCustomDefs(b *strings.Builder, customs map[string]*component.CustomDef, sheet component.StyleSheet) error {
	tags := make([]string, 0, len(customs))
	for tag := range customs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		def := customs[tag]
		body, err := def.RenderBody(sheet)
		if err != nil {
			return fmt.Errorf("compiler: custom component %s: %w", tag, err)
		}
		params := ""
		if names := def.ParamNames(); len(names) > 0 {
			params = "{ " + strings.Join(names, ", ") + " }"
		}
		fmt.Fprintf(b, "export function %s(%s) {\n", tag, params)
		b.WriteString("  return (\n")
		b.WriteString("    " + body + "\n")
		b.WriteString("  )\n")
		b.WriteString("}\n\n")
	}
	return nil
}

// stateSeed serializes the instance's client-visible values. Map keys
// serialize in sorted order, so the seed is deterministic.
func stateSeed(seed *state.Instance) (string, error) {
	if seed == nil {
		return "{}", nil
	}
	data, err := json.Marshal(seed.SnapshotTree())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PageName derives the exported page function name from a route path:
// "/" becomes Index, "/pricing/teams" becomes PricingTeams.
func PageName(route string) string {
	trimmed := strings.Trim(route, "/")
	if trimmed == "" {
		return "Index"
	}
	var b strings.Builder
	for _, segment := range strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '/' || r == '-' || r == '_'
	}) {
		b.WriteString(strings.ToUpper(segment[:1]))
		b.WriteString(segment[1:])
	}
	return b.String()
}

// FileName derives the on-disk module name for a route: "/" becomes
// index.js, "/pricing/teams" becomes pricing_teams.js.
func FileName(route string) string {
	trimmed := strings.Trim(route, "/")
	if trimmed == "" {
		return "index.js"
	}
	name := strings.NewReplacer("/", "_", "-", "_").Replace(trimmed)
	return name + ".js"
}
