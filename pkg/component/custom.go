package component

import (
	"fmt"
	"strings"
	"sync"

	"github.com/recera/pulse/pkg/vars"
)

// Param declares one prop of a custom component.
type Param struct {
	Name string
	Type *vars.Type
}

// CustomDef is a user-authored composite component, memoized by tag
// name and emitted once per page as its own target-language function.
// Two defs are the same component iff their tags match. The build
// function is kept so every emission works on a fresh expansion;
// body is the validated expansion used for read-only walks.
type CustomDef struct {
	Tag    string
	Params []Param
	build  func(args []vars.Var) (Component, error)
	body   Component
}

// customDefs is the process-wide memoization table, keyed by tag.
// Written once per definition, read-only afterwards.
var (
	customMu   sync.Mutex
	customDefs = make(map[string]*CustomDef)
)

// DefineCustom registers a custom component. The build function runs
// once against symbolic prop vars; repeated definitions with the same
// name return the memoized def.
func DefineCustom(name string, params []Param, build func(args []vars.Var) (Component, error)) (*CustomDef, error) {
	tagName := pascalCase(name)

	customMu.Lock()
	existing, ok := customDefs[tagName]
	customMu.Unlock()
	if ok {
		return existing, nil
	}

	args := make([]vars.Var, len(params))
	for i, p := range params {
		args[i] = vars.New(p.Name, p.Type)
	}
	body, err := build(args)
	if err != nil {
		return nil, fmt.Errorf("component: custom %q: %w", name, err)
	}
	def := &CustomDef{Tag: tagName, Params: params, build: build, body: body}

	customMu.Lock()
	if raced, ok := customDefs[tagName]; ok {
		def = raced
	} else {
		customDefs[tagName] = def
	}
	customMu.Unlock()
	return def, nil
}

// resetCustomDefs clears the memoization table. Tests only.
func resetCustomDefs() {
	customMu.Lock()
	customDefs = make(map[string]*CustomDef)
	customMu.Unlock()
}

// Use instantiates the custom component with concrete prop values,
// type-checked against the declared params.
func (d *CustomDef) Use(args ...any) (*CustomNode, error) {
	if len(args) != len(d.Params) {
		return nil, fmt.Errorf(
			"component: custom %s takes %d props, got %d", d.Tag, len(d.Params), len(args),
		)
	}
	values := make([]vars.Var, len(args))
	for i, arg := range args {
		v, err := vars.Create(arg)
		if err != nil {
			return nil, fmt.Errorf("component: custom %s prop %q: %w", d.Tag, d.Params[i].Name, err)
		}
		if !v.Type.AssignableTo(d.Params[i].Type) {
			return nil, fmt.Errorf(
				"component: custom %s prop %q expects %s, got %s",
				d.Tag, d.Params[i].Name, d.Params[i].Type, v.Type,
			)
		}
		values[i] = v
	}
	return &CustomNode{def: d, args: values}, nil
}

// RenderBody builds a fresh expansion against the symbolic prop vars,
// applies the sheet to it, and renders it. The memoized body stays
// untouched so emissions with different sheets never contaminate one
// another.
func (d *CustomDef) RenderBody(sheet StyleSheet) (string, error) {
	body, err := d.newBody()
	if err != nil {
		return "", err
	}
	if sheet != nil {
		body.ApplyStyle(sheet)
	}
	return body.Render()
}

func (d *CustomDef) newBody() (Component, error) {
	args := make([]vars.Var, len(d.Params))
	for i, p := range d.Params {
		args[i] = vars.New(p.Name, p.Type)
	}
	body, err := d.build(args)
	if err != nil {
		return nil, fmt.Errorf("component: custom %s: %w", d.Tag, err)
	}
	return body, nil
}

// ParamNames returns the declared prop names in order.
func (d *CustomDef) ParamNames() []string {
	names := make([]string, len(d.Params))
	for i, p := range d.Params {
		names[i] = p.Name
	}
	return names
}

// BodyImports returns the library manifest of the expansion.
func (d *CustomDef) BodyImports() ImportMap {
	return d.body.Imports()
}

// Discover collects this def and every distinct custom component used
// inside its expansion, terminating cycles through the seen set.
func (d *CustomDef) Discover(seen map[string]*CustomDef) {
	if _, ok := seen[d.Tag]; ok {
		return
	}
	seen[d.Tag] = d
	discoverCustom(d.body, seen)
}

// DiscoverCustom walks an arbitrary component tree collecting every
// distinct custom component it uses, directly or through nesting.
func DiscoverCustom(c Component, seen map[string]*CustomDef) {
	discoverCustom(c, seen)
}

func discoverCustom(c Component, seen map[string]*CustomDef) {
	if node, ok := c.(*CustomNode); ok {
		node.def.Discover(seen)
	}
	for _, child := range c.kids() {
		discoverCustom(child, seen)
	}
}

// CustomNode is one usage of a custom component within a page.
type CustomNode struct {
	def  *CustomDef
	args []vars.Var
}

// Def returns the definition this usage instantiates.
func (n *CustomNode) Def() *CustomDef { return n.def }

// Render emits the invocation element, one prop per declared param.
func (n *CustomNode) Render() (string, error) {
	parts := make([]string, 0, len(n.args))
	for i, arg := range n.args {
		expr := arg.String()
		if !strings.HasPrefix(expr, "{") {
			expr = "{" + expr + "}"
		}
		parts = append(parts, n.def.Params[i].Name+"="+expr)
	}
	if len(parts) == 0 {
		return "<" + n.def.Tag + "/>", nil
	}
	return "<" + n.def.Tag + " " + strings.Join(parts, " ") + "/>", nil
}

// Imports returns the expansion's manifest; the emitted function
// itself is page-local and needs no import.
func (n *CustomNode) Imports() ImportMap {
	return n.def.BodyImports()
}

// ApplyStyle is a no-op: the invocation element carries no style of
// its own, and the expansion is styled at emission time by RenderBody.
func (n *CustomNode) ApplyStyle(sheet StyleSheet) {}

func (n *CustomNode) kids() []Component { return nil }

// pascalCase converts a snake_case function name into the component
// tag convention.
func pascalCase(name string) string {
	parts := strings.Split(name, "_")
	var out strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		out.WriteString(strings.ToUpper(part[:1]))
		out.WriteString(part[1:])
	}
	return out.String()
}
