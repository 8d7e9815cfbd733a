// Package component implements the immutable component tree the
// compiler renders to target-language markup. A component is a tree
// node with children, style, event-trigger bindings, and library/tag
// metadata; specialized nodes cover conditional branches, list
// iteration, and user-defined composite components.
package component

import (
	"fmt"
	"sort"

	"github.com/recera/pulse/pkg/event"
	"github.com/recera/pulse/pkg/style"
	"github.com/recera/pulse/pkg/tag"
	"github.com/recera/pulse/pkg/vars"
)

// Component is a renderable node of the page tree.
type Component interface {
	// Render returns the markup string for the node and its subtree.
	Render() (string, error)
	// Imports returns the node's library manifest merged with its
	// children's.
	Imports() ImportMap
	// ApplyStyle merges a global style sheet top-down; locally set
	// keys always win.
	ApplyStyle(sheet StyleSheet)

	kids() []Component
}

// StyleSheet maps a component tag name to the style applied to every
// component of that type.
type StyleSheet map[string]style.Style

// Props is the keyword-prop mapping passed at construction.
type Props map[string]any

// ImportMap maps a library name to the set of tags imported from it.
type ImportMap map[string]map[string]struct{}

// Add records one tag under a library.
func (m ImportMap) Add(library, tagName string) {
	if library == "" {
		return
	}
	if m[library] == nil {
		m[library] = make(map[string]struct{})
	}
	m[library][tagName] = struct{}{}
}

// Merge unions other into m.
func (m ImportMap) Merge(other ImportMap) {
	for library, tags := range other {
		for tagName := range tags {
			m.Add(library, tagName)
		}
	}
}

// Libraries returns the library names in sorted order.
func (m ImportMap) Libraries() []string {
	libs := make([]string, 0, len(m))
	for lib := range m {
		libs = append(libs, lib)
	}
	sort.Strings(libs)
	return libs
}

// Tags returns the sorted tags imported from one library.
func (m ImportMap) Tags(library string) []string {
	tags := make([]string, 0, len(m[library]))
	for tagName := range m[library] {
		tags = append(tags, tagName)
	}
	sort.Strings(tags)
	return tags
}

// ControlledTrigger describes a trigger whose frontend callback must
// forward a value from the emitted browser event. Local is the
// callback parameter; Value is the forwarded expression.
type ControlledTrigger struct {
	Local vars.Var
	Value vars.Var
}

// Spec is the structural descriptor of one component type, computed
// once at definition time: the element it renders to, its library,
// its declared var-typed fields, and its controlled triggers.
type Spec struct {
	TagName    string
	Library    string
	Fields     map[string]*vars.Type
	Controlled map[string]ControlledTrigger
}

// commonTriggers is the trigger vocabulary shared by every component.
var commonTriggers = map[string]struct{}{
	"on_click":        {},
	"on_double_click": {},
	"on_focus":        {},
	"on_blur":         {},
	"on_mouse_enter":  {},
	"on_mouse_leave":  {},
	"on_mouse_down":   {},
	"on_mouse_up":     {},
	"on_scroll":       {},
	"on_submit":       {},
}

// Triggers returns the full trigger set of the spec: the common
// vocabulary plus any controlled triggers the type declares.
func (s *Spec) Triggers() map[string]struct{} {
	out := make(map[string]struct{}, len(commonTriggers)+len(s.Controlled))
	for name := range commonTriggers {
		out[name] = struct{}{}
	}
	for name := range s.Controlled {
		out[name] = struct{}{}
	}
	return out
}

// Node is the base component: an immutable-after-construction tree
// node built by New.
type Node struct {
	spec        *Spec
	children    []Component
	styleMap    style.Style
	triggers    map[string]event.Chain
	passthrough map[string]vars.Var
	props       map[string]vars.Var
	key         any
	contents    vars.Var
}

// New validates children and props and constructs a component node.
// Children must be Components, Vars, or primitives; non-Component
// children wrap into bare text leaves. Props partition into event
// triggers, declared var-typed fields, and style keys.
func New(spec *Spec, children []any, props Props) (*Node, error) {
	n := &Node{
		spec:        spec,
		triggers:    make(map[string]event.Chain),
		passthrough: make(map[string]vars.Var),
		props:       make(map[string]vars.Var),
	}

	for _, child := range children {
		coerced, err := coerceChild(child)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", spec.TagName, err)
		}
		n.children = append(n.children, coerced)
	}

	triggerSet := spec.Triggers()
	rawStyle := make(map[string]any)
	for name, value := range props {
		if name == "key" {
			n.key = value
			continue
		}
		if _, isTrigger := triggerSet[name]; isTrigger {
			if passthrough, ok := value.(vars.Var); ok {
				n.passthrough[name] = passthrough
				continue
			}
			chain, err := buildChain(value)
			if err != nil {
				return nil, fmt.Errorf("component %s: trigger %q: %w", spec.TagName, name, err)
			}
			if ctrl, controlled := spec.Controlled[name]; controlled {
				chain = rewriteControlled(chain, ctrl)
			}
			n.triggers[name] = chain
			continue
		}
		if declared, isField := spec.Fields[name]; isField {
			v, err := vars.Create(value)
			if err != nil {
				return nil, fmt.Errorf("component %s: prop %q: %w", spec.TagName, name, err)
			}
			if !v.Type.AssignableTo(declared) {
				return nil, fmt.Errorf(
					"component %s: prop %q expects %s, got %s",
					spec.TagName, name, declared, v.Type,
				)
			}
			n.props[name] = v
			continue
		}
		// Everything else folds into the style mapping.
		rawStyle[name] = value
	}
	if len(rawStyle) > 0 {
		n.styleMap = style.Format(rawStyle)
	}
	return n, nil
}

// coerceChild maps the Component | Var | primitive child sum type
// into a Component, wrapping bare values in text leaves.
func coerceChild(child any) (Component, error) {
	switch c := child.(type) {
	case Component:
		return c, nil
	case vars.Var, string, bool, int, int64, float64:
		v, err := vars.Create(c)
		if err != nil {
			return nil, err
		}
		return textLeaf(v), nil
	default:
		return nil, fmt.Errorf("invalid child of type %T (want Component, Var, or primitive)", child)
	}
}

// buildChain normalizes the accepted trigger value shapes into an
// event chain.
func buildChain(value any) (event.Chain, error) {
	switch v := value.(type) {
	case event.Chain:
		return v, nil
	case event.Spec:
		return event.NewChain(v), nil
	case []event.Spec:
		return event.NewChain(v...), nil
	case event.Handler:
		spec, err := v.Call()
		if err != nil {
			return event.Chain{}, err
		}
		return event.NewChain(spec), nil
	case []event.Handler:
		specs := make([]event.Spec, 0, len(v))
		for _, h := range v {
			spec, err := h.Call()
			if err != nil {
				return event.Chain{}, err
			}
			specs = append(specs, spec)
		}
		return event.NewChain(specs...), nil
	default:
		return event.Chain{}, fmt.Errorf("invalid trigger value of type %T", value)
	}
}

// rewriteControlled injects the controlled value into every spec that
// did not bind arguments explicitly, under the handler's first
// declared parameter.
func rewriteControlled(chain event.Chain, ctrl ControlledTrigger) event.Chain {
	specs := make([]event.Spec, len(chain.Specs))
	for i, spec := range chain.Specs {
		if len(spec.Args) == 0 && len(spec.Handler.Params) > 0 {
			spec.LocalArgs = []vars.Var{ctrl.Local}
			spec.Args = []event.Arg{{
				Name:  spec.Handler.Params[0],
				Value: ctrl.Value.FullName(),
			}}
		}
		specs[i] = spec
	}
	return event.NewChain(specs...)
}

// Render builds the node's tag and concatenates its own contents with
// every child's rendered markup.
func (n *Node) Render() (string, error) {
	t, err := n.renderTag()
	if err != nil {
		return "", err
	}
	contents := ""
	if !n.contents.IsEmpty() {
		contents = n.contents.String()
	}
	for _, child := range n.children {
		childText, err := child.Render()
		if err != nil {
			return "", err
		}
		contents += childText
	}
	t.Contents = contents
	return t.Render()
}

func (n *Node) renderTag() (*tag.Tag, error) {
	t := tag.New(n.spec.TagName)
	props := make(map[string]any, len(n.props)+len(n.triggers)+2)
	for name, v := range n.props {
		props[name] = v
	}
	for name, chain := range n.triggers {
		props[name] = chain
	}
	for name, v := range n.passthrough {
		props[name] = v
	}
	if n.key != nil {
		props["key"] = n.key
	}
	if len(n.styleMap) > 0 {
		props["sx"] = n.styleMap
	}
	if err := t.AddProps(props); err != nil {
		return nil, err
	}
	return t, nil
}

// Imports returns this node's own library contribution merged with
// every child's.
func (n *Node) Imports() ImportMap {
	m := make(ImportMap)
	m.Add(n.spec.Library, n.spec.TagName)
	// A keyed fragment renders as an explicit Fragment element.
	if n.spec.TagName == "" && n.key != nil {
		m.Add("react", "Fragment")
	}
	for _, child := range n.children {
		m.Merge(child.Imports())
	}
	return m
}

// ApplyStyle merges matching sheet entries into this node without
// overriding locally set keys, then recurses into children.
func (n *Node) ApplyStyle(sheet StyleSheet) {
	if s, ok := sheet[n.spec.TagName]; ok {
		n.styleMap = style.Merge(n.styleMap, s)
	}
	for _, child := range n.children {
		child.ApplyStyle(sheet)
	}
}

func (n *Node) kids() []Component { return n.children }

// Key returns the node's explicit key, nil when unset.
func (n *Node) Key() any { return n.key }

// setDefaultKey assigns a key only when none was given; list
// iteration uses it for diffing stability.
func (n *Node) setDefaultKey(v vars.Var) {
	if n.key == nil {
		n.key = v
	}
}
