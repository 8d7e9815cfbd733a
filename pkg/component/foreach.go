package component

import (
	"fmt"

	"github.com/recera/pulse/pkg/vars"
)

// ForeachNode renders a list-typed var as a mapped sequence of
// components, synthesizing a fresh per-item var (and index var when
// the render function takes two parameters).
type ForeachNode struct {
	iterable vars.Var
	item     vars.Var
	index    vars.Var
	child    Component
}

// RenderFunc renders one list item.
type RenderFunc func(item vars.Var) (Component, error)

// IndexedRenderFunc renders one list item with its index.
type IndexedRenderFunc func(item, index vars.Var) (Component, error)

// Foreach builds an iteration node over a list-typed var. fn must be
// a RenderFunc or IndexedRenderFunc. If the rendered child carries no
// explicit key, the index var becomes its key.
func Foreach(iterable vars.Var, fn any, gen *vars.NameGen) (*ForeachNode, error) {
	if iterable.Type == nil || iterable.Type.Kind != vars.KindList {
		return nil, fmt.Errorf(
			"component: foreach var %q must be list-typed, got %s",
			iterable.FullName(), iterable.Type,
		)
	}
	item := vars.New(gen.Fresh(), iterable.Type.Elem)

	var (
		index vars.Var
		child Component
		err   error
	)
	switch render := fn.(type) {
	case RenderFunc:
		index = vars.New("i", vars.Int)
		child, err = render(item)
	case func(vars.Var) (Component, error):
		index = vars.New("i", vars.Int)
		child, err = render(item)
	case IndexedRenderFunc:
		index = vars.New(gen.Fresh(), vars.Int)
		child, err = render(item, index)
	case func(vars.Var, vars.Var) (Component, error):
		index = vars.New(gen.Fresh(), vars.Int)
		child, err = render(item, index)
	default:
		return nil, fmt.Errorf("component: foreach render function has unsupported type %T", fn)
	}
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, fmt.Errorf("component: foreach render function returned no component")
	}
	if node, ok := child.(*Node); ok {
		node.setDefaultKey(index)
	}
	return &ForeachNode{iterable: iterable, item: item, index: index, child: child}, nil
}

// Render emits the map expression over the iterable.
func (f *ForeachNode) Render() (string, error) {
	childText, err := f.child.Render()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"{%s.map((%s, %s) => %s)}",
		f.iterable.FullName(), f.item.Name, f.index.Name, childText,
	), nil
}

// Imports returns the child template's manifest.
func (f *ForeachNode) Imports() ImportMap {
	m := make(ImportMap)
	m.Merge(f.child.Imports())
	return m
}

// ApplyStyle recurses into the child template.
func (f *ForeachNode) ApplyStyle(sheet StyleSheet) {
	f.child.ApplyStyle(sheet)
}

func (f *ForeachNode) kids() []Component { return []Component{f.child} }
