package component

import (
	"fmt"

	"github.com/recera/pulse/pkg/vars"
)

// CondNode renders one of two branches as a ternary expression over a
// boolean-typed var. The false branch defaults to an empty fragment.
type CondNode struct {
	cond   vars.Var
	then   Component
	other  Component
	nested bool
}

// Cond builds a conditional node. The cond var must be bool-typed;
// a nil otherwise-branch renders as an empty fragment.
func Cond(cond vars.Var, then Component, otherwise Component) (*CondNode, error) {
	if cond.Type == nil || cond.Type.Kind != vars.KindBool {
		return nil, fmt.Errorf("component: cond var %q must be bool-typed, got %s", cond.FullName(), cond.Type)
	}
	if then == nil {
		return nil, fmt.Errorf("component: cond requires a true branch")
	}
	if otherwise == nil {
		empty, err := Fragment()
		if err != nil {
			return nil, err
		}
		otherwise = empty
	}
	// Nested conditionals omit the outer interpolation braces.
	if inner, ok := then.(*CondNode); ok {
		inner.nested = true
	}
	if inner, ok := otherwise.(*CondNode); ok {
		inner.nested = true
	}
	return &CondNode{cond: cond, then: then, other: otherwise}, nil
}

// Render emits the ternary expression embedding both branches.
func (c *CondNode) Render() (string, error) {
	thenText, err := c.then.Render()
	if err != nil {
		return "", err
	}
	otherText, err := c.other.Render()
	if err != nil {
		return "", err
	}
	expr := fmt.Sprintf("%s ? %s : %s", c.cond.FullName(), thenText, otherText)
	if c.nested {
		return "(" + expr + ")", nil
	}
	return "{" + expr + "}", nil
}

// Imports merges both branches' manifests.
func (c *CondNode) Imports() ImportMap {
	m := make(ImportMap)
	m.Merge(c.then.Imports())
	m.Merge(c.other.Imports())
	return m
}

// ApplyStyle recurses into both branches.
func (c *CondNode) ApplyStyle(sheet StyleSheet) {
	c.then.ApplyStyle(sheet)
	c.other.ApplyStyle(sheet)
}

func (c *CondNode) kids() []Component { return []Component{c.then, c.other} }
