package component

import (
	"github.com/recera/pulse/pkg/event"
	"github.com/recera/pulse/pkg/vars"
)

// chakra is the component library the default catalogue renders to.
const chakra = "@chakra-ui/react"

// The leaf catalogue below covers what the compiler and tests need.
// Concrete widgets are plain Spec instances; they carry no behavior
// of their own.

var textSpec = &Spec{TagName: "Text", Library: chakra}

var boxSpec = &Spec{TagName: "Box", Library: chakra}

var buttonSpec = &Spec{
	TagName: "Button",
	Library: chakra,
	Fields: map[string]*vars.Type{
		"color_scheme": vars.Str,
		"is_disabled":  vars.Bool,
	},
}

var inputSpec = &Spec{
	TagName: "Input",
	Library: chakra,
	Fields: map[string]*vars.Type{
		"value":       vars.Str,
		"placeholder": vars.Str,
	},
	Controlled: map[string]ControlledTrigger{
		"on_change": {
			Local: vars.NewLocal("_e", vars.Any),
			Value: vars.NewLocal("_e.target.value", vars.Str),
		},
	},
}

var checkboxSpec = &Spec{
	TagName: "Checkbox",
	Library: chakra,
	Fields: map[string]*vars.Type{
		"is_checked": vars.Bool,
	},
	Controlled: map[string]ControlledTrigger{
		"on_change": {
			Local: vars.NewLocal("_e", vars.Any),
			Value: vars.NewLocal("_e.target.checked", vars.Bool),
		},
	},
}

var fragmentSpec = &Spec{TagName: ""}

// textLeaf wraps a bare value var in a Text component.
func textLeaf(v vars.Var) *Node {
	return &Node{
		spec:        textSpec,
		triggers:    make(map[string]event.Chain),
		passthrough: make(map[string]vars.Var),
		props:       make(map[string]vars.Var),
		contents:    v,
	}
}

// Text returns a text component. A single bare value becomes the
// element's own contents rather than a nested leaf.
func Text(props Props, children ...any) (*Node, error) {
	if len(children) == 1 {
		switch children[0].(type) {
		case vars.Var, string, bool, int, int64, float64:
			v, err := vars.Create(children[0])
			if err != nil {
				return nil, err
			}
			n, err := New(textSpec, nil, props)
			if err != nil {
				return nil, err
			}
			n.contents = v
			return n, nil
		}
	}
	return New(textSpec, children, props)
}

// Box returns a generic container component.
func Box(props Props, children ...any) (*Node, error) {
	return New(boxSpec, children, props)
}

// Button returns a button component.
func Button(props Props, children ...any) (*Node, error) {
	return New(buttonSpec, children, props)
}

// Input returns a controlled text input.
func Input(props Props) (*Node, error) {
	return New(inputSpec, nil, props)
}

// Checkbox returns a controlled checkbox.
func Checkbox(props Props, children ...any) (*Node, error) {
	return New(checkboxSpec, children, props)
}

// Fragment groups children without emitting an element.
func Fragment(children ...any) (*Node, error) {
	return New(fragmentSpec, children, nil)
}
