package component

import (
	"strings"
	"testing"

	"github.com/recera/pulse/pkg/event"
	"github.com/recera/pulse/pkg/style"
	"github.com/recera/pulse/pkg/vars"
)

func TestText_Render(t *testing.T) {
	c, err := Text(nil, "A")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	got, err := c.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "<Text>{`A`}</Text>" {
		t.Errorf("Render = %q", got)
	}
}

func TestText_VarContents(t *testing.T) {
	v := vars.FromState("state", "message", vars.Str)
	c, err := Text(nil, v)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	got, err := c.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "<Text>{state.message}</Text>" {
		t.Errorf("Render = %q", got)
	}
}

func TestNew_WrapsBareChildren(t *testing.T) {
	c, err := Box(nil, "hello", 3)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	got, err := c.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "<Box><Text>{`hello`}</Text><Text>{3}</Text></Box>" {
		t.Errorf("Render = %q", got)
	}
}

func TestNew_RejectsInvalidChild(t *testing.T) {
	if _, err := Box(nil, struct{}{}); err == nil {
		t.Error("expected error for invalid child type")
	}
}

func TestNew_PropPartition(t *testing.T) {
	h := event.Handler{State: "state", Name: "increment"}
	c, err := Button(Props{
		"color_scheme": "blue",     // declared field
		"on_click":     h,          // trigger
		"margin_top":   "4",        // style fallthrough
	}, "Go")
	if err != nil {
		t.Fatalf("Button: %v", err)
	}
	if _, ok := c.props["color_scheme"]; !ok {
		t.Error("declared field not captured")
	}
	if _, ok := c.triggers["on_click"]; !ok {
		t.Error("trigger not captured")
	}
	if _, ok := c.styleMap["marginTop"]; !ok {
		t.Errorf("style fallthrough missing: %v", c.styleMap)
	}
}

func TestNew_TypeCheck(t *testing.T) {
	flag := vars.FromState("state", "flag", vars.Bool)
	if _, err := Button(Props{"color_scheme": flag}, "Go"); err == nil {
		t.Error("expected type mismatch error for bool var in str prop")
	}
	// any-typed vars are compatible with every declared type
	if _, err := Button(Props{"is_disabled": vars.FromState("state", "d", vars.Any)}, "Go"); err != nil {
		t.Errorf("any-typed var rejected: %v", err)
	}
}

func TestControlledTrigger_InjectsValue(t *testing.T) {
	h := event.Handler{State: "state", Name: "set_value", Params: []string{"value"}}
	c, err := Input(Props{"on_change": h})
	if err != nil {
		t.Fatalf("Input: %v", err)
	}
	got, err := c.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `onChange={(_e) => Event([E("state.set_value", {value:_e.target.value})], _e, true)}`
	if !strings.Contains(got, want) {
		t.Errorf("Render = %q, want fragment %q", got, want)
	}
}

func TestControlledTrigger_Checkbox(t *testing.T) {
	h := event.Handler{State: "state", Name: "set_checked", Params: []string{"checked"}}
	c, err := Checkbox(Props{"on_change": h})
	if err != nil {
		t.Fatalf("Checkbox: %v", err)
	}
	got, err := c.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "_e.target.checked") {
		t.Errorf("checked value not forwarded: %q", got)
	}
}

func TestTriggerChain_MultipleHandlers(t *testing.T) {
	h1 := event.Handler{State: "state", Name: "first"}
	h2 := event.Handler{State: "state", Name: "second"}
	c, err := Button(Props{"on_click": []event.Handler{h1, h2}}, "Go")
	if err != nil {
		t.Fatalf("Button: %v", err)
	}
	got, err := c.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `{() => Event([E("state.first", {}),E("state.second", {})])}`
	if !strings.Contains(got, want) {
		t.Errorf("Render = %q, want fragment %q", got, want)
	}
}

func TestImports_MergeRecursive(t *testing.T) {
	inner, err := Text(nil, "hi")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	outer, err := Box(nil, inner)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	m := outer.Imports()
	tags := m.Tags(chakra)
	if len(tags) != 2 || tags[0] != "Box" || tags[1] != "Text" {
		t.Errorf("Imports = %v", tags)
	}
}

func TestApplyStyle_NoLocalOverride(t *testing.T) {
	inner, err := Text(Props{"color": "red"}, "hi")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	outer, err := Box(nil, inner)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	outer.ApplyStyle(StyleSheet{
		"Text": style.Style{"color": "blue", "margin": "2"},
		"Box":  style.Style{"padding": "1"},
	})
	if inner.styleMap["color"] != "red" {
		t.Errorf("local style overridden: %v", inner.styleMap)
	}
	if inner.styleMap["margin"] != "2" {
		t.Errorf("sheet style not merged: %v", inner.styleMap)
	}
	if outer.styleMap["padding"] != "1" {
		t.Errorf("sheet style missed outer node: %v", outer.styleMap)
	}
}

func TestFragment_Render(t *testing.T) {
	c, err := Fragment("a", "b")
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	got, err := c.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "<><Text>{`a`}</Text><Text>{`b`}</Text></>" {
		t.Errorf("Render = %q", got)
	}
}
