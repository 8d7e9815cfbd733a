package component

import (
	"strings"
	"testing"

	"github.com/recera/pulse/pkg/vars"
)

func TestForeach_Render(t *testing.T) {
	gen := vars.NewNameGen()
	items := vars.FromState("state", "items", vars.List(vars.Str))
	f, err := Foreach(items, RenderFunc(func(item vars.Var) (Component, error) {
		return Text(nil, item)
	}), gen)
	if err != nil {
		t.Fatalf("Foreach: %v", err)
	}
	got, err := f.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "{state.items.map((_v1, i) => <Text key={i}>{_v1}</Text>)}"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestForeach_FreshItemVarPerCall(t *testing.T) {
	gen := vars.NewNameGen()
	items := vars.FromState("state", "items", vars.List(vars.Str))
	render := RenderFunc(func(item vars.Var) (Component, error) {
		return Text(nil, item)
	})

	first, err := Foreach(items, render, gen)
	if err != nil {
		t.Fatalf("Foreach: %v", err)
	}
	second, err := Foreach(items, render, gen)
	if err != nil {
		t.Fatalf("Foreach: %v", err)
	}
	if first.item.Name == second.item.Name {
		t.Errorf("item var reused across calls: %q", first.item.Name)
	}
}

func TestForeach_IndexedRenderFunc(t *testing.T) {
	gen := vars.NewNameGen()
	items := vars.FromState("state", "items", vars.List(vars.Str))
	f, err := Foreach(items, IndexedRenderFunc(func(item, index vars.Var) (Component, error) {
		return Text(nil, index.ToString())
	}), gen)
	if err != nil {
		t.Fatalf("Foreach: %v", err)
	}
	got, err := f.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// Both the item and index vars are freshly synthesized.
	if !strings.Contains(got, ".map((_v1, _v2) =>") {
		t.Errorf("Render = %q", got)
	}
}

func TestForeach_ExplicitKeyKept(t *testing.T) {
	gen := vars.NewNameGen()
	items := vars.FromState("state", "items", vars.List(vars.Str))
	f, err := Foreach(items, RenderFunc(func(item vars.Var) (Component, error) {
		return Text(Props{"key": item}, item)
	}), gen)
	if err != nil {
		t.Fatalf("Foreach: %v", err)
	}
	got, err := f.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "key={_v1}") {
		t.Errorf("explicit key replaced: %q", got)
	}
}

func TestForeach_FragmentChildKeepsKey(t *testing.T) {
	gen := vars.NewNameGen()
	items := vars.FromState("state", "items", vars.List(vars.Str))
	f, err := Foreach(items, RenderFunc(func(item vars.Var) (Component, error) {
		label, err := Text(nil, "item: ")
		if err != nil {
			return nil, err
		}
		value, err := Text(nil, item)
		if err != nil {
			return nil, err
		}
		return Fragment(label, value)
	}), gen)
	if err != nil {
		t.Fatalf("Foreach: %v", err)
	}
	got, err := f.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "{state.items.map((_v1, i) => <Fragment key={i}><Text>{`item: `}</Text><Text>{_v1}</Text></Fragment>)}"
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
	if _, ok := f.Imports()["react"]["Fragment"]; !ok {
		t.Error("keyed fragment did not contribute the Fragment import")
	}
}

func TestForeach_RequiresList(t *testing.T) {
	gen := vars.NewNameGen()
	n := vars.FromState("state", "n", vars.Int)
	_, err := Foreach(n, RenderFunc(func(item vars.Var) (Component, error) {
		return Text(nil, item)
	}), gen)
	if err == nil {
		t.Error("expected error for non-list iterable")
	}
}
