package vars

import (
	"testing"
)

func TestVar_String(t *testing.T) {
	tests := []struct {
		name string
		v    Var
		want string
	}{
		{"state var", FromState("state", "num1", Int), "{state.num1}"},
		{"stateless expression", New("(a + b)", Int), "{(a + b)}"},
		{"local var", NewLocal("_e.target.value", Str), "_e.target.value"},
		{"string literal", MustCreate("hello"), "{`hello`}"},
		{"int literal", MustCreate(42), "{42}"},
		{"bool literal", MustCreate(true), "{true}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVar_ArithmeticWithNilType(t *testing.T) {
	a := New("a", nil)
	b := FromState("state", "b", Int)

	for name, got := range map[string]Var{
		"Sub": a.Sub(b),
		"Mul": b.Mul(a),
		"Mod": a.Mod(a),
		"Add": a.Add(b),
	} {
		if got.Type != Any {
			t.Errorf("%s: result type = %s, want any", name, got.Type)
		}
	}
}

func TestVar_OperatorComposition(t *testing.T) {
	a := FromState("state", "a", Int)
	b := FromState("state", "b", Int)

	sum := a.Add(b)
	if got := sum.String(); got != "{(state.a + state.b)}" {
		t.Errorf("Add: got %q, want %q", got, "{(state.a + state.b)}")
	}
	if sum.Type.Kind != KindInt {
		t.Errorf("Add: result type = %s, want int", sum.Type)
	}

	// Parenthesization keeps grouping explicit: (a+b)*c and a+(b*c)
	// must never be textually identical.
	c := FromState("state", "c", Int)
	left := a.Add(b).Mul(c)
	right := a.Add(b.Mul(c))
	if left.Name == right.Name {
		t.Errorf("grouping collapsed: %q == %q", left.Name, right.Name)
	}
	if got := left.Name; got != "((state.a + state.b) * state.c)" {
		t.Errorf("Mul: got %q", got)
	}
}

func TestVar_NumericPromotion(t *testing.T) {
	i := FromState("state", "n", Int)
	f := FromState("state", "x", Float)
	if got := i.Add(f).Type.Kind; got != KindFloat {
		t.Errorf("int + float promoted to %v, want float", got)
	}
	if got := i.Add(i).Type.Kind; got != KindInt {
		t.Errorf("int + int promoted to %v, want int", got)
	}
}

func TestVar_Pow(t *testing.T) {
	a := FromState("state", "a", Int)
	b := FromState("state", "b", Int)
	if got := a.Pow(b).Name; got != "Math.pow(state.a, state.b)" {
		t.Errorf("Pow: got %q", got)
	}
}

func TestVar_Comparisons(t *testing.T) {
	a := FromState("state", "a", Int)
	b := FromState("state", "b", Int)
	tests := []struct {
		got  Var
		want string
	}{
		{a.Eq(b), "(state.a === state.b)"},
		{a.Neq(b), "(state.a !== state.b)"},
		{a.Lt(b), "(state.a < state.b)"},
		{a.Ge(b), "(state.a >= state.b)"},
	}
	for _, tt := range tests {
		if tt.got.Name != tt.want {
			t.Errorf("got %q, want %q", tt.got.Name, tt.want)
		}
		if tt.got.Type.Kind != KindBool {
			t.Errorf("comparison %q is not bool-typed", tt.want)
		}
	}
}

func TestVar_Index(t *testing.T) {
	items := FromState("state", "items", List(Str))

	got, err := items.Index(2)
	if err != nil {
		t.Fatalf("Index(2): %v", err)
	}
	if got.Name != "state.items[2]" {
		t.Errorf("Index(2) = %q", got.Name)
	}

	got, err = items.Index(-1)
	if err != nil {
		t.Fatalf("Index(-1): %v", err)
	}
	if got.Name != "state.items.at(-1)" {
		t.Errorf("Index(-1) = %q", got.Name)
	}

	idx := NewLocal("i", Int)
	got, err = items.Index(idx)
	if err != nil {
		t.Fatalf("Index(var): %v", err)
	}
	if got.Name != "state.items.at(i)" {
		t.Errorf("Index(var) = %q", got.Name)
	}
	if got.Type.Kind != KindString {
		t.Errorf("element type = %s, want str", got.Type)
	}

	// Indexing a non-container is a compile-time error.
	n := FromState("state", "n", Int)
	if _, err := n.Index(0); err == nil {
		t.Error("expected error indexing an int var")
	}
}

func TestVar_IndexDict(t *testing.T) {
	d := FromState("state", "scores", Dict(Int))
	got, err := d.Index("alice")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if got.Name != `state.scores["alice"]` {
		t.Errorf("dict index = %q", got.Name)
	}
	if _, err := d.Index(3); err == nil {
		t.Error("expected error indexing a dict with an int")
	}
}

func TestVar_Slice(t *testing.T) {
	items := FromState("state", "items", List(Any))

	got, err := items.Slice(1, 3)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if got.Name != "state.items.slice(1, 3)" {
		t.Errorf("Slice(1, 3) = %q", got.Name)
	}

	got, err = items.Slice(2, nil)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if got.Name != "state.items.slice(2, undefined)" {
		t.Errorf("Slice(2, nil) = %q", got.Name)
	}
}

func TestVar_Attr(t *testing.T) {
	user := FromState("state", "user", Object(map[string]*Type{
		"name": Str,
		"age":  Int,
	}))
	got, err := user.Attr("name")
	if err != nil {
		t.Fatalf("Attr: %v", err)
	}
	if got.Name != "state.user.name" || got.Type.Kind != KindString {
		t.Errorf("Attr = %q (%s)", got.Name, got.Type)
	}
	if _, err := user.Attr("email"); err == nil {
		t.Error("expected error for unknown attribute")
	}
}

func TestVar_Length(t *testing.T) {
	items := FromState("state", "items", List(Any))
	got, err := items.Length()
	if err != nil {
		t.Fatalf("Length: %v", err)
	}
	if got.Name != "state.items.length" || got.Type.Kind != KindInt {
		t.Errorf("Length = %q (%s)", got.Name, got.Type)
	}
	n := FromState("state", "n", Int)
	if _, err := n.Length(); err == nil {
		t.Error("expected error taking length of an int var")
	}
}

func TestVar_ToString(t *testing.T) {
	n := FromState("state", "n", Int)
	if got := n.ToString().Name; got != "JSON.stringify(state.n)" {
		t.Errorf("ToString = %q", got)
	}
}

func TestVar_Foreach(t *testing.T) {
	gen := NewNameGen()
	items := FromState("state", "items", List(Int))
	got, err := items.Foreach(func(item Var) Var {
		return item.Mul(MustCreate(2))
	}, gen)
	if err != nil {
		t.Fatalf("Foreach: %v", err)
	}
	if got.Name != "state.items.map(_v1 => (_v1 * 2))" {
		t.Errorf("Foreach = %q", got.Name)
	}
}

func TestVar_Equal(t *testing.T) {
	a := FromState("state", "a", Int)
	if !a.Equal(FromState("state", "a", Int)) {
		t.Error("identical vars compare unequal")
	}
	if a.Equal(FromState("state", "a", Float)) {
		t.Error("vars with different types compare equal")
	}
	if a.Equal(FromState("other", "a", Int)) {
		t.Error("vars with different states compare equal")
	}
}

func TestCreate_Containers(t *testing.T) {
	v, err := Create([]any{1, "two", true})
	if err != nil {
		t.Fatalf("Create list: %v", err)
	}
	if v.Name != `[1, "two", true]` {
		t.Errorf("list literal = %q", v.Name)
	}

	v, err = Create(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("Create dict: %v", err)
	}
	// Keys sort for deterministic output.
	if v.Name != `{"a": 1, "b": 2}` {
		t.Errorf("dict literal = %q", v.Name)
	}

	if _, err := Create(struct{}{}); err == nil {
		t.Error("expected error for unsupported value")
	}
}

func TestNameGen(t *testing.T) {
	gen := NewNameGen()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name := gen.Fresh()
		if seen[name] {
			t.Fatalf("duplicate name %q", name)
		}
		seen[name] = true
	}

	gen2 := NewNameGen()
	gen2.Reserve("_v1")
	if got := gen2.Fresh(); got == "_v1" {
		t.Error("Fresh issued a reserved name")
	}
}

func TestBaseVar(t *testing.T) {
	b := NewBase("state", "num1", Int, nil)
	if b.SetterName() != "set_num1" {
		t.Errorf("SetterName = %q", b.SetterName())
	}
	if got := b.DefaultValue(); got != 0 {
		t.Errorf("DefaultValue = %v, want 0", got)
	}
	b = NewBase("state", "greeting", Str, "hi")
	if got := b.DefaultValue(); got != "hi" {
		t.Errorf("DefaultValue = %v, want hi", got)
	}
}
