package vars

import (
	"fmt"
	"sort"
	"strings"
)

// Kind enumerates the semantic value kinds a Var can carry.
// Kinds exist only for compile-time prop/type checks; they never
// constrain runtime values.
type Kind uint8

const (
	// KindAny matches every other kind in both directions
	KindAny Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindDict
	KindObject
)

// Type is the semantic type of a Var. Elem is the element type for
// lists and the value type for dicts. Fields is set only for objects.
type Type struct {
	Kind   Kind
	Elem   *Type
	Fields map[string]*Type
}

// Pre-built scalar types. These are shared and must never be mutated.
var (
	Any   = &Type{Kind: KindAny}
	Bool  = &Type{Kind: KindBool}
	Int   = &Type{Kind: KindInt}
	Float = &Type{Kind: KindFloat}
	Str   = &Type{Kind: KindString}
)

// List returns a list type with the given element type.
func List(elem *Type) *Type {
	if elem == nil {
		elem = Any
	}
	return &Type{Kind: KindList, Elem: elem}
}

// Dict returns a dict type with string keys and the given value type.
func Dict(elem *Type) *Type {
	if elem == nil {
		elem = Any
	}
	return &Type{Kind: KindDict, Elem: elem}
}

// Object returns an object type with the given named fields.
func Object(fields map[string]*Type) *Type {
	return &Type{Kind: KindObject, Fields: fields}
}

// IsNumeric reports whether the type is int or float.
func (t *Type) IsNumeric() bool {
	return t != nil && (t.Kind == KindInt || t.Kind == KindFloat)
}

// AssignableTo reports whether a value of type t may be supplied where
// dst is declared. Any is compatible in both directions and int widens
// to float.
func (t *Type) AssignableTo(dst *Type) bool {
	if t == nil || dst == nil {
		return true
	}
	if t.Kind == KindAny || dst.Kind == KindAny {
		return true
	}
	if t.Kind == KindInt && dst.Kind == KindFloat {
		return true
	}
	if t.Kind != dst.Kind {
		return false
	}
	switch t.Kind {
	case KindList, KindDict:
		return t.Elem.AssignableTo(dst.Elem)
	default:
		return true
	}
}

func (t *Type) String() string {
	if t == nil {
		return "any"
	}
	switch t.Kind {
	case KindAny:
		return "any"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "str"
	case KindList:
		return fmt.Sprintf("list[%s]", t.Elem)
	case KindDict:
		return fmt.Sprintf("dict[%s]", t.Elem)
	case KindObject:
		names := make([]string, 0, len(t.Fields))
		for name := range t.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Sprintf("object{%s}", strings.Join(names, ", "))
	}
	return "unknown"
}

// promote returns the numeric result type of combining a and b.
func promote(a, b *Type) *Type {
	if a == nil || b == nil {
		return Any
	}
	if a.Kind == KindFloat || b.Kind == KindFloat {
		return Float
	}
	if a.Kind == KindInt && b.Kind == KindInt {
		return Int
	}
	return Any
}
