// Package vars implements the symbolic reference layer of the compiler:
// a Var is a typed, named handle to a value that exists only in the
// compiled target runtime. Operators on Vars never touch live values;
// each one produces a new Var wrapping a larger expression string.
package vars

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Var is an immutable symbolic reference into compiled output.
//
// Name is the literal or expression text. State is the dotted path of
// the owning state, empty for stateless/synthesized vars. IsLocal
// marks names that are already valid target-runtime syntax and must
// not be wrapped in interpolation braces. IsString marks raw string
// literals, which render inside template backticks.
type Var struct {
	Name     string
	Type     *Type
	State    string
	IsLocal  bool
	IsString bool
}

// New returns a stateless expression Var.
func New(name string, t *Type) Var {
	return Var{Name: name, Type: t}
}

// NewLocal returns a Var whose name is already target-runtime syntax,
// such as an arrow-function parameter or an emitted event field.
func NewLocal(name string, t *Type) Var {
	return Var{Name: name, Type: t, IsLocal: true}
}

// FromState returns a Var referencing a field of the named state.
func FromState(state, name string, t *Type) Var {
	return Var{Name: name, Type: t, State: state}
}

// Create wraps a plain value in a Var. Existing Vars pass through
// unchanged. Containers are encoded as target-language literals with
// any embedded Vars rendered live.
func Create(value any) (Var, error) {
	switch v := value.(type) {
	case Var:
		return v, nil
	case *Var:
		return *v, nil
	case nil:
		return Var{}, fmt.Errorf("vars: cannot create a Var from nil")
	case string:
		return Var{Name: v, Type: Str, IsLocal: true, IsString: true}, nil
	case bool:
		return Var{Name: strconv.FormatBool(v), Type: Bool}, nil
	case int:
		return Var{Name: strconv.Itoa(v), Type: Int}, nil
	case int64:
		return Var{Name: strconv.FormatInt(v, 10), Type: Int}, nil
	case float64:
		return Var{Name: strconv.FormatFloat(v, 'g', -1, 64), Type: Float}, nil
	case []any:
		name, err := encodeLiteral(v)
		if err != nil {
			return Var{}, err
		}
		return Var{Name: name, Type: List(Any)}, nil
	case map[string]any:
		name, err := encodeLiteral(v)
		if err != nil {
			return Var{}, err
		}
		return Var{Name: name, Type: Dict(Any)}, nil
	default:
		return Var{}, fmt.Errorf("vars: cannot create a Var from %T", value)
	}
}

// MustCreate is Create for values known valid at authoring time.
func MustCreate(value any) Var {
	v, err := Create(value)
	if err != nil {
		panic(err)
	}
	return v
}

// encodeLiteral renders a container as a target-language literal,
// keys sorted for deterministic output. Embedded Vars render as their
// interpolated form rather than as strings.
func encodeLiteral(value any) (string, error) {
	switch v := value.(type) {
	case Var:
		return v.String(), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			enc, err := encodeLiteral(v[k])
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%q: %s", k, enc))
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			enc, err := encodeLiteral(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, enc)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("vars: value %v is not serializable: %w", v, err)
		}
		return string(b), nil
	}
}

// FullName returns the expression text including the owning-state
// prefix.
func (v Var) FullName() string {
	if v.State == "" {
		return v.Name
	}
	return v.State + "." + v.Name
}

// String renders the var for embedding in markup contents: string
// literals inside template backticks, local vars bare, everything
// else wrapped in interpolation braces.
func (v Var) String() string {
	if v.IsString {
		return "{`" + v.Name + "`}"
	}
	if v.IsLocal {
		return v.FullName()
	}
	return "{" + v.FullName() + "}"
}

// Equal reports structural equality.
func (v Var) Equal(o Var) bool {
	return v.Name == o.Name &&
		v.State == o.State &&
		v.IsLocal == o.IsLocal &&
		v.IsString == o.IsString &&
		v.Type.String() == o.Type.String()
}

// IsEmpty reports whether the var is the zero value.
func (v Var) IsEmpty() bool {
	return v.Name == "" && v.State == ""
}

// binop composes two vars with an infix operator. The result is a
// stateless non-local expression so that String() reinstates the
// interpolation braces.
func (v Var) binop(o Var, op string, t *Type) Var {
	return Var{
		Name: fmt.Sprintf("(%s %s %s)", v.FullName(), op, o.FullName()),
		Type: t,
	}
}

// Add returns lhs + rhs. Strings concatenate, numerics promote.
func (v Var) Add(o Var) Var {
	t := Any
	if v.Type.IsNumeric() && o.Type.IsNumeric() {
		t = promote(v.Type, o.Type)
	} else if v.Type != nil && o.Type != nil && v.Type.Kind == KindString && o.Type.Kind == KindString {
		t = Str
	}
	return v.binop(o, "+", t)
}

// Sub returns lhs - rhs.
func (v Var) Sub(o Var) Var { return v.binop(o, "-", promote(v.Type, o.Type)) }

// Mul returns lhs * rhs.
func (v Var) Mul(o Var) Var { return v.binop(o, "*", promote(v.Type, o.Type)) }

// Div returns lhs / rhs. Division always yields a float expression.
func (v Var) Div(o Var) Var { return v.binop(o, "/", Float) }

// Mod returns lhs % rhs.
func (v Var) Mod(o Var) Var { return v.binop(o, "%", promote(v.Type, o.Type)) }

// Pow has no infix form in the target language and renders as a
// Math.pow call.
func (v Var) Pow(o Var) Var {
	return Var{
		Name: fmt.Sprintf("Math.pow(%s, %s)", v.FullName(), o.FullName()),
		Type: Float,
	}
}

// Neg returns the arithmetic negation.
func (v Var) Neg() Var {
	return Var{Name: fmt.Sprintf("-(%s)", v.FullName()), Type: v.Type}
}

// Eq returns a strict-equality comparison.
func (v Var) Eq(o Var) Var { return v.binop(o, "===", Bool) }

// Neq returns a strict-inequality comparison.
func (v Var) Neq(o Var) Var { return v.binop(o, "!==", Bool) }

// Lt returns lhs < rhs.
func (v Var) Lt(o Var) Var { return v.binop(o, "<", Bool) }

// Le returns lhs <= rhs.
func (v Var) Le(o Var) Var { return v.binop(o, "<=", Bool) }

// Gt returns lhs > rhs.
func (v Var) Gt(o Var) Var { return v.binop(o, ">", Bool) }

// Ge returns lhs >= rhs.
func (v Var) Ge(o Var) Var { return v.binop(o, ">=", Bool) }

// And returns lhs && rhs.
func (v Var) And(o Var) Var { return v.binop(o, "&&", Bool) }

// Or returns lhs || rhs.
func (v Var) Or(o Var) Var { return v.binop(o, "||", Bool) }

// Not returns the logical negation.
func (v Var) Not() Var {
	return Var{Name: fmt.Sprintf("!(%s)", v.FullName()), Type: Bool}
}

// Index returns an element access. Lists accept int or int-typed Var
// indices; dicts accept string keys. Negative literal indices and Var
// indices use the bounds-agnostic .at() accessor.
func (v Var) Index(index any) (Var, error) {
	if v.Type == nil || (v.Type.Kind != KindList && v.Type.Kind != KindDict) {
		return Var{}, fmt.Errorf("vars: cannot index var %q of type %s", v.FullName(), v.Type)
	}
	elem := v.Type.Elem
	switch i := index.(type) {
	case int:
		if v.Type.Kind != KindList {
			return Var{}, fmt.Errorf("vars: cannot index dict var %q with int", v.FullName())
		}
		if i < 0 {
			return Var{Name: fmt.Sprintf("%s.at(%d)", v.FullName(), i), Type: elem}, nil
		}
		return Var{Name: fmt.Sprintf("%s[%d]", v.FullName(), i), Type: elem}, nil
	case string:
		if v.Type.Kind != KindDict {
			return Var{}, fmt.Errorf("vars: cannot index list var %q with string", v.FullName())
		}
		return Var{Name: fmt.Sprintf("%s[%q]", v.FullName(), i), Type: elem}, nil
	case Var:
		if v.Type.Kind == KindDict {
			return Var{Name: fmt.Sprintf("%s[%s]", v.FullName(), i.FullName()), Type: elem}, nil
		}
		if i.Type != nil && i.Type.Kind != KindInt && i.Type.Kind != KindAny {
			return Var{}, fmt.Errorf("vars: list index var %q must be int-typed, got %s", i.FullName(), i.Type)
		}
		// The index may be negative at runtime, so use .at().
		return Var{Name: fmt.Sprintf("%s.at(%s)", v.FullName(), i.FullName()), Type: elem}, nil
	default:
		return Var{}, fmt.Errorf("vars: unsupported index type %T", index)
	}
}

// Slice returns a subsequence access. A nil stop renders as
// "undefined", leaving the upper bound open.
func (v Var) Slice(start int, stop any) (Var, error) {
	if v.Type == nil || v.Type.Kind != KindList {
		return Var{}, fmt.Errorf("vars: cannot slice var %q of type %s", v.FullName(), v.Type)
	}
	stopText := "undefined"
	switch s := stop.(type) {
	case nil:
	case int:
		stopText = strconv.Itoa(s)
	case Var:
		stopText = s.FullName()
	default:
		return Var{}, fmt.Errorf("vars: unsupported slice stop type %T", stop)
	}
	return Var{
		Name: fmt.Sprintf("%s.slice(%d, %s)", v.FullName(), start, stopText),
		Type: v.Type,
	}, nil
}

// Attr returns a field access on an object-typed var.
func (v Var) Attr(name string) (Var, error) {
	if v.Type == nil || v.Type.Kind != KindObject {
		return Var{}, fmt.Errorf("vars: var %q of type %s has no attributes", v.FullName(), v.Type)
	}
	ft, ok := v.Type.Fields[name]
	if !ok {
		return Var{}, fmt.Errorf("vars: var %q has no attribute %q", v.FullName(), name)
	}
	return Var{Name: v.FullName() + "." + name, Type: ft}, nil
}

// Length returns the length of a list-typed var.
func (v Var) Length() (Var, error) {
	if v.Type == nil || v.Type.Kind != KindList {
		return Var{}, fmt.Errorf("vars: cannot take the length of var %q of type %s", v.FullName(), v.Type)
	}
	return Var{Name: v.FullName() + ".length", Type: Int}, nil
}

// ToString wraps the var in a JSON stringify call.
func (v Var) ToString() Var {
	return Var{Name: fmt.Sprintf("JSON.stringify(%s)", v.FullName()), Type: Str}
}

// Foreach maps a list-typed var through fn, synthesizing a fresh item
// var from the generator. The result is a mapped-list expression.
func (v Var) Foreach(fn func(Var) Var, gen *NameGen) (Var, error) {
	if v.Type == nil || v.Type.Kind != KindList {
		return Var{}, fmt.Errorf("vars: cannot map var %q of type %s", v.FullName(), v.Type)
	}
	item := Var{Name: gen.Fresh(), Type: v.Type.Elem}
	body := fn(item)
	return Var{
		Name: fmt.Sprintf("%s.map(%s => %s)", v.FullName(), item.Name, body.FullName()),
		Type: List(body.Type),
	}, nil
}
