package vars

// BaseVar is a Var bound to a storage-backed state field. It carries
// the declared default and the name of its auto-generated setter.
type BaseVar struct {
	Var
	Default any
}

// NewBase returns a BaseVar for a declared state field.
func NewBase(state, name string, t *Type, def any) BaseVar {
	return BaseVar{Var: FromState(state, name, t), Default: def}
}

// SetterName returns the name of the default setter handler generated
// for this var.
func (b BaseVar) SetterName() string {
	return "set_" + b.Name
}

// DefaultValue returns the declared default, or the zero value for
// the var's type when none was declared.
func (b BaseVar) DefaultValue() any {
	if b.Default != nil {
		return b.Default
	}
	return ZeroValue(b.Type)
}

// ZeroValue returns the target-side zero value for a type.
func ZeroValue(t *Type) any {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KindBool:
		return false
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindString:
		return ""
	case KindList:
		return []any{}
	case KindDict, KindObject:
		return map[string]any{}
	default:
		return nil
	}
}
