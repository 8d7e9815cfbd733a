// Package state implements the dependency-tracked data engine: class
// descriptors with base/computed/backend/inherited var registries,
// per-session instance trees with dirty tracking, computed-var cache
// invalidation, event dispatch, and minimal-diff delta computation.
package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/recera/pulse/pkg/event"
	"github.com/recera/pulse/pkg/vars"
)

// HandlerFunc mutates a state instance in response to an event. The
// returned events are queued for the client as follow-ups.
type HandlerFunc func(s *Instance, args map[string]any) ([]event.Event, error)

// ComputedFunc derives a value from other vars of the same instance.
type ComputedFunc func(s *Instance) any

type handlerDef struct {
	name      string
	params    []string
	fn        HandlerFunc
	generated bool
}

// Computed is the descriptor of a derived, getter-backed var.
type Computed struct {
	name string
	typ  *vars.Type
	fn   ComputedFunc

	// cache declares the var dependency-tracked; deps lists the vars
	// its getter reads, expanded transitively at seal time.
	cache bool
	deps  []string

	resolved    map[string]struct{}
	alwaysDirty bool
}

// Class is the immutable structural descriptor of one state type:
// its var registries, handlers, and substate classes. Descriptors are
// built by explicit registration at program startup and sealed
// write-once into the process-wide registry.
type Class struct {
	name   string
	parent *Class

	children   map[string]*Class
	childOrder []string

	baseVars  []vars.BaseVar
	baseIndex map[string]int
	backend   map[string]any

	computed      map[string]*Computed
	computedOrder []string

	handlers map[string]*handlerDef

	// inherited maps var names owned by ancestor classes, resolved at
	// seal time.
	inherited map[string]vars.Var

	sealed bool
}

// registry is the process-wide class table, populated once at startup
// and read-only afterwards.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Class)
)

// Lookup returns a sealed class by full dotted name.
func Lookup(fullName string) (*Class, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[fullName]
	return c, ok
}

// resetRegistry clears the class table. Tests only.
func resetRegistry() {
	registryMu.Lock()
	registry = make(map[string]*Class)
	registryMu.Unlock()
}

// NewClass starts the definition of a root state class.
func NewClass(name string) *Class {
	return &Class{
		name:      name,
		children:  make(map[string]*Class),
		baseIndex: make(map[string]int),
		backend:   make(map[string]any),
		computed:  make(map[string]*Computed),
		handlers:  make(map[string]*handlerDef),
		inherited: make(map[string]vars.Var),
	}
}

// Substate defines a child state class. The child inherits the
// parent's full var set and is instantiated beneath it in every
// session tree.
func (c *Class) Substate(name string) *Class {
	c.mustMutable()
	if _, taken := c.children[name]; taken {
		panic(fmt.Sprintf("state: class %s already has substate %q", c.FullName(), name))
	}
	child := NewClass(name)
	child.parent = c
	c.children[name] = child
	c.childOrder = append(c.childOrder, name)
	return child
}

// FullName returns the dotted concatenation of ancestor names.
func (c *Class) FullName() string {
	if c.parent == nil {
		return c.name
	}
	return c.parent.FullName() + "." + c.name
}

// Name returns the class's own segment.
func (c *Class) Name() string { return c.name }

// AddVar declares a storage-backed client var with a default value.
func (c *Class) AddVar(name string, t *vars.Type, def any) *Class {
	c.mustMutable()
	c.mustFresh(name)
	c.baseIndex[name] = len(c.baseVars)
	c.baseVars = append(c.baseVars, vars.NewBase(c.FullName(), name, t, def))
	return c
}

// AddBackendVar declares a private var that is never serialized to
// the client.
func (c *Class) AddBackendVar(name string, def any) *Class {
	c.mustMutable()
	c.mustFresh(name)
	c.backend[name] = def
	return c
}

// ComputedOption configures a computed var declaration.
type ComputedOption func(*Computed)

// Cached marks a computed var dependency-tracked: it is recomputed
// only when one of the named vars was written. Dependencies on other
// computed vars expand transitively at seal time.
func Cached(deps ...string) ComputedOption {
	return func(cv *Computed) {
		cv.cache = true
		cv.deps = deps
	}
}

// AddComputed declares a derived var backed by a getter. Without the
// Cached option it is recomputed on every delta pass and always
// behaves as dirty.
func (c *Class) AddComputed(name string, t *vars.Type, fn ComputedFunc, opts ...ComputedOption) *Class {
	c.mustMutable()
	c.mustFresh(name)
	cv := &Computed{name: name, typ: t, fn: fn}
	for _, opt := range opts {
		opt(cv)
	}
	c.computed[name] = cv
	c.computedOrder = append(c.computedOrder, name)
	return c
}

// AddHandler registers an event handler under the class.
func (c *Class) AddHandler(name string, params []string, fn HandlerFunc) *Class {
	c.mustMutable()
	if _, taken := c.handlers[name]; taken {
		panic(fmt.Sprintf("state: class %s already has handler %q", c.FullName(), name))
	}
	c.handlers[name] = &handlerDef{name: name, params: params, fn: fn}
	return c
}

// Var returns the symbolic reference for a declared or inherited var,
// for use in component trees.
func (c *Class) Var(name string) vars.Var {
	if i, ok := c.baseIndex[name]; ok {
		return c.baseVars[i].Var
	}
	if cv, ok := c.computed[name]; ok {
		return vars.FromState(c.FullName(), cv.name, cv.typ)
	}
	for anc := c.parent; anc != nil; anc = anc.parent {
		if i, ok := anc.baseIndex[name]; ok {
			return anc.baseVars[i].Var
		}
		if cv, ok := anc.computed[name]; ok {
			return vars.FromState(anc.FullName(), cv.name, cv.typ)
		}
	}
	panic(fmt.Sprintf("state: class %s has no var %q", c.FullName(), name))
}

// Handler returns the event.Handler descriptor for a named handler,
// for binding to component triggers. Setter handlers exist only
// after Seal.
func (c *Class) Handler(name string) event.Handler {
	h, ok := c.handlers[name]
	if !ok {
		panic(fmt.Sprintf("state: class %s has no handler %q", c.FullName(), name))
	}
	return event.Handler{State: c.FullName(), Name: h.name, Params: h.params}
}

// BaseVars returns the declared client vars in declaration order.
func (c *Class) BaseVars() []vars.BaseVar {
	out := make([]vars.BaseVar, len(c.baseVars))
	copy(out, c.baseVars)
	return out
}

// SubstateNames returns the child class names in declaration order.
func (c *Class) SubstateNames() []string {
	out := make([]string, len(c.childOrder))
	copy(out, c.childOrder)
	return out
}

func (c *Class) mustMutable() {
	if c.sealed {
		panic(fmt.Sprintf("state: class %s is sealed", c.FullName()))
	}
}

func (c *Class) mustFresh(name string) {
	if _, ok := c.baseIndex[name]; ok {
		panic(fmt.Sprintf("state: class %s already declares var %q", c.FullName(), name))
	}
	if _, ok := c.backend[name]; ok {
		panic(fmt.Sprintf("state: class %s already declares backend var %q", c.FullName(), name))
	}
	if _, ok := c.computed[name]; ok {
		panic(fmt.Sprintf("state: class %s already declares computed var %q", c.FullName(), name))
	}
}

// Seal finalizes the class and all its substates: inherited vars are
// resolved, one default setter per base var is generated unless
// user-defined, computed dependencies expand transitively, and the
// class registers into the process-wide table. Sealing twice is an
// error.
func (c *Class) Seal() error {
	if c.parent != nil {
		return fmt.Errorf("state: seal the root class %s, not substate %s", rootOf(c).FullName(), c.FullName())
	}
	return c.seal()
}

func rootOf(c *Class) *Class {
	for c.parent != nil {
		c = c.parent
	}
	return c
}

func (c *Class) seal() error {
	if c.sealed {
		return fmt.Errorf("state: class %s sealed twice", c.FullName())
	}

	// Inherited vars are the parent's full var set.
	for anc := c.parent; anc != nil; anc = anc.parent {
		for _, bv := range anc.baseVars {
			if _, shadowed := c.inherited[bv.Name]; !shadowed {
				c.inherited[bv.Name] = bv.Var
			}
		}
		for name, cv := range anc.computed {
			if _, shadowed := c.inherited[name]; !shadowed {
				c.inherited[name] = vars.FromState(anc.FullName(), name, cv.typ)
			}
		}
	}

	// Default setters, unless the user defined their own.
	for _, bv := range c.baseVars {
		setter := bv.SetterName()
		if _, defined := c.handlers[setter]; defined {
			continue
		}
		c.handlers[setter] = &handlerDef{
			name:      setter,
			params:    []string{bv.Name},
			fn:        defaultSetter(bv),
			generated: true,
		}
	}

	if err := c.resolveComputed(); err != nil {
		return err
	}

	c.sealed = true
	registryMu.Lock()
	registry[c.FullName()] = c
	registryMu.Unlock()

	names := make([]string, len(c.childOrder))
	copy(names, c.childOrder)
	sort.Strings(names)
	for _, name := range names {
		if err := c.children[name].seal(); err != nil {
			return err
		}
	}
	return nil
}

func defaultSetter(bv vars.BaseVar) HandlerFunc {
	name := bv.Name
	return func(s *Instance, args map[string]any) ([]event.Event, error) {
		value, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("state: setter for %q called without a value", name)
		}
		return nil, s.Set(name, value)
	}
}

// resolveComputed expands every cached computed var's dependency set
// through other computed vars down to base/backend vars. A dependency
// on a non-cached computed var makes the dependent always dirty.
func (c *Class) resolveComputed() error {
	for _, name := range c.computedOrder {
		cv := c.computed[name]
		if !cv.cache {
			cv.alwaysDirty = true
			continue
		}
		resolved := make(map[string]struct{})
		stack := append([]string(nil), cv.deps...)
		// visited guards against cycles through computed deps
		visited := map[string]struct{}{name: {}}
		for len(stack) > 0 {
			dep := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, isBase := c.baseIndex[dep]; isBase {
				resolved[dep] = struct{}{}
				continue
			}
			if _, isBackend := c.backend[dep]; isBackend {
				resolved[dep] = struct{}{}
				continue
			}
			if other, isComputed := c.computed[dep]; isComputed {
				if !other.cache {
					cv.alwaysDirty = true
					break
				}
				if _, seen := visited[dep]; seen {
					continue
				}
				visited[dep] = struct{}{}
				stack = append(stack, other.deps...)
				continue
			}
			if _, isInherited := c.inherited[dep]; isInherited {
				// Writes land on the owning ancestor instance, which
				// cannot invalidate this cache, so recompute always.
				cv.alwaysDirty = true
				break
			}
			return fmt.Errorf(
				"state: computed var %s.%s depends on unknown var %q",
				c.FullName(), name, dep,
			)
		}
		cv.resolved = resolved
	}
	return nil
}
