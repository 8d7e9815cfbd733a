package state

import (
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/recera/pulse/pkg/event"
	"github.com/recera/pulse/pkg/vars"
)

// Delta maps a fully-qualified state name to the vars that changed
// since the last delta was taken.
type Delta map[string]map[string]any

// Update is the outcome of processing one event: the delta to apply
// client-side plus any follow-up events to enqueue.
type Update struct {
	Delta  Delta         `json:"delta"`
	Events []event.Event `json:"events,omitempty"`
}

// DispatchError reports a malformed event that named an unknown
// substate or handler. It propagates to the caller rather than being
// converted into an alert, since it indicates a stale or untrusted
// client.
type DispatchError struct {
	Name   string
	Reason string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("state: cannot dispatch %q: %s", e.Name, e.Reason)
}

// RouterData carries per-session request metadata.
type RouterData struct {
	Token     string
	SessionID string
	Path      string
	ClientIP  string
	Headers   map[string]string
	Query     map[string]string
}

// RouterDataFromMap decodes the logical router_data message field.
func RouterDataFromMap(m map[string]any) RouterData {
	rd := RouterData{
		Headers: make(map[string]string),
		Query:   make(map[string]string),
	}
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	rd.Token = str("token")
	rd.SessionID = str("session_id")
	rd.Path = str("path")
	rd.ClientIP = str("client_ip")
	if headers, ok := m["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				rd.Headers[k] = s
			}
		}
	}
	if query, ok := m["query"].(map[string]any); ok {
		for k, v := range query {
			if s, ok := v.(string); ok {
				rd.Query[k] = s
			}
		}
	}
	return rd
}

// DeltaValuer lets special value shapes decompose themselves into
// plain nested data before serialization.
type DeltaValuer interface {
	DeltaValue() any
}

// Instance is one node of a per-session state tree. Instances are
// exclusively owned by their session token; the transport serializes
// dispatch per token, so the instance itself does no locking beyond
// the explicit Lock/Unlock pair async handlers use.
type Instance struct {
	class  *Class
	parent *Instance

	values        map[string]any
	computedCache map[string]any
	computedValid map[string]bool

	dirtyVars      map[string]struct{}
	dirtySubstates map[string]struct{}
	substates      map[string]*Instance

	// lastSent snapshots the values included in the previous delta so
	// an unchanged dirty var is not re-sent between cleans. Clean
	// discards it: container values are stored by reference, so the
	// snapshot must not outlive the delta cycle it belongs to.
	lastSent map[string]any

	router RouterData

	// yield, when set, receives partial deltas pushed by background
	// handlers.
	yield func(Update)

	mu sync.Mutex
}

// NewInstance constructs a default-valued instance tree for a sealed
// root class.
func NewInstance(c *Class) (*Instance, error) {
	if !c.sealed {
		return nil, fmt.Errorf("state: class %s must be sealed before instantiation", c.FullName())
	}
	s := &Instance{
		class:          c,
		values:         make(map[string]any),
		computedCache:  make(map[string]any),
		computedValid:  make(map[string]bool),
		dirtyVars:      make(map[string]struct{}),
		dirtySubstates: make(map[string]struct{}),
		substates:      make(map[string]*Instance),
		lastSent:       make(map[string]any),
	}
	for _, bv := range c.baseVars {
		s.values[bv.Name] = bv.DefaultValue()
	}
	for name, def := range c.backend {
		s.values[name] = def
	}
	for _, name := range c.childOrder {
		child, err := NewInstance(c.children[name])
		if err != nil {
			return nil, err
		}
		child.parent = s
		s.substates[name] = child
	}
	return s, nil
}

// Class returns the instance's descriptor.
func (s *Instance) Class() *Class { return s.class }

// Router returns the request metadata attached to the tree.
func (s *Instance) Router() RouterData {
	return s.root().router
}

// SetRouter attaches request metadata to the tree.
func (s *Instance) SetRouter(rd RouterData) {
	s.root().router = rd
}

// SetYield installs the partial-delta sink used by background
// handlers; the transport layer sets it per session.
func (s *Instance) SetYield(fn func(Update)) {
	s.root().yield = fn
}

func (s *Instance) root() *Instance {
	node := s
	for node.parent != nil {
		node = node.parent
	}
	return node
}

// Lock acquires exclusive access to the state tree. Async handlers
// must hold it across every mutation between await points.
func (s *Instance) Lock() { s.root().mu.Lock() }

// Unlock releases exclusive access.
func (s *Instance) Unlock() { s.root().mu.Unlock() }

// Get returns a var's current value. Inherited vars read through to
// the owning ancestor; computed vars evaluate lazily.
func (s *Instance) Get(name string) (any, error) {
	if _, inherited := s.class.inherited[name]; inherited {
		return s.parent.Get(name)
	}
	if cv, ok := s.class.computed[name]; ok {
		return s.evalComputed(cv), nil
	}
	if _, ok := s.class.baseIndex[name]; ok {
		return s.values[name], nil
	}
	if _, ok := s.class.backend[name]; ok {
		return s.values[name], nil
	}
	return nil, fmt.Errorf("state: %s has no var %q", s.class.FullName(), name)
}

// GetInt returns an int var, tolerating JSON's float64 decoding.
func (s *Instance) GetInt(name string) int {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		panic(fmt.Sprintf("state: var %q is %T, not int", name, v))
	}
}

// GetFloat returns a float var.
func (s *Instance) GetFloat(name string) float64 {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		panic(fmt.Sprintf("state: var %q is %T, not float", name, v))
	}
}

// GetString returns a string var.
func (s *Instance) GetString(name string) string {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	str, ok := v.(string)
	if !ok {
		panic(fmt.Sprintf("state: var %q is %T, not string", name, v))
	}
	return str
}

// GetBool returns a bool var.
func (s *Instance) GetBool(name string) bool {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	b, ok := v.(bool)
	if !ok {
		panic(fmt.Sprintf("state: var %q is %T, not bool", name, v))
	}
	return b
}

// Set writes a var. Inherited vars delegate the write to the owning
// ancestor; base and backend writes mark the var dirty and propagate
// a dirty-substate marker through every ancestor.
func (s *Instance) Set(name string, value any) error {
	if _, inherited := s.class.inherited[name]; inherited {
		return s.parent.Set(name, value)
	}
	if i, ok := s.class.baseIndex[name]; ok {
		coerced, err := coerceValue(s.class.baseVars[i].Type, value)
		if err != nil {
			return fmt.Errorf("state: var %s.%s: %w", s.class.FullName(), name, err)
		}
		s.values[name] = coerced
		s.markDirty(name)
		return nil
	}
	if _, ok := s.class.backend[name]; ok {
		s.values[name] = value
		s.markDirty(name)
		return nil
	}
	if _, ok := s.class.computed[name]; ok {
		return fmt.Errorf("state: computed var %s.%s is read-only", s.class.FullName(), name)
	}
	return fmt.Errorf("state: %s has no var %q", s.class.FullName(), name)
}

// MustSet is Set for values known valid at authoring time.
func (s *Instance) MustSet(name string, value any) {
	if err := s.Set(name, value); err != nil {
		panic(err)
	}
}

// markDirty records the write locally, invalidates dependent computed
// caches, and walks up through every ancestor marking this branch
// dirty. Ancestors learn that a descendant changed without any
// downward walk.
func (s *Instance) markDirty(name string) {
	s.dirtyVars[name] = struct{}{}
	for _, cvName := range s.class.computedOrder {
		cv := s.class.computed[cvName]
		if cv.resolved == nil {
			continue
		}
		if _, depends := cv.resolved[name]; depends {
			s.computedValid[cvName] = false
		}
	}
	node := s
	for node.parent != nil {
		node.parent.dirtySubstates[node.class.name] = struct{}{}
		node = node.parent
	}
}

// DirtyVars returns the names written since the last Clean.
func (s *Instance) DirtyVars() map[string]struct{} {
	out := make(map[string]struct{}, len(s.dirtyVars))
	for name := range s.dirtyVars {
		out[name] = struct{}{}
	}
	return out
}

// DirtySubstates returns the substate names marked dirty.
func (s *Instance) DirtySubstates() map[string]struct{} {
	out := make(map[string]struct{}, len(s.dirtySubstates))
	for name := range s.dirtySubstates {
		out[name] = struct{}{}
	}
	return out
}

func (s *Instance) evalComputed(cv *Computed) any {
	if cv.alwaysDirty {
		return cv.fn(s)
	}
	if s.computedValid[cv.name] {
		return s.computedCache[cv.name]
	}
	value := cv.fn(s)
	s.computedCache[cv.name] = value
	s.computedValid[cv.name] = true
	return value
}

// GetSubstate resolves a dotted path of substate names.
func (s *Instance) GetSubstate(path []string) (*Instance, error) {
	node := s
	for _, segment := range path {
		child, ok := node.substates[segment]
		if !ok {
			return nil, fmt.Errorf("state: %s has no substate %q", node.class.FullName(), segment)
		}
		node = child
	}
	return node, nil
}

// GetDelta collects the vars that changed since the last delta was
// taken, keyed by full dotted state name, merged with every dirty
// substate's delta in a single walk. Computed vars are always
// included in a non-empty subdelta; backend vars never appear.
func (s *Instance) GetDelta() Delta {
	delta := make(Delta)

	sub := make(map[string]any)
	for name := range s.dirtyVars {
		if _, isBase := s.class.baseIndex[name]; !isBase {
			continue
		}
		value := s.values[name]
		if prev, sent := s.lastSent[name]; sent && reflect.DeepEqual(prev, value) {
			continue
		}
		sub[name] = formatValue(value)
		s.lastSent[name] = value
	}
	// Any dirty var, backend included, may have changed a computed
	// var's output; recompute them all lazily.
	if len(s.dirtyVars) > 0 {
		for _, name := range s.class.computedOrder {
			sub[name] = formatValue(s.evalComputed(s.class.computed[name]))
		}
	}
	if len(sub) > 0 {
		delta[s.class.FullName()] = sub
	}

	for name := range s.dirtySubstates {
		child, ok := s.substates[name]
		if !ok {
			continue
		}
		for stateName, varMap := range child.GetDelta() {
			delta[stateName] = varMap
		}
	}
	return delta
}

// Clean resets the dirty flags and the duplicate-suppression
// snapshot on this instance and every substate. Cleaning twice is
// equivalent to cleaning once.
func (s *Instance) Clean() {
	s.dirtyVars = make(map[string]struct{})
	s.dirtySubstates = make(map[string]struct{})
	s.lastSent = make(map[string]any)
	for _, child := range s.substates {
		child.Clean()
	}
}

// Reset restores every base var to its declared default, recurses
// into substates, then cleans.
func (s *Instance) Reset() {
	for _, bv := range s.class.baseVars {
		s.values[bv.Name] = bv.DefaultValue()
	}
	for name, def := range s.class.backend {
		s.values[name] = def
	}
	s.computedCache = make(map[string]any)
	s.computedValid = make(map[string]bool)
	s.lastSent = make(map[string]any)
	for _, child := range s.substates {
		child.Reset()
	}
	s.Clean()
}

// PushDelta computes and commits a partial delta, sending it through
// the session's yield sink. Background handlers call it between
// mutations; each push follows the same dirty/clean cycle as a
// synchronous handler.
func (s *Instance) PushDelta() {
	root := s.root()
	delta := root.GetDelta()
	root.Clean()
	if len(delta) == 0 || root.yield == nil {
		return
	}
	root.yield(Update{Delta: delta})
}

// Process dispatches one event against the tree: the dotted handler
// name resolves to a substate and handler, the handler runs with the
// event payload, and the resulting delta and follow-up events are
// returned. Unknown paths return a DispatchError. A handler error or
// panic is logged and converted into a single alert event with no
// delta committed.
func (s *Instance) Process(ev event.Event) (*Update, error) {
	root := s.root()
	parts := strings.Split(ev.Name, ".")
	if parts[0] == root.class.name {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return nil, &DispatchError{Name: ev.Name, Reason: "missing handler name"}
	}
	path, method := parts[:len(parts)-1], parts[len(parts)-1]

	target, err := root.GetSubstate(path)
	if err != nil {
		return nil, &DispatchError{Name: ev.Name, Reason: err.Error()}
	}
	handler, ok := target.class.handlers[method]
	if !ok {
		return nil, &DispatchError{Name: ev.Name, Reason: fmt.Sprintf("no handler %q on %s", method, target.class.FullName())}
	}

	if ev.RouterData != nil {
		root.SetRouter(RouterDataFromMap(ev.RouterData))
	}

	events, err := invoke(handler, target, ev.Payload)
	if err != nil {
		slog.Error("event handler failed",
			"handler", ev.Name,
			"token", ev.Token,
			"error", err,
		)
		// The partial mutation stays, but neither the delta nor the
		// dirty flags are committed.
		return &Update{
			Delta:  make(Delta),
			Events: []event.Event{event.Alert(fmt.Sprintf("handler %s failed: %v", ev.Name, err))},
		}, nil
	}

	delta := root.GetDelta()
	root.Clean()
	return &Update{Delta: delta, Events: events}, nil
}

// invoke runs a handler, converting panics into errors.
func invoke(h *handlerDef, target *Instance, payload map[string]any) (events []event.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	if payload == nil {
		payload = make(map[string]any)
	}
	return h.fn(target, payload)
}

// SnapshotTree returns the full client-visible value map keyed by
// dotted state name, used to seed compiled pages.
func (s *Instance) SnapshotTree() map[string]map[string]any {
	out := make(map[string]map[string]any)
	snap := make(map[string]any, len(s.class.baseVars)+len(s.class.computedOrder))
	for _, bv := range s.class.baseVars {
		snap[bv.Name] = formatValue(s.values[bv.Name])
	}
	for _, name := range s.class.computedOrder {
		snap[name] = formatValue(s.evalComputed(s.class.computed[name]))
	}
	out[s.class.FullName()] = snap
	for _, name := range s.class.childOrder {
		for stateName, varMap := range s.substates[name].SnapshotTree() {
			out[stateName] = varMap
		}
	}
	return out
}

// Values returns every stored value, backend vars included, keyed by
// dotted state name. The session store persists this map.
func (s *Instance) Values() map[string]map[string]any {
	out := make(map[string]map[string]any)
	stored := make(map[string]any, len(s.values))
	for name, value := range s.values {
		stored[name] = value
	}
	out[s.class.FullName()] = stored
	for _, name := range s.class.childOrder {
		for stateName, varMap := range s.substates[name].Values() {
			out[stateName] = varMap
		}
	}
	return out
}

// Restore applies a persisted value map over the default tree.
// Unknown states and vars are ignored so older snapshots stay
// loadable after schema changes.
func (s *Instance) Restore(values map[string]map[string]any) {
	if stored, ok := values[s.class.FullName()]; ok {
		for name, value := range stored {
			if i, isBase := s.class.baseIndex[name]; isBase {
				if coerced, err := coerceValue(s.class.baseVars[i].Type, value); err == nil {
					s.values[name] = coerced
				}
				continue
			}
			if _, isBackend := s.class.backend[name]; isBackend {
				s.values[name] = value
			}
		}
	}
	s.computedCache = make(map[string]any)
	s.computedValid = make(map[string]bool)
	for _, child := range s.substates {
		child.Restore(values)
	}
}

// formatValue decomposes special value shapes into plain nested data
// before serialization.
func formatValue(value any) any {
	if dv, ok := value.(DeltaValuer); ok {
		return dv.DeltaValue()
	}
	return value
}

// coerceValue converts a JSON-decoded or user-supplied value to the
// declared var type.
func coerceValue(t *vars.Type, value any) (any, error) {
	if t == nil || t.Kind == vars.KindAny || value == nil {
		return value, nil
	}
	switch t.Kind {
	case vars.KindBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case vars.KindInt:
		switch n := value.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			return int(n), nil
		}
	case vars.KindFloat:
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case vars.KindString:
		if str, ok := value.(string); ok {
			return str, nil
		}
	case vars.KindList:
		if list, ok := value.([]any); ok {
			return list, nil
		}
	case vars.KindDict, vars.KindObject:
		if m, ok := value.(map[string]any); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("cannot assign %T to %s var", value, t)
}
