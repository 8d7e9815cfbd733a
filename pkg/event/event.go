// Package event describes the call pipeline from a UI trigger to a
// backend state mutation: a Handler names a mutation, calling it with
// Var or literal arguments produces a Spec, and an ordered list of
// Specs forms a Chain compiled into a single frontend callback.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/recera/pulse/pkg/vars"
)

// Event is the logical inbound message shape: a session token, the
// dotted path of the handler to run, request metadata, and the
// handler's keyword payload.
type Event struct {
	Token      string         `json:"token"`
	Name       string         `json:"name"`
	RouterData map[string]any `json:"router_data,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Alert returns the event shown to the user when a handler fails.
func Alert(message string) Event {
	return Event{
		Name:    "window_alert",
		Payload: map[string]any{"message": message},
	}
}

// Handler names a backend state mutation and its declared parameters,
// in order and excluding the receiver.
type Handler struct {
	State  string
	Name   string
	Params []string
}

// FullName returns the dotted dispatch path of the handler.
func (h Handler) FullName() string {
	if h.State == "" {
		return h.Name
	}
	return h.State + "." + h.Name
}

// Arg is one positional argument bound to a parameter name. Value is
// already target-language text.
type Arg struct {
	Name  string
	Value string
}

// Spec is a single deferred handler call. LocalArgs are the frontend
// callback parameters the call closes over (controlled triggers);
// Args associate parameter names with marshaled argument text.
type Spec struct {
	Handler   Handler
	LocalArgs []vars.Var
	Args      []Arg
}

// Call binds positional arguments to the handler's parameters,
// producing a Spec. Var arguments contribute their expression text;
// anything else must be JSON-serializable.
func (h Handler) Call(args ...any) (Spec, error) {
	if len(args) > len(h.Params) {
		return Spec{}, fmt.Errorf(
			"event: handler %s takes %d arguments, got %d",
			h.FullName(), len(h.Params), len(args),
		)
	}
	spec := Spec{Handler: h}
	for i, arg := range args {
		text, err := marshalArg(arg)
		if err != nil {
			return Spec{}, fmt.Errorf("event: handler %s argument %q: %w", h.FullName(), h.Params[i], err)
		}
		spec.Args = append(spec.Args, Arg{Name: h.Params[i], Value: text})
	}
	return spec, nil
}

func marshalArg(arg any) (string, error) {
	if v, ok := arg.(vars.Var); ok {
		return v.FullName(), nil
	}
	b, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("value of type %T is neither a Var nor JSON-serializable", arg)
	}
	return string(b), nil
}

// Chain is an ordered list of Specs compiled into one callback.
type Chain struct {
	Specs []Spec
}

// NewChain builds a chain from specs.
func NewChain(specs ...Spec) Chain {
	return Chain{Specs: specs}
}

// IsControlled reports whether any spec forwards a frontend-local
// value, which switches the callback to full-control framing.
func (c Chain) IsControlled() bool {
	for _, spec := range c.Specs {
		if len(spec.LocalArgs) > 0 {
			return true
		}
	}
	return false
}

// LocalArgNames returns the callback parameter names the chain needs,
// in first-seen order without duplicates.
func (c Chain) LocalArgNames() []string {
	var names []string
	seen := make(map[string]struct{})
	for _, spec := range c.Specs {
		for _, arg := range spec.LocalArgs {
			if _, ok := seen[arg.Name]; ok {
				continue
			}
			seen[arg.Name] = struct{}{}
			names = append(names, arg.Name)
		}
	}
	return names
}
