package compiler

import (
	"strings"
	"testing"

	"github.com/recera/pulse/pkg/component"
	"github.com/recera/pulse/pkg/state"
	"github.com/recera/pulse/pkg/vars"
)

func newTestState(t *testing.T) *state.Instance {
	t.Helper()
	c := state.NewClass("state").
		AddVar("count", vars.Int, 0).
		AddComputed("label", vars.Str, func(s *state.Instance) any {
			return "clicks"
		}, state.Cached())
	if err := c.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	s, err := state.NewInstance(c)
	if err != nil {
		t.Fatalf("NewInstance: %v", err)
	}
	return s
}

func newTestPage(t *testing.T) component.Component {
	t.Helper()
	heading, err := component.Text(nil, "Counter")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	value, err := component.Text(nil, vars.FromState("state", "count", vars.Int))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	page, err := component.Box(nil, heading, value)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	return page
}

func TestCompilePage_Layout(t *testing.T) {
	c := New(Options{})
	src, err := c.CompilePage("/", newTestPage(t), newTestState(t))
	if err != nil {
		t.Fatalf("CompilePage: %v", err)
	}

	// Sections appear in manifest, constants, seed, glue, markup order.
	wantInOrder := []string{
		`import { useEffect, useRef, useState } from "react"`,
		`import { E, Event, connect, getRouter, useColorMode } from "/pulse/runtime"`,
		`import { Box, Text } from "@chakra-ui/react"`,
		`const EVENT = "/_event"`,
		`const initialState = {"state":{"count":0,"label":"clicks"}}`,
		`export default function Index() {`,
		`const [state, setState] = useState(initialState)`,
		`const [ready, setReady] = useState(false)`,
		`const router = getRouter()`,
		`const socket = useRef(null)`,
		`const { colorMode, toggleColorMode } = useColorMode()`,
		`useEffect(() => connect(socket, setState, setReady, EVENT), [])`,
		`<Box><Text>{`,
	}
	pos := 0
	for _, want := range wantInOrder {
		i := strings.Index(src[pos:], want)
		if i < 0 {
			t.Fatalf("missing or out of order: %q\nsource:\n%s", want, src)
		}
		pos += i
	}
}

func TestCompilePage_CustomEndpoint(t *testing.T) {
	c := New(Options{EventEndpoint: "/api/events"})
	src, err := c.CompilePage("/", newTestPage(t), nil)
	if err != nil {
		t.Fatalf("CompilePage: %v", err)
	}
	if !strings.Contains(src, `const EVENT = "/api/events"`) {
		t.Errorf("endpoint constant missing:\n%s", src)
	}
	if !strings.Contains(src, "const initialState = {}") {
		t.Errorf("nil seed should produce an empty object:\n%s", src)
	}
}

func TestCompilePage_EmitsCustomComponents(t *testing.T) {
	def, err := component.DefineCustom("stat_card", []component.Param{{Name: "title", Type: vars.Str}},
		func(args []vars.Var) (component.Component, error) {
			txt, err := component.Text(nil, args[0])
			if err != nil {
				return nil, err
			}
			return component.Box(nil, txt)
		})
	if err != nil {
		t.Fatalf("DefineCustom: %v", err)
	}
	use, err := def.Use("Revenue")
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	page, err := component.Box(nil, use)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}

	src, err := New(Options{}).CompilePage("/stats", page, nil)
	if err != nil {
		t.Fatalf("CompilePage: %v", err)
	}
	if !strings.Contains(src, "export function StatCard({ title }) {") {
		t.Errorf("custom component function missing:\n%s", src)
	}
	if !strings.Contains(src, "<Box><Text>{title}</Text></Box>") {
		t.Errorf("custom component body missing:\n%s", src)
	}
	if !strings.Contains(src, "export default function Stats() {") {
		t.Errorf("page function missing:\n%s", src)
	}
}

func TestPageName(t *testing.T) {
	cases := map[string]string{
		"/":              "Index",
		"/pricing":       "Pricing",
		"/pricing/teams": "PricingTeams",
		"/my-account":    "MyAccount",
	}
	for route, want := range cases {
		if got := PageName(route); got != want {
			t.Errorf("PageName(%q) = %q, want %q", route, got, want)
		}
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"/":              "index.js",
		"/pricing":       "pricing.js",
		"/pricing/teams": "pricing_teams.js",
	}
	for route, want := range cases {
		if got := FileName(route); got != want {
			t.Errorf("FileName(%q) = %q, want %q", route, got, want)
		}
	}
}
