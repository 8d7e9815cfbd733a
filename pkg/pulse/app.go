// Package pulse is the application facade: it ties a state class, a
// page registry, and a stylesheet together, and drives compilation
// and the live event server.
package pulse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/recera/pulse/internal/session"
	"github.com/recera/pulse/pkg/compiler"
	"github.com/recera/pulse/pkg/component"
	"github.com/recera/pulse/pkg/live"
	"github.com/recera/pulse/pkg/state"
	"github.com/recera/pulse/pkg/vars"
)

// PageFunc builds a page's component tree. The name generator is
// page-scoped so synthesized iteration variables never collide within
// one page.
type PageFunc func(gen *vars.NameGen) (component.Component, error)

// Options configure an App.
type Options struct {
	// EventEndpoint is the URL events are submitted to. Defaults to
	// "/_event".
	EventEndpoint string

	// SessionTTL evicts idle in-memory sessions. Zero keeps them
	// forever.
	SessionTTL time.Duration

	// SessionDB, when set, persists sessions in a bbolt database at
	// this path instead of memory.
	SessionDB string

	Logger *slog.Logger
}

// App is one application: a root state class, routed pages, and an
// app-wide stylesheet.
type App struct {
	stateClass *state.Class
	opts       Options
	logger     *slog.Logger

	pages  map[string]PageFunc
	routes []string
	sheet  component.StyleSheet
}

// New returns an app over a sealed root state class. A nil class is
// allowed for static sites.
func New(stateClass *state.Class, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		stateClass: stateClass,
		opts:       opts,
		logger:     logger,
		pages:      make(map[string]PageFunc),
	}
}

// AddPage registers a page under a route path. Registering a route
// twice replaces the earlier page.
func (a *App) AddPage(route string, build PageFunc) {
	if _, exists := a.pages[route]; !exists {
		a.routes = append(a.routes, route)
		sort.Strings(a.routes)
	}
	a.pages[route] = build
}

// SetStyle installs the app-wide stylesheet, applied to every page
// tree before compilation.
func (a *App) SetStyle(sheet component.StyleSheet) {
	a.sheet = sheet
}

// Routes returns the registered routes in sorted order.
func (a *App) Routes() []string {
	out := make([]string, len(a.routes))
	copy(out, a.routes)
	return out
}

// Compile renders every page to a source module under outDir, one
// file per route. Pages are independent and rendered in route order.
func (a *App) Compile(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("pulse: create %s: %w", outDir, err)
	}

	seed, err := a.newInstance()
	if err != nil {
		return err
	}
	comp := compiler.New(compiler.Options{EventEndpoint: a.opts.EventEndpoint, Sheet: a.sheet})

	for _, route := range a.routes {
		gen := vars.NewNameGen()
		root, err := a.pages[route](gen)
		if err != nil {
			return fmt.Errorf("pulse: build page %s: %w", route, err)
		}
		if a.sheet != nil {
			root.ApplyStyle(a.sheet)
		}
		src, err := comp.CompilePage(route, root, seed)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, compiler.FileName(route))
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			return fmt.Errorf("pulse: write %s: %w", path, err)
		}
		a.logger.Info("compiled page", "route", route, "file", path)
	}
	return nil
}

// newInstance builds the default state tree used both to seed pages
// and as the session factory.
func (a *App) newInstance() (*state.Instance, error) {
	if a.stateClass == nil {
		return nil, nil
	}
	s, err := state.NewInstance(a.stateClass)
	if err != nil {
		return nil, fmt.Errorf("pulse: instantiate state: %w", err)
	}
	return s, nil
}

// Handler returns the HTTP handler serving the live event endpoint.
// The returned cleanup closes the session database, if any.
func (a *App) Handler(ctx context.Context) (http.Handler, func() error, error) {
	if a.stateClass == nil {
		return nil, nil, fmt.Errorf("pulse: an event server needs a state class")
	}
	factory := func() (*state.Instance, error) { return a.newInstance() }

	var store session.Store
	cleanup := func() error { return nil }
	if a.opts.SessionDB != "" {
		bs, err := session.OpenBolt(a.opts.SessionDB, factory)
		if err != nil {
			return nil, nil, err
		}
		store = bs
		cleanup = bs.Close
	} else {
		ms := session.NewMemoryStore(factory, a.opts.SessionTTL)
		if a.opts.SessionTTL > 0 {
			ms.StartSweep(ctx, a.opts.SessionTTL)
		}
		store = ms
	}

	endpoint := a.opts.EventEndpoint
	if endpoint == "" {
		endpoint = "/_event"
	}
	mux := http.NewServeMux()
	mux.Handle(endpoint, live.NewServer(store, a.logger))
	return mux, cleanup, nil
}

// Serve runs the live event server until the context is cancelled.
func (a *App) Serve(ctx context.Context, addr string) error {
	handler, cleanup, err := a.Handler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("event server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
