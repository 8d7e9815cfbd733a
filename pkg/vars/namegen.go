package vars

import (
	"strconv"
	"sync"
)

// NameGen issues unique synthesized variable names within one compile
// session. It is threaded explicitly through the compile call graph;
// there is no process-wide instance. Safe for use from parallel
// per-page compile workers.
type NameGen struct {
	mu   sync.Mutex
	next int
	used map[string]struct{}
}

// NewNameGen returns an empty generator.
func NewNameGen() *NameGen {
	return &NameGen{used: make(map[string]struct{})}
}

// Fresh returns a previously-unissued variable name.
func (g *NameGen) Fresh() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		g.next++
		name := "_v" + strconv.Itoa(g.next)
		if _, taken := g.used[name]; !taken {
			g.used[name] = struct{}{}
			return name
		}
	}
}

// Reserve marks a name as taken so Fresh never issues it.
func (g *NameGen) Reserve(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.used[name] = struct{}{}
}
