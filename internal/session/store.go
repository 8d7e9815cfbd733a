// Package session stores per-token state trees between events.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/recera/pulse/pkg/state"
)

// Factory constructs a fresh default-valued state tree for a new
// token.
type Factory func() (*state.Instance, error)

// Store is the per-token state boundary. Get lazily constructs a
// default tree for unknown tokens; Set persists the tree after an
// event was processed.
type Store interface {
	Get(token string) (*state.Instance, error)
	Set(token string, s *state.Instance) error
	Delete(token string) error
}

type memoryEntry struct {
	instance *state.Instance
	lastSeen time.Time
}

// MemoryStore keeps live trees in memory and evicts tokens idle
// longer than the configured TTL.
type MemoryStore struct {
	factory Factory
	ttl     time.Duration

	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryStore returns a store evicting tokens idle longer than
// ttl. A zero ttl disables eviction.
func NewMemoryStore(factory Factory, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		factory: factory,
		ttl:     ttl,
		entries: make(map[string]*memoryEntry),
	}
}

// Get returns the token's tree, constructing a default one on first
// sight.
func (m *MemoryStore) Get(token string) (*state.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[token]; ok {
		e.lastSeen = time.Now()
		return e.instance, nil
	}
	instance, err := m.factory()
	if err != nil {
		return nil, fmt.Errorf("session: construct tree for %q: %w", token, err)
	}
	m.entries[token] = &memoryEntry{instance: instance, lastSeen: time.Now()}
	return instance, nil
}

// Set stores the tree under the token.
func (m *MemoryStore) Set(token string, s *state.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[token] = &memoryEntry{instance: s, lastSeen: time.Now()}
	return nil
}

// Delete drops the token's tree.
func (m *MemoryStore) Delete(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, token)
	return nil
}

// Len returns the number of live tokens.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// EvictIdle drops every token unseen since the TTL and returns how
// many were dropped.
func (m *MemoryStore) EvictIdle(now time.Time) int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for token, e := range m.entries {
		if now.Sub(e.lastSeen) > m.ttl {
			delete(m.entries, token)
			evicted++
		}
	}
	return evicted
}

// StartSweep runs the idle-eviction loop until the context is
// cancelled.
func (m *MemoryStore) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.EvictIdle(now)
			}
		}
	}()
}
