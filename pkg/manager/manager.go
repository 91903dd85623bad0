// Package manager coordinates replication and integrity across the
// configured storage adapters.
//
// The manager owns the adapter instances, keeps the level definitions cached,
// and implements the fan-out operations: replicate a resource everywhere its
// levels demand, verify copies against the canonical checksum, and repair
// what diverged.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/libreary/libreary/internal/logger"
	"github.com/libreary/libreary/pkg/adapter"
	"github.com/libreary/libreary/pkg/catalog"
	"github.com/libreary/libreary/pkg/metrics"
)

// ConfigProvider resolves adapter configuration by instance ID.
// *config.Config satisfies it.
type ConfigProvider interface {
	ConfigForAdapter(id, adapterType string) (adapter.Config, error)
}

// Manager coordinates the adapter fleet.
type Manager struct {
	cat         *catalog.Store
	provider    ConfigProvider
	canonicalID string
	workers     int
	metrics     *metrics.ArchiveMetrics

	mu       sync.RWMutex
	adapters map[string]adapter.Adapter
	levels   map[string]*catalog.Level
}

// Option customizes a Manager.
type Option func(*Manager)

// WithWorkers sets the sweep concurrency.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithMetrics attaches archive metrics. A nil recorder is fine.
func WithMetrics(am *metrics.ArchiveMetrics) Option {
	return func(m *Manager) { m.metrics = am }
}

// New constructs a manager. canonicalID names the adapter holding canonical
// copies.
func New(cat *catalog.Store, provider ConfigProvider, canonicalID string, opts ...Option) *Manager {
	m := &Manager{
		cat:         cat,
		provider:    provider,
		canonicalID: canonicalID,
		workers:     4,
		adapters:    make(map[string]adapter.Adapter),
		levels:      make(map[string]*catalog.Level),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReloadLevelsAdapters refreshes the level cache from the catalog and
// instantiates every adapter the levels reference, plus the canonical
// adapter. Called at startup and after level definitions change.
func (m *Manager) ReloadLevelsAdapters(ctx context.Context) error {
	levels, err := m.cat.ListLevels(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string]*catalog.Level, len(levels))
	for _, l := range levels {
		fresh[l.Name] = l
	}

	m.mu.Lock()
	m.levels = fresh
	m.mu.Unlock()

	if _, err := m.AdapterByID(ctx, m.canonicalID, ""); err != nil {
		return err
	}
	for _, l := range levels {
		refs, err := l.AdapterRefs()
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if _, err := m.AdapterByID(ctx, ref.ID, ref.Type); err != nil {
				return err
			}
		}
	}

	logger.Debug("Reloaded levels and adapters",
		"levels", len(fresh), "adapters", len(m.adapterIDs()))
	return nil
}

// AdapterByID returns the adapter instance with the given ID, constructing it
// from configuration on first use. adapterType is advisory; empty skips the
// type check.
func (m *Manager) AdapterByID(ctx context.Context, id, adapterType string) (adapter.Adapter, error) {
	m.mu.RLock()
	a, ok := m.adapters[id]
	m.mu.RUnlock()
	if ok {
		return a, nil
	}

	cfg, err := m.provider.ConfigForAdapter(id, adapterType)
	if err != nil {
		return nil, err
	}
	a, err = adapter.Create(ctx, cfg, m.cat)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another goroutine may have won the race.
	if existing, ok := m.adapters[id]; ok {
		return existing, nil
	}
	m.adapters[id] = a
	return a, nil
}

// Canonical returns the canonical adapter.
func (m *Manager) Canonical(ctx context.Context) (adapter.Adapter, error) {
	return m.AdapterByID(ctx, m.canonicalID, "")
}

// LevelByName resolves a level, preferring the cache.
func (m *Manager) LevelByName(ctx context.Context, name string) (*catalog.Level, error) {
	m.mu.RLock()
	l, ok := m.levels[name]
	m.mu.RUnlock()
	if ok {
		return l, nil
	}
	return m.cat.GetLevel(ctx, name)
}

// adaptersForResource resolves the adapters the resource's levels replicate
// to, in level order, each adapter once even when levels overlap.
func (m *Manager) adaptersForResource(ctx context.Context, r *catalog.Resource) ([]adapter.Adapter, error) {
	seen := make(map[string]bool)
	var out []adapter.Adapter
	for _, name := range r.LevelNames() {
		l, err := m.LevelByName(ctx, name)
		if err != nil {
			if errors.Is(err, catalog.ErrLevelNotFound) {
				return nil, adapter.NewConfigurationError(
					fmt.Sprintf("resource %s references unknown level %q", r.UUID, name))
			}
			return nil, err
		}
		refs, err := l.AdapterRefs()
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if seen[ref.ID] {
				continue
			}
			seen[ref.ID] = true
			a, err := m.AdapterByID(ctx, ref.ID, ref.Type)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// adapterIDs returns the IDs of all instantiated adapters.
func (m *Manager) adapterIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.adapters))
	for id := range m.adapters {
		ids = append(ids, id)
	}
	return ids
}
