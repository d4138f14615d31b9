package mapview

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/capx-network/capmap/internal/app/colorscale"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/metrics"
)

// DefaultMaxViews bounds the number of live views.
const DefaultMaxViews = 1024

// Manager owns the live views, keyed by UUID.
type Manager struct {
	agg      Aggregator
	geometry GeometryProvider
	brighten colorscale.Brighten
	maxViews int
	log      zerolog.Logger

	mu    sync.RWMutex
	views map[string]*View
}

// NewManager creates a manager. maxViews <= 0 means DefaultMaxViews.
func NewManager(log zerolog.Logger, agg Aggregator, geometry GeometryProvider, brighten colorscale.Brighten, maxViews int) *Manager {
	if maxViews <= 0 {
		maxViews = DefaultMaxViews
	}
	return &Manager{
		agg:      agg,
		geometry: geometry,
		brighten: brighten,
		maxViews: maxViews,
		log:      log.With().Str("component", "mapview").Logger(),
		views:    make(map[string]*View),
	}
}

// Create validates opts and registers a new view.
func (m *Manager) Create(opts Options) (*View, error) {
	v, err := NewView(uuid.NewString(), opts, m.agg, m.geometry, m.brighten)
	if err != nil {
		return nil, err
	}

	style := v.opts.Style

	m.mu.Lock()
	if len(m.views) >= m.maxViews {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", domain.ErrTooManyViews, m.maxViews)
	}
	m.views[v.ID()] = v
	n := len(m.views)
	m.mu.Unlock()

	metrics.ViewsActive.Set(float64(n))
	m.log.Debug().Str("view", v.ID()).Str("style", string(style)).Msg("view created")
	return v, nil
}

// Get returns the view with id.
func (m *Manager) Get(id string) (*View, error) {
	m.mu.RLock()
	v, ok := m.views[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrViewNotFound, id)
	}
	return v, nil
}

// Delete removes the view with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	if _, ok := m.views[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrViewNotFound, id)
	}
	delete(m.views, id)
	n := len(m.views)
	m.mu.Unlock()

	metrics.ViewsActive.Set(float64(n))
	m.log.Debug().Str("view", id).Msg("view deleted")
	return nil
}

// IDs lists the live view ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.views))
	for id := range m.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live views.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.views)
}
