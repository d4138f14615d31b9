// Package dashboard owns the active dataset and serves memoized per-region
// aggregates to the HTTP API, the CLI and map views.
package dashboard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/capx-network/capmap/internal/app/aggregate"
	"github.com/capx-network/capmap/internal/app/territory"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/metrics"
)

// Store persists the dataset between runs.
type Store interface {
	SaveDataset(ds domain.Dataset) error
	LoadDataset() (domain.Dataset, error)
}

// Aggregate is one computed view of the dataset. Values are shared between
// callers and must not be modified.
type Aggregate struct {
	Version    uint64                                    `json:"version"`
	Mode       domain.ViewMode                           `json:"mode"`
	Filter     string                                    `json:"filter"`
	Counts     map[domain.RegionID]int                   `json:"counts"`
	Capacities map[domain.RegionID]domain.CapacityTotals `json:"capacities,omitempty"`
	Max        int                                       `json:"max"`
}

// Count returns the count of r and whether r has an entry at all.
func (a *Aggregate) Count(r domain.RegionID) (int, bool) {
	n, ok := a.Counts[r]
	return n, ok
}

type memoKey struct {
	version uint64
	mode    domain.ViewMode
	filter  string
}

// Service is safe for concurrent use.
type Service struct {
	log   zerolog.Logger
	store Store

	mu         sync.RWMutex
	ds         domain.Dataset
	version    uint64
	regionMap  map[string]domain.RegionID
	unresolved []string
	memo       map[memoKey]*Aggregate
}

// NewService creates a service with an empty dataset. store may be nil.
func NewService(log zerolog.Logger, store Store) *Service {
	return &Service{
		log:       log.With().Str("component", "dashboard").Logger(),
		store:     store,
		regionMap: map[string]domain.RegionID{},
		memo:      make(map[memoKey]*Aggregate),
	}
}

// ─── Dataset ────────────────────────────────────────────────────────────────

// Restore loads the persisted dataset, if any. A missing dataset is not an
// error.
func (s *Service) Restore() error {
	if s.store == nil {
		return nil
	}
	ds, err := s.store.LoadDataset()
	if errors.Is(err, domain.ErrNoDataset) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore dataset: %w", err)
	}
	return s.SetDataset(ds)
}

// Replace validates ds, persists it and makes it active.
func (s *Service) Replace(ds domain.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	if ds.UpdatedAt.IsZero() {
		ds.UpdatedAt = time.Now().UTC()
	}
	if s.store != nil {
		if err := s.store.SaveDataset(ds); err != nil {
			return fmt.Errorf("save dataset: %w", err)
		}
	}
	return s.SetDataset(ds)
}

// SetDataset makes ds active without persisting it, rebuilding the
// territory map and dropping every memoized aggregate.
func (s *Service) SetDataset(ds domain.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	regionMap, unresolved := territory.BuildRegionMap(ds.Territories)

	s.mu.Lock()
	s.ds = ds
	s.version++
	s.regionMap = regionMap
	s.unresolved = unresolved
	s.memo = make(map[memoKey]*Aggregate)
	version := s.version
	s.mu.Unlock()

	metrics.DatasetVersion.Set(float64(version))
	metrics.UnresolvedTerritories.Set(float64(len(unresolved)))
	if len(unresolved) > 0 {
		s.log.Warn().
			Int("count", len(unresolved)).
			Strs("territories", unresolved).
			Msg("territories without a region are excluded from aggregates")
	}
	s.log.Info().
		Uint64("version", version).
		Int("territories", len(ds.Territories)).
		Int("mapped", len(regionMap)).
		Msg("dataset loaded")
	return nil
}

// Dataset returns the active dataset. Its maps must not be modified.
func (s *Service) Dataset() domain.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

// Version increases on every dataset replacement; 0 means no dataset yet.
func (s *Service) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Unresolved lists api territory ids whose names match no region.
func (s *Service) Unresolved() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.unresolved...)
}

// RegionMap returns a copy of the api id → region map.
func (s *Service) RegionMap() map[string]domain.RegionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.RegionID, len(s.regionMap))
	for k, v := range s.regionMap {
		out[k] = v
	}
	return out
}

// ─── Aggregates ─────────────────────────────────────────────────────────────

// NormalizeFilter maps an empty filter to aggregate.All. The users mode has
// no filter.
func NormalizeFilter(mode domain.ViewMode, filter string) string {
	if mode == domain.ViewUsers || filter == "" {
		return aggregate.All
	}
	return filter
}

// Aggregate returns the per-region aggregate of mode under filter,
// computing it at most once per dataset version.
func (s *Service) Aggregate(mode domain.ViewMode, filter string) (*Aggregate, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownViewMode, mode)
	}
	filter = NormalizeFilter(mode, filter)

	s.mu.RLock()
	key := memoKey{version: s.version, mode: mode, filter: filter}
	agg, ok := s.memo[key]
	s.mu.RUnlock()
	if ok {
		metrics.AggregateCacheHits.WithLabelValues(string(mode)).Inc()
		return agg, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key.version = s.version
	if agg, ok := s.memo[key]; ok {
		return agg, nil
	}
	agg = s.compute(mode, filter)
	s.memo[key] = agg
	metrics.AggregateComputations.WithLabelValues(string(mode)).Inc()
	return agg, nil
}

// compute runs with s.mu held.
func (s *Service) compute(mode domain.ViewMode, filter string) *Aggregate {
	agg := &Aggregate{Version: s.version, Mode: mode, Filter: filter}
	switch mode {
	case domain.ViewLanguages:
		agg.Counts = aggregate.ByLanguage(s.ds.LanguagesByTerritory, s.regionMap, filter)
		agg.Max = aggregate.MaxOf(agg.Counts)
	case domain.ViewCapacities:
		agg.Capacities = aggregate.ByCapacity(s.ds.CapacitiesByTerritory, s.regionMap, filter)
		agg.Counts = aggregate.Totals(agg.Capacities)
		agg.Max = aggregate.MaxCapacityOf(agg.Capacities)
	default:
		agg.Counts = aggregate.UserCounts(s.ds.TerritoryUserCounts, s.regionMap)
		agg.Max = aggregate.MaxOf(agg.Counts)
	}
	return agg
}

// Top ranks the languages or capacities of one region. The users mode has
// no items to rank.
func (s *Service) Top(r domain.RegionID, mode domain.ViewMode, n int) ([]aggregate.Ranked, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRegion, r)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch mode {
	case domain.ViewLanguages:
		return aggregate.TopLanguages(s.ds.LanguagesByTerritory, s.regionMap, r, n, s.ds.LanguageName), nil
	case domain.ViewCapacities:
		return aggregate.TopCapacities(s.ds.CapacitiesByTerritory, s.regionMap, r, n, s.ds.CapacityName), nil
	}
	return nil, fmt.Errorf("%w: top lists need languages or capacities, got %q", domain.ErrUnknownViewMode, mode)
}
