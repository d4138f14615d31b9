// Package geo loads and caches the geographic sources of the map: GeoJSON
// country boundaries for the vector style and a pre-rendered SVG document
// for the flat style.
package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/metrics"
)

// maxSourceBytes bounds a geometry download or file read.
const maxSourceBytes = 64 << 20

// ─── Source ─────────────────────────────────────────────────────────────────

// Source is a lazily loaded, process-lifetime cache of one geometry
// document. The first Load fetches and parses the location; concurrent
// callers share that fetch. A failed load leaves the source empty and is not
// retried until Reload.
type Source[T any] struct {
	name     string
	location string
	parse    func([]byte) (T, error)
	count    func(T) int
	client   *http.Client
	log      zerolog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	value   T
	loaded  bool
	tried   bool
	err     error
	version uint64
}

// SourceOption configures a Source.
type SourceOption func(*sourceOptions)

type sourceOptions struct {
	client *http.Client
	log    zerolog.Logger
}

// WithHTTPClient sets the client used for http(s) locations.
func WithHTTPClient(c *http.Client) SourceOption {
	return func(o *sourceOptions) { o.client = c }
}

// WithLogger sets the source logger.
func WithLogger(l zerolog.Logger) SourceOption {
	return func(o *sourceOptions) { o.log = l }
}

func newSource[T any](name, location string, parse func([]byte) (T, error), count func(T) int, opts ...SourceOption) *Source[T] {
	o := sourceOptions{
		client: &http.Client{Timeout: 30 * time.Second},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Source[T]{
		name:     name,
		location: strings.TrimSpace(location),
		parse:    parse,
		count:    count,
		client:   o.client,
		log:      o.log.With().Str("component", "geo").Str("source", name).Logger(),
	}
}

// Name is "vector" or "flat".
func (s *Source[T]) Name() string { return s.name }

// Location is the configured URL or file path.
func (s *Source[T]) Location() string { return s.location }

// IsFile reports whether the location is a local file.
func (s *Source[T]) IsFile() bool { return s.location != "" && !isURL(s.location) }

// Load returns the cached value, fetching it on first use.
func (s *Source[T]) Load(ctx context.Context) (T, error) {
	s.mu.RLock()
	if s.tried {
		v, err := s.value, s.err
		s.mu.RUnlock()
		return v, err
	}
	s.mu.RUnlock()
	return s.fetch(ctx, false)
}

// Reload fetches the location again, replacing the cached value on success.
// On failure the previous value is kept.
func (s *Source[T]) Reload(ctx context.Context) error {
	_, err := s.fetch(ctx, true)
	return err
}

// Get returns the cached value without loading. ok is false until a load
// has succeeded.
func (s *Source[T]) Get() (v T, version uint64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.version, s.loaded
}

// Version increases every time a load succeeds.
func (s *Source[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Err returns the error of the most recent load, if any.
func (s *Source[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Source[T]) fetch(ctx context.Context, force bool) (T, error) {
	key := "load"
	if force {
		key = "reload"
	}
	res, err, _ := s.group.Do(key, func() (any, error) {
		if !force {
			s.mu.RLock()
			tried, v, err := s.tried, s.value, s.err
			s.mu.RUnlock()
			if tried {
				return v, err
			}
		}
		start := time.Now()
		v, err := s.read(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.tried = true
		if err != nil {
			s.err = err
			metrics.GeometryLoads.WithLabelValues(s.name, "error").Inc()
			s.log.Error().Err(err).Str("location", s.location).Msg("geometry load failed")
			return s.value, err
		}
		s.value, s.loaded, s.err = v, true, nil
		s.version++
		n := s.count(v)
		metrics.GeometryLoads.WithLabelValues(s.name, "ok").Inc()
		metrics.GeometryShapes.WithLabelValues(s.name).Set(float64(n))
		s.log.Info().
			Str("location", s.location).
			Int("shapes", n).
			Uint64("version", s.version).
			Dur("took", time.Since(start)).
			Msg("geometry loaded")
		return v, nil
	})
	v, _ := res.(T)
	return v, err
}

func (s *Source[T]) read(ctx context.Context) (T, error) {
	var zero T
	if s.location == "" {
		return zero, fmt.Errorf("%s: %w: no location configured", s.name, domain.ErrGeometryUnavailable)
	}
	data, err := s.readBytes(ctx)
	if err != nil {
		return zero, fmt.Errorf("%s: %w: %v", s.name, domain.ErrGeometryUnavailable, err)
	}
	v, err := s.parse(data)
	if err != nil {
		return zero, fmt.Errorf("%s: parse %s: %w", s.name, s.location, err)
	}
	return v, nil
}

func (s *Source[T]) readBytes(ctx context.Context) ([]byte, error) {
	if !isURL(s.location) {
		f, err := os.Open(s.location)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxSourceBytes))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", s.location, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
}

func isURL(loc string) bool {
	return strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://")
}

// ─── Constructors ───────────────────────────────────────────────────────────

// VectorSource is a Source of GeoJSON boundaries.
type VectorSource = Source[*Vector]

// FlatSource is a Source of a flat SVG map.
type FlatSource = Source[*Document]

// NewVectorSource creates a GeoJSON boundary source for a URL or file path.
func NewVectorSource(location string, opts ...SourceOption) *VectorSource {
	return newSource("vector", location, ParseVector, func(v *Vector) int { return len(v.Countries) }, opts...)
}

// NewFlatSource creates a flat SVG source for a URL or file path.
func NewFlatSource(location string, opts ...SourceOption) *FlatSource {
	return newSource("flat", location, ParseSVG, func(d *Document) int { return d.Elements() }, opts...)
}
