// Package metrics provides Prometheus metrics for capmap.
// Counters and histograms cover aggregation, geometry loading, map
// rendering, the HTTP API and health checks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Aggregation ────────────────────────────────────────────────────────────

// AggregateComputations counts aggregate recomputations (memo misses) by mode.
var AggregateComputations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "capmap",
	Name:      "aggregate_computations_total",
	Help:      "Total aggregate recomputations.",
}, []string{"mode"})

// AggregateCacheHits counts aggregates served from the memo.
var AggregateCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "capmap",
	Name:      "aggregate_cache_hits_total",
	Help:      "Total aggregates served from the memo.",
}, []string{"mode"})

// UnresolvedTerritories is the number of api territories of the current
// dataset whose names match no region.
var UnresolvedTerritories = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "capmap",
	Name:      "unresolved_territories",
	Help:      "Territories in the current dataset that resolve to no region.",
})

// DatasetVersion is the version of the active dataset.
var DatasetVersion = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "capmap",
	Name:      "dataset_version",
	Help:      "Version of the active dataset.",
})

// ─── Geometry ───────────────────────────────────────────────────────────────

// GeometryLoads counts geometry source loads by source and result.
var GeometryLoads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "capmap",
	Name:      "geometry_loads_total",
	Help:      "Total geometry loads by source and result.",
}, []string{"source", "result"})

// GeometryShapes is the number of shapes in each loaded source.
var GeometryShapes = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "capmap",
	Name:      "geometry_shapes",
	Help:      "Number of country shapes per geometry source.",
}, []string{"source"})

// ─── Rendering ──────────────────────────────────────────────────────────────

// RenderPasses counts render passes by style and pass (geometry or paint).
var RenderPasses = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "capmap",
	Name:      "render_passes_total",
	Help:      "Total render passes by style and pass.",
}, []string{"style", "pass"})

// RenderLatency tracks full map render duration.
var RenderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "capmap",
	Name:      "render_latency_seconds",
	Help:      "Map render duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
}, []string{"style"})

// ViewsActive is the number of live map views.
var ViewsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "capmap",
	Name:      "views_active",
	Help:      "Number of live map views.",
})

// SelectionEvents counts click/enter/leave events applied to views.
var SelectionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "capmap",
	Name:      "selection_events_total",
	Help:      "Total selection events by kind.",
}, []string{"event"})

// ─── API ────────────────────────────────────────────────────────────────────

// APIRequests counts HTTP requests by route pattern and status code.
var APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "capmap",
	Name:      "api_requests_total",
	Help:      "Total HTTP requests by route and status.",
}, []string{"route", "status"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "capmap",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "capmap",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
