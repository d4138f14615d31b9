package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestAggregateMetrics(t *testing.T) {
	AggregateComputations.WithLabelValues("users").Inc()
	AggregateCacheHits.WithLabelValues("users").Inc()
	UnresolvedTerritories.Set(2)
	DatasetVersion.Set(1)

	names := gatheredNames(t)
	for _, name := range []string{
		"capmap_aggregate_computations_total",
		"capmap_aggregate_cache_hits_total",
		"capmap_unresolved_territories",
		"capmap_dataset_version",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestGeometryMetrics(t *testing.T) {
	GeometryLoads.WithLabelValues("vector", "ok").Inc()
	GeometryShapes.WithLabelValues("flat").Set(180)

	names := gatheredNames(t)
	if !names["capmap_geometry_loads_total"] {
		t.Error("capmap_geometry_loads_total not found")
	}
	if !names["capmap_geometry_shapes"] {
		t.Error("capmap_geometry_shapes not found")
	}
}

func TestRenderMetrics(t *testing.T) {
	RenderPasses.WithLabelValues("vector", "paint").Inc()
	RenderLatency.WithLabelValues("flat").Observe(0.004)
	ViewsActive.Set(3)
	SelectionEvents.WithLabelValues("click").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"capmap_render_passes_total",
		"capmap_render_latency_seconds",
		"capmap_views_active",
		"capmap_selection_events_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAPIAndHealthMetrics(t *testing.T) {
	APIRequests.WithLabelValues("/api/regions", "200").Inc()
	HealthCheckStatus.WithLabelValues("sqlite").Set(1)
	HealthRecoveries.WithLabelValues("geometry").Inc()

	names := gatheredNames(t)
	for _, name := range []string{
		"capmap_api_requests_total",
		"capmap_health_check_status",
		"capmap_health_recoveries_total",
	} {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}
