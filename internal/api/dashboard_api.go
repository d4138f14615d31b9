package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/capx-network/capmap/internal/app/aggregate"
	"github.com/capx-network/capmap/internal/app/colorscale"
	"github.com/capx-network/capmap/internal/app/territory"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/region"
)

// ─── Regions ────────────────────────────────────────────────────────────────

type regionInfo struct {
	ID            domain.RegionID `json:"id"`
	ShortName     string          `json:"short_name"`
	FullName      string          `json:"full_name"`
	LightColor    string          `json:"light_color"`
	DarkColor     string          `json:"dark_color"`
	SelectedColor string          `json:"selected_color"`
	Countries     int             `json:"countries"`
	CountryCodes  []string        `json:"country_codes,omitempty"`
}

// GET /api/regions[?countries=true]
func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	withCodes := r.URL.Query().Get("countries") == "true"
	all := region.All()
	out := make([]regionInfo, len(all))
	for i, rg := range all {
		sel, _ := colorscale.SelectedColor(rg.ID)
		out[i] = regionInfo{
			ID:            rg.ID,
			ShortName:     rg.ShortName,
			FullName:      rg.FullName,
			LightColor:    rg.LightColor,
			DarkColor:     rg.DarkColor,
			SelectedColor: sel.Hex(),
			Countries:     len(rg.CountryCodes),
		}
		if withCodes {
			out[i].CountryCodes = rg.CountryCodes
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": out})
}

// GET /api/resolve?name=...
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	id, ok := territory.ResolveRegion(name)
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       name,
		"normalized": territory.Normalize(name),
		"region":     id,
		"resolved":   ok,
	})
}

// GET /api/regions/{id}/top?mode=languages|capacities&n=5
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseRegionID(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	q := r.URL.Query()
	mode, err := domain.ParseViewMode(q.Get("mode"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if q.Get("mode") == "" {
		mode = domain.ViewLanguages
	}
	n := aggregate.DefaultTopN
	if raw := q.Get("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
	}
	items, err := s.dash.Top(id, mode, n)
	if err != nil {
		writeErr(w, err)
		return
	}
	if items == nil {
		items = []aggregate.Ranked{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"region": id,
		"mode":   mode,
		"items":  items,
	})
}

// ─── Dataset ────────────────────────────────────────────────────────────────

// GET /api/dataset
func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	ds := s.dash.Dataset()
	unresolved := s.dash.Unresolved()
	if unresolved == nil {
		unresolved = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":     s.dash.Version(),
		"updated_at":  ds.UpdatedAt,
		"territories": len(ds.Territories),
		"languages":   len(ds.Languages),
		"capacities":  len(ds.Capacities),
		"mapped":      len(s.dash.RegionMap()),
		"unresolved":  unresolved,
	})
}

// PUT /api/dataset
func (s *Server) handlePutDataset(w http.ResponseWriter, r *http.Request) {
	var ds domain.Dataset
	if !decodeJSON(w, r, &ds) {
		return
	}
	if err := s.dash.Replace(ds); err != nil {
		writeErr(w, err)
		return
	}
	unresolved := s.dash.Unresolved()
	if unresolved == nil {
		unresolved = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    s.dash.Version(),
		"mapped":     len(s.dash.RegionMap()),
		"unresolved": unresolved,
	})
}

// GET /api/aggregate?mode=&filter=
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := domain.ParseViewMode(q.Get("mode"))
	if err != nil {
		writeErr(w, err)
		return
	}
	agg, err := s.dash.Aggregate(mode, q.Get("filter"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}
