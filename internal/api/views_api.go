package api

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capx-network/capmap/internal/app/mapview"
	"github.com/capx-network/capmap/internal/domain"
	"github.com/capx-network/capmap/internal/infra/render"
)

// ─── Map Views ──────────────────────────────────────────────────────────────

type createViewRequest struct {
	Style         render.Style    `json:"style"`
	Mode          domain.ViewMode `json:"mode"`
	Filter        string          `json:"filter"`
	DarkMode      bool            `json:"dark_mode"`
	IsMobile      bool            `json:"is_mobile"`
	ViewportWidth int             `json:"viewport_width"`
	Zoom          float64         `json:"zoom"`
	PanX          float64         `json:"pan_x"`
	PanY          float64         `json:"pan_y"`
	SouthUp       bool            `json:"south_up"`
}

func (req createViewRequest) options() mapview.Options {
	return mapview.Options{
		Style:  req.Style,
		Mode:   req.Mode,
		Filter: req.Filter,
		Config: mapview.Config{
			DarkMode:      req.DarkMode,
			IsMobile:      req.IsMobile,
			ViewportWidth: req.ViewportWidth,
		},
		Zoom:    req.Zoom,
		PanX:    req.PanX,
		PanY:    req.PanY,
		SouthUp: req.SouthUp,
	}
}

type regionRequest struct {
	Region domain.RegionID `json:"region"`
}

// viewResponse adds the selected region's count to a snapshot.
type viewResponse struct {
	mapview.Snapshot
	SelectedCount *int `json:"selected_count,omitempty"`
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) (*mapview.View, bool) {
	v, err := s.views.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return v, true
}

func (s *Server) writeSnapshot(w http.ResponseWriter, status int, v *mapview.View) {
	snap, err := v.Snapshot()
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := viewResponse{Snapshot: snap}
	if n, ok := snap.SelectedCount(); ok {
		resp.SelectedCount = &n
	}
	writeJSON(w, status, resp)
}

// GET /api/views
func (s *Server) handleListViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"views": s.views.IDs()})
}

// POST /api/views
func (s *Server) handleCreateView(w http.ResponseWriter, r *http.Request) {
	var req createViewRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Style == "" {
		req.Style = s.defaultStyle
	}
	v, err := s.views.Create(req.options())
	if err != nil {
		writeErr(w, err)
		return
	}
	s.writeSnapshot(w, http.StatusCreated, v)
}

// GET /api/views/{id}
func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	s.writeSnapshot(w, http.StatusOK, v)
}

// PATCH /api/views/{id}
func (s *Server) handlePatchView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	var p mapview.Patch
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := v.Update(p); err != nil {
		writeErr(w, err)
		return
	}
	s.writeSnapshot(w, http.StatusOK, v)
}

// DELETE /api/views/{id}
func (s *Server) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	if err := s.views.Delete(chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/views/{id}/click
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	s.regionEvent(w, r, (*mapview.View).Click)
}

// POST /api/views/{id}/enter
func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request) {
	s.regionEvent(w, r, (*mapview.View).Enter)
}

func (s *Server) regionEvent(w http.ResponseWriter, r *http.Request, fn func(*mapview.View, domain.RegionID) error) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	var req regionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := fn(v, req.Region); err != nil {
		writeErr(w, err)
		return
	}
	s.writeSnapshot(w, http.StatusOK, v)
}

// POST /api/views/{id}/leave
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	v.Leave()
	s.writeSnapshot(w, http.StatusOK, v)
}

// GET /api/views/{id}/map.svg
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := v.Render(r.Context(), &buf); err != nil {
		s.log.Error().Err(err).Str("view", v.ID()).Msg("render failed")
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
