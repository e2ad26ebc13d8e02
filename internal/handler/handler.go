package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"flowscope/internal/datasource"
	"flowscope/internal/domain"
	"flowscope/internal/layout"
	"flowscope/internal/render"
	"flowscope/internal/view"
)

// Error response structure
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, msg, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: msg, Details: details}, statusCode)
}

// ViewHandler exposes the engine: scene state, filters, target, selection,
// exports.
type ViewHandler struct {
	coord *view.Coordinator
	log   *slog.Logger
}

// NewViewHandler creates a new view handler
func NewViewHandler(coord *view.Coordinator, logger *slog.Logger) *ViewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewHandler{coord: coord, log: logger}
}

// sceneResponse is the full render state for one frame
type sceneResponse struct {
	Target  render.Target        `json:"target"`
	Scene   *render.Scene        `json:"scene"`
	Dots    []render.DotPosition `json:"dots"`
	Stats   *domain.Stats        `json:"stats,omitempty"`
	Filters domain.Filters       `json:"filters"`
	Stale   bool                 `json:"stale,omitempty"`
}

// GetScene returns the active surface's scene and marker-dot frame
func (h *ViewHandler) GetScene(w http.ResponseWriter, r *http.Request) {
	resp := sceneResponse{
		Target:  h.coord.Target(),
		Scene:   h.coord.Scene(),
		Dots:    h.coord.Dots(),
		Filters: h.coord.Filters(),
		Stale:   h.coord.LastError() != nil,
	}
	if ds := h.coord.Dataset(); ds != nil {
		resp.Stats = &ds.Stats
	}
	writeJSON(w, resp, http.StatusOK)
}

// Reload refetches the dataset from the data source
func (h *ViewHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.coord.Reload(r.Context()); err != nil {
		h.writeReloadError(w, err)
		return
	}
	writeJSON(w, map[string]any{"status": "reloaded"}, http.StatusOK)
}

func (h *ViewHandler) writeReloadError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrMalformedDataset) {
		writeError(w, "Malformed dataset", err.Error(), http.StatusUnprocessableEntity)
		return
	}
	var fe *datasource.FetchError
	if errors.As(err, &fe) {
		h.log.Warn("reload failed", "error", err)
		writeJSON(w, ErrorResponse{
			Error:     "Data source unavailable",
			Details:   err.Error(),
			Retryable: true,
		}, http.StatusBadGateway)
		return
	}
	writeError(w, "Reload failed", err.Error(), http.StatusInternalServerError)
}

// SetFilters applies client-side filters to the last fetched dataset
func (h *ViewHandler) SetFilters(w http.ResponseWriter, r *http.Request) {
	var f domain.Filters
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	h.coord.ApplyFilters(f)
	writeJSON(w, h.coord.Filters(), http.StatusOK)
}

// SetTarget switches between the graph and map surfaces
func (h *ViewHandler) SetTarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	target := render.Target(req.Target)
	if target != render.TargetGraph && target != render.TargetMap {
		writeError(w, "Invalid target", "target must be graph or map", http.StatusBadRequest)
		return
	}
	h.coord.SetTarget(r.Context(), target)
	writeJSON(w, map[string]any{"target": target}, http.StatusOK)
}

// SetLayout switches the layout mode and node sizing metric
func (h *ViewHandler) SetLayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode       string `json:"mode,omitempty"`
		SizeMetric string `json:"size_metric,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Mode != "" {
		mode, ok := layout.ParseMode(req.Mode)
		if !ok {
			writeError(w, "Invalid layout mode", "mode must be force, radial or tiered", http.StatusBadRequest)
			return
		}
		h.coord.SetLayoutMode(mode)
	}
	if req.SizeMetric != "" {
		h.coord.SetSizeMetric(domain.SizeMetric(req.SizeMetric))
	}
	writeJSON(w, map[string]any{"status": "ok"}, http.StatusOK)
}

// SetSelectionModes toggles click-to-inspect and multi-select
func (h *ViewHandler) SetSelectionModes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SelectionMode *bool `json:"selection_mode,omitempty"`
		MultiSelect   *bool `json:"multi_select,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.SelectionMode != nil {
		h.coord.SetSelectionMode(*req.SelectionMode)
	}
	if req.MultiSelect != nil {
		h.coord.SetMultiSelect(*req.MultiSelect)
	}
	writeJSON(w, map[string]any{"status": "ok"}, http.StatusOK)
}

// Select handles a click on an edge or a node in the active view
func (h *ViewHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EdgeKey string `json:"edge_key,omitempty"`
		NodeID  string `json:"node_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	switch {
	case req.EdgeKey != "":
		detail, err := h.coord.SelectFlow(req.EdgeKey)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, "Not found", "no such flow", http.StatusNotFound)
			return
		}
		if err != nil {
			writeError(w, "Selection failed", err.Error(), http.StatusInternalServerError)
			return
		}
		// detail is nil when selection mode is off; that click is a no-op.
		writeJSON(w, map[string]any{"flow": detail}, http.StatusOK)

	case req.NodeID != "":
		detail, err := h.coord.InspectNode(req.NodeID)
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, "Not found", "no such node", http.StatusNotFound)
			return
		}
		if err != nil {
			writeError(w, "Selection failed", err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"node": detail}, http.StatusOK)

	default:
		writeError(w, "Invalid selection", "edge_key or node_id is required", http.StatusBadRequest)
	}
}

// Focus narrows the dataset to one account's neighborhood
func (h *ViewHandler) Focus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.coord.Focus(r.Context(), req.AccountID); err != nil {
		h.writeReloadError(w, err)
		return
	}
	writeJSON(w, map[string]any{"focus_account": req.AccountID}, http.StatusOK)
}

// SavePosition pins a dragged node at the given coordinates
func (h *ViewHandler) SavePosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if !h.coord.DragNode(id, req.X, req.Y) {
		writeError(w, "Not found", "no such node", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"status": "pinned"}, http.StatusOK)
}

// ReleasePosition unpins a node and lets the simulation reclaim it
func (h *ViewHandler) ReleasePosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.coord.ReleaseNode(id) {
		writeError(w, "Not found", "no such node", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"status": "released"}, http.StatusOK)
}

// SceneSVG exports the active surface as an SVG snapshot
func (h *ViewHandler) SceneSVG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	h.coord.WriteSVG(w)
}

// FlowsGeoJSON exports the resolvable flows as a GeoJSON FeatureCollection
func (h *ViewHandler) FlowsGeoJSON(w http.ResponseWriter, r *http.Request) {
	raw, err := h.coord.GeoJSON(r.Context())
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, "No dataset", "load a dataset first", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "Export failed", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(raw)
}
