package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"flowscope/internal/domain"
	"flowscope/internal/geo"
	"flowscope/internal/service"
)

// APIHandler serves the data-source endpoints: the network payload, pattern
// analysis, the gazetteer, and transaction imports.
type APIHandler struct {
	svc      *service.NetworkService
	resolver *geo.Resolver
	log      *slog.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(svc *service.NetworkService, resolver *geo.Resolver, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{svc: svc, resolver: resolver, log: logger}
}

// filtersFromQuery parses the dashboard's query parameters, falling back to
// the defaults for anything absent or unparseable.
func filtersFromQuery(r *http.Request) domain.Filters {
	q := r.URL.Query()
	f := domain.DefaultFilters()

	if v := q.Get("focus_account"); v != "" {
		f.FocusAccount = v
	}
	if v := q.Get("depth"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			f.Depth = d
		}
	}
	if v := q.Get("min_amount"); v != "" {
		if amt, err := decimal.NewFromString(v); err == nil && !amt.IsNegative() {
			f.MinAmount = amt
		}
	}
	if v := q.Get("risk_level"); v != "" {
		f.RiskLevel = strings.ToLower(v)
	}
	if v := q.Get("currency"); v != "" {
		f.Currency = v
	}
	if v := q.Get("window_days"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d >= 0 {
			f.WindowDays = d
		}
	}
	return f
}

// GetNetworkData returns the aggregated node/flow payload
func (h *APIHandler) GetNetworkData(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.NetworkData(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.log.Error("failed to build network data", "error", err)
		writeError(w, "Failed to build network data", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, ds, http.StatusOK)
}

// PatternAnalysis runs the pattern scan over the current network
func (h *APIHandler) PatternAnalysis(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.svc.PatternAnalysis(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.log.Error("pattern analysis failed", "error", err)
		writeError(w, "Pattern analysis failed", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"results": patterns}, http.StatusOK)
}

// GetLocation resolves one location code through the gazetteer
func (h *APIHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !domain.ValidLocationCode(strings.ToUpper(code)) {
		writeError(w, "Invalid location code", "two-letter code required", http.StatusBadRequest)
		return
	}
	loc, ok := h.resolver.Resolve(r.Context(), code)
	if !ok {
		writeError(w, "Not found", "location could not be resolved", http.StatusNotFound)
		return
	}
	writeJSON(w, loc, http.StatusOK)
}

// ImportTransactions ingests a CSV or JSON upload into the store
func (h *APIHandler) ImportTransactions(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = r.Header.Get("Content-Type")
		if i := strings.Index(format, ";"); i >= 0 {
			format = format[:i]
		}
	}

	n, err := h.svc.Import(r.Context(), format, r.Body)
	if err != nil {
		writeError(w, "Import failed", err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"imported": n}, http.StatusOK)
}
