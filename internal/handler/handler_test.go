package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"flowscope/internal/config"
	"flowscope/internal/datasource"
	"flowscope/internal/domain"
	"flowscope/internal/service"
	"flowscope/internal/view"
)

type stubSource struct {
	calls   int
	dataset *domain.Dataset
	err     error
}

func (s *stubSource) NetworkData(ctx context.Context, f domain.Filters) (*domain.Dataset, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.dataset, nil
}

type stubLocator struct{}

func (stubLocator) ResolveFlows(ctx context.Context, ds *domain.Dataset) map[string]domain.Location {
	return map[string]domain.Location{
		"US": {Latitude: 38.9, Longitude: -77.0, DisplayName: "United States"},
	}
}

func sampleDataset() *domain.Dataset {
	nodes := []*domain.Node{
		{ID: "acct-1", TxCount: 3, AvgRisk: 0.8, LocationCode: "US",
			TotalSent: decimal.NewFromInt(9000), TotalReceived: decimal.Zero},
		{ID: "acct-2", TxCount: 3, AvgRisk: 0.2,
			TotalSent: decimal.Zero, TotalReceived: decimal.NewFromInt(9000)},
	}
	flows := []*domain.Flow{
		{Source: "acct-1", Target: "acct-2", Amount: decimal.NewFromInt(9000), Risk: 0.8},
	}
	return domain.NewDataset(nodes, flows)
}

// viewServer wires the engine routes the way cmd/server does
func viewServer(t *testing.T, src view.Source) (*view.Coordinator, *httptest.Server) {
	t.Helper()
	coord := view.New(config.DefaultConfig(), src, stubLocator{}, service.NewEventBus(), nil)
	vh := NewViewHandler(coord, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/view/scene", vh.GetScene)
	mux.HandleFunc("GET /api/view/scene.svg", vh.SceneSVG)
	mux.HandleFunc("GET /api/view/flows.geojson", vh.FlowsGeoJSON)
	mux.HandleFunc("POST /api/view/reload", vh.Reload)
	mux.HandleFunc("PUT /api/view/filters", vh.SetFilters)
	mux.HandleFunc("PUT /api/view/target", vh.SetTarget)
	mux.HandleFunc("PUT /api/view/layout", vh.SetLayout)
	mux.HandleFunc("PUT /api/view/selection", vh.SetSelectionModes)
	mux.HandleFunc("POST /api/view/select", vh.Select)
	mux.HandleFunc("POST /api/view/focus", vh.Focus)
	mux.HandleFunc("PUT /api/view/positions/{id}", vh.SavePosition)
	mux.HandleFunc("DELETE /api/view/positions/{id}", vh.ReleasePosition)

	srv := httptest.NewServer(Chain(mux, Recover, CORS, Logger))
	t.Cleanup(srv.Close)
	return coord, srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestGetScene(t *testing.T) {
	src := &stubSource{dataset: sampleDataset()}
	_, srv := viewServer(t, src)

	t.Run("empty before first load", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/view/scene", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if body["scene"] != nil {
			t.Errorf("scene = %v before load, want null", body["scene"])
		}
	})

	t.Run("populated after reload", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/view/reload", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("reload status = %d, want 200", resp.StatusCode)
		}

		_, body := doJSON(t, http.MethodGet, srv.URL+"/api/view/scene", "")
		scene, ok := body["scene"].(map[string]any)
		if !ok {
			t.Fatal("scene missing after reload")
		}
		if nodes := scene["nodes"].([]any); len(nodes) != 2 {
			t.Errorf("scene nodes = %d, want 2", len(nodes))
		}
		if body["stats"] == nil {
			t.Error("stats missing after reload")
		}
	})
}

func TestReloadErrors(t *testing.T) {
	t.Run("fetch failure is retryable", func(t *testing.T) {
		src := &stubSource{err: &datasource.FetchError{Status: 503}}
		_, srv := viewServer(t, src)

		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/view/reload", "")
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", resp.StatusCode)
		}
		if body["retryable"] != true {
			t.Error("response not marked retryable")
		}
	})

	t.Run("malformed dataset", func(t *testing.T) {
		src := &stubSource{err: domain.ErrMalformedDataset}
		_, srv := viewServer(t, src)

		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/view/reload", "")
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", resp.StatusCode)
		}
	})
}

func TestSetTarget(t *testing.T) {
	src := &stubSource{dataset: sampleDataset()}
	_, srv := viewServer(t, src)
	doJSON(t, http.MethodPost, srv.URL+"/api/view/reload", "")

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/view/target", `{"target":"map"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/view/target", `{"target":"hologram"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status for bad target = %d, want 400", resp.StatusCode)
	}
}

func TestSelect(t *testing.T) {
	src := &stubSource{dataset: sampleDataset()}
	_, srv := viewServer(t, src)
	doJSON(t, http.MethodPost, srv.URL+"/api/view/reload", "")

	t.Run("no-op outside selection mode", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/view/select",
			`{"edge_key":"acct-1|acct-2"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if body["flow"] != nil {
			t.Errorf("flow = %v outside selection mode, want null", body["flow"])
		}
	})

	t.Run("detail inside selection mode", func(t *testing.T) {
		doJSON(t, http.MethodPut, srv.URL+"/api/view/selection", `{"selection_mode":true}`)

		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/view/select",
			`{"edge_key":"acct-1|acct-2"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		flow, ok := body["flow"].(map[string]any)
		if !ok {
			t.Fatal("no flow detail in selection mode")
		}
		if flow["key"] != "acct-1|acct-2" {
			t.Errorf("detail key = %v, want acct-1|acct-2", flow["key"])
		}
	})

	t.Run("unknown edge", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/view/select",
			`{"edge_key":"no|pe"}`)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("node detail", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/view/select",
			`{"node_id":"acct-1"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if body["node"] == nil {
			t.Error("no node detail")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/view/select", `{}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestFocusHandler(t *testing.T) {
	src := &stubSource{dataset: sampleDataset()}
	coord, srv := viewServer(t, src)
	doJSON(t, http.MethodPost, srv.URL+"/api/view/reload", "")
	fetches := src.calls

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/view/focus", `{"account_id":"acct-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if src.calls != fetches+1 {
		t.Error("focus did not refetch")
	}
	if coord.Filters().FocusAccount != "acct-1" {
		t.Error("focus account not applied")
	}
}

func TestPositions(t *testing.T) {
	src := &stubSource{dataset: sampleDataset()}
	_, srv := viewServer(t, src)
	doJSON(t, http.MethodPost, srv.URL+"/api/view/reload", "")

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/view/positions/acct-1", `{"x":50,"y":60}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("pin status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/view/positions/acct-1", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("release status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/view/positions/ghost", `{"x":1,"y":1}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("pin unknown status = %d, want 404", resp.StatusCode)
	}
}

func TestExportsHandler(t *testing.T) {
	src := &stubSource{dataset: sampleDataset()}
	_, srv := viewServer(t, src)
	doJSON(t, http.MethodPost, srv.URL+"/api/view/reload", "")

	t.Run("svg", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/view/scene.svg")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		defer resp.Body.Close()
		if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
			t.Errorf("content type = %q, want image/svg+xml", ct)
		}
	})

	t.Run("geojson", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/view/flows.geojson")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
		var fc map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if fc["type"] != "FeatureCollection" {
			t.Errorf("type = %v, want FeatureCollection", fc["type"])
		}
	})
}
