package interact

import (
	"testing"

	"flowscope/internal/domain"
	"flowscope/internal/service"

	"github.com/shopspring/decimal"
)

func testDataset() *domain.Dataset {
	a := domain.NewNode("A")
	a.AvgRisk = 0.8
	a.LocationCode = "US"
	b := domain.NewNode("B")
	b.AvgRisk = 0.3
	flows := []*domain.Flow{
		{Source: "A", Target: "B", Amount: decimal.NewFromInt(1000), Risk: 0.8, Currency: "USD"},
		{Source: "B", Target: "A", Amount: decimal.NewFromInt(500), Risk: 0.2},
	}
	return domain.NewDataset([]*domain.Node{a, b}, flows)
}

var testPlaces = map[string]domain.Location{
	"US": {Latitude: 40, Longitude: -100, DisplayName: "United States"},
}

func TestClickFlow(t *testing.T) {
	ds := testDataset()

	t.Run("no-op outside selection mode", func(t *testing.T) {
		s := New(service.NewEventBus())
		detail, err := s.ClickFlow(ds, "A|B", testPlaces)
		if err != nil || detail != nil {
			t.Errorf("expected no-op, got %+v, %v", detail, err)
		}
		if s.Selection().Any() {
			t.Error("expected empty selection")
		}
	})

	t.Run("single select replaces", func(t *testing.T) {
		s := New(service.NewEventBus())
		s.SetSelectionMode(true)

		if _, err := s.ClickFlow(ds, "A|B", testPlaces); err != nil {
			t.Fatalf("ClickFlow: %v", err)
		}
		if _, err := s.ClickFlow(ds, "B|A", testPlaces); err != nil {
			t.Fatalf("ClickFlow: %v", err)
		}

		sel := s.Selection()
		if len(sel.Flows) != 1 || !sel.Selected("B|A") {
			t.Errorf("expected selection replaced with B|A, got %v", sel.Flows)
		}
	})

	t.Run("multi select accumulates and toggles", func(t *testing.T) {
		s := New(service.NewEventBus())
		s.SetSelectionMode(true)
		s.SetMultiSelect(true)

		s.ClickFlow(ds, "A|B", testPlaces)
		s.ClickFlow(ds, "B|A", testPlaces)
		if sel := s.Selection(); len(sel.Flows) != 2 {
			t.Fatalf("expected 2 accumulated selections, got %d", len(sel.Flows))
		}

		// Second click on the same edge deselects it.
		s.ClickFlow(ds, "A|B", testPlaces)
		if sel := s.Selection(); sel.Selected("A|B") || !sel.Selected("B|A") {
			t.Errorf("expected A|B toggled off, got %v", sel.Flows)
		}
	})

	t.Run("detail panel content", func(t *testing.T) {
		s := New(service.NewEventBus())
		s.SetSelectionMode(true)

		detail, err := s.ClickFlow(ds, "A|B", testPlaces)
		if err != nil {
			t.Fatalf("ClickFlow: %v", err)
		}
		if detail.Source.ID != "A" || detail.Target.ID != "B" {
			t.Error("expected both endpoints in detail")
		}
		if detail.Amount != "1000" || detail.Tier != domain.TierHigh {
			t.Errorf("unexpected detail %+v", detail)
		}
		if detail.FromPlace != "United States" {
			t.Errorf("expected resolved place name, got %q", detail.FromPlace)
		}
		if detail.ToPlace != "" {
			t.Error("expected no place for unresolved endpoint")
		}
	})

	t.Run("unknown flow", func(t *testing.T) {
		s := New(service.NewEventBus())
		s.SetSelectionMode(true)
		if _, err := s.ClickFlow(ds, "X|Y", testPlaces); err != domain.ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("disabling selection mode clears selection", func(t *testing.T) {
		s := New(service.NewEventBus())
		s.SetSelectionMode(true)
		s.ClickFlow(ds, "A|B", testPlaces)

		s.SetSelectionMode(false)
		if s.Selection().Any() {
			t.Error("expected selection cleared")
		}
	})
}

func TestClickNode(t *testing.T) {
	s := New(service.NewEventBus())
	ds := testDataset()

	detail, err := s.ClickNode(ds, "A", testPlaces)
	if err != nil {
		t.Fatalf("ClickNode: %v", err)
	}
	if detail.Node.ID != "A" || detail.Tier != domain.TierHigh {
		t.Errorf("unexpected detail %+v", detail)
	}
	if detail.Place != "United States" {
		t.Errorf("expected place name, got %q", detail.Place)
	}

	if _, err := s.ClickNode(ds, "ghost", testPlaces); err != domain.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPrune(t *testing.T) {
	s := New(service.NewEventBus())
	s.SetSelectionMode(true)
	s.SetMultiSelect(true)
	ds := testDataset()
	s.ClickFlow(ds, "A|B", testPlaces)
	s.ClickFlow(ds, "B|A", testPlaces)

	// Reload drops B->A.
	a := domain.NewNode("A")
	b := domain.NewNode("B")
	smaller := domain.NewDataset([]*domain.Node{a, b}, []*domain.Flow{
		{Source: "A", Target: "B", Amount: decimal.NewFromInt(1)},
	})
	s.Prune(smaller)

	sel := s.Selection()
	if sel.Selected("B|A") {
		t.Error("expected removed flow pruned from selection")
	}
	if !sel.Selected("A|B") {
		t.Error("expected surviving flow to stay selected")
	}
}

func TestSelectionEvents(t *testing.T) {
	bus := service.NewEventBus()
	ch := make(chan service.Event, 16)
	bus.Subscribe(ch)

	s := New(bus)
	s.SetSelectionMode(true)
	s.ClickFlow(testDataset(), "A|B", testPlaces)

	var types []service.EventType
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}

	hasSelection, hasFocus := false, false
	for _, ty := range types {
		if ty == service.EventSelectionChanged {
			hasSelection = true
		}
		if ty == service.EventEdgeFocused {
			hasFocus = true
		}
	}
	if !hasSelection || !hasFocus {
		t.Errorf("expected selection_changed and edge_focused events, got %v", types)
	}
}
