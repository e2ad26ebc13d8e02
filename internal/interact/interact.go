// Package interact owns selection state and click handling: two independent
// mode toggles (selection mode, multi-select), edge and node inspection, and
// the focus action that narrows the working dataset to one account's
// neighborhood.
package interact

import (
	"flowscope/internal/domain"
	"flowscope/internal/service"
)

// FlowDetail describes a clicked edge for the detail panel.
type FlowDetail struct {
	Key        string          `json:"key"`
	Source     *domain.Node    `json:"source"`
	Target     *domain.Node    `json:"target"`
	Amount     string          `json:"amount"`
	Risk       float64         `json:"risk_score"`
	Tier       domain.RiskTier `json:"tier"`
	Currency   string          `json:"currency,omitempty"`
	FromPlace  string          `json:"from_place,omitempty"`
	ToPlace    string          `json:"to_place,omitempty"`
	SelfFlow   bool            `json:"self_flow"`
	Selected   bool            `json:"selected"`
	Selections int             `json:"selections"`
}

// NodeDetail describes a clicked node for the detail panel.
type NodeDetail struct {
	Node  *domain.Node    `json:"node"`
	Tier  domain.RiskTier `json:"tier"`
	Place string          `json:"place,omitempty"`
}

// State is the interaction layer. Not safe for concurrent use on its own;
// the view coordinator serializes access.
type State struct {
	selection *domain.SelectionState
	events    *service.EventBus
}

// New creates an interaction state with empty selection and both modes off.
func New(events *service.EventBus) *State {
	return &State{
		selection: domain.NewSelectionState(),
		events:    events,
	}
}

// Selection returns a copy of the current selection state.
func (s *State) Selection() *domain.SelectionState {
	return s.selection.Clone()
}

// SetSelectionMode toggles click-to-inspect. Turning it off clears the
// selection.
func (s *State) SetSelectionMode(on bool) {
	s.selection.SelectionMode = on
	if !on {
		s.clear()
	}
}

// SetMultiSelect toggles selection accumulation.
func (s *State) SetMultiSelect(on bool) {
	s.selection.MultiSelect = on
}

// ClickFlow handles a click on an edge. Outside selection mode it is a
// no-op. In multi-select the edge toggles in and out of the accumulated set;
// otherwise it replaces the selection.
func (s *State) ClickFlow(ds *domain.Dataset, key string, places map[string]domain.Location) (*FlowDetail, error) {
	if !s.selection.SelectionMode {
		return nil, nil
	}
	fl := ds.Flow(key)
	if fl == nil {
		return nil, domain.ErrNotFound
	}

	if s.selection.MultiSelect {
		if s.selection.Flows[key] {
			delete(s.selection.Flows, key)
		} else {
			s.selection.Flows[key] = true
		}
	} else {
		s.selection.Flows = map[string]bool{key: true}
	}
	s.publishSelection()

	detail := &FlowDetail{
		Key:        key,
		Source:     ds.Node(fl.Source),
		Target:     ds.Node(fl.Target),
		Amount:     fl.Amount.String(),
		Risk:       fl.Risk,
		Tier:       fl.Tier(),
		Currency:   fl.Currency,
		SelfFlow:   fl.SelfLoop(),
		Selected:   s.selection.Flows[key],
		Selections: len(s.selection.Flows),
	}
	if detail.Source != nil {
		if loc, ok := places[normalized(detail.Source.LocationCode)]; ok {
			detail.FromPlace = loc.DisplayName
		}
	}
	if detail.Target != nil {
		if loc, ok := places[normalized(detail.Target.LocationCode)]; ok {
			detail.ToPlace = loc.DisplayName
		}
	}

	s.events.Publish(service.Event{Type: service.EventEdgeFocused, Payload: detail})
	return detail, nil
}

// ClickNode handles a click on a node and returns its detail panel payload.
// The caller decides whether to invoke the focus action (a reload with a
// focus filter); this layer only reports the click.
func (s *State) ClickNode(ds *domain.Dataset, id string, places map[string]domain.Location) (*NodeDetail, error) {
	n := ds.Node(id)
	if n == nil {
		return nil, domain.ErrNotFound
	}

	detail := &NodeDetail{Node: n, Tier: n.Tier()}
	if loc, ok := places[normalized(n.LocationCode)]; ok {
		detail.Place = loc.DisplayName
	}

	s.events.Publish(service.Event{Type: service.EventNodeFocused, Payload: detail})
	return detail, nil
}

// ClearSelection empties the selection set, keeping the mode toggles.
func (s *State) ClearSelection() {
	s.clear()
}

// Prune drops selected keys that no longer exist in the dataset. Called
// after a reload so the selection never references removed flows.
func (s *State) Prune(ds *domain.Dataset) {
	changed := false
	for key := range s.selection.Flows {
		if ds.Flow(key) == nil {
			delete(s.selection.Flows, key)
			changed = true
		}
	}
	if changed {
		s.publishSelection()
	}
}

func (s *State) clear() {
	if len(s.selection.Flows) == 0 {
		return
	}
	s.selection.Flows = make(map[string]bool)
	s.publishSelection()
}

func (s *State) publishSelection() {
	s.events.Publish(service.Event{
		Type:    service.EventSelectionChanged,
		Payload: s.Selection(),
	})
}

func normalized(code string) string {
	if !domain.ValidLocationCode(code) {
		return ""
	}
	b := []byte(code)
	for i := range b {
		if b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}
