package domain

// SelectionState is the set of selected flow keys plus the two independent
// interaction mode toggles.
type SelectionState struct {
	Flows         map[string]bool `json:"flows"`
	SelectionMode bool            `json:"selection_mode"`
	MultiSelect   bool            `json:"multi_select"`
}

// NewSelectionState returns an empty selection with both modes off.
func NewSelectionState() *SelectionState {
	return &SelectionState{Flows: make(map[string]bool)}
}

// Selected reports whether the flow key is in the selection.
func (s *SelectionState) Selected(key string) bool {
	return s.Flows[key]
}

// Any reports whether anything is selected.
func (s *SelectionState) Any() bool {
	return len(s.Flows) > 0
}

// Clone returns an independent copy.
func (s *SelectionState) Clone() *SelectionState {
	c := &SelectionState{
		Flows:         make(map[string]bool, len(s.Flows)),
		SelectionMode: s.SelectionMode,
		MultiSelect:   s.MultiSelect,
	}
	for k, v := range s.Flows {
		c.Flows[k] = v
	}
	return c
}
