package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stats summarizes a dataset for the dashboard's counter panels.
type Stats struct {
	Nodes        int `json:"nodes"`
	Edges        int `json:"edges"`
	Transactions int `json:"transactions"`
	HighRisk     int `json:"high_risk"`
}

// Pattern is an informational pattern-analysis result. The engine only
// passes these through to the hosting shell.
type Pattern struct {
	Type        string   `json:"type"`
	Severity    RiskTier `json:"severity"`
	Description string   `json:"description"`
	Accounts    []string `json:"accounts,omitempty"`
}

// Dataset is one immutable snapshot of the flow network. A reload replaces
// the whole snapshot; Generation identifies it so late async results against
// an older snapshot can be discarded.
type Dataset struct {
	Generation string    `json:"generation"`
	Nodes      []*Node   `json:"nodes"`
	Flows      []*Flow   `json:"edges"`
	Stats      Stats     `json:"stats"`
	Patterns   []Pattern `json:"patterns,omitempty"`
}

// NewDataset builds a snapshot from nodes and flows, dropping flows whose
// endpoints are not in the node set and recomputing stats.
func NewDataset(nodes []*Node, flows []*Flow) *Dataset {
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	kept := make([]*Flow, 0, len(flows))
	for _, fl := range flows {
		if byID[fl.Source] == nil || byID[fl.Target] == nil {
			continue
		}
		fl.Risk = ClampRisk(fl.Risk)
		kept = append(kept, fl)
	}

	ds := &Dataset{
		Generation: uuid.NewString(),
		Nodes:      nodes,
		Flows:      kept,
	}
	ds.Stats = ds.computeStats()
	return ds
}

// Node returns the node with the given id, or nil.
func (d *Dataset) Node(id string) *Node {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Flow returns the flow with the given key, or nil.
func (d *Dataset) Flow(key string) *Flow {
	for _, fl := range d.Flows {
		if fl.Key() == key {
			return fl
		}
	}
	return nil
}

// Filtered returns a new snapshot (with a fresh generation) containing only
// the flows that match the client-side filters and the nodes those flows
// touch. The receiver is not modified, so filters can be re-applied against
// the same fetched dataset any number of times.
func (d *Dataset) Filtered(f Filters, now time.Time) *Dataset {
	flows := make([]*Flow, 0, len(d.Flows))
	touched := make(map[string]bool)
	for _, fl := range d.Flows {
		if !f.MatchFlow(fl, now) {
			continue
		}
		flows = append(flows, fl)
		touched[fl.Source] = true
		touched[fl.Target] = true
	}

	nodes := make([]*Node, 0, len(touched))
	for _, n := range d.Nodes {
		if touched[n.ID] {
			nodes = append(nodes, n)
		}
	}
	return NewDataset(nodes, flows)
}

func (d *Dataset) computeStats() Stats {
	s := Stats{
		Nodes:        len(d.Nodes),
		Edges:        len(d.Flows),
		Transactions: len(d.Flows),
	}
	for _, n := range d.Nodes {
		if n.Tier() == TierHigh {
			s.HighRisk++
		}
	}
	return s
}
