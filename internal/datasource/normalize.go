package datasource

import (
	"encoding/json"
	"fmt"
	"time"

	"flowscope/internal/domain"

	"github.com/shopspring/decimal"
)

// rawNode tolerates the loose node shape the upstream service emits.
type rawNode struct {
	ID            string          `json:"id"`
	Label         string          `json:"label"`
	TxCount       int             `json:"transaction_count"`
	TotalSent     decimal.Decimal `json:"total_sent"`
	TotalReceived decimal.Decimal `json:"total_received"`
	AvgRisk       float64         `json:"avg_risk_score"`
	Country       string          `json:"country"`
}

// rawFlow tolerates the loose edge shape: timestamps may lack a timezone and
// risk may run out of range.
type rawFlow struct {
	Source        string          `json:"source"`
	Target        string          `json:"target"`
	Amount        decimal.Decimal `json:"amount"`
	Risk          float64         `json:"risk_score"`
	TransactionID string          `json:"transaction_id"`
	Currency      string          `json:"currency"`
	Timestamp     string          `json:"timestamp"`
	FromBank      string          `json:"from_bank"`
	ToBank        string          `json:"to_bank"`
}

type rawPayload struct {
	Nodes    json.RawMessage  `json:"nodes"`
	Edges    json.RawMessage  `json:"edges"`
	Links    json.RawMessage  `json:"links"`
	Patterns []domain.Pattern `json:"patterns"`
}

// timestampLayouts covers the formats seen from the upstream service; its
// serializer emits ISO timestamps without a timezone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Normalize converts a raw network-data payload into a typed Dataset. It
// accepts either `edges` or `links` as the flow array key. A payload missing
// the nodes array, or missing both flow keys, is ErrMalformedDataset. Flows
// referencing unknown nodes are dropped and risk scores are clamped to the
// unit interval; both happen inside domain.NewDataset.
func Normalize(body []byte) (*domain.Dataset, error) {
	var raw rawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDataset, err)
	}

	if raw.Nodes == nil {
		return nil, domain.ErrMalformedDataset
	}
	flowsRaw := raw.Edges
	if flowsRaw == nil {
		flowsRaw = raw.Links
	}
	if flowsRaw == nil {
		return nil, domain.ErrMalformedDataset
	}

	var rawNodes []rawNode
	if err := json.Unmarshal(raw.Nodes, &rawNodes); err != nil {
		return nil, fmt.Errorf("%w: nodes: %v", domain.ErrMalformedDataset, err)
	}
	var rawFlows []rawFlow
	if err := json.Unmarshal(flowsRaw, &rawFlows); err != nil {
		return nil, fmt.Errorf("%w: edges: %v", domain.ErrMalformedDataset, err)
	}

	nodes := make([]*domain.Node, 0, len(rawNodes))
	for _, rn := range rawNodes {
		if rn.ID == "" {
			continue
		}
		n := domain.NewNode(rn.ID)
		if rn.Label != "" {
			n.Label = rn.Label
		}
		n.TxCount = rn.TxCount
		n.TotalSent = rn.TotalSent
		n.TotalReceived = rn.TotalReceived
		n.AvgRisk = domain.ClampRisk(rn.AvgRisk)
		n.LocationCode = rn.Country
		nodes = append(nodes, n)
	}

	flows := make([]*domain.Flow, 0, len(rawFlows))
	for _, rf := range rawFlows {
		if rf.Source == "" || rf.Target == "" {
			continue
		}
		if rf.Amount.IsNegative() {
			continue
		}
		flows = append(flows, &domain.Flow{
			Source:        rf.Source,
			Target:        rf.Target,
			Amount:        rf.Amount,
			Risk:          rf.Risk,
			TransactionID: rf.TransactionID,
			Currency:      rf.Currency,
			Timestamp:     parseTimestamp(rf.Timestamp),
			FromBank:      rf.FromBank,
			ToBank:        rf.ToBank,
		})
	}

	ds := domain.NewDataset(nodes, flows)
	ds.Patterns = raw.Patterns
	return ds, nil
}
