package domain

import "github.com/shopspring/decimal"

// SizeMetric selects which node attribute drives visual sizing and collision
// radii in the layout.
type SizeMetric string

const (
	SizeByTxCount SizeMetric = "txcount"
	SizeByAmount  SizeMetric = "amount"
	SizeByRisk    SizeMetric = "risk"
)

// Node represents an account in the flow network with its aggregate metrics.
type Node struct {
	ID            string          `json:"id"`
	Label         string          `json:"label,omitempty"`
	TxCount       int             `json:"transaction_count"`
	TotalSent     decimal.Decimal `json:"total_sent"`
	TotalReceived decimal.Decimal `json:"total_received"`
	AvgRisk       float64         `json:"avg_risk_score"`
	LocationCode  string          `json:"country,omitempty"`
}

// NewNode creates a node with zeroed metrics.
func NewNode(id string) *Node {
	return &Node{
		ID:            id,
		Label:         id,
		TotalSent:     decimal.Zero,
		TotalReceived: decimal.Zero,
	}
}

// Tier returns the node's risk tier based on its average risk score.
func (n *Node) Tier() RiskTier {
	return TierForRisk(n.AvgRisk)
}

// TotalVolume is the sum of money sent and received.
func (n *Node) TotalVolume() decimal.Decimal {
	return n.TotalSent.Add(n.TotalReceived)
}

// MetricValue returns the raw value of the given size metric for this node.
// Amounts are flattened to float64 here because the only consumers are
// geometric (radii, scales).
func (n *Node) MetricValue(metric SizeMetric) float64 {
	switch metric {
	case SizeByAmount:
		return n.TotalVolume().InexactFloat64()
	case SizeByRisk:
		return n.AvgRisk
	default:
		return float64(n.TxCount)
	}
}
