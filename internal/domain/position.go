package domain

// NodePosition is the position and pinning state of a node on the graph
// canvas. Pinned positions are set when a user drags a node and persist
// across simulation ticks until explicitly cleared.
type NodePosition struct {
	NodeID string  `json:"node_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Pinned bool    `json:"pinned"`
}

// NewNodePosition creates an unpinned position.
func NewNodePosition(nodeID string, x, y float64) *NodePosition {
	return &NodePosition{NodeID: nodeID, X: x, Y: y}
}
