package layout

import (
	"math"
	"sort"

	"flowscope/internal/domain"
)

// layoutRadial places nodes evenly around a circle of fixed radius centered
// on the canvas. No iterative settling. Pinned nodes stay where the user put
// them.
func (e *Engine) layoutRadial() {
	free := e.freeNodes()
	if len(free) == 0 {
		return
	}

	cx, cy := e.cfg.Width/2, e.cfg.Height/2
	radius := e.cfg.RadialRadius
	if max := math.Min(cx, cy) - e.cfg.MaxNodeRadius; radius > max {
		radius = max
	}

	angleStep := 2 * math.Pi / float64(len(free))
	for i, sn := range free {
		angle := float64(i) * angleStep
		sn.x = cx + radius*math.Cos(angle)
		sn.y = cy + radius*math.Sin(angle)
		sn.vx, sn.vy = 0, 0
	}
}

// tierRow maps a risk tier to its horizontal band: high on top, low at the
// bottom.
func tierRow(tier domain.RiskTier) int {
	switch tier {
	case domain.TierHigh:
		return 0
	case domain.TierMedium:
		return 1
	default:
		return 2
	}
}

// layoutTiered buckets nodes into three risk bands (high >= 0.7,
// medium [0.4, 0.7), low < 0.4) and spaces them evenly within each band.
func (e *Engine) layoutTiered() {
	if len(e.nodes) == 0 {
		return
	}

	bands := make([][]*simNode, 3)
	for _, sn := range e.nodes {
		row := tierRow(e.tiers[sn.id])
		bands[row] = append(bands[row], sn)
	}

	// Band centerlines at 1/6, 3/6, 5/6 of the canvas height.
	for row, band := range bands {
		if len(band) == 0 {
			continue
		}
		sort.Slice(band, func(i, j int) bool { return band[i].id < band[j].id })

		y := e.cfg.Height * float64(2*row+1) / 6
		step := e.cfg.Width / float64(len(band)+1)
		for i, sn := range band {
			if sn.pinned {
				continue
			}
			sn.x = step * float64(i+1)
			sn.y = y
			sn.vx, sn.vy = 0, 0
		}
	}
}

// freeNodes returns the unpinned nodes in insertion order.
func (e *Engine) freeNodes() []*simNode {
	out := make([]*simNode, 0, len(e.nodes))
	for _, sn := range e.nodes {
		if !sn.pinned {
			out = append(out, sn)
		}
	}
	return out
}
