// Package layout positions the nodes of a flow network on a fixed canvas.
//
// One of three modes is active at a time: a force-directed simulation that
// ticks until its energy decays, or one of two deterministic layouts (radial
// ring, risk-tiered bands). Positions are owned exclusively by the engine;
// other components read them through Positions().
//
// Nodes a user has dragged are pinned: the simulation never repositions them,
// but they keep exerting repulsion, link, and collision forces on their
// unpinned neighbors. Every mode clamps node circles fully inside the canvas.
package layout

import (
	"math"

	"flowscope/internal/config"
	"flowscope/internal/domain"
)

// Mode selects the active layout algorithm.
type Mode string

const (
	ModeForce  Mode = "force"
	ModeRadial Mode = "radial"
	ModeTiered Mode = "tiered"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeForce, ModeRadial, ModeTiered:
		return Mode(s), true
	default:
		return "", false
	}
}

// velocityDamping bleeds momentum between ticks so the simulation settles.
const velocityDamping = 0.6

type simNode struct {
	id     string
	x, y   float64
	vx, vy float64
	radius float64
	pinned bool
}

type simLink struct {
	source, target *simNode
}

// Engine computes and owns node positions.
type Engine struct {
	cfg    config.LayoutConfig
	mode   Mode
	metric domain.SizeMetric

	nodes []*simNode
	index map[string]*simNode
	links []simLink
	tiers map[string]domain.RiskTier

	alpha float64
}

// NewEngine creates an engine in the given mode.
func NewEngine(cfg config.LayoutConfig, mode Mode, metric domain.SizeMetric) *Engine {
	if metric == "" {
		metric = domain.SizeByTxCount
	}
	return &Engine{
		cfg:    cfg,
		mode:   mode,
		metric: metric,
		index:  make(map[string]*simNode),
		tiers:  make(map[string]domain.RiskTier),
	}
}

// Mode returns the active layout mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Alpha returns the simulation's remaining energy. Zero in deterministic
// modes or once the force simulation has gone idle.
func (e *Engine) Alpha() float64 {
	return e.alpha
}

// SetGraph replaces the node/edge structure. Positions and pins of nodes
// that survive the swap are preserved so a filter reapplication does not
// scramble the picture; new nodes start near the canvas center. Any
// structural change resets alpha and resumes ticking in force mode.
func (e *Engine) SetGraph(ds *domain.Dataset) {
	old := e.index
	e.index = make(map[string]*simNode, len(ds.Nodes))
	e.nodes = e.nodes[:0]
	e.tiers = make(map[string]domain.RiskTier, len(ds.Nodes))

	maxMetric := 0.0
	for _, n := range ds.Nodes {
		if v := n.MetricValue(e.metric); v > maxMetric {
			maxMetric = v
		}
	}

	cx, cy := e.cfg.Width/2, e.cfg.Height/2
	for i, n := range ds.Nodes {
		sn, existed := old[n.ID]
		if !existed {
			// Deterministic fan around the center keeps a fresh simulation
			// from starting with every node on the same point.
			angle := float64(i) * 2.399963 // golden angle
			sn = &simNode{
				id: n.ID,
				x:  cx + 10*math.Cos(angle)*float64(1+i%7),
				y:  cy + 10*math.Sin(angle)*float64(1+i%7),
			}
		}
		sn.radius = e.radiusFor(n, maxMetric)
		e.nodes = append(e.nodes, sn)
		e.index[n.ID] = sn
		e.tiers[n.ID] = n.Tier()
	}

	e.links = e.links[:0]
	for _, fl := range ds.Flows {
		if fl.SelfLoop() {
			continue
		}
		src, tgt := e.index[fl.Source], e.index[fl.Target]
		if src == nil || tgt == nil {
			continue
		}
		e.links = append(e.links, simLink{source: src, target: tgt})
	}

	e.Restart()
}

// SetTuning replaces the physics and canvas constants. Node radii derive
// from the dataset and are recomputed on the next SetGraph.
func (e *Engine) SetTuning(cfg config.LayoutConfig) {
	e.cfg = cfg
	e.clampAll()
}

// SetMode switches the layout algorithm and recomputes.
func (e *Engine) SetMode(mode Mode) {
	e.mode = mode
	e.Restart()
}

// SetSizeMetric changes the attribute driving node radii. Takes effect on
// the next SetGraph.
func (e *Engine) SetSizeMetric(metric domain.SizeMetric) {
	e.metric = metric
}

// Restart resets the simulation energy. Deterministic modes are computed
// immediately; force mode resumes ticking.
func (e *Engine) Restart() {
	switch e.mode {
	case ModeRadial:
		e.alpha = 0
		e.layoutRadial()
	case ModeTiered:
		e.alpha = 0
		e.layoutTiered()
	default:
		e.alpha = 1
	}
	e.clampAll()
}

// Tick advances the force simulation by one step. Returns false when the
// engine is idle (deterministic mode, or energy below the configured
// minimum) so the per-frame driver can stop scheduling.
func (e *Engine) Tick() bool {
	if e.mode != ModeForce || e.alpha < e.cfg.AlphaMin {
		return false
	}
	e.forceTick()
	e.clampAll()
	e.alpha *= 1 - e.cfg.AlphaDecay
	return e.alpha >= e.cfg.AlphaMin
}

// Settle runs the force simulation to quiescence. Deterministic modes are
// already settled.
func (e *Engine) Settle() {
	for e.Tick() {
	}
}

// Pin fixes a node at the given point (a user drag). The node keeps exerting
// forces but is never repositioned until unpinned.
func (e *Engine) Pin(id string, x, y float64) bool {
	sn, ok := e.index[id]
	if !ok {
		return false
	}
	sn.x, sn.y = x, y
	sn.vx, sn.vy = 0, 0
	sn.pinned = true
	e.clamp(sn)
	return true
}

// Unpin releases a pinned node back to the simulation.
func (e *Engine) Unpin(id string) bool {
	sn, ok := e.index[id]
	if !ok {
		return false
	}
	sn.pinned = false
	return true
}

// Positions returns a copy of the current layout state.
func (e *Engine) Positions() map[string]domain.NodePosition {
	out := make(map[string]domain.NodePosition, len(e.nodes))
	for _, sn := range e.nodes {
		out[sn.id] = domain.NodePosition{NodeID: sn.id, X: sn.x, Y: sn.y, Pinned: sn.pinned}
	}
	return out
}

// Radius returns the collision/display radius computed for a node.
func (e *Engine) Radius(id string) float64 {
	if sn, ok := e.index[id]; ok {
		return sn.radius
	}
	return e.cfg.MinNodeRadius
}

// radiusFor scales a node's metric into [MinNodeRadius, MaxNodeRadius] with
// a square-root ramp so large outliers do not dwarf everything else.
func (e *Engine) radiusFor(n *domain.Node, maxMetric float64) float64 {
	if maxMetric <= 0 {
		return e.cfg.MinNodeRadius
	}
	t := math.Sqrt(n.MetricValue(e.metric) / maxMetric)
	return e.cfg.MinNodeRadius + t*(e.cfg.MaxNodeRadius-e.cfg.MinNodeRadius)
}

func (e *Engine) clampAll() {
	for _, sn := range e.nodes {
		e.clamp(sn)
	}
}

// clamp keeps the node's full circle inside the drawable area.
func (e *Engine) clamp(sn *simNode) {
	sn.x = math.Max(sn.radius, math.Min(e.cfg.Width-sn.radius, sn.x))
	sn.y = math.Max(sn.radius, math.Min(e.cfg.Height-sn.radius, sn.y))
}
