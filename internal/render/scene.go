// Package render turns a dataset plus positions into drawable primitives.
//
// A Scene is the complete description of one rendering surface: edge paths
// with risk styling, node marks, and nothing else. The hosting shell (or the
// SVG/GeoJSON exporters in this package) can paint it without touching domain
// types. Risk tier drives both color and dash pattern so the encoding
// survives color-blind viewing.
package render

import (
	"math"

	"flowscope/internal/config"
	"flowscope/internal/domain"
)

// Target names a rendering surface.
type Target string

const (
	TargetGraph Target = "graph"
	TargetMap   Target = "map"
)

// ParseTarget validates a target string.
func ParseTarget(s string) (Target, bool) {
	switch Target(s) {
	case TargetGraph, TargetMap:
		return Target(s), true
	default:
		return "", false
	}
}

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EdgePath is one drawable flow.
type EdgePath struct {
	Key      string  `json:"key"`
	From     Point   `json:"from"`
	To       Point   `json:"to"`
	SelfLoop bool    `json:"self_loop"`
	// LoopRadius is the radius of the closed loop drawn for self-flows,
	// anchored above the shared endpoint.
	LoopRadius float64         `json:"loop_radius,omitempty"`
	Width      float64         `json:"width"`
	Color      string          `json:"color"`
	Dash       string          `json:"dash,omitempty"`
	Opacity    float64         `json:"opacity"`
	Tier       domain.RiskTier `json:"tier"`
	Selected   bool            `json:"selected"`
}

// PointAt returns the position at parameter t in [0, 1) along the path.
// Straight-line interpolation for normal flows; a circular orbit for
// self-loops so marker dots never collapse onto a single point.
func (p *EdgePath) PointAt(t float64) Point {
	if p.SelfLoop {
		cx, cy := p.From.X, p.From.Y-p.LoopRadius
		angle := 2 * math.Pi * t
		return Point{
			X: cx + p.LoopRadius*math.Sin(angle),
			Y: cy + p.LoopRadius*math.Cos(angle),
		}
	}
	return Point{
		X: p.From.X + (p.To.X-p.From.X)*t,
		Y: p.From.Y + (p.To.Y-p.From.Y)*t,
	}
}

// NodeMark is one drawable node: circle plus label.
type NodeMark struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Radius float64         `json:"radius"`
	Color  string          `json:"color"`
	Tier   domain.RiskTier `json:"tier"`
}

// Scene is everything one surface draws for one dataset generation.
type Scene struct {
	Target     Target     `json:"target"`
	Generation string     `json:"generation"`
	Edges      []EdgePath `json:"edges"`
	Nodes      []NodeMark `json:"nodes"`
}

// Edge returns the path with the given key, or nil.
func (s *Scene) Edge(key string) *EdgePath {
	for i := range s.Edges {
		if s.Edges[i].Key == key {
			return &s.Edges[i]
		}
	}
	return nil
}

// Tier styling. Color and dash pattern always travel together so risk stays
// legible without color.
func colorForTier(tier domain.RiskTier) string {
	switch tier {
	case domain.TierHigh:
		return "#ff5555"
	case domain.TierMedium:
		return "#ffb86c"
	default:
		return "#50fa7b"
	}
}

func dashForTier(tier domain.RiskTier) string {
	switch tier {
	case domain.TierHigh:
		return "" // solid
	case domain.TierMedium:
		return "8,4"
	default:
		return "2,4"
	}
}

// strokeWidth maps an amount to a stroke weight: monotonic square-root ramp
// clamped to the configured [MinStroke, MaxStroke] range.
func strokeWidth(amount float64, cfg config.RenderConfig) float64 {
	if amount < 0 {
		amount = 0
	}
	w := cfg.MinStroke + cfg.StrokeScale*math.Sqrt(amount)
	if w < cfg.MinStroke {
		w = cfg.MinStroke
	}
	if w > cfg.MaxStroke {
		w = cfg.MaxStroke
	}
	return w
}

// edgeStyle applies risk styling and selection emphasis to one flow.
func edgeStyle(fl *domain.Flow, sel *domain.SelectionState, cfg config.RenderConfig) (width, opacity float64, selected bool) {
	width = strokeWidth(fl.Amount.InexactFloat64(), cfg)
	opacity = 1.0
	if sel != nil && sel.Any() {
		if sel.Selected(fl.Key()) {
			selected = true
			width *= 1.5
		} else {
			opacity = cfg.DimOpacity
		}
	}
	return width, opacity, selected
}

// BuildGraphScene renders the topological view from layout positions. Flows
// whose endpoints have no position are dropped, not errored.
func BuildGraphScene(ds *domain.Dataset, positions map[string]domain.NodePosition,
	radius func(id string) float64, sel *domain.SelectionState, cfg config.RenderConfig) *Scene {

	scene := &Scene{Target: TargetGraph, Generation: ds.Generation}

	for _, fl := range ds.Flows {
		from, okF := positions[fl.Source]
		to, okT := positions[fl.Target]
		if !okF || !okT {
			continue
		}
		width, opacity, selected := edgeStyle(fl, sel, cfg)
		tier := fl.Tier()
		path := EdgePath{
			Key:      fl.Key(),
			From:     Point{X: from.X, Y: from.Y},
			To:       Point{X: to.X, Y: to.Y},
			Width:    width,
			Color:    colorForTier(tier),
			Dash:     dashForTier(tier),
			Opacity:  opacity,
			Tier:     tier,
			Selected: selected,
		}
		if fl.SelfLoop() {
			path.SelfLoop = true
			path.LoopRadius = cfg.LoopRadius
		}
		scene.Edges = append(scene.Edges, path)
	}

	for _, n := range ds.Nodes {
		pos, ok := positions[n.ID]
		if !ok {
			continue
		}
		tier := n.Tier()
		scene.Nodes = append(scene.Nodes, NodeMark{
			ID:     n.ID,
			Label:  n.Label,
			X:      pos.X,
			Y:      pos.Y,
			Radius: radius(n.ID),
			Color:  colorForTier(tier),
			Tier:   tier,
		})
	}

	return scene
}

// Project maps a geographic location onto an equirectangular canvas.
func Project(loc domain.Location, width, height float64) Point {
	return Point{
		X: (loc.Longitude + 180) / 360 * width,
		Y: (90 - loc.Latitude) / 180 * height,
	}
}

// BuildMapScene renders the geographic view from resolved locations. A node
// or flow whose location cannot be resolved is omitted; partial coverage is
// expected and non-fatal. Flow endpoints resolve through the endpoint node's
// location code first, then the flow's own bank code.
func BuildMapScene(ds *domain.Dataset, located map[string]domain.Location,
	sel *domain.SelectionState, cfg config.RenderConfig, width, height float64) *Scene {

	scene := &Scene{Target: TargetMap, Generation: ds.Generation}

	nodeCode := make(map[string]string, len(ds.Nodes))
	for _, n := range ds.Nodes {
		nodeCode[n.ID] = normalizeCode(n.LocationCode)
	}

	endpoint := func(nodeID, bankCode string) (domain.Location, bool) {
		if code := nodeCode[nodeID]; code != "" {
			if loc, ok := located[code]; ok {
				return loc, true
			}
		}
		if code := normalizeCode(bankCode); code != "" {
			if loc, ok := located[code]; ok {
				return loc, true
			}
		}
		return domain.Location{}, false
	}

	for _, fl := range ds.Flows {
		fromLoc, okF := endpoint(fl.Source, fl.FromBank)
		toLoc, okT := endpoint(fl.Target, fl.ToBank)
		if !okF || !okT {
			continue
		}
		widthPx, opacity, selected := edgeStyle(fl, sel, cfg)
		tier := fl.Tier()
		path := EdgePath{
			Key:      fl.Key(),
			From:     Project(fromLoc, width, height),
			To:       Project(toLoc, width, height),
			Width:    widthPx,
			Color:    colorForTier(tier),
			Dash:     dashForTier(tier),
			Opacity:  opacity,
			Tier:     tier,
			Selected: selected,
		}
		if fl.SelfLoop() {
			path.SelfLoop = true
			path.LoopRadius = cfg.LoopRadius
		}
		scene.Edges = append(scene.Edges, path)
	}

	for _, n := range ds.Nodes {
		code := nodeCode[n.ID]
		loc, ok := located[code]
		if !ok {
			continue
		}
		p := Project(loc, width, height)
		tier := n.Tier()
		scene.Nodes = append(scene.Nodes, NodeMark{
			ID:     n.ID,
			Label:  n.Label,
			X:      p.X,
			Y:      p.Y,
			Radius: cfg.MapNodeRadius,
			Color:  colorForTier(tier),
			Tier:   tier,
		})
	}

	return scene
}

func normalizeCode(code string) string {
	if !domain.ValidLocationCode(code) {
		return ""
	}
	upper := make([]byte, 2)
	for i := 0; i < 2; i++ {
		c := code[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper[i] = c
	}
	return string(upper)
}
