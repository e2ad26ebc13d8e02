package render

import (
	"log/slog"
	"sort"

	"flowscope/internal/config"
)

// DotPosition is one marker dot materialized for the current frame.
type DotPosition struct {
	EdgeKey string  `json:"edge_key"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Color   string  `json:"color"`
}

// dotLoop is the animation state for one edge key: a fixed number of marker
// dots traversing the path on a continuous wrap-around loop.
type dotLoop struct {
	path EdgePath
	ts   []float64
}

// Animator runs the marker-dot animation loops. It has no timer of its own:
// the host calls Step once per frame with the elapsed time, which keeps the
// animation deterministic under test and lets the host stop scheduling
// whenever the view goes inactive.
type Animator struct {
	cfg   config.RenderConfig
	loops map[string]*dotLoop
	log   *slog.Logger

	// OnDot, when set, is invoked for every materialized dot during Step.
	// A panic inside the callback is recovered and logged; the animation
	// loop itself must survive a bad frame.
	OnDot func(DotPosition)
}

// NewAnimator creates an animator with no active loops.
func NewAnimator(cfg config.RenderConfig, logger *slog.Logger) *Animator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Animator{
		cfg:   cfg,
		loops: make(map[string]*dotLoop),
		log:   logger,
	}
}

// Reconcile aligns the active loops with a scene: edges new to the scene get
// a loop with evenly staggered dots, edges that vanished have their loop
// stopped and dots removed. Loops for surviving edges keep their phase so a
// reload does not visibly reset the animation.
func (a *Animator) Reconcile(scene *Scene) {
	present := make(map[string]bool, len(scene.Edges))
	for _, e := range scene.Edges {
		present[e.Key] = true
		if l, ok := a.loops[e.Key]; ok {
			// Geometry or styling may have changed; keep the phase.
			l.path = e
			continue
		}
		ts := make([]float64, a.cfg.DotsPerEdge)
		for i := range ts {
			ts[i] = float64(i) / float64(a.cfg.DotsPerEdge)
		}
		a.loops[e.Key] = &dotLoop{path: e, ts: ts}
	}

	for key := range a.loops {
		if !present[key] {
			delete(a.loops, key)
		}
	}
}

// SetTuning replaces speed and dot-count settings. Loops whose dot count
// changed are restaggered; the rest keep their phase.
func (a *Animator) SetTuning(cfg config.RenderConfig) {
	a.cfg = cfg
	for _, l := range a.loops {
		if len(l.ts) == cfg.DotsPerEdge {
			continue
		}
		ts := make([]float64, cfg.DotsPerEdge)
		for i := range ts {
			ts[i] = float64(i) / float64(cfg.DotsPerEdge)
		}
		l.ts = ts
	}
}

// Stop cancels every active loop.
func (a *Animator) Stop() {
	a.loops = make(map[string]*dotLoop)
}

// ActiveKeys returns the edge keys with a running loop, sorted.
func (a *Animator) ActiveKeys() []string {
	keys := make([]string, 0, len(a.loops))
	for k := range a.loops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Step advances every dot by speed*dt, wrapping at the end of the path, and
// invokes OnDot per dot. Must be called from the same goroutine that owns
// the coordinator; the animator does no locking of its own.
func (a *Animator) Step(dt float64) {
	advance := a.cfg.DotSpeed * dt
	for _, l := range a.loops {
		for i := range l.ts {
			l.ts[i] += advance
			for l.ts[i] >= 1 {
				l.ts[i] -= 1
			}
			if a.OnDot != nil {
				a.emit(l, i)
			}
		}
	}
}

// Dots materializes the current frame's dot positions, sorted by edge key.
func (a *Animator) Dots() []DotPosition {
	out := make([]DotPosition, 0, len(a.loops)*a.cfg.DotsPerEdge)
	for _, key := range a.ActiveKeys() {
		l := a.loops[key]
		for _, t := range l.ts {
			p := l.path.PointAt(t)
			out = append(out, DotPosition{
				EdgeKey: key,
				X:       p.X,
				Y:       p.Y,
				Color:   l.path.Color,
			})
		}
	}
	return out
}

// emit calls OnDot with panic containment: a broken frame callback is logged
// and skipped, never allowed to kill the scheduling loop.
func (a *Animator) emit(l *dotLoop, i int) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("animation frame callback panicked",
				"edge", l.path.Key, "panic", r)
		}
	}()
	p := l.path.PointAt(l.ts[i])
	a.OnDot(DotPosition{EdgeKey: l.path.Key, X: p.X, Y: p.Y, Color: l.path.Color})
}
