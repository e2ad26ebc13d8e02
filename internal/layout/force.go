package layout

import "math"

// forceTick applies one step of the force simulation: pairwise repulsion,
// link attraction toward the configured rest distance, a centering pull, and
// collision separation. Pinned nodes accumulate no velocity and never move.
func (e *Engine) forceTick() {
	e.applyRepulsion()
	e.applyLinks()
	e.applyCentering()

	for _, sn := range e.nodes {
		if sn.pinned {
			sn.vx, sn.vy = 0, 0
			continue
		}
		sn.vx *= velocityDamping
		sn.vy *= velocityDamping
		sn.x += sn.vx
		sn.y += sn.vy
	}

	e.applyCollision()
}

func (e *Engine) applyRepulsion() {
	for i := 0; i < len(e.nodes); i++ {
		for j := i + 1; j < len(e.nodes); j++ {
			a, b := e.nodes[i], e.nodes[j]
			dx, dy := b.x-a.x, b.y-a.y
			d2 := dx*dx + dy*dy
			if d2 < 1 {
				// Coincident nodes get a tiny deterministic nudge so the
				// force has a direction to act along.
				dx, dy, d2 = 0.5, 0.5, 0.5
			}
			f := e.cfg.RepelForce * e.alpha / d2
			d := math.Sqrt(d2)
			fx, fy := f*dx/d, f*dy/d
			a.vx -= fx
			a.vy -= fy
			b.vx += fx
			b.vy += fy
		}
	}
}

func (e *Engine) applyLinks() {
	for _, l := range e.links {
		dx, dy := l.target.x-l.source.x, l.target.y-l.source.y
		d := math.Hypot(dx, dy)
		if d < 1e-6 {
			continue
		}
		// Spring toward the rest length; overshoot pulls in, undershoot
		// pushes out.
		f := e.cfg.LinkStrength * e.alpha * (d - e.cfg.LinkDistance) / d
		fx, fy := f*dx, f*dy
		l.source.vx += fx
		l.source.vy += fy
		l.target.vx -= fx
		l.target.vy -= fy
	}
}

func (e *Engine) applyCentering() {
	cx, cy := e.cfg.Width/2, e.cfg.Height/2
	for _, sn := range e.nodes {
		sn.vx += (cx - sn.x) * e.cfg.CenterStrength * e.alpha
		sn.vy += (cy - sn.y) * e.cfg.CenterStrength * e.alpha
	}
}

// applyCollision separates overlapping circles positionally. A pinned node
// never moves; its whole share of the correction lands on the other node.
func (e *Engine) applyCollision() {
	for i := 0; i < len(e.nodes); i++ {
		for j := i + 1; j < len(e.nodes); j++ {
			a, b := e.nodes[i], e.nodes[j]
			minDist := a.radius + b.radius + e.cfg.CollisionPadding
			dx, dy := b.x-a.x, b.y-a.y
			d := math.Hypot(dx, dy)
			if d >= minDist {
				continue
			}
			if d < 1e-6 {
				dx, dy, d = minDist, 0, minDist
			}
			overlap := (minDist - d) / d
			switch {
			case a.pinned && b.pinned:
				// Both held by the user; leave them where they were put.
			case a.pinned:
				b.x += dx * overlap
				b.y += dy * overlap
			case b.pinned:
				a.x -= dx * overlap
				a.y -= dy * overlap
			default:
				a.x -= dx * overlap / 2
				a.y -= dy * overlap / 2
				b.x += dx * overlap / 2
				b.y += dy * overlap / 2
			}
		}
	}
}
