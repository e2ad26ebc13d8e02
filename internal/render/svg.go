package render

import (
	"fmt"
	"io"

	svg "github.com/ajstarks/svgo"
)

// WriteSVG writes a static snapshot of a scene. Dots can be included to
// capture the animation state of the frame the snapshot was taken on.
func WriteSVG(w io.Writer, scene *Scene, width, height int, dots []DotPosition) {
	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:#1e1e2e")

	for i := range scene.Edges {
		e := &scene.Edges[i]
		style := fmt.Sprintf("stroke:%s;stroke-width:%.2f;stroke-opacity:%.2f;fill:none",
			e.Color, e.Width, e.Opacity)
		if e.Dash != "" {
			style += ";stroke-dasharray:" + e.Dash
		}
		if e.SelfLoop {
			// Closed loop anchored above the shared point, never a
			// zero-length segment.
			canvas.Circle(int(e.From.X), int(e.From.Y-e.LoopRadius), int(e.LoopRadius), style)
			continue
		}
		canvas.Line(int(e.From.X), int(e.From.Y), int(e.To.X), int(e.To.Y), style)
	}

	for _, n := range scene.Nodes {
		canvas.Circle(int(n.X), int(n.Y), int(n.Radius),
			fmt.Sprintf("fill:%s;fill-opacity:0.85;stroke:#f8f8f2;stroke-width:1", n.Color))
		canvas.Text(int(n.X), int(n.Y+n.Radius+12), n.Label,
			"fill:#f8f8f2;font-size:10px;text-anchor:middle;font-family:sans-serif")
	}

	for _, d := range dots {
		canvas.Circle(int(d.X), int(d.Y), 2, fmt.Sprintf("fill:%s", d.Color))
	}

	canvas.End()
}
