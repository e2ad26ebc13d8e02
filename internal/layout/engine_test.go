package layout

import (
	"math"
	"testing"

	"flowscope/internal/config"
	"flowscope/internal/domain"

	"github.com/shopspring/decimal"
)

func testLayoutConfig() config.LayoutConfig {
	return config.DefaultConfig().Layout
}

func makeDataset(risks map[string]float64, flows ...[2]string) *domain.Dataset {
	nodes := make([]*domain.Node, 0, len(risks))
	for id, risk := range risks {
		n := domain.NewNode(id)
		n.AvgRisk = risk
		n.TxCount = 5
		nodes = append(nodes, n)
	}
	fls := make([]*domain.Flow, 0, len(flows))
	for _, f := range flows {
		fls = append(fls, &domain.Flow{
			Source: f[0], Target: f[1],
			Amount: decimal.NewFromInt(1000), Risk: 0.5,
		})
	}
	return domain.NewDataset(nodes, fls)
}

func TestTieredLayout(t *testing.T) {
	// Risk scores 0.8, 0.5 and 0.1 land in three distinct horizontal
	// bands, high on top.
	e := NewEngine(testLayoutConfig(), ModeTiered, domain.SizeByTxCount)
	e.SetGraph(makeDataset(
		map[string]float64{"A": 0.8, "B": 0.5, "C": 0.1},
		[2]string{"A", "B"}, [2]string{"B", "C"},
	))

	pos := e.Positions()
	if len(pos) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(pos))
	}

	ys := map[string]float64{"A": pos["A"].Y, "B": pos["B"].Y, "C": pos["C"].Y}
	if !(ys["A"] < ys["B"] && ys["B"] < ys["C"]) {
		t.Errorf("expected A above B above C, got %v", ys)
	}
	if ys["A"] == ys["B"] || ys["B"] == ys["C"] {
		t.Error("expected three distinct y coordinates")
	}
}

func TestTieredBandSpacing(t *testing.T) {
	e := NewEngine(testLayoutConfig(), ModeTiered, domain.SizeByTxCount)
	e.SetGraph(makeDataset(map[string]float64{"a": 0.9, "b": 0.8, "c": 0.75}))

	pos := e.Positions()
	// All in the high band: same y, distinct evenly spaced x.
	if pos["a"].Y != pos["b"].Y || pos["b"].Y != pos["c"].Y {
		t.Error("expected same band y for all high-risk nodes")
	}
	xs := []float64{pos["a"].X, pos["b"].X, pos["c"].X}
	if xs[0] == xs[1] || xs[1] == xs[2] {
		t.Errorf("expected distinct x positions, got %v", xs)
	}
}

func TestRadialLayout(t *testing.T) {
	cfg := testLayoutConfig()
	e := NewEngine(cfg, ModeRadial, domain.SizeByTxCount)
	e.SetGraph(makeDataset(map[string]float64{"a": 0.1, "b": 0.2, "c": 0.3, "d": 0.4}))

	pos := e.Positions()
	cx, cy := cfg.Width/2, cfg.Height/2

	var radii []float64
	for _, p := range pos {
		radii = append(radii, math.Hypot(p.X-cx, p.Y-cy))
	}
	for _, r := range radii[1:] {
		if math.Abs(r-radii[0]) > 1e-6 {
			t.Fatalf("expected all nodes equidistant from center, got %v", radii)
		}
	}
	if e.Alpha() != 0 {
		t.Error("radial layout must not leave the simulation ticking")
	}
}

func TestForceSimulation(t *testing.T) {
	t.Run("alpha decays to idle", func(t *testing.T) {
		e := NewEngine(testLayoutConfig(), ModeForce, domain.SizeByTxCount)
		e.SetGraph(makeDataset(
			map[string]float64{"a": 0.5, "b": 0.5, "c": 0.5},
			[2]string{"a", "b"},
		))

		if e.Alpha() != 1 {
			t.Fatalf("expected alpha reset to 1 on SetGraph, got %v", e.Alpha())
		}

		ticks := 0
		for e.Tick() {
			ticks++
			if ticks > 10000 {
				t.Fatal("simulation never settled")
			}
		}
		if e.Alpha() >= e.cfg.AlphaMin {
			t.Errorf("expected idle alpha below %v, got %v", e.cfg.AlphaMin, e.Alpha())
		}
		// Idle engine refuses further ticks.
		if e.Tick() {
			t.Error("expected idle engine to return false from Tick")
		}
	})

	t.Run("restart resumes ticking", func(t *testing.T) {
		e := NewEngine(testLayoutConfig(), ModeForce, domain.SizeByTxCount)
		e.SetGraph(makeDataset(map[string]float64{"a": 0.5, "b": 0.5}))
		e.Settle()

		e.Restart()
		if e.Alpha() != 1 {
			t.Errorf("expected alpha 1 after restart, got %v", e.Alpha())
		}
		if !e.Tick() {
			t.Error("expected restarted engine to tick")
		}
	})

	t.Run("repulsion separates nodes", func(t *testing.T) {
		e := NewEngine(testLayoutConfig(), ModeForce, domain.SizeByTxCount)
		e.SetGraph(makeDataset(map[string]float64{"a": 0.5, "b": 0.5}))
		e.Settle()

		pos := e.Positions()
		d := math.Hypot(pos["a"].X-pos["b"].X, pos["a"].Y-pos["b"].Y)
		minSep := e.Radius("a") + e.Radius("b")
		if d < minSep {
			t.Errorf("expected settled nodes separated by at least %v, got %v", minSep, d)
		}
	})
}

func TestPinning(t *testing.T) {
	e := NewEngine(testLayoutConfig(), ModeForce, domain.SizeByTxCount)
	e.SetGraph(makeDataset(
		map[string]float64{"a": 0.5, "b": 0.5, "c": 0.5},
		[2]string{"a", "b"}, [2]string{"b", "c"},
	))

	if !e.Pin("a", 100, 100) {
		t.Fatal("Pin returned false for existing node")
	}
	e.Restart()
	e.Settle()

	pos := e.Positions()
	if pos["a"].X != 100 || pos["a"].Y != 100 {
		t.Errorf("pinned node moved to (%v, %v)", pos["a"].X, pos["a"].Y)
	}
	if !pos["a"].Pinned {
		t.Error("expected Pinned flag set")
	}

	t.Run("pin survives graph swap", func(t *testing.T) {
		e.SetGraph(makeDataset(map[string]float64{"a": 0.5, "b": 0.5}))
		pos := e.Positions()
		if !pos["a"].Pinned || pos["a"].X != 100 {
			t.Error("expected pin to persist across SetGraph for surviving node")
		}
	})

	t.Run("unpin releases the node", func(t *testing.T) {
		if !e.Unpin("a") {
			t.Fatal("Unpin returned false")
		}
		if e.Positions()["a"].Pinned {
			t.Error("expected Pinned cleared")
		}
	})

	t.Run("unknown node", func(t *testing.T) {
		if e.Pin("ghost", 0, 0) || e.Unpin("ghost") {
			t.Error("expected pin/unpin of unknown node to return false")
		}
	})
}

func TestBoundaryClamping(t *testing.T) {
	cfg := testLayoutConfig()
	for _, mode := range []Mode{ModeForce, ModeRadial, ModeTiered} {
		t.Run(string(mode), func(t *testing.T) {
			e := NewEngine(cfg, mode, domain.SizeByTxCount)
			e.SetGraph(makeDataset(map[string]float64{
				"a": 0.9, "b": 0.5, "c": 0.1, "d": 0.5, "e": 0.7,
			}))
			e.Settle()

			for id, p := range e.Positions() {
				r := e.Radius(id)
				if p.X < r || p.X > cfg.Width-r || p.Y < r || p.Y > cfg.Height-r {
					t.Errorf("%s: node %s circle outside canvas: (%v, %v) r=%v",
						mode, id, p.X, p.Y, r)
				}
			}
		})
	}
}

func TestNodeRadii(t *testing.T) {
	cfg := testLayoutConfig()
	e := NewEngine(cfg, ModeForce, domain.SizeByAmount)

	big := domain.NewNode("big")
	big.TotalSent = decimal.NewFromInt(1_000_000)
	small := domain.NewNode("small")
	small.TotalSent = decimal.NewFromInt(10)
	e.SetGraph(domain.NewDataset([]*domain.Node{big, small}, nil))

	if e.Radius("big") <= e.Radius("small") {
		t.Errorf("expected larger volume to yield larger radius: big=%v small=%v",
			e.Radius("big"), e.Radius("small"))
	}
	if e.Radius("big") > cfg.MaxNodeRadius || e.Radius("small") < cfg.MinNodeRadius {
		t.Error("radius outside configured bounds")
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"force", "radial", "tiered"} {
		if _, ok := ParseMode(s); !ok {
			t.Errorf("expected %q to parse", s)
		}
	}
	if _, ok := ParseMode("grid"); ok {
		t.Error("expected unknown mode rejected")
	}
}
