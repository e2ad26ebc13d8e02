// Package view coordinates the two rendering surfaces over one canonical
// dataset.
//
// The coordinator owns the last fetched snapshot, the active render target
// (graph or map), the layout engine, the resolver, the marker-dot animator,
// and the interaction state. All mutation funnels through its mutex, so the
// two surfaces always describe the same snapshot.
//
// Reloads replace the snapshot wholesale under a fresh generation id. Any
// asynchronous work (map resolution in particular) carries the generation it
// was started for and is discarded if another generation has landed since;
// a late resolution for a stale dataset must never be applied.
package view

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"flowscope/internal/config"
	"flowscope/internal/domain"
	"flowscope/internal/interact"
	"flowscope/internal/layout"
	"flowscope/internal/render"
	"flowscope/internal/service"
)

// Source fetches network datasets. Satisfied by datasource.Client and by the
// in-process service when self-hosted.
type Source interface {
	NetworkData(ctx context.Context, f domain.Filters) (*domain.Dataset, error)
}

// Locator resolves the geographic endpoints of a dataset. Satisfied by
// geo.Resolver.
type Locator interface {
	ResolveFlows(ctx context.Context, ds *domain.Dataset) map[string]domain.Location
}

// Coordinator mediates between the dataset, the layout engine, the resolver,
// and the renderers.
type Coordinator struct {
	mu sync.Mutex

	cfg      *config.Config
	source   Source
	locator  Locator
	engine   *layout.Engine
	animator *render.Animator
	interact *interact.State
	events   *service.EventBus
	log      *slog.Logger

	fetched *domain.Dataset // last successful fetch, unfiltered
	current *domain.Dataset // fetched with client-side filters applied
	filters domain.Filters
	target  render.Target

	located    map[string]domain.Location
	graphScene *render.Scene
	mapScene   *render.Scene
	// mapDirty marks the hidden map surface as needing a full
	// invalidate-and-redraw when it next becomes visible: a hidden canvas
	// has no valid layout metrics, and its dataset may have changed
	// underneath it.
	mapDirty bool

	cancelReload context.CancelFunc
	// reloadSeq numbers reloads so a fetch that outlives its cancellation
	// cannot install a result, or record an error, over a newer reload's.
	reloadSeq uint64
	lastErr   error
}

// New creates a coordinator in graph target with default filters.
func New(cfg *config.Config, source Source, locator Locator, events *service.EventBus, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		source:   source,
		locator:  locator,
		engine:   layout.NewEngine(cfg.Layout, layout.ModeForce, domain.SizeByTxCount),
		animator: render.NewAnimator(cfg.Render, logger),
		interact: interact.New(events),
		events:   events,
		log:      logger,
		filters:  domain.DefaultFilters(),
		target:   render.TargetGraph,
		located:  make(map[string]domain.Location),
	}
}

// SetSelectionMode toggles click-to-inspect. Turning it off clears the
// selection, so both surfaces are restyled.
func (c *Coordinator) SetSelectionMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interact.SetSelectionMode(on)
	if c.current != nil {
		c.refreshGraphSceneLocked()
		c.refreshMapSceneLocked()
	}
}

// SetMultiSelect toggles selection accumulation.
func (c *Coordinator) SetMultiSelect(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interact.SetMultiSelect(on)
}

// Filters returns the active filters.
func (c *Coordinator) Filters() domain.Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Target returns the active render target.
func (c *Coordinator) Target() render.Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Dataset returns the current filtered snapshot, or nil before first load.
func (c *Coordinator) Dataset() *domain.Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// LastError returns the retryable error from the most recent failed reload,
// or nil. A successful reload clears it.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Reload fetches a fresh dataset through the source, replaces the snapshot,
// and rebuilds the active surface. A fetch failure keeps the previous
// dataset on screen and records a retryable error. A malformed payload
// blanks the view for this render only.
func (c *Coordinator) Reload(ctx context.Context) error {
	c.mu.Lock()
	// Abandon any in-flight reload; its results are no longer needed.
	if c.cancelReload != nil {
		c.cancelReload()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancelReload = cancel
	c.reloadSeq++
	seq := c.reloadSeq
	filters := c.filters
	c.mu.Unlock()

	ds, err := c.source.NetworkData(ctx, filters)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if seq != c.reloadSeq {
			// A newer reload superseded this one; its failure must not
			// shadow the newer result.
			return err
		}
		if errors.Is(err, domain.ErrMalformedDataset) {
			// Fatal for this render only: show the empty state, keep
			// nothing of the bad payload.
			c.current = domain.NewDataset(nil, nil)
			c.fetched = nil
			c.rebuildLocked()
			c.lastErr = nil
			return err
		}
		// Fetch failure: the last good dataset stays on screen.
		c.lastErr = err
		c.log.Warn("reload failed, keeping previous dataset", "error", err)
		return err
	}

	filtered := ds.Filtered(filters, time.Now())

	c.mu.Lock()
	if seq != c.reloadSeq {
		c.mu.Unlock()
		return context.Canceled
	}
	c.fetched = ds
	c.current = filtered
	c.lastErr = nil
	c.interact.Prune(filtered)
	c.rebuildLocked()
	stats := filtered.Stats
	needMap := c.target == render.TargetMap
	gen := filtered.Generation
	c.mu.Unlock()

	if needMap {
		c.resolveMap(ctx, gen)
	}

	c.events.Publish(service.Event{Type: service.EventDatasetLoaded, Payload: stats})
	return nil
}

// ApplyFilters applies filter changes client-side against the last fetched
// dataset. There is no fetch, so filter latency is independent of the source.
// A focus-account change is the exception: it requires a reload, which the
// caller triggers through Focus.
func (c *Coordinator) ApplyFilters(f domain.Filters) {
	c.mu.Lock()
	f.FocusAccount = c.filters.FocusAccount
	f.Depth = c.filters.Depth
	c.filters = f
	if c.fetched == nil {
		c.mu.Unlock()
		return
	}
	c.current = c.fetched.Filtered(f, time.Now())
	c.interact.Prune(c.current)
	c.rebuildLocked()
	stats := c.current.Stats
	needMap := c.target == render.TargetMap
	gen := c.current.Generation
	c.mu.Unlock()

	if needMap {
		c.resolveMap(context.Background(), gen)
	}
	c.events.Publish(service.Event{Type: service.EventDatasetLoaded, Payload: stats})
}

// Focus narrows the working dataset to one account's neighborhood. This is
// the one filter change that goes back to the network.
func (c *Coordinator) Focus(ctx context.Context, accountID string) error {
	c.mu.Lock()
	c.filters.FocusAccount = accountID
	c.mu.Unlock()
	return c.Reload(ctx)
}

// SetTarget switches the visible surface. The hidden surface is kept, not
// destroyed, so simulation and animation state survive a round trip.
// Switching to the map triggers its one-time invalidate-and-redraw.
func (c *Coordinator) SetTarget(ctx context.Context, t render.Target) {
	c.mu.Lock()
	if c.target == t {
		c.mu.Unlock()
		return
	}
	c.target = t
	var gen string
	needMap := t == render.TargetMap && c.mapDirty && c.current != nil
	if needMap {
		gen = c.current.Generation
	}
	c.reconcileAnimatorLocked()
	c.mu.Unlock()

	if needMap {
		c.resolveMap(ctx, gen)
	}
	c.events.Publish(service.Event{Type: service.EventViewTargetChanged, Payload: t})
}

// SetLayoutMode switches the layout algorithm and recomputes positions.
func (c *Coordinator) SetLayoutMode(mode layout.Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetMode(mode)
	c.refreshGraphSceneLocked()
}

// SetSizeMetric changes the node sizing attribute.
func (c *Coordinator) SetSizeMetric(metric domain.SizeMetric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine.SetSizeMetric(metric)
	if c.current != nil {
		c.engine.SetGraph(c.current)
		c.engine.Settle()
		c.refreshGraphSceneLocked()
	}
}

// UpdateTuning applies a reloaded configuration to the running engine and
// animator without disturbing dataset, filters, or selection.
func (c *Coordinator) UpdateTuning(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.engine.SetTuning(cfg.Layout)
	c.animator.SetTuning(cfg.Render)
	if c.current != nil {
		c.refreshGraphSceneLocked()
		c.refreshMapSceneLocked()
		c.reconcileAnimatorLocked()
	}
}

// Scene returns the scene for the active target. Nil before the first load
// (the empty state).
func (c *Coordinator) Scene() *render.Scene {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.target == render.TargetMap {
		return c.mapScene
	}
	return c.graphScene
}

// Dots returns the current frame's marker-dot positions.
func (c *Coordinator) Dots() []render.DotPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.animator.Dots()
}

// Advance drives one animation frame: force-simulation tick (if the engine
// is still hot) and marker-dot movement. The host calls this once per frame;
// with no dataset loaded it is a no-op, which is the liveness check that
// lets the host stop scheduling cleanly.
func (c *Coordinator) Advance(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	if c.engine.Tick() {
		c.refreshGraphSceneLocked()
	}
	c.animator.Step(dt)
}

// SelectFlow handles a click on an edge in the active view.
func (c *Coordinator) SelectFlow(key string) (*interact.FlowDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, domain.ErrNotFound
	}
	detail, err := c.interact.ClickFlow(c.current, key, c.located)
	if err != nil {
		return nil, err
	}
	// Selection styling changed; restyle both surfaces from existing
	// geometry.
	c.refreshGraphSceneLocked()
	c.refreshMapSceneLocked()
	return detail, nil
}

// InspectNode handles a click on a node.
func (c *Coordinator) InspectNode(id string) (*interact.NodeDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, domain.ErrNotFound
	}
	return c.interact.ClickNode(c.current, id, c.located)
}

// DragNode pins a node at the dragged position and re-renders.
func (c *Coordinator) DragNode(id string, x, y float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.engine.Pin(id, x, y) {
		return false
	}
	c.refreshGraphSceneLocked()
	c.events.Publish(service.Event{
		Type:    service.EventPositionsUpdated,
		Payload: map[string]any{"node_id": id, "x": x, "y": y},
	})
	return true
}

// ReleaseNode unpins a node and lets the simulation pull it back in.
func (c *Coordinator) ReleaseNode(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.engine.Unpin(id) {
		return false
	}
	c.engine.Restart()
	c.engine.Settle()
	c.refreshGraphSceneLocked()
	return true
}

// WriteSVG writes a snapshot of the active surface.
func (c *Coordinator) WriteSVG(w io.Writer) {
	c.mu.Lock()
	scene := c.graphScene
	if c.target == render.TargetMap {
		scene = c.mapScene
	}
	if scene == nil {
		scene = &render.Scene{Target: c.target}
	}
	dots := c.animator.Dots()
	width, height := int(c.cfg.Layout.Width), int(c.cfg.Layout.Height)
	c.mu.Unlock()

	render.WriteSVG(w, scene, width, height, dots)
}

// GeoJSON exports the resolvable flows of the current dataset. The map does
// not need to be the active target; resolution runs on demand if the cache
// is cold.
func (c *Coordinator) GeoJSON(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	ds := c.current
	c.mu.Unlock()
	if ds == nil {
		return nil, domain.ErrNotFound
	}

	located := c.locator.ResolveFlows(ctx, ds)

	c.mu.Lock()
	stale := c.current == nil || c.current.Generation != ds.Generation
	c.mu.Unlock()
	if stale {
		return nil, context.Canceled
	}

	fc := render.MapGeoJSON(ds, located)
	return fc.MarshalJSON()
}

// resolveMap resolves the dataset's endpoints (sequentially, outside the
// lock) and installs the map scene, unless a newer generation landed while
// the lookups were in flight, in which case the result is discarded.
func (c *Coordinator) resolveMap(ctx context.Context, gen string) {
	c.mu.Lock()
	ds := c.current
	c.mu.Unlock()
	if ds == nil || ds.Generation != gen {
		return
	}

	located := c.locator.ResolveFlows(ctx, ds)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Generation != gen {
		// Stale resolution; a reload got there first.
		c.log.Debug("discarding stale map resolution", "generation", gen)
		return
	}
	c.located = located
	c.mapDirty = false
	c.refreshMapSceneLocked()
	c.reconcileAnimatorLocked()
}

// rebuildLocked re-derives positions and surfaces after a snapshot swap.
func (c *Coordinator) rebuildLocked() {
	c.engine.SetGraph(c.current)
	c.engine.Settle()
	c.refreshGraphSceneLocked()
	c.mapScene = nil
	c.mapDirty = true
	c.reconcileAnimatorLocked()
}

func (c *Coordinator) refreshGraphSceneLocked() {
	if c.current == nil {
		c.graphScene = nil
		return
	}
	c.graphScene = render.BuildGraphScene(
		c.current, c.engine.Positions(), c.engine.Radius,
		c.interact.Selection(), c.cfg.Render)
	if c.target == render.TargetGraph {
		c.reconcileAnimatorLocked()
	}
}

func (c *Coordinator) refreshMapSceneLocked() {
	if c.current == nil {
		c.mapScene = nil
		return
	}
	if c.mapDirty {
		// The surface is hidden and pending its invalidate; it gets
		// rebuilt when resolution lands.
		return
	}
	c.mapScene = render.BuildMapScene(
		c.current, c.located, c.interact.Selection(), c.cfg.Render,
		c.cfg.Layout.Width, c.cfg.Layout.Height)
}

// reconcileAnimatorLocked aligns marker-dot loops with the active surface;
// loops for edges no longer on screen are stopped, never leaked.
func (c *Coordinator) reconcileAnimatorLocked() {
	scene := c.graphScene
	if c.target == render.TargetMap {
		scene = c.mapScene
	}
	if scene == nil {
		c.animator.Stop()
		return
	}
	c.animator.Reconcile(scene)
}
