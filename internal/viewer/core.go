package viewer

import (
	"context"
	"fmt"
	"image/draw"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/segview/internal/dataset"
	"github.com/Faultbox/segview/internal/engine/scene"
	"github.com/Faultbox/segview/internal/volume"
)

// activation is one run of a mode pipeline. Operations called with a context
// that carries an activation commit only while it is the current generation.
type activation struct {
	gen    uint64
	mode   Mode
	params Params
	scoped bool
}

type activationKey struct{}

func withActivation(ctx context.Context, a activation) context.Context {
	return context.WithValue(ctx, activationKey{}, a)
}

func activationFrom(ctx context.Context) (activation, bool) {
	a, ok := ctx.Value(activationKey{}).(activation)
	return a, ok
}

// stage holds the intermediate results of the current activation.
type stage struct {
	volumeID  string
	segmentID string
	volume    *volume.Grid
	segment   *volume.Grid
	clipped   *volume.Grid
	sdf       *volume.Field
	surface   float64 // Threshold the SDF was built for
}

// Core owns the viewer parameters, the dataset metadata and the geometry of
// the active mode.
type Core struct {
	loader dataset.Loader
	scene  *scene.Graph
	log    *zap.Logger

	mu      sync.Mutex
	params  Params
	volMeta *dataset.VolumeMeta
	segMeta *dataset.SegmentMeta
	gen     uint64
	stage   stage
	cache   map[string]*volume.Grid
	epoch   uint64 // Bumped whenever cache is replaced
}

// NewCore creates a core reading from loader and placing geometry in graph.
func NewCore(loader dataset.Loader, graph *scene.Graph, log *zap.Logger) *Core {
	if log == nil {
		log = zap.NewNop()
	}
	return &Core{
		loader: loader,
		scene:  graph,
		log:    log,
		params: DefaultParams(),
		cache:  make(map[string]*volume.Grid),
	}
}

// Scene returns the graph the core places mode geometry in.
func (c *Core) Scene() *scene.Graph {
	return c.scene
}

// Params returns a copy of the current parameters.
func (c *Core) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.clone()
}

// UpdateParams applies fn to a copy of the parameters and stores the result if
// it validates. It returns the parameters in effect afterwards. fn runs under
// the core lock and must not call back into the core.
func (c *Core) UpdateParams(fn func(p *Params)) (Params, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.params.clone()
	fn(&p)
	if err := p.Validate(); err != nil {
		return c.params.clone(), err
	}
	c.params = p
	return p.clone(), nil
}

// LoadMeta fetches both metadata descriptions and installs them.
func (c *Core) LoadMeta(ctx context.Context) error {
	var (
		vm *dataset.VolumeMeta
		sm *dataset.SegmentMeta
	)
	loader := c.source()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		vm, err = loader.VolumeMeta(gctx)
		return err
	})
	g.Go(func() (err error) {
		sm, err = loader.SegmentMeta(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: metadata: %w", ErrLoad, err)
	}
	c.SetMeta(vm, sm)
	return nil
}

// SetLoader swaps the data source. Metadata, cached chunks and mode geometry
// are dropped and any running activation goes stale. Call LoadMeta next.
func (c *Core) SetLoader(l dataset.Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loader = l
	c.volMeta, c.segMeta = nil, nil
	c.cache = make(map[string]*volume.Grid)
	c.epoch++
	c.params.Layers.Options = nil
	c.gen++
	c.clearLocked()
}

func (c *Core) source() dataset.Loader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loader
}

// SetMeta installs dataset metadata, refreshes the layer options and drops
// cached chunks. The selection is kept when still present, otherwise the first
// id is selected and the slice index reset to its first slice.
func (c *Core) SetMeta(vm *dataset.VolumeMeta, sm *dataset.SegmentMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.volMeta, c.segMeta = vm, sm
	c.cache = make(map[string]*volume.Grid)
	c.epoch++

	ids := vm.IDs()
	c.params.Layers.Options = ids
	if _, ok := vm.Lookup(c.params.Layers.Select); !ok {
		c.params.Layers.Select = ""
		if len(ids) > 0 {
			c.params.Layers.Select = ids[0]
		}
		if e, ok := vm.Lookup(c.params.Layers.Select); ok {
			c.params.Layer = e.Clip.Z
		}
	}
	c.log.Info("dataset metadata installed",
		zap.String("id", vm.ID),
		zap.Int("layers", len(ids)),
		zap.String("select", c.params.Layers.Select))
}

// LayerBounds returns the slice range [clip.Z, clip.Z+clip.D] of layer id.
func (c *Core) LayerBounds(id string) (lo, hi int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.volMeta.Lookup(id)
	if !ok {
		return 0, 0, false
	}
	return e.Clip.Z, e.Clip.Z + e.Clip.D, true
}

// Generation returns the current activation generation.
func (c *Core) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// begin starts a new generation for mode and clears the previous mode's
// geometry. An empty mode means the current parameter mode.
func (c *Core) begin(mode Mode) activation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.clearLocked()
	p := c.params.clone()
	if mode != "" {
		p.Mode = mode
	}
	return activation{gen: c.gen, mode: p.Mode, params: p, scoped: true}
}

// Clear removes all mode-owned geometry. Annotations are untouched.
func (c *Core) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Core) clearLocked() {
	c.stage = stage{}
	c.scene.ClearMode()
}

func (c *Core) scope(ctx context.Context) activation {
	if a, ok := activationFrom(ctx); ok {
		return a
	}
	p := c.Params()
	return activation{mode: p.Mode, params: p}
}

// commit runs fn against the stage if a is still current.
func (c *Core) commit(ctx context.Context, a activation, fn func(s *stage) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if a.scoped && a.gen != c.gen {
		return fmt.Errorf("%w: generation %d, current %d", ErrStale, a.gen, c.gen)
	}
	return fn(&c.stage)
}

type loadFunc func(context.Context, dataset.Entry) (*volume.Grid, error)

// fetch returns the chunk for e, loading it at most once per metadata install.
func (c *Core) fetch(ctx context.Context, kind string, e dataset.Entry, load loadFunc) (*volume.Grid, error) {
	key := kind + ":" + e.Ref
	c.mu.Lock()
	epoch := c.epoch
	g, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return g, nil
	}

	g, err := load(ctx, e)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	// A metadata install or loader swap replaced the cache meanwhile.
	if epoch == c.epoch {
		c.cache[key] = g
	}
	c.mu.Unlock()
	return g, nil
}

// UpdateVolume loads the volume of the selected layer.
func (c *Core) UpdateVolume(ctx context.Context) error {
	a := c.scope(ctx)
	id := a.params.Layers.Select

	c.mu.Lock()
	e, ok := c.volMeta.Lookup(id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no volume entry for layer %q", ErrLoad, id)
	}

	g, err := c.fetch(ctx, "volume", e, c.source().LoadVolume)
	if err != nil {
		return fmt.Errorf("%w: volume %q: %w", ErrLoad, id, err)
	}
	return c.commit(ctx, a, func(s *stage) error {
		s.volumeID, s.volume = id, g
		s.clipped, s.sdf = nil, nil
		c.scene.Put(scene.Node{Kind: scene.KindVolume, Name: id, Value: g})
		c.scene.RemoveKind(scene.KindSurface)
		return nil
	})
}

// UpdateSegment loads the segmentation of the selected layer.
func (c *Core) UpdateSegment(ctx context.Context) error {
	a := c.scope(ctx)
	id := a.params.Layers.Select

	c.mu.Lock()
	e, ok := c.segMeta.Lookup(id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no segment entry for layer %q", ErrLoad, id)
	}

	g, err := c.fetch(ctx, "segment", e, c.source().LoadSegment)
	if err != nil {
		return fmt.Errorf("%w: segment %q: %w", ErrLoad, id, err)
	}
	return c.commit(ctx, a, func(s *stage) error {
		s.segmentID, s.segment = id, g
		s.clipped, s.sdf = nil, nil
		c.scene.Put(scene.Node{Kind: scene.KindSegment, Name: id, Value: g})
		c.scene.RemoveKind(scene.KindSurface)
		return nil
	})
}

// ClipSegment restricts the segmentation to the volume's region. Both loads
// must have completed first.
func (c *Core) ClipSegment(ctx context.Context) error {
	a := c.scope(ctx)
	var vol, seg *volume.Grid
	err := c.commit(ctx, a, func(s *stage) error {
		if s.volume == nil || s.segment == nil {
			return fmt.Errorf("%w: clip needs both volume and segment", ErrOrder)
		}
		vol, seg = s.volume, s.segment
		return nil
	})
	if err != nil {
		return err
	}

	clipped := volume.Clip(seg, vol.Box)
	return c.commit(ctx, a, func(s *stage) error {
		if s.volume != vol || s.segment != seg {
			return fmt.Errorf("%w: clip inputs replaced", ErrOrder)
		}
		s.clipped, s.sdf = clipped, nil
		c.scene.Put(scene.Node{Kind: scene.KindSegment, Name: s.segmentID, Value: clipped})
		return nil
	})
}

// UpdateSegmentSDF builds the signed distance field of the clipped segment at
// the current surface threshold. ClipSegment must have completed first.
func (c *Core) UpdateSegmentSDF(ctx context.Context) error {
	a := c.scope(ctx)
	var clipped *volume.Grid
	err := c.commit(ctx, a, func(s *stage) error {
		if s.clipped == nil {
			return fmt.Errorf("%w: sdf needs a clipped segment", ErrOrder)
		}
		clipped = s.clipped
		return nil
	})
	if err != nil {
		return err
	}

	field := volume.SignedDistance(clipped)
	return c.commit(ctx, a, func(s *stage) error {
		if s.clipped != clipped {
			return fmt.Errorf("%w: sdf input replaced", ErrOrder)
		}
		s.sdf, s.surface = field, a.params.Surface
		c.scene.Put(scene.Node{
			Kind:  scene.KindSurface,
			Name:  fmt.Sprintf("%s@%g", s.segmentID, a.params.Surface),
			Value: field,
		})
		return nil
	})
}

// Render rasterizes the active geometry into dst. The caller owns binding dst.
func (c *Core) Render(ctx context.Context, dst draw.Image) error {
	a := c.scope(ctx)
	var snap stage
	err := c.commit(ctx, a, func(s *stage) error {
		if err := ready(a.mode, s); err != nil {
			return err
		}
		snap = *s
		return nil
	})
	if err != nil {
		return err
	}

	if err := rasterize(dst, a.params, &snap); err != nil {
		return err
	}
	// Superseded while drawing: report it so the caller discards dst.
	return c.commit(ctx, a, func(*stage) error { return nil })
}

func ready(m Mode, s *stage) error {
	switch {
	case m == ModeSegment && s.segment == nil:
		return fmt.Errorf("%w: render %s before segment loaded", ErrOrder, m)
	case m == ModeVolume && s.volume == nil:
		return fmt.Errorf("%w: render %s before volume loaded", ErrOrder, m)
	case m.Composite() && (s.volume == nil || s.sdf == nil):
		return fmt.Errorf("%w: render %s before sdf built", ErrOrder, m)
	}
	return nil
}
