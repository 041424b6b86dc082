package annotation

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/segview/internal/engine/input"
	"github.com/Faultbox/segview/internal/engine/picking"
	"github.com/Faultbox/segview/internal/engine/scene"
	"github.com/Faultbox/segview/internal/render"
	"github.com/Faultbox/segview/internal/viewer"
)

// Camera casts pick rays and projects world points to the screen.
type Camera interface {
	ScreenToRay(x, y float32, width, height int) picking.Ray
	WorldToScreen(p mgl32.Vec3, width, height int) (mgl32.Vec2, bool)
}

// Buffers provides copies of render target contents.
type Buffers interface {
	Snapshot(c render.Class) (*image.RGBA, uint64)
}

// ParamSource reports the active viewer mode.
type ParamSource interface {
	Params() viewer.Params
}

// Refresher re-captures every mode buffer.
type Refresher interface {
	RequestRefresh(ctx context.Context)
}

// Config holds the pickable geometry.
type Config struct {
	Size        float32 // Annotation edge length
	AnnotationY float32 // Height annotations are placed at
	GroundY     float32
	GroundSize  float32
}

// DefaultConfig returns a 10x10 ground plane below unit annotations.
func DefaultConfig() Config {
	return Config{Size: 1, AnnotationY: 0, GroundY: -0.2, GroundSize: 10}
}

// Deps are the collaborators a Picker acts on.
type Deps struct {
	Camera    Camera
	Buffers   Buffers
	Params    ParamSource
	Refresher Refresher
	Scene     *scene.Graph
	Store     *Store
	Redraw    func()
	Log       *zap.Logger
}

// Overlay is the screen-space highlight of a hovered annotation.
type Overlay struct {
	Visible  bool
	Min, Max mgl32.Vec2
	ID       int
}

// Result says what a pick did.
type Result int

const (
	ResultMiss   Result = iota // Nothing under the pointer
	ResultPlaced               // An annotation was created
	ResultHover                // An annotation is highlighted
	ResultNone                 // Something was hit but no action applies
)

func (r Result) String() string {
	switch r {
	case ResultMiss:
		return "miss"
	case ResultPlaced:
		return "placed"
	case ResultHover:
		return "hover"
	case ResultNone:
		return "none"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// Picker turns pointer events into annotation placement and hover highlights.
type Picker struct {
	ctx context.Context
	d   Deps
	cfg Config

	mu      sync.Mutex
	width   int
	height  int
	overlay Overlay
}

// NewPicker creates a picker. Refreshes are requested with ctx.
func NewPicker(ctx context.Context, d Deps, cfg Config) *Picker {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Redraw == nil {
		d.Redraw = func() {}
	}
	return &Picker{ctx: ctx, d: d, cfg: cfg, width: 1, height: 1}
}

// SetViewport sets the pixel size pick coordinates refer to.
func (p *Picker) SetViewport(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width, p.height = max(width, 1), max(height, 1)
}

// Overlay returns the current highlight.
func (p *Picker) Overlay() Overlay {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlay
}

// HandleEvent picks on pointer presses and moves. Other events only change
// the modifier state carried by later pointer events.
func (p *Picker) HandleEvent(ev input.Event) (Result, *Annotation) {
	switch ev.Type {
	case input.EventPointerDown:
		return p.Pick(ev.X, ev.Y, ev.Modifier, ev.Primary, true)
	case input.EventPointerMove:
		return p.Pick(ev.X, ev.Y, ev.Modifier, ev.Primary, false)
	}
	return ResultNone, nil
}

type hit struct {
	t     float32
	point mgl32.Vec3
	ann   *Annotation
}

func (p *Picker) intersect(r picking.Ray) (hit, bool) {
	best := hit{t: float32(math.Inf(1))}
	found := false

	ground := picking.NewRect(mgl32.Vec3{0, p.cfg.GroundY, 0}, p.cfg.GroundSize, p.cfg.GroundSize)
	if t, ok := r.IntersectRect(ground); ok {
		best, found = hit{t: t, point: r.At(t)}, true
	}
	for _, a := range p.d.Store.All() {
		if t, ok := r.IntersectRect(a.Rect()); ok && t < best.t {
			best, found = hit{t: t, point: r.At(t), ann: a}, true
		}
	}
	return best, found
}

// Pick handles a pointer at pixel (x, y). press is true for a button press,
// false for a move.
func (p *Picker) Pick(x, y float32, modifier, primary, press bool) (Result, *Annotation) {
	p.mu.Lock()
	w, h := p.width, p.height
	p.mu.Unlock()

	h0, ok := p.intersect(p.d.Camera.ScreenToRay(x, y, w, h))
	if !ok {
		p.HideOverlay()
		return ResultMiss, nil
	}

	if modifier {
		if !press {
			p.HideOverlay()
			return ResultNone, nil
		}
		return ResultPlaced, p.place(h0.point)
	}

	if h0.ann == nil {
		p.HideOverlay()
		return ResultNone, nil
	}

	if !p.showOverlay(h0.ann, w, h) {
		return ResultNone, nil
	}
	if primary {
		p.d.Refresher.RequestRefresh(p.ctx)
	}
	return ResultHover, h0.ann
}

func (p *Picker) place(at mgl32.Vec3) *Annotation {
	mode := p.d.Params.Params().Mode
	tex, version := p.d.Buffers.Snapshot(mode.Class())

	a := p.d.Store.Add(&Annotation{
		Mode:    mode,
		Center:  mgl32.Vec3{at[0], p.cfg.AnnotationY, at[2]},
		Width:   p.cfg.Size,
		Height:  p.cfg.Size,
		Texture: tex,
		Version: version,
		Created: time.Now(),
	})
	p.d.Scene.Add(scene.Node{
		Name:  fmt.Sprintf("annotation-%d", a.ID),
		Kind:  scene.KindAnnotation,
		Owner: scene.OwnerPersistent,
		Value: a,
	})
	p.d.Log.Info("annotation placed",
		zap.Int("id", a.ID),
		zap.String("mode", string(mode)),
		zap.Uint64("version", version),
		zap.Float32("x", a.Center[0]),
		zap.Float32("z", a.Center[2]))
	p.d.Redraw()
	return a
}

// showOverlay projects the annotation's corners to a screen rectangle. It hides
// the overlay and returns false if any corner is behind the camera.
func (p *Picker) showOverlay(a *Annotation, w, h int) bool {
	lo := mgl32.Vec2{float32(math.Inf(1)), float32(math.Inf(1))}
	hi := mgl32.Vec2{float32(math.Inf(-1)), float32(math.Inf(-1))}
	for _, c := range a.Rect().Corners() {
		s, ok := p.d.Camera.WorldToScreen(c, w, h)
		if !ok {
			p.HideOverlay()
			return false
		}
		lo = mgl32.Vec2{min(lo[0], s[0]), min(lo[1], s[1])}
		hi = mgl32.Vec2{max(hi[0], s[0]), max(hi[1], s[1])}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.overlay = Overlay{Visible: true, Min: lo, Max: hi, ID: a.ID}
	return true
}

// HideOverlay clears the highlight.
func (p *Picker) HideOverlay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overlay = Overlay{}
}
