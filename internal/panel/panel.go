// Package panel resolves the parameter controls shown for each viewer mode and
// applies control changes to the viewer.
package panel

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/segview/internal/viewer"
)

// ErrUnavailable is returned when a control is not shown in the current mode.
var ErrUnavailable = errors.New("panel: control not available in this mode")

// Field names a viewer parameter.
type Field string

const (
	FieldMode    Field = "mode"
	FieldLayers  Field = "layers"
	FieldSurface Field = "surface"
	FieldInverse Field = "inverse"
	FieldLayer   Field = "layer"
)

// Kind is the widget type of a control.
type Kind int

const (
	KindSelect Kind = iota
	KindFloat
	KindInt
	KindBool
)

// Control describes one widget.
type Control struct {
	Field   Field
	Kind    Kind
	Options []string // KindSelect
	Min     float64  // KindFloat, KindInt
	Max     float64
}

// common controls lead every panel.
var common = []Field{FieldMode, FieldLayers}

// controlTable lists the mode-specific controls in display order.
var controlTable = map[viewer.Mode][]Field{
	viewer.ModeSegment:       nil,
	viewer.ModeVolume:        nil,
	viewer.ModeVolumeSegment: {FieldSurface},
	viewer.ModeLayer:         {FieldInverse, FieldSurface, FieldLayer},
	viewer.ModeGridLayer:     {FieldInverse, FieldSurface},
}

// Fields returns the fields shown for mode m.
func Fields(m viewer.Mode) []Field {
	return append(slices.Clone(common), controlTable[m]...)
}

// BoundsFunc returns the slice range of a layer id.
type BoundsFunc func(id string) (lo, hi int, ok bool)

// Controls resolves the control set for p.Mode.
func Controls(p viewer.Params, bounds BoundsFunc) []Control {
	var out []Control
	for _, f := range Fields(p.Mode) {
		c := Control{Field: f}
		switch f {
		case FieldMode:
			c.Kind = KindSelect
			for _, m := range viewer.Modes {
				c.Options = append(c.Options, string(m))
			}
		case FieldLayers:
			c.Kind = KindSelect
			c.Options = slices.Clone(p.Layers.Options)
		case FieldSurface:
			c.Kind, c.Min, c.Max = KindFloat, viewer.SurfaceMin, viewer.SurfaceMax
		case FieldInverse:
			c.Kind = KindBool
		case FieldLayer:
			c.Kind = KindInt
			lo, hi, ok := bounds(p.Layers.Select)
			if !ok {
				continue
			}
			c.Min, c.Max = float64(lo), float64(hi)
		}
		out = append(out, c)
	}
	return out
}

// Core is the part of the viewer the panel edits.
type Core interface {
	Params() viewer.Params
	UpdateParams(fn func(p *viewer.Params)) (viewer.Params, error)
	LayerBounds(id string) (lo, hi int, ok bool)
}

// Activator re-runs the current mode.
type Activator interface {
	Submit(ctx context.Context)
}

// Panel applies control changes and re-triggers activation after each one.
type Panel struct {
	ctx  context.Context
	core Core
	act  Activator
	log  *zap.Logger
}

// New creates a panel. Activations are submitted with ctx.
func New(ctx context.Context, core Core, act Activator, log *zap.Logger) *Panel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Panel{ctx: ctx, core: core, act: act, log: log}
}

// Controls returns the controls for the current mode.
func (p *Panel) Controls() []Control {
	return Controls(p.core.Params(), p.core.LayerBounds)
}

// SetMode switches mode. Entering layer mode resets the slice to the first
// slice of the selected layer.
func (p *Panel) SetMode(m viewer.Mode) error {
	lo, _, ok := p.core.LayerBounds(p.core.Params().Layers.Select)
	return p.apply(FieldMode, func(v *viewer.Params) {
		v.Mode = m
		if m == viewer.ModeLayer && ok {
			v.Layer = lo
		}
	})
}

// SetLayers selects a dataset layer. In layer mode the slice resets to the
// first slice of the new layer.
func (p *Panel) SetLayers(id string) error {
	lo, _, ok := p.core.LayerBounds(id)
	return p.apply(FieldLayers, func(v *viewer.Params) {
		v.Layers.Select = id
		if v.Mode == viewer.ModeLayer && ok {
			v.Layer = lo
		}
	})
}

// SetSurface sets the surface threshold, clamped to its range.
func (p *Panel) SetSurface(s float64) error {
	return p.apply(FieldSurface, func(v *viewer.Params) {
		v.Surface = min(max(s, viewer.SurfaceMin), viewer.SurfaceMax)
	})
}

// SetInverse flips the shaded side of the surface.
func (p *Panel) SetInverse(inv bool) error {
	return p.apply(FieldInverse, func(v *viewer.Params) {
		v.Inverse = inv
	})
}

// SetLayer sets the slice index, clamped to the selected layer's range.
func (p *Panel) SetLayer(z int) error {
	if lo, hi, ok := p.core.LayerBounds(p.core.Params().Layers.Select); ok {
		z = min(max(z, lo), hi)
	}
	return p.apply(FieldLayer, func(v *viewer.Params) {
		v.Layer = z
	})
}

func (p *Panel) apply(f Field, fn func(v *viewer.Params)) error {
	if !slices.Contains(Fields(p.core.Params().Mode), f) {
		return fmt.Errorf("%w: %s", ErrUnavailable, f)
	}
	params, err := p.core.UpdateParams(fn)
	if err != nil {
		return fmt.Errorf("set %s: %w", f, err)
	}
	p.log.Debug("control changed",
		zap.String("field", string(f)),
		zap.String("mode", string(params.Mode)),
		zap.String("layer", params.Layers.Select))
	p.act.Submit(p.ctx)
	return nil
}
