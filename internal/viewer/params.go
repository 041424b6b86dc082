package viewer

import (
	"fmt"
	"slices"
)

// Surface threshold bounds.
const (
	SurfaceMin = 0.001
	SurfaceMax = 0.5
)

// Layers is the dataset selection.
type Layers struct {
	Select  string
	Options []string
}

// Params is the mutable viewer configuration.
type Params struct {
	Mode    Mode
	Layers  Layers
	Surface float64 // SDF iso-threshold
	Inverse bool    // Flip which side of the surface is shaded
	Layer   int     // Global slice index in layer mode
}

// DefaultParams returns the parameters a new core starts with.
func DefaultParams() Params {
	return Params{Mode: ModeVolumeSegment, Surface: 0.03}
}

func (p Params) clone() Params {
	p.Layers.Options = slices.Clone(p.Layers.Options)
	return p
}

// Validate checks the values a mutation may set.
func (p Params) Validate() error {
	if !p.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrParams, p.Mode)
	}
	if p.Surface < SurfaceMin || p.Surface > SurfaceMax {
		return fmt.Errorf("%w: surface %g outside [%g, %g]", ErrParams, p.Surface, SurfaceMin, SurfaceMax)
	}
	if len(p.Layers.Options) > 0 && !slices.Contains(p.Layers.Options, p.Layers.Select) {
		return fmt.Errorf("%w: unknown layer %q", ErrParams, p.Layers.Select)
	}
	return nil
}
