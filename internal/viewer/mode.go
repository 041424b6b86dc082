// Package viewer is the mode state machine that loads, clips and renders a
// volume and its segmentation into the render target pool.
package viewer

import (
	"fmt"

	"github.com/Faultbox/segview/internal/render"
)

// Mode selects a pipeline and the parameters that apply to it.
type Mode string

const (
	ModeSegment       Mode = "segment"
	ModeVolume        Mode = "volume"
	ModeVolumeSegment Mode = "volume-segment"
	ModeLayer         Mode = "layer"
	ModeGridLayer     Mode = "grid-layer"
)

// Modes lists every mode in selector order.
var Modes = []Mode{ModeSegment, ModeVolume, ModeVolumeSegment, ModeLayer, ModeGridLayer}

// modeClass maps each mode to the render target class it writes. Volume and
// volume-segment share a target, as do layer and grid-layer.
var modeClass = map[Mode]render.Class{
	ModeSegment:       render.ClassSegment,
	ModeVolume:        render.ClassVolume,
	ModeVolumeSegment: render.ClassVolume,
	ModeLayer:         render.ClassLayer,
	ModeGridLayer:     render.ClassLayer,
}

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, ok := modeClass[m]; !ok {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	_, ok := modeClass[m]
	return ok
}

// Class returns the render target class m writes into.
func (m Mode) Class() render.Class {
	return modeClass[m]
}

// Composite reports whether m needs both the volume and the segmentation.
func (m Mode) Composite() bool {
	switch m {
	case ModeVolumeSegment, ModeLayer, ModeGridLayer:
		return true
	}
	return false
}

// representative is the mode used to refresh a class's buffer when the active
// mode writes elsewhere.
var representative = [render.NumClasses]Mode{
	render.ClassSegment: ModeSegment,
	render.ClassVolume:  ModeVolume,
	render.ClassLayer:   ModeLayer,
}
