// Package render owns the fixed set of off-screen render targets the viewer
// pipelines write into and annotations snapshot from.
package render

import (
	"image"
	"image/color"
	"image/draw"
)

// Target is an off-screen color buffer with a fixed resolution.
type Target struct {
	name  string
	image *image.RGBA
}

// NewTarget allocates a target. Sizes below one pixel are clamped to one.
func NewTarget(name string, width, height int) *Target {
	width = max(width, 1)
	height = max(height, 1)
	return &Target{name: name, image: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Name returns the target's debug name.
func (t *Target) Name() string {
	return t.name
}

// Size returns the target dimensions.
func (t *Target) Size() (width, height int) {
	b := t.image.Bounds()
	return b.Dx(), b.Dy()
}

// clear fills the target with c.
func (t *Target) clear(c color.RGBA) {
	draw.Draw(t.image, t.image.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// snapshot returns a deep copy of the current contents.
func (t *Target) snapshot() *image.RGBA {
	out := image.NewRGBA(t.image.Bounds())
	copy(out.Pix, t.image.Pix)
	return out
}
