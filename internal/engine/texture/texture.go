// Package texture uploads RGBA images as GL textures.
package texture

import (
	"image"
	"image/draw"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Texture is a 2D RGBA texture owned by the GL context.
type Texture struct {
	ID     uint32
	Width  int32
	Height int32
}

// FromImage uploads img, converting to RGBA when needed.
func FromImage(img image.Image) *Texture {
	rgba := ToRGBA(img)
	t := &Texture{}
	gl.GenTextures(1, &t.ID)
	gl.BindTexture(gl.TEXTURE_2D, t.ID)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	t.upload(rgba)
	return t
}

func (t *Texture) upload(rgba *image.RGBA) {
	b := rgba.Bounds()
	t.Width, t.Height = int32(b.Dx()), int32(b.Dy())
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, t.Width, t.Height, 0,
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
}

// Destroy deletes the texture.
func (t *Texture) Destroy() {
	if t.ID != 0 {
		gl.DeleteTextures(1, &t.ID)
		t.ID = 0
	}
}

// ToRGBA returns img as a tightly packed *image.RGBA with a zero origin.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == rgba.Rect.Dx()*4 && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
