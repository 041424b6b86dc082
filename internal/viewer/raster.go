package viewer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/Faultbox/segview/internal/volume"
)

// surfaceTint shades voxels within the segment surface band.
var surfaceTint = color.RGBA{R: 0xff, G: 0x8c, B: 0x1a, A: 0xff}

var labelPalette = []color.RGBA{
	{R: 0xe6, G: 0x19, B: 0x4b, A: 0xff},
	{R: 0x3c, G: 0xb4, B: 0x4b, A: 0xff},
	{R: 0xff, G: 0xe1, B: 0x19, A: 0xff},
	{R: 0x43, G: 0x63, B: 0xd8, A: 0xff},
	{R: 0xf5, G: 0x82, B: 0x31, A: 0xff},
	{R: 0x91, G: 0x1e, B: 0xb4, A: 0xff},
}

// rasterize draws the stage for p.Mode at grid resolution and scales it to dst.
func rasterize(dst xdraw.Image, p Params, s *stage) error {
	var src *image.RGBA
	switch p.Mode {
	case ModeSegment:
		src = labelMIP(s.segment)
	case ModeVolume:
		src = intensityMIP(s.volume)
	case ModeVolumeSegment:
		src = composite(s.volume, s.sdf, p.Surface, p.Inverse)
	case ModeLayer:
		src = image.NewRGBA(image.Rect(0, 0, s.volume.W(), s.volume.H()))
		drawSlice(src, image.Point{}, s.volume, s.sdf, p.Layer-s.volume.Origin[2], p.Surface, p.Inverse)
	case ModeGridLayer:
		src = sliceGrid(s.volume, s.sdf, p.Surface, p.Inverse)
	default:
		return fmt.Errorf("%w: no pipeline for mode %q", ErrParams, p.Mode)
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return nil
}

func gray(v float32) color.RGBA {
	g := uint8(math.Round(float64(min(max(v, 0), 1)) * 255))
	return color.RGBA{R: g, G: g, B: g, A: 0xff}
}

func mix(a, b color.RGBA, t float64) color.RGBA {
	l := func(x, y uint8) uint8 { return uint8(math.Round(float64(x)*(1-t) + float64(y)*t)) }
	return color.RGBA{R: l(a.R, b.R), G: l(a.G, b.G), B: l(a.B, b.B), A: 0xff}
}

// labelMIP projects the largest label along z.
func labelMIP(seg *volume.Grid) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, seg.W(), seg.H()))
	for y := 0; y < seg.H(); y++ {
		for x := 0; x < seg.W(); x++ {
			var label float32
			for z := 0; z < seg.D(); z++ {
				label = max(label, seg.At(x, y, z))
			}
			c := color.RGBA{A: 0xff}
			if label > 0 {
				c = labelPalette[(int(label)-1+len(labelPalette))%len(labelPalette)]
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// intensityMIP projects the brightest sample along z.
func intensityMIP(vol *volume.Grid) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, vol.W(), vol.H()))
	for y := 0; y < vol.H(); y++ {
		for x := 0; x < vol.W(); x++ {
			var v float32
			for z := 0; z < vol.D(); z++ {
				v = max(v, vol.At(x, y, z))
			}
			img.SetRGBA(x, y, gray(v))
		}
	}
	return img
}

// composite marches each column front to back; the first voxel inside the
// surface band is shaded by depth, columns that never enter it show the MIP.
func composite(vol *volume.Grid, sdf *volume.Field, surface float64, inverse bool) *image.RGBA {
	img := intensityMIP(vol)
	depth := float64(max(vol.D()-1, 1))
	for y := 0; y < vol.H(); y++ {
		for x := 0; x < vol.W(); x++ {
			for z := 0; z < vol.D(); z++ {
				if !sdf.Within(x, y, z, surface, inverse) {
					continue
				}
				shade := 1 - 0.6*float64(z)/depth
				tint := mix(color.RGBA{A: 0xff}, surfaceTint, shade)
				img.SetRGBA(x, y, mix(tint, gray(vol.At(x, y, z)), 0.25))
				break
			}
		}
	}
	return img
}

// drawSlice draws local slice z of vol at off, tinting the surface band.
// Out-of-range slices are clamped to the nearest one.
func drawSlice(img *image.RGBA, off image.Point, vol *volume.Grid, sdf *volume.Field, z int, surface float64, inverse bool) {
	z = min(max(z, 0), vol.D()-1)
	for y := 0; y < vol.H(); y++ {
		for x := 0; x < vol.W(); x++ {
			c := gray(vol.At(x, y, z))
			if sdf.Within(x, y, z, surface, inverse) {
				c = mix(c, surfaceTint, 0.5)
			}
			img.SetRGBA(off.X+x, off.Y+y, c)
		}
	}
}

// sliceGrid tiles every slice in row-major order.
func sliceGrid(vol *volume.Grid, sdf *volume.Field, surface float64, inverse bool) *image.RGBA {
	cols := int(math.Ceil(math.Sqrt(float64(vol.D()))))
	rows := (vol.D() + cols - 1) / cols
	img := image.NewRGBA(image.Rect(0, 0, cols*vol.W(), rows*vol.H()))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 0xff
		}
	}
	for z := 0; z < vol.D(); z++ {
		off := image.Pt((z%cols)*vol.W(), (z/cols)*vol.H())
		drawSlice(img, off, vol, sdf, z, surface, inverse)
	}
	return img
}
