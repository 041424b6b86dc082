// Package volume holds voxel grids in global scan coordinates and the CPU passes
// run on them: clipping a segmentation into a volume's region and computing a
// signed distance field of the clipped mask.
package volume

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Box is an axis-aligned voxel region: origin plus extent, in global coordinates.
type Box struct {
	Origin [3]int
	Size   [3]int
}

// Contains reports whether the global voxel p lies inside the box.
func (b Box) Contains(p [3]int) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Origin[i] || p[i] >= b.Origin[i]+b.Size[i] {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of two boxes and whether it is non-empty.
func (b Box) Intersect(o Box) (Box, bool) {
	var out Box
	for i := 0; i < 3; i++ {
		lo := max(b.Origin[i], o.Origin[i])
		hi := min(b.Origin[i]+b.Size[i], o.Origin[i]+o.Size[i])
		if hi <= lo {
			return Box{}, false
		}
		out.Origin[i] = lo
		out.Size[i] = hi - lo
	}
	return out, true
}

// Grid is a dense scalar field stored x-fastest.
type Grid struct {
	Box
	Data []float32
}

// New allocates a zeroed grid covering box.
func New(box Box) *Grid {
	return &Grid{Box: box, Data: make([]float32, box.Size[0]*box.Size[1]*box.Size[2])}
}

// FromSamples wraps samples laid out x-fastest for the given box.
func FromSamples(box Box, samples []float32) (*Grid, error) {
	n := box.Size[0] * box.Size[1] * box.Size[2]
	if n == 0 {
		return nil, fmt.Errorf("empty grid %v", box.Size)
	}
	if len(samples) != n {
		return nil, fmt.Errorf("got %d samples for %v grid", len(samples), box.Size)
	}
	return &Grid{Box: box, Data: samples}, nil
}

// W, H and D return the grid extent.
func (g *Grid) W() int { return g.Size[0] }
func (g *Grid) H() int { return g.Size[1] }
func (g *Grid) D() int { return g.Size[2] }

func (g *Grid) index(x, y, z int) int {
	return (z*g.Size[1]+y)*g.Size[0] + x
}

// At returns the sample at local coordinates.
func (g *Grid) At(x, y, z int) float32 {
	return g.Data[g.index(x, y, z)]
}

// Set stores a sample at local coordinates.
func (g *Grid) Set(x, y, z int, v float32) {
	g.Data[g.index(x, y, z)] = v
}

// AtGlobal samples global coordinates, returning 0 outside the grid.
func (g *Grid) AtGlobal(p [3]int) float32 {
	if !g.Contains(p) {
		return 0
	}
	return g.At(p[0]-g.Origin[0], p[1]-g.Origin[1], p[2]-g.Origin[2])
}

// Normalize rescales samples into [0, 1] in place. A constant grid becomes all zero.
func (g *Grid) Normalize() {
	if len(g.Data) == 0 {
		return
	}
	vals := make([]float64, len(g.Data))
	for i, v := range g.Data {
		vals[i] = float64(v)
	}
	lo, hi := floats.Min(vals), floats.Max(vals)
	if hi == lo {
		clear(g.Data)
		return
	}
	floats.AddConst(-lo, vals)
	floats.Scale(1/(hi-lo), vals)
	for i, v := range vals {
		g.Data[i] = float32(v)
	}
}

// Occupancy returns the fraction of non-zero samples.
func (g *Grid) Occupancy() float64 {
	if len(g.Data) == 0 {
		return 0
	}
	n := 0
	for _, v := range g.Data {
		if v != 0 {
			n++
		}
	}
	return float64(n) / float64(len(g.Data))
}
