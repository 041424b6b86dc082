package volume

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Field is a signed distance field over a grid's box. Values are negative inside
// the mask and normalized by the largest grid dimension, so the surface sits at 0
// and thresholds are resolution independent.
type Field struct {
	*Grid
}

var neighbors = [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}

// SignedDistance computes the SDF of the mask {v > 0} of g.
// An empty mask yields +1 everywhere; a full mask yields -1 everywhere.
func SignedDistance(g *Grid) *Field {
	out := New(g.Box)
	scale := float64(max(g.W(), g.H(), g.D()))

	inside := func(x, y, z int) bool { return g.At(x, y, z) > 0 }

	// Inner boundary: mask voxels touching a non-mask voxel. Outer boundary: the
	// reverse. Outside voxels measure to the inner set, inside voxels to the outer.
	var inner, outer kdtree.Points
	for z := 0; z < g.D(); z++ {
		for y := 0; y < g.H(); y++ {
			for x := 0; x < g.W(); x++ {
				in := inside(x, y, z)
				for _, n := range neighbors {
					nx, ny, nz := x+n[0], y+n[1], z+n[2]
					if nx < 0 || ny < 0 || nz < 0 || nx >= g.W() || ny >= g.H() || nz >= g.D() {
						continue
					}
					if inside(nx, ny, nz) != in {
						p := kdtree.Point{float64(x), float64(y), float64(z)}
						if in {
							inner = append(inner, p)
						} else {
							outer = append(outer, p)
						}
						break
					}
				}
			}
		}
	}

	if len(inner) == 0 {
		fill := float32(1)
		if g.Occupancy() == 1 {
			fill = -1
		}
		for i := range out.Data {
			out.Data[i] = fill
		}
		return &Field{Grid: out}
	}

	innerTree := kdtree.New(inner, false)
	outerTree := kdtree.New(outer, false)

	for z := 0; z < g.D(); z++ {
		for y := 0; y < g.H(); y++ {
			for x := 0; x < g.W(); x++ {
				q := kdtree.Point{float64(x), float64(y), float64(z)}
				var d float64
				if inside(x, y, z) {
					_, sq := outerTree.Nearest(q)
					d = -(math.Sqrt(sq) - 0.5)
				} else {
					_, sq := innerTree.Nearest(q)
					d = math.Sqrt(sq) - 0.5
				}
				out.Set(x, y, z, float32(d/scale))
			}
		}
	}
	return &Field{Grid: out}
}

// Within reports whether the local voxel lies within the surface band at
// threshold. Inverse flips which side of the surface counts as inside.
func (f *Field) Within(x, y, z int, threshold float64, inverse bool) bool {
	d := float64(f.At(x, y, z))
	if inverse {
		d = -d
	}
	return d <= threshold
}
