package volume

import (
	"math"
	"testing"
)

func box(ox, oy, oz, w, h, d int) Box {
	return Box{Origin: [3]int{ox, oy, oz}, Size: [3]int{w, h, d}}
}

func TestBoxIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Box
		want Box
		ok   bool
	}{
		{"overlap", box(0, 0, 0, 10, 10, 10), box(5, 5, 5, 10, 10, 10), box(5, 5, 5, 5, 5, 5), true},
		{"contained", box(0, 0, 0, 10, 10, 10), box(2, 3, 4, 2, 2, 2), box(2, 3, 4, 2, 2, 2), true},
		{"touching", box(0, 0, 0, 5, 5, 5), box(5, 0, 0, 5, 5, 5), Box{}, false},
		{"disjoint", box(0, 0, 0, 2, 2, 2), box(10, 10, 10, 2, 2, 2), Box{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.a.Intersect(tt.b)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Intersect() = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFromSamplesValidates(t *testing.T) {
	if _, err := FromSamples(box(0, 0, 0, 2, 2, 2), make([]float32, 7)); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := FromSamples(box(0, 0, 0, 0, 2, 2), nil); err == nil {
		t.Error("expected empty grid error")
	}
	g, err := FromSamples(box(0, 0, 0, 2, 1, 1), []float32{1, 2})
	if err != nil {
		t.Fatalf("FromSamples: %v", err)
	}
	if g.At(1, 0, 0) != 2 {
		t.Errorf("At(1,0,0) = %v, want 2", g.At(1, 0, 0))
	}
}

func TestNormalize(t *testing.T) {
	g, _ := FromSamples(box(0, 0, 0, 4, 1, 1), []float32{10, 20, 30, 50})
	g.Normalize()

	want := []float32{0, 0.25, 0.5, 1}
	for i, w := range want {
		if math.Abs(float64(g.Data[i]-w)) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, g.Data[i], w)
		}
	}

	flat, _ := FromSamples(box(0, 0, 0, 2, 1, 1), []float32{3, 3})
	flat.Normalize()
	if flat.Data[0] != 0 || flat.Data[1] != 0 {
		t.Errorf("constant grid should normalize to zero, got %v", flat.Data)
	}
}

func TestClipTranslatesIntoRegion(t *testing.T) {
	// Segment lives at global origin (10, 10, 10); mark global voxel (12, 11, 13).
	seg := New(box(10, 10, 10, 5, 5, 5))
	seg.Set(2, 1, 3, 7)

	out := Clip(seg, box(12, 10, 12, 4, 4, 4))

	if out.Origin != [3]int{12, 10, 12} {
		t.Errorf("clip origin = %v", out.Origin)
	}
	if got := out.At(0, 1, 1); got != 7 {
		t.Errorf("clipped voxel = %v, want 7", got)
	}
	// Region voxels beyond the segment extent must be empty.
	if got := out.At(3, 3, 3); got != 0 {
		t.Errorf("uncovered voxel = %v, want 0", got)
	}

	seg.Set(2, 1, 3, 0)
	if out.At(0, 1, 1) != 7 {
		t.Error("clip must not share memory with its source")
	}
}

func TestClipDisjointIsEmpty(t *testing.T) {
	seg := New(box(0, 0, 0, 2, 2, 2))
	seg.Data[0] = 1
	out := Clip(seg, box(100, 100, 100, 3, 3, 3))
	if out.Occupancy() != 0 {
		t.Errorf("expected empty clip, occupancy %v", out.Occupancy())
	}
}

func TestSignedDistanceSphere(t *testing.T) {
	const n = 16
	g := New(box(0, 0, 0, n, n, n))
	c := float64(n-1) / 2
	for z := 0; z < n; z++ {
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				dx, dy, dz := float64(x)-c, float64(y)-c, float64(z)-c
				if math.Sqrt(dx*dx+dy*dy+dz*dz) <= 4 {
					g.Set(x, y, z, 1)
				}
			}
		}
	}

	f := SignedDistance(g)

	if d := f.At(7, 7, 7); d >= 0 {
		t.Errorf("center distance = %v, want negative", d)
	}
	if d := f.At(0, 0, 0); d <= 0 {
		t.Errorf("corner distance = %v, want positive", d)
	}
	// Farther from the surface means larger magnitude.
	if f.At(0, 0, 0) <= f.At(7, 7, 2) {
		t.Errorf("corner %v should be farther than near-surface voxel %v", f.At(0, 0, 0), f.At(7, 7, 2))
	}
	// Values are normalized by the largest extent.
	for _, v := range f.Data {
		if v < -1 || v > 1 {
			t.Fatalf("distance %v outside [-1, 1]", v)
		}
	}
}

func TestSignedDistanceDegenerate(t *testing.T) {
	empty := New(box(0, 0, 0, 3, 3, 3))
	if f := SignedDistance(empty); f.At(1, 1, 1) != 1 {
		t.Errorf("empty mask distance = %v, want 1", f.At(1, 1, 1))
	}

	full := New(box(0, 0, 0, 3, 3, 3))
	for i := range full.Data {
		full.Data[i] = 1
	}
	if f := SignedDistance(full); f.At(1, 1, 1) != -1 {
		t.Errorf("full mask distance = %v, want -1", f.At(1, 1, 1))
	}
}

func TestFieldWithinInverse(t *testing.T) {
	g := New(box(0, 0, 0, 2, 1, 1))
	g.Data[0], g.Data[1] = -0.2, 0.2
	f := &Field{Grid: g}

	if !f.Within(0, 0, 0, 0.01, false) {
		t.Error("inside voxel should be within surface")
	}
	if f.Within(1, 0, 0, 0.01, false) {
		t.Error("outside voxel should not be within surface")
	}
	if f.Within(0, 0, 0, 0.01, true) || !f.Within(1, 0, 0, 0.01, true) {
		t.Error("inverse should flip sides")
	}
}
