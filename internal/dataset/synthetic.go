package dataset

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/Faultbox/segview/internal/volume"
)

// MemoryLoader serves metadata and chunks held in memory.
type MemoryLoader struct {
	mu      sync.RWMutex
	volume  VolumeMeta
	segment SegmentMeta
	grids   map[string]*volume.Grid
}

// NewMemoryLoader returns an empty loader with the given dataset id.
func NewMemoryLoader(id string) *MemoryLoader {
	return &MemoryLoader{
		volume:  VolumeMeta{ID: id, Nrrd: make(map[string]Entry)},
		segment: SegmentMeta{ID: id, Segments: make(map[string]Entry)},
		grids:   make(map[string]*volume.Grid),
	}
}

// AddLayer registers a layer. vol is placed at clip; seg keeps its own origin.
// Either grid may be nil to leave that side of the layer missing.
func (m *MemoryLoader) AddLayer(id string, clip Clip, vol, seg *volume.Grid) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vol != nil {
		ref := "volume/" + id
		m.volume.Nrrd[id] = Entry{Clip: clip, Shape: Shape{W: vol.W(), H: vol.H(), D: vol.D()}, Ref: ref}
		m.grids[ref] = vol
	}
	if seg != nil {
		ref := "segment/" + id
		m.segment.Segments[id] = Entry{
			Clip:  Clip{X: seg.Origin[0], Y: seg.Origin[1], Z: seg.Origin[2], D: seg.D()},
			Shape: Shape{W: seg.W(), H: seg.H(), D: seg.D()},
			Ref:   ref,
		}
		m.grids[ref] = seg
	}
}

// VolumeMeta returns a copy of the volume metadata.
func (m *MemoryLoader) VolumeMeta(ctx context.Context) (*VolumeMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := VolumeMeta{ID: m.volume.ID, Nrrd: make(map[string]Entry, len(m.volume.Nrrd))}
	for k, v := range m.volume.Nrrd {
		out.Nrrd[k] = v
	}
	return &out, nil
}

// SegmentMeta returns a copy of the segment metadata.
func (m *MemoryLoader) SegmentMeta(ctx context.Context) (*SegmentMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := SegmentMeta{ID: m.segment.ID, Segments: make(map[string]Entry, len(m.segment.Segments))}
	for k, v := range m.segment.Segments {
		out.Segments[k] = v
	}
	return &out, nil
}

// LoadVolume returns a copy of the stored volume chunk.
func (m *MemoryLoader) LoadVolume(ctx context.Context, e Entry) (*volume.Grid, error) {
	return m.load(ctx, e)
}

// LoadSegment returns a copy of the stored segment chunk.
func (m *MemoryLoader) LoadSegment(ctx context.Context, e Entry) (*volume.Grid, error) {
	return m.load(ctx, e)
}

func (m *MemoryLoader) load(ctx context.Context, e Entry) (*volume.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	g, ok := m.grids[e.Ref]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", e.Ref, ErrNotFound)
	}
	out := volume.New(g.Box)
	copy(out.Data, g.Data)
	return out, nil
}

// Synthetic returns a two-layer demo dataset: "A" with clip {z:0, d:10} and "B"
// with clip {z:5, d:20}. Each volume is a noisy radial gradient and each
// segment a sphere, placed so that the segment only partly overlaps its volume.
func Synthetic() *MemoryLoader {
	m := NewMemoryLoader("synthetic")
	for _, l := range []struct {
		id   string
		clip Clip
	}{
		{"A", Clip{X: 0, Y: 0, Z: 0, D: 10}},
		{"B", Clip{X: 8, Y: 8, Z: 5, D: 20}},
	} {
		const size = 48
		volBox := volume.Box{Origin: [3]int{l.clip.X, l.clip.Y, l.clip.Z}, Size: [3]int{size, size, l.clip.D}}
		segBox := volume.Box{Origin: [3]int{l.clip.X - 8, l.clip.Y - 8, 0}, Size: [3]int{size, size, 32}}
		m.AddLayer(l.id, l.clip, radialVolume(volBox), sphereSegment(segBox, 14))
	}
	return m
}

func radialVolume(b volume.Box) *volume.Grid {
	g := volume.New(b)
	cx, cy := float64(b.Size[0])/2, float64(b.Size[1])/2
	for z := 0; z < b.Size[2]; z++ {
		for y := 0; y < b.Size[1]; y++ {
			for x := 0; x < b.Size[0]; x++ {
				r := math.Hypot(float64(x)-cx, float64(y)-cy)
				ripple := 0.5 + 0.5*math.Sin(r*0.6+float64(z)*0.4)
				g.Set(x, y, z, float32(ripple*math.Exp(-r/40)))
			}
		}
	}
	g.Normalize()
	return g
}

func sphereSegment(b volume.Box, radius float64) *volume.Grid {
	g := volume.New(b)
	cx, cy, cz := float64(b.Size[0])/2, float64(b.Size[1])/2, float64(b.Size[2])/2
	for z := 0; z < b.Size[2]; z++ {
		for y := 0; y < b.Size[1]; y++ {
			for x := 0; x < b.Size[0]; x++ {
				dx, dy, dz := float64(x)-cx, float64(y)-cy, float64(z)-cz
				if math.Sqrt(dx*dx+dy*dy+dz*dz) <= radius {
					g.Set(x, y, z, 1)
				}
			}
		}
	}
	return g
}
