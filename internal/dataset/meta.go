// Package dataset describes and loads scan chunks and their segmentation layers.
package dataset

import (
	"sort"

	"github.com/Faultbox/segview/internal/volume"
)

// Clip is the placement of a chunk in global scan coordinates: in-plane origin
// (X, Y), first slice Z and depth D along the slicing axis.
type Clip struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
	D int `yaml:"d"`
}

// Shape is the voxel extent of a chunk.
type Shape struct {
	W int `yaml:"w"`
	H int `yaml:"h"`
	D int `yaml:"d"`
}

// Entry describes one layer of a dataset.
type Entry struct {
	Clip  Clip   `yaml:"clip"`
	Shape Shape  `yaml:"shape"`
	Ref   string `yaml:"ref"` // Loader-specific source reference
}

// Box returns the global voxel region covered by the entry. Depth comes from
// the shape when known, otherwise from the clip.
func (e Entry) Box() volume.Box {
	d := e.Shape.D
	if d == 0 {
		d = e.Clip.D
	}
	return volume.Box{
		Origin: [3]int{e.Clip.X, e.Clip.Y, e.Clip.Z},
		Size:   [3]int{e.Shape.W, e.Shape.H, d},
	}
}

// VolumeMeta describes the scalar volume chunks, keyed by layer id.
type VolumeMeta struct {
	ID   string           `yaml:"id"`
	Nrrd map[string]Entry `yaml:"nrrd"`
}

// SegmentMeta describes the segmentation chunks, keyed by layer id.
type SegmentMeta struct {
	ID       string           `yaml:"id"`
	Segments map[string]Entry `yaml:"segments"`
}

// IDs returns the volume layer ids in sorted order.
func (m *VolumeMeta) IDs() []string {
	if m == nil {
		return nil
	}
	ids := make([]string, 0, len(m.Nrrd))
	for id := range m.Nrrd {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns the volume entry for id.
func (m *VolumeMeta) Lookup(id string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	e, ok := m.Nrrd[id]
	return e, ok
}

// Lookup returns the segment entry for id.
func (m *SegmentMeta) Lookup(id string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	e, ok := m.Segments[id]
	return e, ok
}
