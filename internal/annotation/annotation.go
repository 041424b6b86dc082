// Package annotation places snapshot quads in the scene from pointer picks.
package annotation

import (
	"image"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/segview/internal/engine/picking"
	"github.com/Faultbox/segview/internal/viewer"
)

// Annotation is a placed quad showing a frozen copy of a render target.
type Annotation struct {
	ID      int
	Mode    viewer.Mode // Mode active when placed
	Center  mgl32.Vec3  // World position of the quad center
	Width   float32     // Extent along X
	Height  float32     // Extent along Z
	Texture *image.RGBA // Owned copy; never written after placement
	Version uint64      // Target version the texture was copied from
	Created time.Time
}

// Rect returns the quad's world-space footprint.
func (a *Annotation) Rect() picking.Rect {
	return picking.NewRect(a.Center, a.Width, a.Height)
}

// QuadID, QuadRect and QuadImage let the GL renderer draw the annotation.
func (a *Annotation) QuadID() int { return a.ID }
func (a *Annotation) QuadRect() picking.Rect { return a.Rect() }
func (a *Annotation) QuadImage() *image.RGBA { return a.Texture }

// Store holds placed annotations. There is no removal.
type Store struct {
	mu    sync.RWMutex
	items []*Annotation
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add assigns the next id to a and appends it.
func (s *Store) Add(a *Annotation) *Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = len(s.items) + 1
	s.items = append(s.items, a)
	return a
}

// All returns the annotations in placement order.
func (s *Store) All() []*Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Annotation(nil), s.items...)
}

// Get returns the annotation with id.
func (s *Store) Get(id int) (*Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 1 || id > len(s.items) {
		return nil, false
	}
	return s.items[id-1], true
}

// Len returns the number of annotations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
