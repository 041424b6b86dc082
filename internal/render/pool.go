package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
)

// Class is the kind of output a target is reserved for.
type Class int

const (
	ClassSegment Class = iota // Segment-only renders
	ClassVolume               // Volume and volume+segment composites
	ClassLayer                // Single-slice and grid-of-slices renders

	NumClasses = 3
)

func (c Class) String() string {
	switch c {
	case ClassSegment:
		return "segment"
	case ClassVolume:
		return "volume"
	case ClassLayer:
		return "layer"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// targetIndex is the one place that maps a class to its target slot.
var targetIndex = [NumClasses]int{
	ClassSegment: 0,
	ClassVolume:  1,
	ClassLayer:   2,
}

// ClearColor is what a target is cleared to before every write.
var ClearColor = color.RGBA{A: 0xff}

// Pool owns the three render targets for the process lifetime.
//
// A write binds exactly one target: the callback draws into a scratch canvas,
// and only a successful callback publishes the scratch contents into the
// target. Writers are serialized among themselves; readers only wait for the
// publish copy, never for the drawing, and never see a partial buffer.
type Pool struct {
	writeMu  sync.Mutex // Held for a whole write
	mu       sync.Mutex // Guards target pixels during publish and snapshot
	targets  [NumClasses]*Target
	scratch  [NumClasses]*image.RGBA
	versions [NumClasses]atomic.Uint64
	bound    atomic.Int32 // bound class + 1, zero when unbound
}

// NewPool allocates the targets at a fixed resolution.
func NewPool(width, height int) *Pool {
	p := &Pool{}
	for c := Class(0); c < NumClasses; c++ {
		i := targetIndex[c]
		p.targets[i] = NewTarget(c.String(), width, height)
		p.scratch[i] = image.NewRGBA(p.targets[i].image.Bounds())
		p.targets[i].clear(ClearColor)
	}
	return p
}

// Target returns the target reserved for class c.
func (p *Pool) Target(c Class) *Target {
	return p.targets[targetIndex[c]]
}

// Size returns the shared target resolution.
func (p *Pool) Size() (width, height int) {
	return p.targets[0].Size()
}

// BindForWrite binds the target for c, runs draw against a cleared canvas and
// unbinds on every exit path. The target changes only if draw returns nil.
// Concurrent writers are serialized.
func (p *Pool) BindForWrite(c Class, drawFn func(dst draw.Image) error) (err error) {
	if c < 0 || c >= NumClasses {
		return fmt.Errorf("bind %v: unknown class", c)
	}

	p.writeMu.Lock()
	p.bound.Store(int32(c) + 1)
	defer func() {
		p.bound.Store(0)
		p.writeMu.Unlock()
		if r := recover(); r != nil {
			err = fmt.Errorf("draw into %v target panicked: %v", c, r)
		}
	}()

	i := targetIndex[c]
	canvas := p.scratch[i]
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(ClearColor), image.Point{}, draw.Src)

	if err := drawFn(canvas); err != nil {
		return err
	}

	p.mu.Lock()
	copy(p.targets[i].image.Pix, canvas.Pix)
	p.versions[i].Add(1)
	p.mu.Unlock()
	return nil
}

// Bound reports which class is currently bound for writing, if any.
func (p *Pool) Bound() (Class, bool) {
	v := p.bound.Load()
	if v == 0 {
		return 0, false
	}
	return Class(v - 1), true
}

// Snapshot returns a copy of the target contents for c along with its version.
func (p *Pool) Snapshot(c Class) (*image.RGBA, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := targetIndex[c]
	return p.targets[i].snapshot(), p.versions[i].Load()
}

// Version returns how many successful writes target c has received.
func (p *Pool) Version(c Class) uint64 {
	return p.versions[targetIndex[c]].Load()
}
