package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/segview/pkg/nrrd"
)

func writeChunk(t *testing.T, path string, sizes [3]int, fill func(i int) float32) {
	t.Helper()
	v := &nrrd.Volume{Sizes: sizes, Type: nrrd.Uint8, Data: make([]float32, sizes[0]*sizes[1]*sizes[2])}
	for i := range v.Data {
		v.Data[i] = fill(i)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := nrrd.Write(f, v, true); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

const testIndex = `
volume:
  id: scroll
  nrrd:
    A:
      clip: {x: 4, y: 2, z: 0, d: 3}
      shape: {w: 2, h: 2, d: 3}
      ref: volume/A.nrrd
    B:
      clip: {x: 0, y: 0, z: 5, d: 2}
      shape: {w: 4, h: 4, d: 2}
      ref: volume/missing.nrrd
segment:
  id: scroll
  segments:
    A:
      clip: {x: 0, y: 0, z: 0, d: 3}
      shape: {w: 8, h: 8, d: 3}
      ref: segment/A.nrrd
`

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.yaml")
	if err := os.WriteFile(indexPath, []byte(testIndex), 0644); err != nil {
		t.Fatal(err)
	}
	writeChunk(t, filepath.Join(dir, "volume", "A.nrrd"), [3]int{2, 2, 3}, func(i int) float32 { return float32(i * 10) })
	writeChunk(t, filepath.Join(dir, "segment", "A.nrrd"), [3]int{8, 8, 3}, func(i int) float32 { return float32(i % 2) })

	l, err := OpenIndex(indexPath)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	ctx := context.Background()

	vm, err := l.VolumeMeta(ctx)
	if err != nil {
		t.Fatalf("VolumeMeta: %v", err)
	}
	if got := vm.IDs(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("IDs() = %v, want [A B]", got)
	}

	entry, ok := vm.Lookup("A")
	if !ok {
		t.Fatal("expected volume entry A")
	}
	g, err := l.LoadVolume(ctx, entry)
	if err != nil {
		t.Fatalf("LoadVolume: %v", err)
	}
	if g.Origin != [3]int{4, 2, 0} {
		t.Errorf("volume origin = %v, want clip origin", g.Origin)
	}
	if g.At(0, 0, 0) != 0 || g.At(1, 1, 2) != 1 {
		t.Errorf("volume not normalized: first %v last %v", g.At(0, 0, 0), g.At(1, 1, 2))
	}

	sm, _ := l.SegmentMeta(ctx)
	segEntry, _ := sm.Lookup("A")
	seg, err := l.LoadSegment(ctx, segEntry)
	if err != nil {
		t.Fatalf("LoadSegment: %v", err)
	}
	if seg.At(1, 0, 0) != 1 {
		t.Errorf("segment labels should not be normalized away, got %v", seg.At(1, 0, 0))
	}

	missing, _ := vm.Lookup("B")
	if _, err := l.LoadVolume(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing chunk, got %v", err)
	}
}

func TestFileLoaderShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "index.yaml")
	if err := os.WriteFile(indexPath, []byte(testIndex), 0644); err != nil {
		t.Fatal(err)
	}
	writeChunk(t, filepath.Join(dir, "volume", "A.nrrd"), [3]int{3, 3, 3}, func(int) float32 { return 1 })

	l, err := OpenIndex(indexPath)
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	vm, _ := l.VolumeMeta(context.Background())
	e, _ := vm.Lookup("A")
	if _, err := l.LoadVolume(context.Background(), e); err == nil {
		t.Error("expected shape mismatch error")
	}
}

func TestOpenIndexErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := OpenIndex(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("expected error for missing index")
	}

	empty := filepath.Join(dir, "empty.yaml")
	os.WriteFile(empty, []byte("volume:\n  id: x\n"), 0644)
	if _, err := OpenIndex(empty); err == nil {
		t.Error("expected error for index without volumes")
	}
}

func TestLoaderHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := Synthetic()
	if _, err := l.VolumeMeta(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := l.LoadSegment(ctx, Entry{Ref: "segment/A"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSynthetic(t *testing.T) {
	l := Synthetic()
	ctx := context.Background()

	vm, _ := l.VolumeMeta(ctx)
	a, ok := vm.Lookup("A")
	if !ok || a.Clip.Z != 0 || a.Clip.D != 10 {
		t.Errorf("layer A clip = %+v", a.Clip)
	}
	b, ok := vm.Lookup("B")
	if !ok || b.Clip.Z != 5 || b.Clip.D != 20 {
		t.Errorf("layer B clip = %+v", b.Clip)
	}

	g, err := l.LoadVolume(ctx, b)
	if err != nil {
		t.Fatalf("LoadVolume: %v", err)
	}
	if g.D() != 20 || g.Origin[2] != 5 {
		t.Errorf("volume B box = %+v", g.Box)
	}

	// Loads hand out copies.
	g.Data[0] = 42
	again, _ := l.LoadVolume(ctx, b)
	if again.Data[0] == 42 {
		t.Error("LoadVolume must return a copy")
	}

	sm, _ := l.SegmentMeta(ctx)
	se, _ := sm.Lookup("A")
	seg, err := l.LoadSegment(ctx, se)
	if err != nil {
		t.Fatalf("LoadSegment: %v", err)
	}
	if seg.Occupancy() == 0 {
		t.Error("expected a non-empty segment")
	}
}
