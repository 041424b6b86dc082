package debug

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedExporter(dir string) *Exporter {
	e := NewExporter(dir, "segview")
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }
	return e
}

func TestFilename(t *testing.T) {
	e := fixedExporter("out")
	want := filepath.Join("out", "segview_frame_2026-03-01_12-30-00.png")
	if got := e.Filename("frame"); got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
}

func TestSavePixelsFlipsRows(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	e := fixedExporter(dir)

	// Bottom row red, top row blue, as GL would return them.
	pixels := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}
	path, err := e.SavePixels(pixels, 1, 2, "frame")
	if err != nil {
		t.Fatalf("SavePixels: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}

	if r, _, b, _ := img.At(0, 0).RGBA(); r != 0 || b != 0xffff {
		t.Errorf("top pixel should be blue, got %v", img.At(0, 0))
	}
	if r, _, _, _ := img.At(0, 1).RGBA(); r != 0xffff {
		t.Errorf("bottom pixel should be red, got %v", img.At(0, 1))
	}
}

func TestSavePixelsSizeMismatch(t *testing.T) {
	e := fixedExporter(t.TempDir())
	if _, err := e.SavePixels(make([]byte, 3), 1, 1, "frame"); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestSaveImage(t *testing.T) {
	e := fixedExporter(t.TempDir())
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(1, 1, color.RGBA{G: 200, A: 255})

	path, err := e.SaveImage(img, "annotation-1")
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}
