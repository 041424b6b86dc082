// Package debug saves frames and annotation snapshots to disk.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// Exporter writes PNG files into an output directory.
type Exporter struct {
	outputDir string
	prefix    string
	now       func() time.Time
}

// NewExporter creates an exporter. An empty dir writes to the working directory.
func NewExporter(outputDir, prefix string) *Exporter {
	return &Exporter{
		outputDir: outputDir,
		prefix:    prefix,
		now:       time.Now,
	}
}

// SetOutputDir sets the output directory.
func (e *Exporter) SetOutputDir(dir string) {
	e.outputDir = dir
}

// SavePixels writes bottom-up RGBA rows, as read back from GL, as a PNG.
func (e *Exporter) SavePixels(pixels []byte, width, height int, name string) (string, error) {
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		srcOffset := (height - 1 - y) * rowSize
		dstOffset := y * img.Stride
		copy(img.Pix[dstOffset:dstOffset+rowSize], pixels[srcOffset:srcOffset+rowSize])
	}

	return e.SaveImage(img, name)
}

// SaveImage writes img as a PNG named after name and the current time.
func (e *Exporter) SaveImage(img image.Image, name string) (string, error) {
	if e.outputDir != "" {
		if err := os.MkdirAll(e.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := e.Filename(name)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return filename, nil
}

// Filename returns the path SaveImage would write for name.
func (e *Exporter) Filename(name string) string {
	timestamp := e.now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s_%s.png", e.prefix, name, timestamp)
	if e.outputDir != "" {
		filename = filepath.Join(e.outputDir, filename)
	}
	return filename
}
