package annotation

import (
	"errors"
	"fmt"
	"image"

	"go.uber.org/multierr"
)

// ImageSaver writes an image and returns the path it wrote.
type ImageSaver interface {
	SaveImage(img image.Image, name string) (string, error)
}

// Export saves every annotation snapshot, continuing past failures.
func (s *Store) Export(saver ImageSaver) ([]string, error) {
	var (
		paths []string
		errs  error
	)
	for _, a := range s.All() {
		if a.Texture == nil {
			errs = multierr.Append(errs, fmt.Errorf("annotation %d: %w", a.ID, errNoTexture))
			continue
		}
		path, err := saver.SaveImage(a.Texture, fmt.Sprintf("annotation-%d-%s", a.ID, a.Mode))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("annotation %d: %w", a.ID, err))
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs
}

var errNoTexture = errors.New("no texture")
