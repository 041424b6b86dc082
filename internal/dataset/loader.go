package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/segview/internal/volume"
	"github.com/Faultbox/segview/pkg/nrrd"
)

// ErrNotFound is returned when a layer id or reference has no data.
var ErrNotFound = errors.New("dataset: not found")

// Loader is the asynchronous data source behind the viewer. Implementations
// must be safe for concurrent use.
type Loader interface {
	VolumeMeta(ctx context.Context) (*VolumeMeta, error)
	SegmentMeta(ctx context.Context) (*SegmentMeta, error)
	// LoadVolume returns the chunk for e, normalized to [0, 1].
	LoadVolume(ctx context.Context, e Entry) (*volume.Grid, error)
	// LoadSegment returns the label chunk for e; zero means background.
	LoadSegment(ctx context.Context, e Entry) (*volume.Grid, error)
}

// Index is the on-disk dataset description.
type Index struct {
	Volume  VolumeMeta  `yaml:"volume"`
	Segment SegmentMeta `yaml:"segment"`
}

// FileLoader reads an index YAML and NRRD chunks referenced relative to it.
type FileLoader struct {
	root  string
	index Index
}

// OpenIndex parses the index at path.
func OpenIndex(path string) (*FileLoader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset index: %w", err)
	}
	var idx Index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing dataset index %s: %w", path, err)
	}
	if len(idx.Volume.Nrrd) == 0 {
		return nil, fmt.Errorf("dataset index %s lists no volumes", path)
	}
	return &FileLoader{root: filepath.Dir(path), index: idx}, nil
}

// VolumeMeta returns the indexed volume metadata.
func (l *FileLoader) VolumeMeta(ctx context.Context) (*VolumeMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := l.index.Volume
	return &m, nil
}

// SegmentMeta returns the indexed segment metadata.
func (l *FileLoader) SegmentMeta(ctx context.Context) (*SegmentMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := l.index.Segment
	return &m, nil
}

// LoadVolume reads and normalizes a volume chunk.
func (l *FileLoader) LoadVolume(ctx context.Context, e Entry) (*volume.Grid, error) {
	g, err := l.read(ctx, e)
	if err != nil {
		return nil, err
	}
	g.Normalize()
	return g, nil
}

// LoadSegment reads a label chunk.
func (l *FileLoader) LoadSegment(ctx context.Context, e Entry) (*volume.Grid, error) {
	return l.read(ctx, e)
}

func (l *FileLoader) read(ctx context.Context, e Entry) (*volume.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Ref == "" {
		return nil, fmt.Errorf("entry has no ref: %w", ErrNotFound)
	}

	path := e.Ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.root, path)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", e.Ref, ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()

	v, err := nrrd.Read(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", e.Ref, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	box := e.Box()
	if box.Size[0] == 0 && box.Size[1] == 0 {
		box.Size = v.Sizes
	}
	if box.Size != v.Sizes {
		return nil, fmt.Errorf("%s: sizes %v do not match indexed shape %v", e.Ref, v.Sizes, box.Size)
	}
	return volume.FromSamples(box, v.Data)
}
