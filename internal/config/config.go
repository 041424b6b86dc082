// Package config handles viewer configuration loading and management.
package config

// Config holds all viewer settings.
type Config struct {
	Window     WindowConfig     `yaml:"window"`
	Viewer     ViewerConfig     `yaml:"viewer"`
	Data       DataConfig       `yaml:"data"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WindowConfig holds on-screen window settings.
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// ViewerConfig holds the initial viewer parameters and off-screen buffer size.
type ViewerConfig struct {
	TargetWidth  int     `yaml:"target_width"`
	TargetHeight int     `yaml:"target_height"`
	Mode         string  `yaml:"mode"`
	Dataset      string  `yaml:"dataset"` // Initial layers.select; empty picks the first id
	Surface      float64 `yaml:"surface"`
	Inverse      bool    `yaml:"inverse"`
}

// DataConfig holds dataset locations.
type DataConfig struct {
	Index     string `yaml:"index"`     // Path to the dataset index YAML
	Synthetic bool   `yaml:"synthetic"` // Use the built-in generated dataset
}

// AnnotationConfig holds annotation placement and export settings.
type AnnotationConfig struct {
	Size      float32 `yaml:"size"`       // Quad edge length in world units
	ExportDir string  `yaml:"export_dir"` // Snapshot PNG output directory
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "segview",
			Width:  1280,
			Height: 800,
		},
		Viewer: ViewerConfig{
			TargetWidth:  200,
			TargetHeight: 200,
			Mode:         "volume-segment",
			Surface:      0.03,
		},
		Data: DataConfig{
			Index: "data/index.yaml",
		},
		Annotation: AnnotationConfig{
			Size:      1.0,
			ExportDir: "snapshots",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
