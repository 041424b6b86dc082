package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagData    = flag.String("data", "", "Path to dataset index YAML")
	flagDemo    = flag.Bool("demo", false, "Use the generated demo dataset")
	flagMode    = flag.String("mode", "", "Initial render mode")
	flagDataset = flag.String("dataset", "", "Initial dataset id")
	flagWidth   = flag.Int("width", 0, "Window width")
	flagHeight  = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagData != "" {
		cfg.Data.Index = *flagData
		cfg.Data.Synthetic = false
	}
	if *flagDemo {
		cfg.Data.Synthetic = true
	}
	if *flagMode != "" {
		cfg.Viewer.Mode = *flagMode
	}
	if *flagDataset != "" {
		cfg.Viewer.Dataset = *flagDataset
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
}
