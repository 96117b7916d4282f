package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagBedW     = flag.Float64("bed-width", 0, "Print bed width in mm")
	flagBedD     = flag.Float64("bed-depth", 0, "Print bed depth in mm")
	flagDistance = flag.Float64("distance", 0, "Minimum part separation in mm")
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
	if *flagBedW > 0 {
		cfg.Bed.Width = *flagBedW
	}
	if *flagBedD > 0 {
		cfg.Bed.Depth = *flagBedD
	}
	if *flagDistance > 0 {
		cfg.Arrange.Distance = *flagDistance
	}
}
