// Package config handles modeltool configuration loading and
// management.
package config

// Config holds all modeltool settings.
type Config struct {
	Bed     BedConfig     `yaml:"bed"`
	Arrange ArrangeConfig `yaml:"arrange"`
	Logging LoggingConfig `yaml:"logging"`
}

// BedConfig describes the print bed the arrange operations pack into.
type BedConfig struct {
	Width float64 `yaml:"width"`
	Depth float64 `yaml:"depth"`
}

// ArrangeConfig holds placement settings.
type ArrangeConfig struct {
	Distance       float64 `yaml:"distance"`        // minimum part separation, mm
	DuplicateCount int     `yaml:"duplicate_count"` // copy count setting; modeltool duplicate takes its count from the command line
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bed: BedConfig{
			Width: 200,
			Depth: 200,
		},
		Arrange: ArrangeConfig{
			Distance:       6,
			DuplicateCount: 2,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
