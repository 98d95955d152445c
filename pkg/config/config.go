package config

import "time"

// Config holds all runtime configuration
type Config struct {
	// Config file settings
	ConfigPath string
	File       *FileConfig

	// Cluster selection
	Search          string
	ExcludeClusters []string

	// Query settings
	Concurrency    int
	QueryTimeout   time.Duration
	QueryRate      int
	ReferenceTime  *time.Time
	AdjustDuration bool

	// Output settings
	OutputDir string
	Format    string
	Color     bool
	Tooltips  bool
	Title     string
	Footer    string

	// Server settings
	ServerPort int

	// Operational flags
	Verbose bool
	DryRun  bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Concurrency:    4,
		QueryTimeout:   2 * time.Minute,
		QueryRate:      10,
		AdjustDuration: true,
		OutputDir:      "",
		Format:         "simple",
		Color:          true,
		Tooltips:       false,
		ServerPort:     8080,
		Verbose:        false,
		DryRun:         false,
	}
}
