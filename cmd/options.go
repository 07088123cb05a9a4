package cmd

import (
	"time"

	"github.com/spiffcs/stale/internal/constants"
)

// Options holds the command-line options for a stale run. Values that can
// also come from the environment or a config file are resolved through
// loadSettings; these fields only carry what was typed on the command line.
type Options struct {
	Repository    string
	DaysStale     int
	OnlyWeekdays  bool
	IgnoreColumns string
	Format        string
	Timezone      string

	DryRun    bool
	Verbosity int
	LogFormat string
	Workers   int
	Timeout   time.Duration
	TUI       *bool // nil = auto-detect, true = force TUI, false = disable TUI

	// Metrics sinks
	Pushgateway string
	MetricsFile string
}

// NewOptions returns Options holding the flag defaults.
func NewOptions() *Options {
	return &Options{
		Workers:   constants.DefaultWorkers,
		Timeout:   constants.DefaultTimeout,
		LogFormat: "text",
	}
}
