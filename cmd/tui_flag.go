package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spiffcs/stale/internal/log"
	"github.com/spiffcs/stale/internal/tui"
)

// tuiFlag implements pflag.Value for the tri-state --tui flag.
type tuiFlag struct {
	opts *Options
}

func newTUIFlag(opts *Options) *tuiFlag {
	return &tuiFlag{opts: opts}
}

func (f *tuiFlag) String() string {
	if f.opts.TUI == nil {
		return "auto"
	}
	if *f.opts.TUI {
		return "true"
	}
	return "false"
}

func (f *tuiFlag) Set(s string) error {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		v := true
		f.opts.TUI = &v
	case "false", "0", "no":
		v := false
		f.opts.TUI = &v
	case "auto":
		f.opts.TUI = nil
	default:
		return fmt.Errorf("invalid value %q: use true, false, or auto", s)
	}
	return nil
}

func (f *tuiFlag) Type() string {
	return "bool"
}

func (f *tuiFlag) IsBoolFlag() bool {
	return true
}

// shouldUseTUI decides whether to draw live progress. Verbose or JSON logs
// need the terminal to themselves, so they turn the TUI off.
func shouldUseTUI(opts *Options, logFormat log.Format) bool {
	if opts.Verbosity > 0 || logFormat == log.FormatJSON {
		return false
	}
	if opts.TUI != nil {
		return *opts.TUI
	}
	return tui.Interactive(os.Stderr, os.Getenv)
}
