package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/spiffcs/stale/config"
	"github.com/spiffcs/stale/internal/ghclient"
	"github.com/spiffcs/stale/internal/log"
	"github.com/spiffcs/stale/internal/output"
	"github.com/spiffcs/stale/internal/staleness"
)

// Setting keys. Each is fed by a flag, one or more environment variables and
// optionally the config file, in that order of precedence.
const (
	keyRepository    = "repository"
	keyDaysStale     = "days_stale"
	keyOnlyWeekdays  = "only_weekdays"
	keyIgnoreColumns = "ignore_columns"
	keyFormat        = "default_format"
	keyDryRun        = "dry_run"
	keyPushgateway   = "pushgateway"
	keyMetricsFile   = "metrics_file"
	keyLogFormat     = "log_format"
	keyTimezone      = "timezone"
)

// envBindings lists the environment variables for each key. Action inputs
// (INPUT_*) come first so a workflow's `with:` block wins over job env.
var envBindings = map[string][]string{
	keyRepository:    {"INPUT_REPOSITORY", "STALE_REPOSITORY", "GITHUB_REPOSITORY"},
	keyDaysStale:     {"INPUT_DAYS-STALE", "STALE_DAYS_STALE"},
	keyOnlyWeekdays:  {"INPUT_ONLY-WEEKDAYS", "STALE_ONLY_WEEKDAYS"},
	keyIgnoreColumns: {"INPUT_IGNORE-COLUMNS", "STALE_IGNORE_COLUMNS"},
	keyFormat:        {"STALE_OUTPUT"},
	keyDryRun:        {"INPUT_DRY-RUN", "STALE_DRY_RUN"},
	keyPushgateway:   {"STALE_PUSHGATEWAY"},
	keyMetricsFile:   {"STALE_METRICS_FILE"},
	keyLogFormat:     {"STALE_LOG_FORMAT"},
	keyTimezone:      {"INPUT_TIMEZONE", "STALE_TIMEZONE"},
}

// flagBindings maps each key to the flag that overrides it.
var flagBindings = map[string]string{
	keyRepository:    "repo",
	keyDaysStale:     "days-stale",
	keyOnlyWeekdays:  "only-weekdays",
	keyIgnoreColumns: "ignore-columns",
	keyFormat:        "output",
	keyDryRun:        "dry-run",
	keyPushgateway:   "pushgateway",
	keyMetricsFile:   "metrics-file",
	keyLogFormat:     "log-format",
	keyTimezone:      "timezone",
}

// Settings is the resolved input of one run.
type Settings struct {
	Token      string
	Repository string
	Staleness  staleness.Config
	Location   *time.Location
	Format     output.Format
	LogFormat  log.Format
	DryRun     bool

	Workers int
	Timeout time.Duration

	Pushgateway string
	MetricsFile string
	StepSummary string
}

// newViper layers flags over environment over the merged config file.
func newViper(flags *pflag.FlagSet, file *config.Config) (*viper.Viper, error) {
	v := viper.New()

	if file != nil {
		if file.Repository != "" {
			v.SetDefault(keyRepository, file.Repository)
		}
		if file.DaysStale != nil {
			v.SetDefault(keyDaysStale, *file.DaysStale)
		}
		if file.OnlyWeekdays != nil {
			v.SetDefault(keyOnlyWeekdays, *file.OnlyWeekdays)
		}
		if len(file.IgnoreColumns) > 0 {
			ids := make([]string, len(file.IgnoreColumns))
			for i, id := range file.IgnoreColumns {
				ids[i] = strconv.FormatInt(id, 10)
			}
			v.SetDefault(keyIgnoreColumns, strings.Join(ids, ","))
		}
		if file.DefaultFormat != "" {
			v.SetDefault(keyFormat, file.DefaultFormat)
		}
	}

	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if flags != nil {
		for key, name := range flagBindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	return v, nil
}

// loadSettings resolves and validates every input. It performs no network
// calls so configuration errors surface before anything is fetched.
func loadSettings(flags *pflag.FlagSet, opts *Options, file *config.Config) (*Settings, error) {
	if file == nil {
		file = &config.Config{}
	}
	v, err := newViper(flags, file)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Token:       file.GetGitHubToken(),
		Repository:  strings.TrimSpace(v.GetString(keyRepository)),
		DryRun:      v.GetBool(keyDryRun),
		Workers:     opts.Workers,
		Timeout:     opts.Timeout,
		Pushgateway: v.GetString(keyPushgateway),
		MetricsFile: v.GetString(keyMetricsFile),
		StepSummary: os.Getenv("GITHUB_STEP_SUMMARY"),
	}

	var errs []error

	if s.Token == "" {
		errs = append(errs, &staleness.ConfigError{Field: "token", Err: ghclient.ErrMissingToken})
	}

	if s.Repository == "" {
		errs = append(errs, &staleness.ConfigError{Field: "repository", Err: errors.New("not set; use --repo or GITHUB_REPOSITORY")})
	} else if _, _, err := ghclient.SplitRepository(s.Repository); err != nil {
		errs = append(errs, &staleness.ConfigError{Field: "repository", Err: err})
	}

	threshold, err := daysStale(v)
	if err != nil {
		errs = append(errs, err)
	}

	// only the literal "true" enables weekday counting
	weekdays := strings.TrimSpace(v.GetString(keyOnlyWeekdays)) == "true"

	columns, colErr := staleness.ParseColumnIDs(v.GetString(keyIgnoreColumns))
	if colErr != nil {
		errs = append(errs, colErr)
	}

	if colErr == nil && threshold >= 0 {
		if s.Staleness, err = staleness.NewConfig(threshold, weekdays, columns); err != nil {
			errs = append(errs, err)
		}
	}

	if s.Format, err = output.ParseFormat(v.GetString(keyFormat)); err != nil {
		errs = append(errs, &staleness.ConfigError{Field: "output", Err: err})
	}

	if s.LogFormat, err = log.ParseFormat(v.GetString(keyLogFormat)); err != nil {
		errs = append(errs, &staleness.ConfigError{Field: "log-format", Err: err})
	}

	if s.Location, err = location(v.GetString(keyTimezone)); err != nil {
		errs = append(errs, &staleness.ConfigError{Field: "timezone", Err: err})
	}

	if s.Workers < 1 {
		errs = append(errs, &staleness.ConfigError{Field: "workers", Err: fmt.Errorf("must be >= 1, got %d", s.Workers)})
	}
	if s.Timeout <= 0 {
		errs = append(errs, &staleness.ConfigError{Field: "timeout", Err: fmt.Errorf("must be positive, got %s", s.Timeout)})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// daysStale reads the required threshold. A negative return means it was
// missing or invalid and the error says which.
func daysStale(v *viper.Viper) (int, error) {
	if !v.IsSet(keyDaysStale) {
		return -1, &staleness.ConfigError{Field: "days-stale", Err: errors.New("required")}
	}

	raw := strings.TrimSpace(v.GetString(keyDaysStale))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1, &staleness.ConfigError{Field: "days-stale", Err: fmt.Errorf("%q is not an integer", raw)}
	}
	if n < 0 {
		return -1, &staleness.ConfigError{Field: "days-stale", Err: fmt.Errorf("must be >= 0, got %d", n)}
	}
	return n, nil
}

// location resolves the zone whose calendar decides weekdays. Empty means
// the machine's local zone.
func location(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// effectiveVerbosity raises the level to info inside GitHub Actions so every
// decision reaches the job log.
func effectiveVerbosity(requested int) int {
	if os.Getenv("GITHUB_ACTIONS") == "true" && requested < log.LevelInfo {
		return log.LevelInfo
	}
	return requested
}
