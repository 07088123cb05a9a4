package cmd

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/spf13/cobra"

	"github.com/spiffcs/stale/config"
	"github.com/spiffcs/stale/internal/ghclient"
	"github.com/spiffcs/stale/internal/log"
	"github.com/spiffcs/stale/internal/output"
	"github.com/spiffcs/stale/internal/service"
	"github.com/spiffcs/stale/internal/staleness"
	"github.com/spiffcs/stale/internal/tui"
)

func TestNew(t *testing.T) {
	cmd := New()
	if cmd == nil {
		t.Fatal("New() returned nil")
	}
	if cmd.Use != "stale" {
		t.Errorf("expected Use to be 'stale', got %q", cmd.Use)
	}

	want := map[string]bool{"run": false, "config": false, "version": false, "ratelimit": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}

	for _, flag := range []string{"repo", "days-stale", "only-weekdays", "ignore-columns", "dry-run", "output", "tui", "pushgateway", "metrics-file"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("root command missing --%s", flag)
		}
	}
}

func TestNewCmdRun(t *testing.T) {
	cmd := NewCmdRun(NewOptions())
	if cmd.Use != "run" {
		t.Errorf("expected Use to be 'run', got %q", cmd.Use)
	}
	if f := cmd.Flags().ShorthandLookup("R"); f == nil || f.Name != "repo" {
		t.Error("expected -R to be the shorthand of --repo")
	}
}

func TestNewOptions(t *testing.T) {
	opts := NewOptions()

	if opts.Workers != 10 || opts.TUI != nil || opts.DryRun {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.Timeout != 10*time.Minute {
		t.Errorf("Timeout = %s, want 10m", opts.Timeout)
	}
	if opts.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", opts.LogFormat)
	}
}

func TestTUIFlag(t *testing.T) {
	opts := NewOptions()
	f := newTUIFlag(opts)

	if f.String() != "auto" {
		t.Errorf("default = %q, want auto", f.String())
	}
	if err := f.Set("false"); err != nil || opts.TUI == nil || *opts.TUI {
		t.Errorf("Set(false) = %v, TUI = %v", err, opts.TUI)
	}
	if err := f.Set("maybe"); err == nil {
		t.Error("expected error for invalid value")
	}

	v := true
	opts.TUI = &v
	if !shouldUseTUI(opts, log.FormatText) {
		t.Error("forced TUI should be used")
	}
	if shouldUseTUI(opts, log.FormatJSON) {
		t.Error("JSON logs should disable the TUI")
	}
	opts.Verbosity = 1
	if shouldUseTUI(opts, log.FormatText) {
		t.Error("verbose logs should disable the TUI")
	}
}

// clearEnv blanks every variable loadSettings reads. Empty values are
// treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range envBindings {
		for _, name := range names {
			t.Setenv(name, "")
		}
	}
	t.Setenv("INPUT_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_STEP_SUMMARY", "")
}

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		args  []string
		file  *config.Config
		check func(t *testing.T, s *Settings)
	}{
		{
			name: "action inputs",
			env: map[string]string{
				"GITHUB_TOKEN":         "tok",
				"GITHUB_REPOSITORY":    "acme/widgets",
				"INPUT_DAYS-STALE":     "30",
				"INPUT_ONLY-WEEKDAYS":  "true",
				"INPUT_IGNORE-COLUMNS": "1, 2,1",
			},
			check: func(t *testing.T, s *Settings) {
				want := staleness.Config{ThresholdDays: 30, WeekdaysOnly: true, IgnoredColumns: []int64{1, 2}}
				if !reflect.DeepEqual(s.Staleness, want) {
					t.Errorf("Staleness = %+v, want %+v", s.Staleness, want)
				}
				if s.Repository != "acme/widgets" || s.Token != "tok" {
					t.Errorf("Repository = %q, Token = %q", s.Repository, s.Token)
				}
				if s.Format != output.FormatTable || s.LogFormat != log.FormatText {
					t.Errorf("Format = %q, LogFormat = %q", s.Format, s.LogFormat)
				}
				if s.Location != time.Local {
					t.Errorf("Location = %v, want local", s.Location)
				}
			},
		},
		{
			name: "timezone",
			env: map[string]string{
				"GITHUB_TOKEN":      "tok",
				"GITHUB_REPOSITORY": "acme/widgets",
				"INPUT_DAYS-STALE":  "30",
				"INPUT_TIMEZONE":    "Local",
			},
			args: []string{"--timezone", "UTC"},
			check: func(t *testing.T, s *Settings) {
				if s.Location != time.UTC {
					t.Errorf("Location = %v, want UTC", s.Location)
				}
			},
		},
		{
			name: "flag beats env",
			env: map[string]string{
				"INPUT_TOKEN":       "tok",
				"GITHUB_REPOSITORY": "acme/widgets",
				"INPUT_DAYS-STALE":  "30",
			},
			args: []string{"--days-stale", "7", "--repo", "acme/other", "-o", "json", "--dry-run"},
			check: func(t *testing.T, s *Settings) {
				if s.Staleness.ThresholdDays != 7 {
					t.Errorf("ThresholdDays = %d, want 7", s.Staleness.ThresholdDays)
				}
				if s.Repository != "acme/other" {
					t.Errorf("Repository = %q, want acme/other", s.Repository)
				}
				if s.Format != output.FormatJSON || !s.DryRun {
					t.Errorf("Format = %q, DryRun = %v", s.Format, s.DryRun)
				}
			},
		},
		{
			name: "file fallback",
			env:  map[string]string{"GITHUB_TOKEN": "tok"},
			file: &config.Config{
				Repository:    "acme/widgets",
				DaysStale:     intPtr(14),
				OnlyWeekdays:  boolPtr(true),
				IgnoreColumns: []int64{9},
				DefaultFormat: "markdown",
			},
			check: func(t *testing.T, s *Settings) {
				want := staleness.Config{ThresholdDays: 14, WeekdaysOnly: true, IgnoredColumns: []int64{9}}
				if !reflect.DeepEqual(s.Staleness, want) {
					t.Errorf("Staleness = %+v, want %+v", s.Staleness, want)
				}
				if s.Format != output.FormatMarkdown {
					t.Errorf("Format = %q, want markdown", s.Format)
				}
			},
		},
		{
			name: "env beats file",
			env: map[string]string{
				"GITHUB_TOKEN":     "tok",
				"STALE_DAYS_STALE": "3",
			},
			file: &config.Config{Repository: "acme/widgets", DaysStale: intPtr(14)},
			check: func(t *testing.T, s *Settings) {
				if s.Staleness.ThresholdDays != 3 {
					t.Errorf("ThresholdDays = %d, want 3", s.Staleness.ThresholdDays)
				}
			},
		},
		{
			name: "only the literal true enables weekdays",
			env: map[string]string{
				"GITHUB_TOKEN":        "tok",
				"GITHUB_REPOSITORY":   "acme/widgets",
				"INPUT_DAYS-STALE":    "5",
				"INPUT_ONLY-WEEKDAYS": "True",
			},
			check: func(t *testing.T, s *Settings) {
				if s.Staleness.WeekdaysOnly {
					t.Error("expected WeekdaysOnly false for \"True\"")
				}
			},
		},
		{
			name: "zero threshold is valid",
			env: map[string]string{
				"GITHUB_TOKEN":      "tok",
				"GITHUB_REPOSITORY": "acme/widgets",
				"INPUT_DAYS-STALE":  "0",
			},
			check: func(t *testing.T, s *Settings) {
				if s.Staleness.ThresholdDays != 0 {
					t.Errorf("ThresholdDays = %d, want 0", s.Staleness.ThresholdDays)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			opts := NewOptions()
			cmd := &cobra.Command{Use: "test"}
			addRunFlags(cmd, opts)
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}

			s, err := loadSettings(cmd.Flags(), opts, tt.file)
			if err != nil {
				t.Fatalf("loadSettings: %v", err)
			}
			tt.check(t, s)
		})
	}
}

func TestLoadSettingsErrors(t *testing.T) {
	base := map[string]string{
		"GITHUB_TOKEN":      "tok",
		"GITHUB_REPOSITORY": "acme/widgets",
		"INPUT_DAYS-STALE":  "30",
	}

	tests := []struct {
		name   string
		env    map[string]string
		args   []string
		target error
		field  string
	}{
		{name: "missing days", env: map[string]string{"INPUT_DAYS-STALE": ""}, field: "days-stale"},
		{name: "non-integer days", env: map[string]string{"INPUT_DAYS-STALE": "abc"}, field: "days-stale"},
		{name: "negative days", args: []string{"--days-stale=-1"}, field: "days-stale"},
		{name: "missing token", env: map[string]string{"GITHUB_TOKEN": ""}, target: ghclient.ErrMissingToken, field: "token"},
		{name: "missing repository", env: map[string]string{"GITHUB_REPOSITORY": ""}, field: "repository"},
		{name: "malformed repository", args: []string{"--repo", "widgets"}, field: "repository"},
		{name: "bad column", env: map[string]string{"INPUT_IGNORE-COLUMNS": "1,x"}, field: "ignore-columns"},
		{name: "bad output", args: []string{"-o", "xml"}, field: "output"},
		{name: "bad workers", args: []string{"--workers", "0"}, field: "workers"},
		{name: "unknown timezone", env: map[string]string{"STALE_TIMEZONE": "Mars/Olympus_Mons"}, field: "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range base {
				t.Setenv(k, v)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			opts := NewOptions()
			cmd := &cobra.Command{Use: "test"}
			addRunFlags(cmd, opts)
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}

			_, err := loadSettings(cmd.Flags(), opts, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, staleness.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
			if !strings.Contains(err.Error(), "invalid "+tt.field) {
				t.Errorf("error %q does not name %s", err, tt.field)
			}
		})
	}
}

func TestEffectiveVerbosity(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "")
	if got := effectiveVerbosity(0); got != log.LevelQuiet {
		t.Errorf("effectiveVerbosity(0) = %d outside actions", got)
	}

	t.Setenv("GITHUB_ACTIONS", "true")
	if got := effectiveVerbosity(0); got != log.LevelInfo {
		t.Errorf("effectiveVerbosity(0) = %d in actions, want info", got)
	}
	if got := effectiveVerbosity(log.LevelDebug); got != log.LevelDebug {
		t.Errorf("effectiveVerbosity(debug) = %d, want debug", got)
	}
}

func TestApplyConfigValue(t *testing.T) {
	cfg := &config.Config{}

	for _, kv := range [][2]string{
		{"repository", "acme/widgets"},
		{"days-stale", "21"},
		{"only-weekdays", "true"},
		{"ignore-columns", "4, 5"},
		{"format", "JSON"},
	} {
		if err := applyConfigValue(cfg, kv[0], kv[1]); err != nil {
			t.Fatalf("applyConfigValue(%s): %v", kv[0], err)
		}
	}

	if cfg.Repository != "acme/widgets" || *cfg.DaysStale != 21 || !*cfg.OnlyWeekdays {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.IgnoreColumns, []int64{4, 5}) {
		t.Errorf("IgnoreColumns = %v", cfg.IgnoreColumns)
	}
	if cfg.DefaultFormat != "json" {
		t.Errorf("DefaultFormat = %q, want json", cfg.DefaultFormat)
	}

	for _, kv := range [][2]string{
		{"token", "secret"},
		{"days-stale", "-3"},
		{"ignore-columns", "a"},
		{"format", "xml"},
		{"colour", "blue"},
	} {
		if err := applyConfigValue(cfg, kv[0], kv[1]); err == nil {
			t.Errorf("applyConfigValue(%s, %s) expected error", kv[0], kv[1])
		}
	}
}

func TestConfigDefaultsCommand(t *testing.T) {
	cmd := NewCmdConfigDefaults()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-o", "json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), `"DaysStale": 30`) {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-16")

	cmd := NewCmdVersion()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"stale 1.2.3", "abc123", "2026-10-16"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("version output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPrintRateLimits(t *testing.T) {
	now := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)
	limits := &gh.RateLimits{
		Core: &gh.Rate{Limit: 5000, Remaining: 4321, Reset: gh.Timestamp{Time: now.Add(90 * time.Second)}},
	}

	var out bytes.Buffer
	printRateLimits(&out, limits, now)

	if !strings.Contains(out.String(), "4321/5000 remaining (resets in 1m30s)") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "Search") {
		t.Error("missing rate categories should be skipped")
	}
}

func TestStageTask(t *testing.T) {
	tests := map[service.Stage]tui.TaskID{
		service.StageIssues:     tui.TaskIssues,
		service.StageExclusions: tui.TaskExclusions,
		service.StageEvaluate:   tui.TaskEvaluate,
		service.StageNotify:     tui.TaskNotify,
	}
	for stage, want := range tests {
		if got := stageTask(stage); got != want {
			t.Errorf("stageTask(%s) = %d, want %d", stage, got, want)
		}
	}
}

func drain(ch chan tui.Event) []tui.TaskEvent {
	var events []tui.TaskEvent
	for {
		select {
		case e := <-ch:
			if te, ok := e.(tui.TaskEvent); ok {
				events = append(events, te)
			}
		default:
			return events
		}
	}
}

func TestProgressReporter(t *testing.T) {
	rt := &runRuntime{useTUI: true, events: make(chan tui.Event, 100)}
	p := newProgressReporter(rt, true)

	p.report(service.StageExclusions, 0, 0)
	p.report(service.StageEvaluate, 0, 4)
	p.report(service.StageEvaluate, 4, 4)
	p.report(service.StageNotify, 0, 0)

	events := drain(rt.events)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}

	if events[0].Task != tui.TaskExclusions || events[0].Status != tui.StatusSkipped {
		t.Errorf("exclusions event = %+v", events[0])
	}
	if events[1].Task != tui.TaskEvaluate || events[1].Status != tui.StatusRunning {
		t.Errorf("evaluate start = %+v", events[1])
	}
	if events[2].Status != tui.StatusComplete || events[2].Message != "4/4" {
		t.Errorf("evaluate done = %+v", events[2])
	}
	if events[3].Task != tui.TaskNotify || events[3].Status != tui.StatusSkipped || events[3].Message != "dry run" {
		t.Errorf("notify event = %+v", events[3])
	}
}

func TestProgressReporterFinish(t *testing.T) {
	client, err := ghclient.NewClientWithHTTPClient(http.DefaultClient, "http://127.0.0.1/", "acme/widgets")
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	t.Run("fetch failure", func(t *testing.T) {
		rt := &runRuntime{useTUI: true, events: make(chan tui.Event, 10)}
		runErr := &staleness.FetchError{Source: "cards of column 3", Err: errors.New("boom")}

		newProgressReporter(rt, false).finish(&service.Report{}, runErr, client)

		events := drain(rt.events)
		if len(events) != 1 || events[0].Task != tui.TaskExclusions || events[0].Status != tui.StatusError {
			t.Errorf("unexpected events %+v", events)
		}
	})

	t.Run("comment failures", func(t *testing.T) {
		rt := &runRuntime{useTUI: true, events: make(chan tui.Event, 10)}
		report := &service.Report{
			Fetched:  3,
			Eligible: 3,
			Decisions: []staleness.Decision{
				{IssueNumber: 1, Stale: true},
				{IssueNumber: 2, Stale: true},
				{IssueNumber: 3},
			},
			Notifications: []service.Notification{
				{IssueNumber: 1, Posted: true},
				{IssueNumber: 2, Err: errors.New("forbidden"), Error: "forbidden"},
			},
		}

		newProgressReporter(rt, false).finish(report, nil, client)

		events := drain(rt.events)
		last := events[len(events)-1]
		if last.Task != tui.TaskNotify || last.Status != tui.StatusError || last.Message != "1 commented" {
			t.Errorf("notify event = %+v", last)
		}
		if events[0].Task != tui.TaskIssues || events[0].Count != 3 {
			t.Errorf("issues event = %+v", events[0])
		}
	})
}

func TestAppendStepSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	if err := os.WriteFile(path, []byte("# previous step\n"), 0644); err != nil {
		t.Fatal(err)
	}

	report := &service.Report{
		RunID:      "run-1",
		Repository: "acme/widgets",
		Now:        time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC),
		Config:     staleness.Config{ThresholdDays: 30},
	}
	if err := appendStepSummary(path, report); err != nil {
		t.Fatalf("appendStepSummary: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.HasPrefix(got, "# previous step\n") {
		t.Error("existing summary content was overwritten")
	}
	if !strings.Contains(got, "## Stale issues in acme/widgets") {
		t.Errorf("summary missing report header:\n%s", got)
	}
}
