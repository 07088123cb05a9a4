package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spiffcs/stale/config"
	"github.com/spiffcs/stale/internal/constants"
	"github.com/spiffcs/stale/internal/ghclient"
	"github.com/spiffcs/stale/internal/log"
	"github.com/spiffcs/stale/internal/metrics"
	"github.com/spiffcs/stale/internal/output"
	"github.com/spiffcs/stale/internal/service"
	"github.com/spiffcs/stale/internal/staleness"
	"github.com/spiffcs/stale/internal/tui"
)

// runRuntime bundles TUI-related state that's threaded through a run.
type runRuntime struct {
	useTUI  bool
	events  chan tui.Event
	tuiDone chan error
}

// startTUI initializes and starts the TUI goroutine if TUI mode is enabled.
// Audit records are printed above the progress view while it runs.
func (rt *runRuntime) startTUI(opts ...tui.ModelOption) {
	if !rt.useTUI {
		return
	}
	rt.events = make(chan tui.Event, 100)
	rt.tuiDone = make(chan error, 1)
	program := tui.NewProgram(rt.events, os.Stderr, opts...)
	go func() {
		rt.tuiDone <- program.Run()
	}()
	log.SetAuditOutput(program)
}

// close closes the event channel and waits for the TUI to finish.
func (rt *runRuntime) close() {
	if rt.events == nil {
		return
	}
	close(rt.events)
	err := <-rt.tuiDone
	log.SetAuditOutput(os.Stderr)
	if err != nil {
		log.Debug("tui exited with error", log.Err(err))
	}
	rt.events = nil
}

// sendEvent sends a task event to the TUI channel if it exists.
func (rt *runRuntime) sendEvent(task tui.TaskID, status tui.TaskStatus, opts ...tui.TaskEventOption) {
	if rt.events == nil {
		return
	}
	tui.SendTaskEvent(rt.events, task, status, opts...)
}

// NewCmdRun creates the run command.
func NewCmdRun(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Comment on stale open issues (same as root stale)",
		Long: `Lists the open issues of a repository, skips those on ignored project
columns, and comments on every issue whose last update and latest event are
both older than the threshold.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStale(cmd, opts)
		},
	}

	addRunFlags(cmd, opts)
	return cmd
}

// addRunFlags adds the run flags to a command.
func addRunFlags(cmd *cobra.Command, opts *Options) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.Repository, "repo", "R", "", "Repository to check (owner/name)")
	flags.IntVar(&opts.DaysStale, "days-stale", 0, "Days without activity before an issue is stale")
	flags.BoolVar(&opts.OnlyWeekdays, "only-weekdays", false, "Count only Monday to Friday")
	flags.StringVar(&opts.IgnoreColumns, "ignore-columns", "", "Comma separated project column IDs whose issues are skipped")
	flags.StringVar(&opts.Timezone, "timezone", "", "IANA time zone used to count weekdays (default: local)")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "Evaluate without commenting")
	flags.StringVarP(&opts.Format, "output", "o", "", "Output format (table, json, markdown)")
	flags.CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")
	flags.StringVar(&opts.LogFormat, "log-format", "text", "Log format (text, json)")
	flags.IntVar(&opts.Workers, "workers", constants.DefaultWorkers, "Number of concurrent API calls")
	flags.DurationVar(&opts.Timeout, "timeout", constants.DefaultTimeout, "Deadline for the whole run")
	flags.StringVar(&opts.Pushgateway, "pushgateway", "", "Push run metrics to this Prometheus Pushgateway URL")
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "Write run metrics in text exposition format to this file")

	// TUI flag with tri-state: nil = auto, true = force, false = disable
	flags.Var(newTUIFlag(opts), "tui", "Enable/disable TUI progress (default: auto-detect)")
}

func runStale(cmd *cobra.Command, opts *Options) error {
	fileCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	settings, err := loadSettings(cmd.Flags(), opts, fileCfg)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	rt := &runRuntime{useTUI: shouldUseTUI(opts, settings.LogFormat)}

	// suppress logs during TUI to avoid interleaving with the display;
	// startTUI routes audit records through the view instead
	var logOut io.Writer = os.Stderr
	if rt.useTUI {
		logOut = io.Discard
	}
	log.Configure(effectiveVerbosity(opts.Verbosity), logOut, settings.LogFormat,
		log.KeyRunID, runID,
		log.KeyRepository, settings.Repository)

	log.Info("starting run",
		"days_stale", settings.Staleness.ThresholdDays,
		"only_weekdays", settings.Staleness.WeekdaysOnly,
		"ignore_columns", settings.Staleness.IgnoredColumns,
		"timezone", settings.Location.String(),
		"dry_run", settings.DryRun)

	ctx, cancel := context.WithTimeout(cmd.Context(), settings.Timeout)
	defer cancel()

	rt.startTUI(tui.WithRepository(settings.Repository), tui.WithDryRun(settings.DryRun))

	client, err := ghclient.NewClient(ctx, settings.Token, settings.Repository)
	if err != nil {
		rt.close()
		return err
	}

	checkAuth(ctx, client, rt)

	progress := newProgressReporter(rt, settings.DryRun)
	runner := service.NewRunner(settings.Repository, settings.Staleness, service.Sources{
		Issues:     client,
		Exclusions: staleness.NewColumnExclusions(client),
		Events:     client,
		Notifier:   client,
	},
		service.WithRunID(runID),
		service.WithWorkers(settings.Workers),
		service.WithDryRun(settings.DryRun),
		service.WithProgress(progress.report),
		service.WithEngineOptions(staleness.WithLocation(settings.Location)),
	)

	report, runErr := runner.Run(ctx)
	progress.finish(report, runErr, client)
	rt.close()
	if !rt.useTUI {
		log.ProgressDone()
	}

	publish(cmd.Context(), settings, report, client)

	if runErr != nil {
		return runErr
	}
	if err := report.NotifyErr(); err != nil {
		// comment failures are reported but never fail the run
		log.Warn("some stale issues could not be commented on", "failed", len(report.Failed()))
	}
	return nil
}

// checkAuth reports the authenticated login. Installation tokens cannot read
// /user, so inside GitHub Actions the check is skipped; elsewhere a failure
// is only a warning.
func checkAuth(ctx context.Context, client *ghclient.Client, rt *runRuntime) {
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		rt.sendEvent(tui.TaskAuth, tui.StatusSkipped, tui.WithMessage("actions token"))
		return
	}

	rt.sendEvent(tui.TaskAuth, tui.StatusRunning)
	login, err := client.AuthenticatedUser(ctx)
	if err != nil {
		log.Warn("could not verify token", log.Err(err))
		rt.sendEvent(tui.TaskAuth, tui.StatusError, tui.WithError(err))
		return
	}
	log.Debug("authenticated", "login", login)
	rt.sendEvent(tui.TaskAuth, tui.StatusComplete, tui.WithMessage(login))
}

// publish renders the report and feeds the optional sinks. Sink failures are
// logged; they never change the exit status.
func publish(ctx context.Context, s *Settings, report *service.Report, client *ghclient.Client) {
	if report == nil {
		return
	}

	if err := output.NewFormatter(s.Format).Format(report, os.Stdout); err != nil {
		log.Error("failed to render report", log.Err(err))
	}

	if s.StepSummary != "" {
		if err := appendStepSummary(s.StepSummary, report); err != nil {
			log.Warn("failed to write step summary", "path", s.StepSummary, log.Err(err))
		}
	}

	if s.Pushgateway == "" && s.MetricsFile == "" {
		return
	}

	rec := metrics.New(s.Repository)
	var rate *ghclient.RateLimitStatus
	if status, ok := client.RateLimit(); ok {
		rate = &status
	}
	rec.Observe(report, rate)

	if s.MetricsFile != "" {
		if err := rec.WriteFile(s.MetricsFile); err != nil {
			log.Warn("failed to write metrics file", "path", s.MetricsFile, log.Err(err))
		}
	}
	if s.Pushgateway != "" {
		pushCtx, cancel := context.WithTimeout(ctx, constants.HTTPTimeout)
		defer cancel()
		if err := rec.Push(pushCtx, s.Pushgateway); err != nil {
			log.Warn("failed to push metrics", "url", s.Pushgateway, log.Err(err))
		}
	}
}

// appendStepSummary adds the markdown report to the job summary file.
func appendStepSummary(path string, report *service.Report) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if err := output.NewFormatter(output.FormatMarkdown).Format(report, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// progressReporter turns runner progress into TUI events or throttled
// progress lines. report may be called from several goroutines.
type progressReporter struct {
	rt     *runRuntime
	dryRun bool

	lastTUIUpdate  atomic.Int64 // Unix nanoseconds
	lastLogPercent atomic.Int64
}

func newProgressReporter(rt *runRuntime, dryRun bool) *progressReporter {
	p := &progressReporter{rt: rt, dryRun: dryRun}
	p.lastLogPercent.Store(-1)
	return p
}

func stageTask(stage service.Stage) tui.TaskID {
	switch stage {
	case service.StageIssues:
		return tui.TaskIssues
	case service.StageExclusions:
		return tui.TaskExclusions
	case service.StageEvaluate:
		return tui.TaskEvaluate
	default:
		return tui.TaskNotify
	}
}

func (p *progressReporter) report(stage service.Stage, completed, total int) {
	task := stageTask(stage)

	if total == 0 {
		switch {
		case stage == service.StageExclusions:
			p.rt.sendEvent(task, tui.StatusSkipped, tui.WithMessage("no columns"))
		case stage == service.StageNotify && p.dryRun:
			p.rt.sendEvent(task, tui.StatusSkipped, tui.WithMessage("dry run"))
		default:
			p.rt.sendEvent(task, tui.StatusComplete, tui.WithMessage("none"))
		}
		return
	}

	if completed == 0 {
		p.rt.sendEvent(task, tui.StatusRunning)
		return
	}

	msg := fmt.Sprintf("%d/%d", completed, total)

	if p.rt.useTUI {
		// Throttle TUI updates for smooth progress without flooding the channel
		now := time.Now().UnixNano()
		last := p.lastTUIUpdate.Load()
		if completed < total && now-last < int64(constants.TUIUpdateInterval) {
			return
		}
		if completed < total && !p.lastTUIUpdate.CompareAndSwap(last, now) {
			return
		}
		status := tui.StatusRunning
		if completed == total {
			status = tui.StatusComplete
		}
		p.rt.sendEvent(task, status,
			tui.WithProgress(float64(completed)/float64(total)),
			tui.WithMessage(msg))
		return
	}

	if stage != service.StageEvaluate && stage != service.StageNotify {
		return
	}
	// Throttle log output to configured percent intervals
	percent := int64(completed * 100 / total)
	if percent != p.lastLogPercent.Load() && percent%constants.LogThrottlePercent == 0 {
		p.lastLogPercent.Store(percent)
		log.Progress("%s: %d/%d (%d%%)...", stage, completed, total, percent)
	}
}

// finish sends the final state of every task once the run has returned.
func (p *progressReporter) finish(report *service.Report, runErr error, client *ghclient.Client) {
	if status, ok := client.RateLimit(); ok && status.Limited {
		tui.SendEvent(p.rt.events, tui.RateLimitEvent{Limited: true, ResetAt: status.ResetAt})
	}

	if runErr != nil {
		task := tui.TaskIssues
		var fe *staleness.FetchError
		if errors.As(runErr, &fe) && fe.Source != "issues" {
			task = tui.TaskExclusions
		}
		p.rt.sendEvent(task, tui.StatusError, tui.WithError(runErr))
		return
	}

	p.rt.sendEvent(tui.TaskIssues, tui.StatusComplete, tui.WithCount(report.Fetched))
	if n := len(report.Excluded); n > 0 {
		p.rt.sendEvent(tui.TaskExclusions, tui.StatusComplete, tui.WithMessage(fmt.Sprintf("%d excluded", n)))
	}
	p.rt.sendEvent(tui.TaskEvaluate, tui.StatusComplete,
		tui.WithMessage(fmt.Sprintf("%d stale of %d", len(report.Stale()), report.Eligible)))

	switch failed := len(report.Failed()); {
	case report.DryRun:
		p.rt.sendEvent(tui.TaskNotify, tui.StatusSkipped, tui.WithMessage("dry run"))
	case failed > 0:
		p.rt.sendEvent(tui.TaskNotify, tui.StatusError,
			tui.WithMessage(fmt.Sprintf("%d commented", report.Posted())),
			tui.WithError(fmt.Errorf("%d failed", failed)))
	default:
		p.rt.sendEvent(tui.TaskNotify, tui.StatusComplete, tui.WithCount(report.Posted()))
	}
}
