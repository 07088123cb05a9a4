// Package service runs one staleness pass over a repository: list, exclude,
// evaluate, notify.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spiffcs/stale/internal/constants"
	"github.com/spiffcs/stale/internal/ghclient"
	"github.com/spiffcs/stale/internal/log"
	"github.com/spiffcs/stale/internal/staleness"
)

// Stage identifies a step of a run for progress reporting.
type Stage string

const (
	StageIssues     Stage = "issues"
	StageExclusions Stage = "exclusions"
	StageEvaluate   Stage = "evaluate"
	StageNotify     Stage = "notify"
)

// ProgressFunc is called as a stage makes progress. It may be called from
// several goroutines at once.
type ProgressFunc func(stage Stage, completed, total int)

// Sources bundles the collaborators of a Runner.
type Sources struct {
	Issues     staleness.IssueSource
	Exclusions staleness.ExclusionProvider
	Events     staleness.EventSource
	Notifier   staleness.Notifier
}

// Runner executes a single pass.
type Runner struct {
	repository string
	cfg        staleness.Config
	src        Sources
	engine     *staleness.Engine

	runID      string
	workers    int
	dryRun     bool
	now        func() time.Time
	onProgress ProgressFunc
	engineOpts []staleness.EngineOption
}

// Option configures a Runner.
type Option func(*Runner)

// WithRunID sets the identifier recorded in the report.
func WithRunID(id string) Option {
	return func(r *Runner) {
		r.runID = id
	}
}

// WithWorkers bounds concurrent event lookups and comment posts.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithDryRun evaluates everything but posts no comments.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) {
		r.onProgress = fn
	}
}

// WithEngineOptions passes options through to the staleness engine.
func WithEngineOptions(opts ...staleness.EngineOption) Option {
	return func(r *Runner) {
		r.engineOpts = append(r.engineOpts, opts...)
	}
}

// NewRunner creates a Runner for repository.
func NewRunner(repository string, cfg staleness.Config, src Sources, opts ...Option) *Runner {
	r := &Runner{
		repository: repository,
		cfg:        cfg,
		src:        src,
		workers:    constants.DefaultWorkers,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.engine = staleness.NewEngine(cfg, src.Events, r.engineOpts...)
	return r
}

func (r *Runner) reportProgress(stage Stage, completed, total int) {
	if r.onProgress != nil {
		r.onProgress(stage, completed, total)
	}
}

// Run lists open issues and the exclusion set in parallel, evaluates every
// eligible issue and comments on the stale ones. Listing failures abort the
// run; per-issue lookup and comment failures are recorded in the Report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	now := r.now()

	report := &Report{
		RunID:      r.runID,
		Repository: r.repository,
		Now:        now,
		Config:     r.cfg,
		DryRun:     r.dryRun,
	}

	issues, excluded, err := r.fetch(ctx)
	if err != nil {
		if errors.Is(err, ghclient.ErrRateLimited) {
			report.RateLimited = true
		}
		return report, err
	}

	report.Fetched = len(issues)
	report.Excluded = excluded.Sorted()
	log.Info("ignoring issues on excluded columns", "issues", report.Excluded)

	eligible := staleness.FilterEligible(issues, excluded)
	report.Eligible = len(eligible)
	log.Info("filtered issues", "fetched", len(issues), "excluded", len(report.Excluded), "eligible", len(eligible))

	var evaluated atomic.Int32
	r.reportProgress(StageEvaluate, 0, len(eligible))
	decisions, err := r.engine.EvaluateAll(ctx, eligible, now, r.workers, func(staleness.Decision) {
		r.reportProgress(StageEvaluate, int(evaluated.Add(1)), len(eligible))
	})
	if err != nil {
		return report, fmt.Errorf("evaluating issues: %w", err)
	}
	report.Decisions = decisions

	for _, d := range decisions {
		r.logDecision(d)
		if d.Err != nil && errors.Is(d.Err, ghclient.ErrRateLimited) {
			report.RateLimited = true
		}
	}

	report.Notifications = r.notify(ctx, report.Stale(), now)
	for _, note := range report.Notifications {
		if note.Err != nil && errors.Is(note.Err, ghclient.ErrRateLimited) {
			report.RateLimited = true
		}
	}

	report.Duration = time.Since(start)
	log.Info("run complete",
		"stale", len(report.Stale()),
		"posted", report.Posted(),
		"failed", len(report.Failed()),
		"lookup_failures", report.LookupFailures(),
		"duration", report.Duration.Round(time.Millisecond))

	return report, nil
}

// fetch lists the open issues and builds the exclusion set concurrently.
func (r *Runner) fetch(ctx context.Context) ([]staleness.Issue, staleness.IssueSet, error) {
	var (
		issues   []staleness.Issue
		excluded staleness.IssueSet
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.reportProgress(StageIssues, 0, 1)
		list, err := r.src.Issues.OpenIssues(gctx)
		if err != nil {
			return &staleness.FetchError{Source: "issues", Err: err}
		}
		issues = list
		r.reportProgress(StageIssues, 1, 1)
		return nil
	})

	g.Go(func() error {
		total := len(r.cfg.IgnoredColumns)
		r.reportProgress(StageExclusions, 0, total)
		set, err := r.src.Exclusions.Excluded(gctx, r.cfg.IgnoredColumns)
		if err != nil {
			return err
		}
		excluded = set
		r.reportProgress(StageExclusions, total, total)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return issues, excluded, nil
}

// notify comments on every stale issue. Failures are recorded, never returned.
func (r *Runner) notify(ctx context.Context, stale []staleness.Decision, now time.Time) []Notification {
	notes := make([]Notification, len(stale))
	if len(stale) == 0 {
		r.reportProgress(StageNotify, 0, 0)
		return notes
	}

	var done atomic.Int32
	r.reportProgress(StageNotify, 0, len(stale))

	g := new(errgroup.Group)
	g.SetLimit(r.workers)

	for i, d := range stale {
		g.Go(func() error {
			defer func() {
				r.reportProgress(StageNotify, int(done.Add(1)), len(stale))
			}()

			note := Notification{
				IssueNumber: d.IssueNumber,
				Body:        staleness.CommentBody(d.IssueNumber, now),
				DryRun:      r.dryRun,
			}

			if r.dryRun {
				log.Info("dry run: not commenting", log.KeyIssue, d.IssueNumber)
				notes[i] = note
				return nil
			}

			if err := r.src.Notifier.CreateComment(ctx, d.IssueNumber, note.Body); err != nil {
				note.Err = &staleness.NotifyError{Issue: d.IssueNumber, Err: err}
				note.Error = note.Err.Error()
				log.Error("failed to comment on stale issue", log.KeyIssue, d.IssueNumber, log.Err(err))
			} else {
				note.Posted = true
				log.Audit("commented on stale issue", log.KeyIssue, d.IssueNumber)
			}
			notes[i] = note
			return nil
		})
	}

	_ = g.Wait()
	return notes
}

// logDecision records why an issue was or was not flagged. A stale issue
// that is about to be commented on is always audited, whatever the verbosity.
func (r *Runner) logDecision(d staleness.Decision) {
	stale := log.Audit
	if r.dryRun {
		stale = log.Info
	}

	switch {
	case d.Err != nil:
		log.Warn("could not read issue events; skipping", log.KeyIssue, d.IssueNumber, log.Err(d.Err))
	case d.Stale && d.HasEvent:
		stale("bumping stale issue",
			log.KeyIssue, d.IssueNumber,
			"last_updated", d.UpdatedAt.Format(time.RFC3339),
			"last_event", d.LastEventAt.Format(time.RFC3339),
			"age_days", d.AgeDays,
			"event_age_days", d.EventAgeDays)
	case d.Stale:
		stale("bumping stale issue",
			log.KeyIssue, d.IssueNumber,
			"last_updated", d.UpdatedAt.Format(time.RFC3339),
			"age_days", d.AgeDays,
			"events", "none")
	default:
		log.Debug("issue is active",
			log.KeyIssue, d.IssueNumber,
			"reason", string(d.Reason),
			"age_days", d.AgeDays)
	}
}
