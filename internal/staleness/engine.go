package staleness

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// commentDateLayout renders dates like "Fri Oct 16 2026".
const commentDateLayout = "Mon Jan 02 2006"

// Engine evaluates issues against a Config.
//
// An issue is stale when its last update is more than ThresholdDays old and
// its most recent event is too. Checking the event as well keeps issues that
// were only moved or labelled recently from being flagged.
type Engine struct {
	cfg    Config
	ages   AgeCalculator
	events EventSource
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLocation sets the time zone used for weekday counting.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		e.ages.Location = loc
	}
}

// NewEngine creates an Engine. events is consulted only for issues whose
// update time already exceeds the threshold.
func NewEngine(cfg Config, events EventSource, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:    cfg,
		ages:   NewAgeCalculator(cfg.WeekdaysOnly),
		events: events,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate decides whether a single issue is stale.
// An event lookup failure is returned in Decision.Err and the issue is not flagged.
func (e *Engine) Evaluate(ctx context.Context, issue Issue, now time.Time) Decision {
	d := Decision{
		IssueNumber: issue.Number,
		Title:       issue.Title,
		HTMLURL:     issue.HTMLURL,
		UpdatedAt:   issue.UpdatedAt,
		AgeDays:     e.ages.Days(issue.UpdatedAt, now),
	}

	if d.AgeDays <= e.cfg.ThresholdDays {
		d.Reason = ReasonRecentlyUpdated
		return d
	}

	event, err := e.events.LatestEvent(ctx, issue.Number)
	if err != nil {
		d.Reason = ReasonEventLookup
		d.Err = &FetchError{Source: fmt.Sprintf("events of #%d", issue.Number), Err: err}
		return d
	}

	if event == nil {
		d.Stale = true
		d.Reason = ReasonStaleNoEvents
		return d
	}

	d.HasEvent = true
	d.LastEventAt = event.CreatedAt
	d.EventAgeDays = e.ages.Days(event.CreatedAt, now)

	if d.EventAgeDays <= e.cfg.ThresholdDays {
		d.Reason = ReasonRecentEvent
		return d
	}

	d.Stale = true
	d.Reason = ReasonStale
	return d
}

// EvaluateAll evaluates issues concurrently with at most workers in flight.
// Decisions are returned in the order of issues. onDone, if set, is called
// after each evaluation and must be safe for concurrent use.
func (e *Engine) EvaluateAll(ctx context.Context, issues []Issue, now time.Time, workers int, onDone func(Decision)) ([]Decision, error) {
	decisions := make([]Decision, len(issues))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, issue := range issues {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decisions[i] = e.Evaluate(gctx, issue, now)
			if onDone != nil {
				onDone(decisions[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}

// CommentBody returns the reminder posted on a stale issue.
func CommentBody(issueNumber int, now time.Time) string {
	return fmt.Sprintf("Looks like issue #%d is stale as of %s. Have a great day!",
		issueNumber, now.Format(commentDateLayout))
}
