// Package metrics exports the outcome of a run as Prometheus metrics, either
// pushed to a Pushgateway or written in the textfile collector format.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/spiffcs/stale/internal/ghclient"
	"github.com/spiffcs/stale/internal/log"
	"github.com/spiffcs/stale/internal/service"
)

const (
	namespace = "stale"

	// JobName is the Pushgateway job of every push.
	JobName = "stale"
)

// Recorder holds the gauges of one run on a private registry.
type Recorder struct {
	reg        *prometheus.Registry
	repository string

	fetched        prometheus.Gauge
	excluded       prometheus.Gauge
	eligible       prometheus.Gauge
	stale          prometheus.Gauge
	posted         prometheus.Gauge
	failed         prometheus.Gauge
	lookupFailures prometheus.Gauge
	duration       prometheus.Gauge
	lastRun        prometheus.Gauge
	rateRemaining  prometheus.Gauge
}

// New creates a Recorder whose series carry the repository label.
func New(repository string) *Recorder {
	labels := prometheus.Labels{"repository": repository}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	r := &Recorder{
		reg:            prometheus.NewRegistry(),
		repository:     repository,
		fetched:        gauge("issues_fetched", "Open issues listed in the last run."),
		excluded:       gauge("issues_excluded", "Issues on ignored project columns in the last run."),
		eligible:       gauge("issues_eligible", "Issues evaluated in the last run."),
		stale:          gauge("issues_stale", "Issues found stale in the last run."),
		posted:         gauge("comments_posted", "Reminder comments created in the last run."),
		failed:         gauge("comments_failed", "Reminder comments that could not be created in the last run."),
		lookupFailures: gauge("event_lookup_failures", "Issues whose events could not be read in the last run."),
		duration:       gauge("run_duration_seconds", "Wall time of the last run."),
		lastRun:        gauge("last_run_timestamp_seconds", "Unix time of the last run."),
		rateRemaining:  gauge("github_rate_limit_remaining", "Primary rate limit remaining after the last run."),
	}

	r.reg.MustRegister(
		r.fetched, r.excluded, r.eligible, r.stale, r.posted, r.failed,
		r.lookupFailures, r.duration, r.lastRun, r.rateRemaining,
	)
	return r
}

// Registry returns the registry holding the run gauges.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Observe sets every gauge from report. rate may be nil when no rate limit
// headers were seen.
func (r *Recorder) Observe(report *service.Report, rate *ghclient.RateLimitStatus) {
	r.fetched.Set(float64(report.Fetched))
	r.excluded.Set(float64(len(report.Excluded)))
	r.eligible.Set(float64(report.Eligible))
	r.stale.Set(float64(len(report.Stale())))
	r.posted.Set(float64(report.Posted()))
	r.failed.Set(float64(len(report.Failed())))
	r.lookupFailures.Set(float64(report.LookupFailures()))
	r.duration.Set(report.Duration.Seconds())
	r.lastRun.Set(float64(report.Now.Unix()))
	if rate != nil {
		r.rateRemaining.Set(float64(rate.Remaining))
	}
}

// Push sends the gauges to a Pushgateway, replacing the group of this
// repository. The repository is the instance grouping key since the
// series already carry it as a label.
func (r *Recorder) Push(ctx context.Context, url string) error {
	log.Debug("pushing metrics", "url", url)
	err := push.New(url, JobName).
		Gatherer(r.reg).
		Grouping("instance", r.repository).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}

// WriteFile writes the gauges to path for the node_exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	log.Debug("wrote metrics file", "path", path)
	return nil
}
