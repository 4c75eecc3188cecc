package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job is a periodic unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a named function into a Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

// Name returns the job's name for logging.
func (j JobFunc) Name() string { return j.JobName }

// Run executes the wrapped function.
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

type scheduled struct {
	job      Job
	interval time.Duration
}

// Runner drives the autonomous actors on fixed tickers: the expiry sweeper,
// the stuck-settlement retrier and the ranking aggregator.
type Runner struct {
	jobs   []scheduled
	logger zerolog.Logger
}

// NewRunner constructs an empty runner.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{
		logger: logger.With().Str("component", "worker_runner").Logger(),
	}
}

// Add schedules a job at the given interval. Jobs with a non-positive
// interval are ignored.
func (r *Runner) Add(job Job, interval time.Duration) {
	if interval <= 0 {
		r.logger.Warn().Str("job", job.Name()).Msg("skipping job with non-positive interval")
		return
	}
	r.jobs = append(r.jobs, scheduled{job: job, interval: interval})
}

// Start launches one goroutine per job. Each runs once immediately, then on
// its ticker until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for _, item := range r.jobs {
		go r.loop(ctx, item)
	}
}

func (r *Runner) loop(ctx context.Context, item scheduled) {
	logger := r.logger.With().Str("job", item.job.Name()).Logger()
	logger.Info().Dur("interval", item.interval).Msg("background job started")

	r.runOnce(ctx, item.job, logger)

	ticker := time.NewTicker(item.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("background job stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx, item.job, logger)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job, logger zerolog.Logger) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("background job run failed")
		return
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("background job run complete")
}
