package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resumetailor-hq/tailor/pkg/telemetry/tracing"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Backoff returns the wait before poll attempt n (1-based).
type Backoff func(attempt int) time.Duration

// FixedBackoff waits d before every attempt.
func FixedBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Result is a finished job.
type Result struct {
	JobID    string
	Lines    []string
	Partial  bool
	Attempts int
}

// Poller drives an asynchronous job from submission to a terminal state.
// It polls at most maxAttempts times; a job still running after that is
// reported as ErrJobTimedOut.
type Poller struct {
	api         AsyncAPI
	backoff     Backoff
	maxAttempts int
	sleep       Sleeper
	logger      *slog.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithBackoff sets the wait policy.
func WithBackoff(b Backoff) PollerOption {
	return func(p *Poller) { p.backoff = b }
}

// WithMaxAttempts sets the attempt bound.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithSleeper replaces the wait function, typically in tests.
func WithSleeper(s Sleeper) PollerOption {
	return func(p *Poller) { p.sleep = s }
}

// WithPollerLogger sets the logger.
func WithPollerLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = l }
}

// Default polling policy: every 5 seconds for at most 5 minutes.
const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxPollAttempts = 60
)

// NewPoller creates a Poller over api.
func NewPoller(api AsyncAPI, opts ...PollerOption) *Poller {
	p := &Poller{
		api:         api,
		backoff:     FixedBackoff(DefaultPollInterval),
		maxAttempts: DefaultMaxPollAttempts,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run submits the document and waits for the job to finish.
func (p *Poller) Run(ctx context.Context, bucket, key string) (*Result, error) {
	jobID, err := p.api.StartJob(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("extraction: start job for %s: %w", key, err)
	}
	tracing.AddEvent(trace.SpanFromContext(ctx), "extraction.job_started", attribute.String(tracing.AttrJobID, jobID))

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := p.sleep(ctx, p.backoff(attempt)); err != nil {
			return nil, err
		}

		page, err := p.api.Poll(ctx, jobID, "")
		if err != nil {
			return nil, fmt.Errorf("extraction: poll job %s: %w", jobID, err)
		}

		switch page.Status {
		case StatusRunning:
			p.logger.DebugContext(ctx, "extraction job running", "job_id", jobID, "attempt", attempt)
			continue
		case StatusFailed:
			return nil, &JobFailedError{JobID: jobID, Message: page.StatusMessage}
		case StatusSucceeded, StatusPartialSuccess:
			lines, err := p.drain(ctx, jobID, page)
			if err != nil {
				return nil, err
			}
			res := &Result{
				JobID:    jobID,
				Lines:    lines,
				Partial:  page.Status == StatusPartialSuccess,
				Attempts: attempt,
			}
			if res.Partial {
				p.logger.WarnContext(ctx, "extraction job partially succeeded",
					"job_id", jobID, "lines", len(lines), "message", page.StatusMessage)
			}
			return res, nil
		default:
			return nil, fmt.Errorf("extraction: job %s reported unknown status %q", jobID, page.Status)
		}
	}

	p.logger.WarnContext(ctx, "extraction job timed out", "job_id", jobID, "attempts", p.maxAttempts)
	return nil, fmt.Errorf("%w: job %s still running after %d attempts", ErrJobTimedOut, jobID, p.maxAttempts)
}

// drain collects the remaining result pages of a finished job.
func (p *Poller) drain(ctx context.Context, jobID string, first Page) ([]string, error) {
	lines := append([]string(nil), first.Lines...)
	for token := first.NextToken; token != ""; {
		page, err := p.api.Poll(ctx, jobID, token)
		if err != nil {
			return nil, fmt.Errorf("extraction: read job %s results: %w", jobID, err)
		}
		lines = append(lines, page.Lines...)
		token = page.NextToken
	}
	return lines, nil
}

// ExtractLines runs the job and returns its lines.
func (p *Poller) ExtractLines(ctx context.Context, bucket, key string) ([]string, error) {
	res, err := p.Run(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	if len(res.Lines) == 0 {
		return nil, ErrNoText
	}
	return res.Lines, nil
}
