package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tversen/flick/internal/domain"
)

// reportTimeout bounds each fire-and-forget report call
const reportTimeout = 10 * time.Second

// reportSink is the subset of the server client the reporter touches
type reportSink interface {
	ReportStart(ctx context.Context, report domain.ProgressReport) error
	ReportProgress(ctx context.Context, report domain.ProgressReport) error
	ReportStopped(ctx context.Context, report domain.ProgressReport) error
}

// reporter runs the server-reporting protocol for one session: one start
// report, a repeating progress report while playing, out-of-band progress
// on pause transitions, and one stop report. Every call is fire-and-forget;
// failures are logged and never surfaced or retried.
type reporter struct {
	client   reportSink
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{} // Non-nil while the progress ticker runs
	stopped bool
}

func newReporter(client reportSink, interval time.Duration, logger *slog.Logger) *reporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &reporter{client: client, logger: logger, interval: interval}
}

// send performs one report call in the background
func (r *reporter) send(kind string, fn func(ctx context.Context, report domain.ProgressReport) error, report domain.ProgressReport) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := fn(ctx, report); err != nil {
			r.logger.Warn("playback report failed", "kind", kind, "session", report.SessionID, "error", err)
		}
	}()
}

// reportStart sends the one start report for a session
func (r *reporter) reportStart(report domain.ProgressReport) {
	r.send("start", r.client.ReportStart, report)
}

// reportProgressNow sends an immediate out-of-band progress report
func (r *reporter) reportProgressNow(report domain.ProgressReport) {
	r.send("progress", r.client.ReportProgress, report)
}

// reportStopped sends the one stop report for a session
func (r *reporter) reportStopped(report domain.ProgressReport) {
	r.send("stop", r.client.ReportStopped, report)
}

// beginProgress starts the repeating progress timer. snapshot is called on
// every tick to capture the live position; it returns false when the
// session the timer was started for is no longer playing, which suppresses
// the report. The timer runs independently of any rendering cycle.
func (r *reporter) beginProgress(snapshot func() (domain.ProgressReport, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		return
	}
	r.stopped = false
	done := make(chan struct{})
	r.done = done

	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				r.mu.Lock()
				stopped := r.stopped
				r.mu.Unlock()
				if stopped {
					return
				}
				// snapshot runs outside the lock; the caller's own
				// validity check suppresses reports racing a stop
				if report, ok := snapshot(); ok {
					r.reportProgressNow(report)
				}
			}
		}
	}()
}

// stopProgress cancels the progress timer. Ticks racing the stop are
// suppressed by the snapshot validity check.
func (r *reporter) stopProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
}
