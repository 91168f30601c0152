package services

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/tbourn/go-xp-engine/internal/observability"
)

// Detached runs best-effort side effects (activity log rows, reward
// dispatch, push notifications) outside the caller's lifetime. Task errors
// and panics are logged and counted, never returned to the caller.
type Detached struct {
	wg      conc.WaitGroup
	timeout time.Duration
}

// NewDetached returns a runner whose tasks are each bounded by timeout.
func NewDetached(timeout time.Duration) *Detached {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Detached{timeout: timeout}
}

// Go starts fn in the background. fn receives a context that keeps ctx's
// values (logger, trace span) but not its cancellation, bounded by the
// runner timeout.
func (d *Detached) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	base := context.WithoutCancel(ctx)
	d.wg.Go(func() {
		tctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		var (
			err error
			pc  panics.Catcher
		)
		pc.Try(func() { err = fn(tctx) })
		if r := pc.Recovered(); r != nil {
			err = r.AsError()
		}
		if err != nil {
			observability.TaskFailures.WithLabelValues(name).Inc()
			observability.Logger(base).Warn().Err(err).Str("task", name).Msg("background task failed")
		}
	})
}

// Wait blocks until every started task finished or ctx is done.
func (d *Detached) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
