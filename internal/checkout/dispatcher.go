package checkout

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher runs best-effort tasks detached from the request that started
// them. Task errors go to the log and nowhere else. Wait lets shutdown drain
// tasks that are still running.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{timeout: timeout, logger: logger}
}

// Go starts fn in the background. fn keeps the values carried by ctx but not
// its cancellation, and is bounded by the dispatcher timeout instead.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(context.Context) error) {
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				d.logger.Error("background task panicked", zap.String("task", name), zap.Any("panic", rec))
			}
		}()

		start := time.Now()
		if err := fn(taskCtx); err != nil {
			d.logger.Warn("background task failed",
				zap.String("task", name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		d.logger.Debug("background task completed", zap.String("task", name), zap.Duration("duration", time.Since(start)))
	}()
}

// Wait blocks until every task has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
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
