// Package guard bounds and observes every call a port decorator makes into
// a storage engine.
package guard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/storaged/internal/domain"
	"github.com/kailas-cloud/storaged/internal/logger"
	"github.com/kailas-cloud/storaged/internal/metrics"
)

// DefaultTimeout applies when a Guard is built with a non-positive timeout.
const DefaultTimeout = 5 * time.Second

// Error kinds reported on the engine error counter.
const (
	KindTimeout = "timeout"
	KindEngine  = "engine"
)

// Guard runs engine calls for one port under a deadline.
type Guard struct {
	port    string
	backend string
	timeout time.Duration
}

// New creates a Guard for the named port and backend.
func New(port, backend string, timeout time.Duration) Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Guard{port: port, backend: backend, timeout: timeout}
}

// Backend returns the backend name the guard reports.
func (g Guard) Backend() string { return g.backend }

// Timeout returns the per-call deadline.
func (g Guard) Timeout() time.Duration { return g.timeout }

// Do runs fn with a deadline of at most the guard timeout.
func (g Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn with a deadline of at most the guard timeout and returns its
// result. Errors outside the domain taxonomy become *domain.EngineError; a
// timeout is always retryable.
func Call[T any](ctx context.Context, g Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	res, err := fn(callCtx)
	elapsed := time.Since(start)

	if err != nil && callCtx.Err() == context.DeadlineExceeded && !errors.Is(err, domain.ErrEngine) {
		// Drivers report an expired deadline in many shapes; the context is authoritative.
		err = &domain.EngineError{Backend: g.backend, Op: op, Retryable: true, Err: context.DeadlineExceeded}
	}
	err = domain.NewEngineError(g.backend, op, err, false)

	kind := classify(err)
	metrics.ObserveEngineCall(g.port, g.backend, op, elapsed, kind)

	if kind != "" {
		logger.FromContext(ctx).Warn("Engine call failed",
			zap.String("port", g.port),
			zap.String("backend", g.backend),
			zap.String("op", op),
			zap.String("kind", kind),
			zap.Bool("retryable", domain.IsRetryable(err)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
	}
	return res, err
}

// classify returns the metric kind for err: empty for success and for
// caller errors such as validation or not found.
func classify(err error) string {
	var ee *domain.EngineError
	if !errors.As(err, &ee) {
		return ""
	}
	if errors.Is(ee.Err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindEngine
}
