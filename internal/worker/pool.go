// Package worker runs detached background work on a bounded goroutine pool.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool. Detached tasks receive the service lifecycle context,
// which is cancelled on Shutdown.
type Pool struct {
	pool   *ants.Pool
	name   string
	logger *zap.Logger

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// NewPool creates a pool of size workers. Submission does not block: when
// every worker is busy the task is rejected with ants.ErrPoolOverload.
func NewPool(name string, size int, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		size = 50
	}

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.String("pool", name),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	antsPool, err := ants.NewPool(size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(true),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	serviceCtx, serviceCancel := context.WithCancel(context.Background())
	return &Pool{
		pool:          antsPool,
		name:          name,
		logger:        logger,
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// SubmitDetached runs task on the pool with the service context, so it
// survives the submitting request but stops on shutdown.
func (p *Pool) SubmitDetached(task Task) error {
	if p.pool.IsClosed() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			p.logger.Debug("Detached task skipped: service shutting down",
				zap.String("pool", p.name),
			)
			return
		default:
		}
		task(p.serviceCtx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Shutdown cancels the service context and waits up to timeout for running tasks.
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.serviceCancel()
	return p.pool.ReleaseTimeout(timeout)
}

// Metrics returns pool metrics for observability.
func (p *Pool) Metrics() map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}
