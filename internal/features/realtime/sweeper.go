package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultSweepInterval = 30 * time.Second
	DefaultIdleTimeout   = 5 * time.Minute
)

// SweeperConfig holds the timer periods. A zero HeartbeatInterval disables keep-alive frames.
type SweeperConfig struct {
	SweepInterval     time.Duration
	IdleTimeout       time.Duration
	HeartbeatInterval time.Duration
}

// Sweeper is the only component that evicts connections for inactivity. It
// also sends the keep-alive heartbeat through the registry's push path.
type Sweeper struct {
	registry *Registry
	cfg      SweeperConfig
	logger   *zap.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
}

func NewSweeper(registry *Registry, cfg SweeperConfig, logger *zap.Logger) *Sweeper {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Sweeper{
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "sweeper")),
	}
}

// Start schedules the sweep and heartbeat jobs.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return errors.New("sweeper already running")
	}

	cl := cronLogger{s.logger.Sugar()}
	scheduler := cron.New(cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))
	scheduler.Schedule(cron.Every(s.cfg.SweepInterval), cron.FuncJob(s.RunOnce))
	if s.cfg.HeartbeatInterval > 0 {
		scheduler.Schedule(cron.Every(s.cfg.HeartbeatInterval), cron.FuncJob(func() {
			s.registry.Heartbeat()
		}))
	}
	scheduler.Start()
	s.scheduler = scheduler

	s.logger.Info("Sweeper started",
		zap.Duration("sweep_interval", s.cfg.SweepInterval),
		zap.Duration("idle_timeout", s.cfg.IdleTimeout),
		zap.Duration("heartbeat_interval", s.cfg.HeartbeatInterval),
	)
	return nil
}

// Stop waits for a running sweep to finish. Calling it on a stopped sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if scheduler == nil {
		return
	}
	<-scheduler.Stop().Done()
	s.logger.Info("Sweeper stopped")
}

// Running reports whether the jobs are scheduled.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler != nil
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce() {
	s.registry.Sweep(s.cfg.IdleTimeout)
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
