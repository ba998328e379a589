package notification

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go-hrms/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	maxHandleAttempts = 3
	retryBackoff      = time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds notification events from a Kafka topic into the service.
// Malformed or rejected events are committed and skipped. Storage failures
// are retried a few times before the event is given up on.
type Consumer struct {
	reader  messageReader
	service NotificationService
	logger  *zap.Logger
	backoff time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func NewConsumer(cfg config.KafkaConfig, service NotificationService, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
		MaxWait:  2 * time.Second,
	})
	return newConsumer(reader, service, logger)
}

func newConsumer(reader messageReader, service NotificationService, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:  reader,
		service: service,
		logger:  logger.With(zap.String("component", "notification_intake")),
		backoff: retryBackoff,
	}
}

// Start runs the fetch loop in the background until Stop.
func (c *Consumer) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		if err := c.Run(ctx); err != nil {
			c.logger.Error("Intake consumer stopped", zap.Error(err))
		}
	}()
}

func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run blocks until ctx is cancelled. It closes the reader on return.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		_ = c.reader.Close()
	}()

	c.logger.Info("Intake consumer started")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Intake consumer shutting down")
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Warn("Fetch failed", zap.Error(err))
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		if !c.handle(ctx, m) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Warn("Commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// handle returns false only when ctx ended before the event could be handled.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) bool {
	var ev Event
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.logger.Warn("Skipping malformed event",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		return true
	}

	for attempt := 1; ; attempt++ {
		result, err := Route(ctx, c.service, ev)
		if err == nil {
			return true
		}
		if IsRejected(err) {
			c.logger.Warn("Skipping rejected event", zap.Int64("offset", m.Offset), zap.Error(err))
			return true
		}
		if attempt >= maxHandleAttempts {
			c.logger.Error("Giving up on event",
				zap.Int64("offset", m.Offset),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return true
		}
		// Roles persisted before the failure are not redelivered.
		ev = ev.Remaining(result)
		if !c.sleep(ctx) {
			return false
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
