package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memorySink struct {
	mu      sync.Mutex
	records []LogRecord
}

func (s *memorySink) Insert(_ context.Context, record LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *memorySink) all() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogRecord(nil), s.records...)
}

func TestDBCoreTeesWarningsWithContext(t *testing.T) {
	sink := &memorySink{}
	writer := NewDBLogWriter(sink, "hrms-test", 10)

	base, observed := observer.New(zapcore.DebugLevel)
	log := zap.New(NewDBCore(base, writer, zapcore.WarnLevel)).
		With(zap.String("component", "realtime"))

	log.Info("connection registered", zap.String("user_id", "u1"))
	log.Warn("push failed", zap.String("user_id", "u2"))
	writer.Close()

	assert.Equal(t, 2, observed.Len(), "console core receives every entry")

	records := sink.all()
	require.Len(t, records, 1)
	assert.Equal(t, "push failed", records[0].Message)
	assert.Equal(t, "u2", records[0].UserID)
	assert.Equal(t, "realtime", records[0].Component)
	assert.Equal(t, "hrms-test", records[0].AppId)
	assert.Equal(t, 30, records[0].LogLevelId)
}

func TestDBLogWriterDropsAfterClose(t *testing.T) {
	sink := &memorySink{}
	writer := NewDBLogWriter(sink, "hrms-test", 1)
	writer.Close()
	writer.Close()

	writer.AddLog(LogEntry{Level: zapcore.ErrorLevel, Message: "late"})
	assert.Empty(t, sink.all())
}
