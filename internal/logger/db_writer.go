package logger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-hrms/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level     zapcore.Level
	Message   string
	Caller    string
	UserID    string
	Component string
	Context   map[string]interface{}
}

// LogRecord is the stored shape of a log line.
type LogRecord struct {
	AppId      string                 `bson:"app_id"`
	LogLevelId int                    `bson:"log_level_id"`
	Level      string                 `bson:"level"`
	Message    string                 `bson:"message"`
	Caller     string                 `bson:"caller,omitempty"`
	UserID     string                 `bson:"user_id,omitempty"`
	Component  string                 `bson:"component,omitempty"`
	Context    map[string]interface{} `bson:"context,omitempty"`
	CreatedAt  time.Time              `bson:"created_at"`
}

// LogSink persists log records.
type LogSink interface {
	Insert(ctx context.Context, record LogRecord) error
}

type mongoLogSink struct {
	collection *mongo.Collection
}

func NewMongoLogSink(mongodb *database.MongodbDB) LogSink {
	return &mongoLogSink{collection: mongodb.DB.Collection("service_logs")}
}

func (s *mongoLogSink) Insert(ctx context.Context, record LogRecord) error {
	_, err := s.collection.InsertOne(ctx, record)
	return err
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	sink    LogSink
	logChan chan LogEntry
	appId   string

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDBLogWriter initializes the worker
func NewDBLogWriter(sink LogSink, appId string, buffer int) *DBLogWriter {
	writer := &DBLogWriter{
		sink:    sink,
		logChan: make(chan LogEntry, buffer),
		appId:   appId,
		done:    make(chan struct{}),
	}

	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap hook
func (w *DBLogWriter) AddLog(entry LogEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.logChan <- entry:
	default:
		// Channel full: drop rather than block the caller
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

// Close stops accepting entries and waits for the queue to drain.
func (w *DBLogWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.logChan)
	w.mu.Unlock()

	<-w.done
}

func (w *DBLogWriter) processLogs() {
	defer close(w.done)

	for entry := range w.logChan {
		record := LogRecord{
			AppId:      w.appId,
			LogLevelId: mapLevelToInt(entry.Level),
			Level:      entry.Level.String(),
			Message:    entry.Message,
			Caller:     entry.Caller,
			UserID:     entry.UserID,
			Component:  entry.Component,
			Context:    entry.Context,
			CreatedAt:  time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// Errors are ignored so a slow database never backs up logging
		_ = w.sink.Insert(ctx, record)
		cancel()
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
