package logger

import (
	"go-hrms/internal/config"
	"go-hrms/internal/database"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLogger builds the console logger and tees warnings and errors into MongoDB.
func NewLogger(lc fx.Lifecycle, cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Caller function names end up in the stored log records
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	dbWriter := NewDBLogWriter(NewMongoLogSink(mongodb), cfg.AppId, 1000)
	lc.Append(fx.StopHook(func() {
		_ = baseLogger.Sync()
		dbWriter.Close()
	}))

	finalCore := NewDBCore(baseLogger.Core(), dbWriter, zap.WarnLevel)

	return zap.New(finalCore, zap.AddCaller()), nil
}
