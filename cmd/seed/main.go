package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"go-hrms/internal/config"
	"go-hrms/internal/database"
	"go-hrms/internal/features/employee"
	"go-hrms/internal/logger"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const employeesPath = "cmd/seed/data/employees.json"

// Seed loads the demo employee directory from JSON.
func Seed(
	lc fx.Lifecycle,
	employeeRepo employee.EmployeeRepository,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx := context.Background()
				logger.Info("Seeding employee directory", zap.String("path", employeesPath))

				b, err := os.ReadFile(employeesPath)
				if err != nil {
					logger.Error("Failed to read seed data", zap.Error(err))
					return
				}
				var employees []employee.Employee
				if err := json.Unmarshal(b, &employees); err != nil {
					logger.Error("Failed to parse seed data", zap.Error(err))
					return
				}

				if err := employeeRepo.EnsureIndexes(ctx); err != nil {
					logger.Warn("Failed to ensure employee indexes", zap.Error(err))
				}

				for i := range employees {
					e := &employees[i]
					if err := employeeRepo.Upsert(ctx, e); err != nil {
						logger.Error("Failed to upsert employee", zap.String("user_id", e.UserID), zap.Error(err))
						continue
					}
					logger.Info("Employee seeded", zap.String("user_id", e.UserID), zap.Strings("roles", e.Roles))
				}

				logger.Info("Seeding complete", zap.Int("employees", len(employees)))
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			employee.NewEmployeeRepository,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}

	<-app.Done()
}
