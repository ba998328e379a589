package main

import (
	"context"
	"fmt"
	"time"

	common_api "go-hrms/internal/common/api"
	"go-hrms/internal/config"
	"go-hrms/internal/database"
	"go-hrms/internal/features/email"
	"go-hrms/internal/features/employee"
	"go-hrms/internal/features/notification"
	"go-hrms/internal/features/realtime"
	"go-hrms/internal/features/system"
	"go-hrms/internal/logger"
	"go-hrms/internal/middleware"
	"go-hrms/internal/worker"
	"go-hrms/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, logger *zap.Logger) {
	logger.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		logger.Debug("Setting up route", zap.String("route", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer starts Fiber in a goroutine and shuts it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config, logger *zap.Logger, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				logger.Info("HTTP server listening", zap.String("addr", port))
				if err := app.Listen(port); err != nil {
					logger.Error("Server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, notifications *notification.MongoRepository, employees employee.EmployeeRepository, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := notifications.EnsureIndexes(ctx); err != nil {
					logger.Warn("Failed to ensure notification indexes", zap.Error(err))
				}
				if err := employees.EnsureIndexes(ctx); err != nil {
					logger.Warn("Failed to ensure employee indexes", zap.Error(err))
				}
			}()
			return nil
		},
	})
}

func NewRealtimeMetrics() (*realtime.Metrics, error) {
	return realtime.NewMetrics(prometheus.DefaultRegisterer)
}

func NewRegistry(cfg *config.Config, metrics *realtime.Metrics, logger *zap.Logger) *realtime.Registry {
	return realtime.NewRegistry(logger,
		realtime.WithAckTimeout(cfg.AckTimeout),
		realtime.WithWriteTimeout(cfg.WriteTimeout),
		realtime.WithMetrics(metrics),
	)
}

func NewSweeper(lc fx.Lifecycle, registry *realtime.Registry, cfg *config.Config, logger *zap.Logger) *realtime.Sweeper {
	sweeper := realtime.NewSweeper(registry, realtime.SweeperConfig{
		SweepInterval:     cfg.SweepInterval,
		IdleTimeout:       cfg.IdleTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, logger)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sweeper.Start()
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
	return sweeper
}

func NewWorkerPool(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*worker.Pool, error) {
	pool, err := worker.NewPool("notifications", cfg.WorkerPoolSize, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return pool.Shutdown(10 * time.Second)
		},
	})
	return pool, nil
}

func NewEmailSender(cfg *config.Config, logger *zap.Logger) email.Sender {
	if cfg.SMTP.Enabled() {
		return email.NewSMTPSender(cfg.SMTP)
	}
	logger.Warn("SMTP_HOST not set, emails will only be logged")
	return email.NewLogSender(logger)
}

func NewEmailDispatcher(
	contacts email.ContactResolver,
	templates *email.TemplateSet,
	sender email.Sender,
	outbox email.Outbox,
	cfg *config.Config,
	logger *zap.Logger,
) *email.Dispatcher {
	return email.NewDispatcher(contacts, templates, sender, outbox, cfg.SMTP.From, logger)
}

// StartIntake runs the Kafka intake consumer when brokers are configured.
func StartIntake(lc fx.Lifecycle, cfg *config.Config, service notification.NotificationService, logger *zap.Logger) {
	if !cfg.Kafka.Enabled() {
		logger.Info("KAFKA_BROKERS not set, notification intake disabled")
		return
	}

	consumer := notification.NewConsumer(cfg.Kafka, service, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			consumer.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			consumer.Stop()
			return nil
		},
	})
}

func StartRetention(lc fx.Lifecycle, cfg *config.Config, service notification.NotificationService, logger *zap.Logger) {
	job := notification.NewRetentionJob(service, cfg.RetentionSchedule, cfg.RetentionDays, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return job.Start()
		},
		OnStop: func(ctx context.Context) error {
			job.Stop()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Database
			database.NewDatabase,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Realtime delivery
			NewRealtimeMetrics,
			NewRegistry,
			NewSweeper,
			NewWorkerPool,

			// Initialize Repository
			notification.NewNotificationRepository,
			employee.NewEmployeeRepository,
			email.NewEmailRepository,

			// Secondary channel
			email.DefaultTemplates,
			NewEmailSender,
			NewEmailDispatcher,

			// Interface adapters
			func(r *notification.MongoRepository) notification.Store { return r },
			func(r *realtime.Registry) notification.Pusher { return r },
			func(r employee.EmployeeRepository) notification.Directory { return r },
			func(r employee.EmployeeRepository) email.ContactResolver { return r },
			func(r *email.EmailRepository) email.Outbox { return r },
			func(d *email.Dispatcher) notification.SecondaryChannel { return d },
			func(p *worker.Pool) notification.Submitter { return p },

			notification.NewNotificationService,

			// Initialize Controller
			realtime.NewWebSocketController,
			notification.NewNotificationController,

			// Initialize API Routes
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewMetricsApi),
			AsRoute(realtime.NewRealtimeApi),
			AsRoute(notification.NewNotificationApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },
			func(*realtime.Sweeper) {},
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartIntake,
			StartRetention,
			InitializeIndexes,
		),
	)

	app.Run()
}
