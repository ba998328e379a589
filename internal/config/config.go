package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// Realtime delivery
	SweepInterval     time.Duration // How often idle connections are pruned
	IdleTimeout       time.Duration // Connections silent for longer than this are evicted
	HeartbeatInterval time.Duration // Keep-alive frames for proxies, 0 disables
	AckTimeout        time.Duration // Bound on the connection-acknowledgment write
	WriteTimeout      time.Duration // Bound on every other push write
	SendBuffer        int           // Outbound frames queued per socket

	WorkerPoolSize    int
	RetentionDays     int
	RetentionSchedule string // Standard cron spec for in-process cleanup, empty disables

	SMTP  SMTPConfig
	Kafka KafkaConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether the secondary email channel can send at all.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != 0
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topic   string
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-hrms"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "go-hrms"),

		SweepInterval:     getDuration("SWEEP_INTERVAL", 30*time.Second),
		IdleTimeout:       getDuration("IDLE_TIMEOUT", 5*time.Minute),
		HeartbeatInterval: getDuration("HEARTBEAT_INTERVAL", 25*time.Second),
		AckTimeout:        getDuration("ACK_TIMEOUT", 5*time.Second),
		WriteTimeout:      getDuration("WRITE_TIMEOUT", 2*time.Second),
		SendBuffer:        getInt("SEND_BUFFER", 32),

		WorkerPoolSize:    getInt("WORKER_POOL_SIZE", 50),
		RetentionDays:     getInt("RETENTION_DAYS", 30),
		RetentionSchedule: getEnv("RETENTION_SCHEDULE", ""),

		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@hrms.local"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			GroupID: getEnv("KAFKA_GROUP_ID", "hrms-notifications"),
			Topic:   getEnv("KAFKA_TOPIC", "hrms.notifications"),
		},
	}, nil
}

// IsProduction reports whether the service runs with production logging.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		log.Printf("Invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
