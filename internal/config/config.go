package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

type Config struct {
	Env      string
	Port     int
	LogLevel string

	DBDriver    string
	DatabaseURL string

	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	ReapEvery   time.Duration
	SessionKind string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	RolesFile   string
	CORSOrigins []string

	AdminEmail    string
	AdminPassword string
}

func Load() Config {
	env := EnvDefault("ENV", EnvDevelopment)
	cfg := Config{
		Env:      env,
		Port:     EnvIntDefault("PORT", 3000),
		LogLevel: os.Getenv("LOG_LEVEL"),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		AccessTTL:   time.Duration(EnvIntDefault("TOKEN_ACCESS_EXPIRATION_MINUTES", 60)) * time.Minute,
		RefreshTTL:  time.Duration(EnvIntDefault("TOKEN_REFRESH_EXPIRATION_DAYS", 30)) * 24 * time.Hour,
		ReapEvery:   time.Duration(EnvIntDefault("SESSION_REAP_INTERVAL_MINUTES", 10)) * time.Minute,
		SessionKind: EnvDefault("SESSION_STORE", "sql"),

		RedisAddr:     EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "user_events"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "users"),

		RolesFile:   os.Getenv("ROLES_FILE"),
		CORSOrigins: CSV(EnvDefault("CORS_ORIGINS", "*")),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	if cfg.DBDriver == "sqlite" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "file:sessions.db"
		if env == EnvTest {
			cfg.DatabaseURL = ":memory:"
		}
	}
	return cfg
}

func (c Config) Validate() error {
	switch c.Env {
	case EnvProduction, EnvDevelopment, EnvTest:
	default:
		return fmt.Errorf("ENV must be one of production, development, test, got %q", c.Env)
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}
	switch c.SessionKind {
	case "sql", "redis":
	default:
		return fmt.Errorf("SESSION_STORE must be sql or redis, got %q", c.SessionKind)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.AdminEmail != "" && c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}
	return nil
}

func (c Config) IsProduction() bool { return c.Env == EnvProduction }

func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
