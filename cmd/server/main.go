package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Skotchmaster/sessionauth/internal/config"
	"github.com/Skotchmaster/sessionauth/internal/events"
	"github.com/Skotchmaster/sessionauth/internal/httpserver"
	"github.com/Skotchmaster/sessionauth/internal/logging"
	"github.com/Skotchmaster/sessionauth/internal/models"
	"github.com/Skotchmaster/sessionauth/internal/repo"
	"github.com/Skotchmaster/sessionauth/internal/roles"
	"github.com/Skotchmaster/sessionauth/internal/search"
	"github.com/Skotchmaster/sessionauth/internal/service"
	"github.com/Skotchmaster/sessionauth/internal/session"
	"github.com/Skotchmaster/sessionauth/pkg/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DBDriver == "postgres" {
		config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env).With("service", "sessionauth")
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := db.Migrate(gdb, models.All()...); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	table, err := roles.Load(cfg.RolesFile)
	if err != nil {
		log.Fatalf("roles: %v", err)
	}

	gormRepo := repo.NewGormRepo(gdb)
	store, closeStore := sessionStore(cfg, gormRepo)
	sessions := session.NewManager(store, cfg.AccessTTL, cfg.RefreshTTL)

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	users := &service.UserService{Repo: gormRepo, Sessions: sessions, Roles: table, Events: publisher}
	if cfg.ESURL != "" {
		es, err := search.NewClient(search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			logger.Warn("elasticsearch_unavailable", "error", err)
		} else {
			users.Directory = search.NewDirectory(es, cfg.ESIndex)
		}
	}

	if cfg.AdminEmail != "" {
		bootCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := users.EnsureAdmin(bootCtx, cfg.AdminEmail, cfg.AdminPassword)
		cancel()
		if err != nil {
			log.Fatalf("admin bootstrap: %v", err)
		}
		if created {
			logger.Info("admin_created", "email", cfg.AdminEmail)
		}
	}

	deps := &httpserver.Deps{
		Auth:  &httpserver.AuthHTTP{Svc: &service.AuthService{Users: users, Sessions: sessions}, SecureCookies: cfg.IsProduction()},
		Users: &httpserver.UsersHTTP{Svc: users},
		Authn: &httpserver.Authenticator{Sessions: sessions, Users: users, Roles: table},
		Ready: func(ctx context.Context) error { return db.Ping(ctx, gdb) },
	}
	if cfg.IsProduction() {
		deps.AuthLimiter = httpserver.NewFailureLimiter(25, 15*time.Minute)
	}

	e := httpserver.NewEcho(cfg.Env, logger, cfg.CORSOrigins)
	httpserver.Register(e, deps)

	reaperCtx, stopReaper := context.WithCancel(logging.IntoContext(context.Background(), logger))
	if cfg.SessionKind == "sql" {
		go sessions.RunReaper(reaperCtx, cfg.ReapEvery)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http_listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopReaper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := publisher.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}
	closeStore()
	closeDB(logger, gdb)

	logger.Info("shutdown complete")
}

func sessionStore(cfg config.Config, gormRepo *repo.GormRepo) (session.Store, func()) {
	if cfg.SessionKind != "redis" {
		return gormRepo, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}
	return repo.NewRedisSessions(client, cfg.RefreshTTL), func() {
		if err := client.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
}

func closeDB(logger *slog.Logger, gdb *gorm.DB) {
	sqlDB, err := gdb.DB()
	if err != nil {
		logger.Error("db() error", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("db close error", "error", err)
	}
}
