package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/traceveil/forensics-portal/internal/auth"
	"github.com/traceveil/forensics-portal/internal/http/handlers"
	"github.com/traceveil/forensics-portal/internal/mailer"
	"github.com/traceveil/forensics-portal/internal/ratelimit"
	"github.com/traceveil/forensics-portal/internal/service"
	"github.com/traceveil/forensics-portal/internal/store"
	"github.com/traceveil/forensics-portal/internal/store/file"
	"github.com/traceveil/forensics-portal/internal/store/postgres"
	"github.com/traceveil/forensics-portal/pkg/config"
	"github.com/traceveil/forensics-portal/pkg/database"
	"github.com/traceveil/forensics-portal/pkg/events"
	"github.com/traceveil/forensics-portal/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.Storage.Backend)
		os.Exit(1)
	}
	defer cleanup()

	if cfg.Auth.AdminBootstrapPassword != "" {
		created, err := service.EnsureAdmin(ctx, st, cfg.Auth.AdminBootstrapEmail, cfg.Auth.AdminBootstrapPassword)
		if err != nil {
			logger.Error("Failed to bootstrap admin account", "error", err)
			os.Exit(1)
		}
		if created {
			logger.Info("Bootstrap admin account created", "email", cfg.Auth.AdminBootstrapEmail)
		}
	} else {
		logger.Warn("ADMIN_BOOTSTRAP_PASSWORD not set, skipping admin bootstrap")
	}

	eventBus := openEventBus(cfg)
	defer eventBus.Close()

	issuer := auth.NewIssuer(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	authService := service.NewAuthService(st, issuer, eventBus)
	resetService := service.NewResetService(st, openMailer(cfg), eventBus, cfg.Auth.ResetCodeTTL)

	limiter := ratelimit.New(openCounterStore(cfg), ratelimit.Config{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	handlers.New(authService, resetService, st.Audit, issuer).Routes(r, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down auth service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting auth service", "port", cfg.Server.Port, "backend", cfg.Storage.Backend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	default:
		st, err := file.New(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}
}

func openEventBus(cfg *config.Config) events.EventBus {
	if !cfg.NATS.Enabled {
		return events.NewNoopEventBus()
	}
	bus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Warn("Failed to connect to NATS, events disabled", "error", err)
		return events.NewNoopEventBus()
	}
	return bus
}

func openMailer(cfg *config.Config) mailer.Service {
	switch {
	case cfg.Email.DevMode:
		return mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	default:
		return mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPFrom,
			cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
	}
}

func openCounterStore(cfg *config.Config) ratelimit.CounterStore {
	if !cfg.Redis.Enabled {
		return ratelimit.NewMemoryStore()
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Invalid REDIS_URL, using in-memory rate limiting", "error", err)
		return ratelimit.NewMemoryStore()
	}
	return ratelimit.NewRedisStore(redis.NewClient(opts))
}
