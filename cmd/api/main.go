// Package main is the entrypoint for the ByteBuddy API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/bytebuddy/bytebuddy/internal/auth"
	"github.com/bytebuddy/bytebuddy/internal/cache"
	"github.com/bytebuddy/bytebuddy/internal/chat"
	"github.com/bytebuddy/bytebuddy/internal/completion"
	"github.com/bytebuddy/bytebuddy/internal/config"
	"github.com/bytebuddy/bytebuddy/internal/conversation"
	"github.com/bytebuddy/bytebuddy/internal/events"
	"github.com/bytebuddy/bytebuddy/internal/handler"
	"github.com/bytebuddy/bytebuddy/internal/mailer"
	"github.com/bytebuddy/bytebuddy/internal/metrics"
	"github.com/bytebuddy/bytebuddy/internal/middleware"
	"github.com/bytebuddy/bytebuddy/internal/server"
	"github.com/bytebuddy/bytebuddy/internal/service"
	"github.com/bytebuddy/bytebuddy/internal/store"
	boltstore "github.com/bytebuddy/bytebuddy/internal/store/bolt"
	"github.com/bytebuddy/bytebuddy/internal/store/postgres"
	"github.com/bytebuddy/bytebuddy/internal/store/remote"
)

// handlers groups everything the router mounts.
type handlers struct {
	health        *handler.HealthHandler
	metrics       *handler.MetricsHandler
	auth          *handler.AuthHandler
	conversations *handler.ConversationHandler
	wellness      *handler.WellnessHandler
	events        *handler.EventsHandler
}

func main() {
	ctx := context.Background()

	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Storage
	backend, limiter, checks, err := openBackend(ctx, cfg, logger)
	if err != nil {
		os.Exit(1)
	}

	// Services
	metricsRecorder := metrics.NewInMemory()
	hub := events.NewHub(logger, events.DefaultBuffer)

	registry := conversation.NewRegistry(backend, conversation.Options{
		Notifier: hub,
		Metrics:  metricsRecorder,
		Logger:   logger,
	})

	completionService := completion.NewService(newProvider(cfg, logger), metricsRecorder, logger)

	chatManager := chat.NewManager(chat.Config{
		Completer:         completionService,
		Notifier:          hub,
		Metrics:           metricsRecorder,
		Logger:            logger,
		CompletionTimeout: cfg.CompletionTimeout,
		TitleTimeout:      cfg.TitleTimeout,
	})

	warnResetCodes(cfg, logger)

	sessions := service.NewSessionService(service.SessionConfig{
		Store:            backend,
		Tokens:           auth.NewTokens(cfg.SigningKey(), cfg.SessionTTL),
		Hasher:           auth.NewHasher(auth.DefaultParams),
		Mailer:           newMailer(cfg, logger),
		Metrics:          metricsRecorder,
		Logger:           logger,
		ReturnResetCodes: cfg.ReturnResetCodes(),
		OnSignOut: func(identityID string) {
			registry.Drop(identityID)
			chatManager.Drop(identityID)
		},
	})

	h := handlers{
		health:        handler.NewHealthHandler(checks...),
		metrics:       handler.NewMetricsHandler(metricsRecorder),
		auth:          handler.NewAuthHandler(sessions, registry, logger),
		conversations: handler.NewConversationHandler(registry, chatManager, logger),
		wellness:      handler.NewWellnessHandler(completionService, logger),
		events:        handler.NewEventsHandler(hub, cfg.GetCORSAllowedOrigins(), logger),
	}

	r := setupRouter(h, sessions, limiter, cfg, logger)

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: the backend closes after in-flight chat work has finished.
	srv.OnShutdown("store", func(context.Context) error {
		return backend.Close()
	})
	srv.OnShutdown("chat", func(ctx context.Context) error {
		return waitChat(ctx, chatManager)
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"backend", cfg.StoreBackend,
		"completion_provider", cfg.CompletionProvider,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openBackend connects the configured storage and returns it along with
// the rate limiter and readiness checks that go with it.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, middleware.IPLimiter, []handler.Check, error) {
	if !cfg.IsRemote() {
		st, err := boltstore.Open(cfg.LocalDBPath)
		if err != nil {
			logger.Error("failed to open local store",
				slog.String("path", cfg.LocalDBPath),
				slog.String("error", err.Error()),
			)
			return nil, nil, nil, err
		}
		logger.Info("opened local store", slog.String("path", cfg.LocalDBPath))
		return st, cache.NewMemoryLimiter(), []handler.Check{{Name: "store", Checker: st}}, nil
	}

	if cfg.DBAutoMigrate {
		if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("failed to run migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			return nil, nil, nil, err
		}
		logger.Info("database migrations applied")
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return nil, nil, nil, err
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		db.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return nil, nil, nil, err
	}
	logger.Info("connected to Redis")

	checks := []handler.Check{
		{Name: "postgres", Checker: db},
		{Name: "redis", Checker: cacheClient},
	}
	return remote.New(db, cacheClient), cacheClient, checks, nil
}

// newProvider picks the completion provider. Without an API key every
// completion fails and users see the fallback messages.
func newProvider(cfg *config.Config, logger *slog.Logger) completion.Provider {
	if cfg.CompletionAPIKey == "" {
		logger.Warn("COMPLETION_API_KEY is not set; assistant replies are disabled")
		return completion.Unconfigured{}
	}

	switch cfg.CompletionProvider {
	case config.ProviderPerplexity:
		return completion.NewPerplexity(cfg.CompletionAPIKey, cfg.CompletionBaseURL, cfg.CompletionModel, cfg.CompletionTimeout)
	default:
		return completion.NewOpenAI(cfg.CompletionAPIKey, cfg.CompletionBaseURL, cfg.CompletionModel)
	}
}

func newMailer(cfg *config.Config, logger *slog.Logger) mailer.Mailer {
	if cfg.MailerURL == "" {
		return mailer.NewLogMailer(logger)
	}
	return mailer.NewHTTPMailer(cfg.MailerURL, cfg.MailerAPIKey, cfg.ReadTimeout)
}

func waitChat(ctx context.Context, m *chat.Manager) error {
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h handlers,
	sessions middleware.SessionRestorer,
	limiter middleware.IPLimiter,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health endpoints (no auth required)
	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	r.Get("/metrics", h.metrics.Metrics)

	authCfg := middleware.AuthConfig{
		Logger:   logger,
		Sessions: sessions,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: limiter,
		Enabled: cfg.RateLimitEnabled,
		RPS:     cfg.RateLimitAuthRPS,
		Burst:   cfg.RateLimitAuthBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Account endpoints, rate limited per client IP
		r.Route("/auth", func(r chi.Router) {
			r.Get("/session", h.auth.Session)
			r.Post("/signout", h.auth.SignOut)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitIP(rateLimitCfg))
				r.Post("/signup", h.auth.SignUp)
				r.Post("/signin", h.auth.SignIn)
				r.Post("/password-reset", h.auth.RequestPasswordReset)
				r.Post("/password-reset/confirm", h.auth.ConfirmPasswordReset)
			})
		})

		// Everything else needs a session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(authCfg))

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", h.conversations.List)
				r.Post("/", h.conversations.Create)
				r.Get("/{id}", h.conversations.Get)
				r.Patch("/{id}", h.conversations.UpdateTitle)
				r.Delete("/{id}", h.conversations.Delete)
				r.Post("/{id}/messages", h.conversations.SendMessage)
			})

			r.Route("/wellness", func(r chi.Router) {
				r.Post("/bmi", h.wellness.BMI)
				r.Post("/dietary-plan", h.wellness.DietaryPlan)
				r.Post("/food-analysis", h.wellness.FoodAnalysis)
			})

			r.Get("/events", h.events.Stream)
		})
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// warnResetCodes logs when reset codes are echoed to callers, in every
// environment.
func warnResetCodes(cfg *config.Config, logger *slog.Logger) {
	if cfg.ReturnResetCodes() {
		logger.Warn("password reset codes are returned in API responses; disable DEMO_RESET_CODES for real deployments")
	}
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
