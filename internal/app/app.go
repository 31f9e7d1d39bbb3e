// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/garyellow/messenger-bot-go/internal/archive"
	"github.com/garyellow/messenger-bot-go/internal/bot"
	"github.com/garyellow/messenger-bot-go/internal/buildinfo"
	"github.com/garyellow/messenger-bot-go/internal/config"
	"github.com/garyellow/messenger-bot-go/internal/event"
	"github.com/garyellow/messenger-bot-go/internal/hooks"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
	"github.com/garyellow/messenger-bot-go/internal/metrics"
	"github.com/garyellow/messenger-bot-go/internal/modules/hello"
	"github.com/garyellow/messenger-bot-go/internal/modules/usage"
	"github.com/garyellow/messenger-bot-go/internal/profile"
	"github.com/garyellow/messenger-bot-go/internal/ratelimit"
	"github.com/garyellow/messenger-bot-go/internal/script"
	"github.com/garyellow/messenger-bot-go/internal/sentry"
	"github.com/garyellow/messenger-bot-go/internal/session"
	"github.com/garyellow/messenger-bot-go/internal/storage"
	"github.com/garyellow/messenger-bot-go/internal/webhook"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	outbox         *messenger.Outbox
	profiles       *profile.Cache
	userLimiter    *ratelimit.KeyedLimiter
	bot            *bot.Bot
	webhookHandler *webhook.Handler
	server         *http.Server
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	opts := logger.Options{Level: cfg.LogLevel, Writer: os.Stdout}
	if cfg.BetterStackEnabled {
		opts.BetterStackToken = cfg.BetterStackToken
		opts.BetterStackEndpoint = cfg.BetterStackEndpoint
	}
	log := logger.NewWithOptions(opts).WithField("service", "messenger-bot-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Set as default logger so package-level slog.*Context() calls pick up
	// user and request ids through the ContextHandler.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.Summary()).Info("Initializing application...")
	if cfg.BetterStackEnabled {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	if cfg.SentryEnabled {
		release := cfg.SentryRelease
		if release == "" {
			release = buildinfo.Version
		}
		if err := sentry.Initialize(sentry.Config{
			DSN:         cfg.SentryDSN,
			Environment: cfg.SentryEnvironment,
			Release:     release,
			SampleRate:  cfg.SentrySampleRate,
		}); err != nil {
			return nil, err
		}
		log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error tracking enabled")
	}

	policy, err := session.ParsePolicy(cfg.Bot.SessionPolicy)
	if err != nil {
		return nil, fmt.Errorf("session policy: %w", err)
	}

	db, err := storage.New(ctx, cfg.SQLitePath(), cfg.ProfileCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.WithField("path", cfg.SQLitePath()).WithField("cache_ttl", cfg.ProfileCacheTTL).Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	client := messenger.NewClient(messenger.ClientConfig{
		BaseURL:     cfg.GraphBaseURL(),
		AccessToken: cfg.PageAccessToken,
		MaxRetries:  cfg.SendMaxRetries,
		RPS:         cfg.Bot.GlobalRateLimitRPS,
		Logger:      log,
		Metrics:     m,
	})
	outbox := messenger.NewOutbox(client, log, m)
	profiles := profile.NewCache(client, db, cfg.ProfileCacheTTL, m, log)

	userLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "user",
		Burst:         cfg.Bot.UserRateLimitBurst,
		RefillRate:    cfg.Bot.UserRateLimitRefillPerSec,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	hookManager := hooks.NewManager(log, m)
	archive.New(db, log).Attach(hookManager)

	b := bot.New(bot.Config{
		Sender:      outbox,
		Profiles:    profiles,
		Hooks:       hookManager,
		Classifier:  event.Classifier{BroadcastEchoes: cfg.Bot.BroadcastEchoes},
		Policy:      policy,
		UserLimiter: userLimiter,
		Logger:      log,
		Metrics:     m,
	})

	modules := []bot.Module{
		hello.NewHandler(log),
		usage.NewHandler(userLimiter, log),
	}
	if cfg.ScriptPath != "" {
		s, err := script.Load(cfg.ScriptPath)
		if err != nil {
			_ = db.Close()
			userLimiter.Stop()
			return nil, err
		}
		modules = append(modules, s)
	}
	if err := b.Register(modules...); err != nil {
		_ = db.Close()
		userLimiter.Stop()
		return nil, err
	}

	webhookHandler := webhook.NewHandler(webhook.HandlerConfig{
		VerifyToken: cfg.VerifyToken,
		AppSecret:   cfg.AppSecret,
		Dispatcher:  b,
		Metrics:     m,
		Logger:      log,
	}, webhook.WithBotConfig(&cfg.Bot))
	if cfg.AppSecret == "" {
		log.Warn("MESSENGER_APP_SECRET is empty; webhook signatures are not verified")
	}

	app := &Application{
		cfg:            cfg,
		logger:         log,
		db:             db,
		metrics:        m,
		registry:       registry,
		outbox:         outbox,
		profiles:       profiles,
		userLimiter:    userLimiter,
		bot:            b,
		webhookHandler: webhookHandler,
	}

	gin.SetMode(gin.ReleaseMode)
	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.setupRoutes(),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.WithField("modules", b.Modules()).
		WithField("session_policy", policy.String()).
		Info("Initialization complete")
	return app, nil
}

// Bot exposes the router so callers can register additional modules before Run.
func (a *Application) Bot() *bot.Bot {
	return a.bot
}

// Run starts background jobs and the HTTP server, then blocks until
// SIGINT or SIGTERM and shuts down gracefully.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops intake first, then drains queued webhook batches and
// deferred sends, and finally closes resources.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for webhook batches to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
	}

	// Ending sessions archives them, so this runs before the database closes.
	a.bot.Sessions().EndAll(shutdownCtx)

	a.logger.WithField("pending", a.outbox.Pending()).Info("Flushing outgoing messages...")
	if err := a.outbox.Close(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Outbox flush timeout")
	}

	a.logger.Info("Closing resources...")
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).WithField("component", "database").Error("Component close error")
	}
	a.userLimiter.Stop()

	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}
