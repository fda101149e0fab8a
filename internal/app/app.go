// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/tamly-chatbot-go/internal/api"
	"github.com/garyellow/tamly-chatbot-go/internal/bot"
	"github.com/garyellow/tamly-chatbot-go/internal/buildinfo"
	"github.com/garyellow/tamly-chatbot-go/internal/composer"
	"github.com/garyellow/tamly-chatbot-go/internal/config"
	"github.com/garyellow/tamly-chatbot-go/internal/conversation"
	"github.com/garyellow/tamly-chatbot-go/internal/emotion"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/genai"
	"github.com/garyellow/tamly-chatbot-go/internal/history"
	"github.com/garyellow/tamly-chatbot-go/internal/keyword"
	"github.com/garyellow/tamly-chatbot-go/internal/lineutil"
	"github.com/garyellow/tamly-chatbot-go/internal/logger"
	"github.com/garyellow/tamly-chatbot-go/internal/metrics"
	"github.com/garyellow/tamly-chatbot-go/internal/r2client"
	"github.com/garyellow/tamly-chatbot-go/internal/rag"
	"github.com/garyellow/tamly-chatbot-go/internal/ratelimit"
	"github.com/garyellow/tamly-chatbot-go/internal/scraper"
	"github.com/garyellow/tamly-chatbot-go/internal/sentry"
	"github.com/garyellow/tamly-chatbot-go/internal/sessionstore"
	"github.com/garyellow/tamly-chatbot-go/internal/storage"
	"github.com/garyellow/tamly-chatbot-go/internal/webhook"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *storage.DB
	sessions conversation.SessionStore
	redis    *sessionstore.Redis // nil unless the redis backend is used
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	index    *rag.Index
	history  *history.Store

	completer      *genai.FallbackCompleter
	backup         *history.Backup  // nil when R2 is not configured
	webhookHandler *webhook.Handler // nil when LINE is not configured
	server         *http.Server

	llmLimiter  *ratelimit.Keyed
	userLimiter *ratelimit.Keyed
	apiLimiter  *ratelimit.Keyed

	wg sync.WaitGroup // background jobs
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
		FilePath:            cfg.LogFile,
		FileMaxSizeMB:       cfg.LogFileMaxSizeMB,
		FileMaxBackups:      cfg.LogFileMaxBackups,
		FileMaxAgeDays:      cfg.LogFileMaxAgeDays,
	})
	log = log.WithField("service", "tamly-chatbot-go")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}
	// Package-level slog calls (genai) pick up context values through the
	// default handler.
	slog.SetDefault(log.Logger)

	log.WithField("version", buildinfo.Version).Info("Initializing application...")

	sentryOn, err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Version,
		SampleRate:  cfg.SentrySampleRate,
	})
	if err != nil {
		log.WithError(err).Warn("Error tracking disabled")
	} else if sentryOn {
		log.WithField("host", cfg.SentryHost).Info("Error tracking enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	app := &Application{cfg: cfg, logger: log, metrics: m, registry: registry}
	if err := app.build(ctx); err != nil {
		app.closeResources()
		return nil, err
	}

	log.Info("Initialization complete")
	return app, nil
}

// build wires the components. On error the caller releases whatever was
// already opened.
func (a *Application) build(ctx context.Context) error {
	cfg, log, m := a.cfg, a.logger, a.metrics

	db, err := storage.New(ctx, cfg.SQLitePath())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	a.db = db
	log.WithField("path", cfg.SQLitePath()).Info("Database connected")

	if err := a.openSessions(ctx); err != nil {
		return err
	}

	sets := keyword.LoadDir(cfg.KeywordDir, keyword.LoadOptions{UseDefaults: true}, log)
	lexicon := emotion.DefaultLexicon()
	if cfg.EmotionLexiconFile != "" {
		if lexicon, err = emotion.LoadLexicon(cfg.EmotionLexiconFile); err != nil {
			return fmt.Errorf("emotion lexicon: %w", err)
		}
	}

	completer, err := genai.NewCompleter(ctx, buildLLMConfig(cfg, m))
	if err != nil {
		return apperrors.NewWrapper("app", "llm").Wrap(
			fmt.Errorf("%w: %w", apperrors.ErrInitialization, err), "Chưa cấu hình được mô hình ngôn ngữ")
	}
	a.completer = completer
	log.WithField("primary", completer.Provider().String()).
		WithField("model", completer.Model()).
		WithField("chain_length", completer.Len()).
		Info("LLM completer configured")

	if err := a.loadCorpus(ctx); err != nil {
		return err
	}

	qa, err := rag.NewQAChain(
		rag.NewRetriever(a.index, db, cfg.RetrievalTopK, m, log),
		completer,
		rag.QAOptions{Temperature: float32(cfg.LLMTemperature), MaxTokens: cfg.LLMMaxTokens, Logger: log},
	)
	if err != nil {
		return err
	}
	comp, err := composer.New(qa, emotion.NewDetector(lexicon), composer.Options{
		LabeledOptions:      cfg.LabeledQuizOptions,
		Topics:              sets.Emotion,
		Metrics:             m,
		Logger:              log,
		OnCollaboratorError: sentry.CaptureError,
	})
	if err != nil {
		return err
	}

	a.history = history.NewStore(cfg.ChatHistoryFile, log)
	log.WithField("path", a.history.Path()).Info("Chat history store ready")
	if err := a.setupBackup(ctx); err != nil {
		return err
	}

	engine, err := conversation.NewEngine(conversation.Config{
		Classifier: keyword.NewClassifier(sets, cfg.RequirePersonalKeyword),
		Composer:   comp,
		Archive:    a.history,
		Metrics:    m,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	a.userLimiter = ratelimit.NewKeyed(ratelimit.KeyedConfig{
		Name:         ratelimit.NameUser,
		Burst:        cfg.Bot.UserRateLimitBurst,
		RefillPerSec: cfg.Bot.UserRateLimitRefillPerSec,
		SweepEvery:   config.RateLimiterSweepInterval,
		Metrics:      m,
	})
	a.llmLimiter = ratelimit.NewKeyed(ratelimit.KeyedConfig{
		Name:         ratelimit.NameLLM,
		Burst:        cfg.Bot.LLMBurstTokens,
		RefillPerSec: cfg.Bot.LLMRefillPerHour / 3600,
		DailyLimit:   cfg.Bot.LLMDailyLimit,
		SweepEvery:   config.RateLimiterSweepInterval,
		Metrics:      m,
	})
	a.apiLimiter = ratelimit.NewKeyed(ratelimit.KeyedConfig{
		Name:         ratelimit.NameAPI,
		Burst:        cfg.Bot.APIRateLimitBurst,
		RefillPerSec: cfg.Bot.APIRateLimitRefillPerSec,
		SweepEvery:   config.RateLimiterSweepInterval,
		Metrics:      m,
	})

	// LINE and API turns on the same session id must not interleave.
	locks := conversation.NewLocks()

	if cfg.LineEnabled() {
		messenger, err := webhook.NewLineMessenger(cfg.LineChannelToken)
		if err != nil {
			return fmt.Errorf("line messenger: %w", err)
		}
		processor := bot.NewProcessor(bot.ProcessorConfig{
			Engine:      engine,
			Sessions:    a.sessions,
			Locks:       locks,
			UserLimiter: a.userLimiter,
			LLMLimiter:  a.llmLimiter,
			Sender:      lineutil.NewSender(cfg.Bot.SenderName, cfg.Bot.SenderIconURL),
			Logger:      log,
			BotConfig:   &cfg.Bot,
		})
		if a.webhookHandler, err = webhook.NewHandler(webhook.HandlerConfig{
			ChannelSecret: cfg.LineChannelSecret,
			Messenger:     messenger,
			Processor:     processor,
			BotConfig:     &cfg.Bot,
			Metrics:       m,
			Logger:        log,
		}); err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		log.Info("LINE webhook enabled")
	}

	apiServer, err := api.New(api.Config{
		Engine:   engine,
		Sessions: a.sessions,
		Locks:    locks,
		Archive:  a.history,
		Limiter:  a.apiLimiter,
		Metrics:  m,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router(apiServer),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}
	return nil
}

// openSessions selects the session backend.
func (a *Application) openSessions(ctx context.Context) error {
	switch a.cfg.SessionBackend {
	case config.SessionBackendRedis:
		r, err := sessionstore.New(ctx, a.cfg.RedisURL, a.cfg.SessionTTL)
		if err != nil {
			return fmt.Errorf("session store: %w", err)
		}
		a.redis, a.sessions = r, r
	case config.SessionBackendMemory:
		a.sessions = conversation.NewMemoryStore()
	default:
		a.sessions = a.db
	}
	a.logger.WithField("backend", a.cfg.SessionBackend).Info("Session store ready")
	return nil
}

// loadCorpus refreshes the stored corpus from disk and the configured URLs,
// then builds the BM25 index from everything stored.
func (a *Application) loadCorpus(ctx context.Context) error {
	cfg := a.cfg
	fetcher := scraper.NewClient(config.CorpusFetch, corpusFetchWorkers, 200*time.Millisecond, time.Second, 2)

	refreshCtx, cancel := context.WithTimeout(ctx, config.CorpusRefresh)
	defer cancel()
	n, err := rag.Refresh(refreshCtx, a.db, rag.CorpusConfig{
		Dir:          cfg.CorpusDir,
		URLs:         cfg.CorpusURLs,
		Fetcher:      fetcher,
		Concurrency:  corpusFetchWorkers,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}, a.logger)
	if err != nil {
		// Chunks stored by an earlier run still serve.
		a.logger.WithError(err).Warn("Corpus refresh failed")
	} else {
		a.logger.WithField("chunks", n).Info("Corpus ingested")
	}

	a.index = rag.NewIndex(a.logger)
	if err := a.index.Load(ctx, a.db, a.metrics); err != nil {
		return err
	}
	if !a.index.IsEnabled() {
		return apperrors.NewWrapper("app", "load_corpus").Wrapf(apperrors.ErrInitialization,
			"Chưa có tài liệu tham khảo trong %s", cfg.CorpusDir)
	}
	a.logger.WithField("documents", a.index.Count()).Info("BM25 index ready")
	return nil
}

const corpusFetchWorkers = 4

// setupBackup restores the history file from R2 when it is missing locally
// and prepares the periodic upload.
func (a *Application) setupBackup(ctx context.Context) error {
	cfg := a.cfg
	if !cfg.R2Enabled() {
		return nil
	}
	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    cfg.R2Endpoint(),
		AccessKeyID: cfg.R2AccessKeyID,
		SecretKey:   cfg.R2SecretAccessKey,
		BucketName:  cfg.R2BucketName,
	})
	if err != nil {
		return fmt.Errorf("r2: %w", err)
	}
	a.backup = history.NewBackup(a.history, client, cfg.R2HistoryKey, history.BackupOptions{
		Lease:        r2client.NewLease(client, cfg.R2HistoryKey+".lease", 2*cfg.R2BackupInterval),
		InitialDelay: config.HistoryBackupInitialDelay,
		Metrics:      a.metrics,
		Logger:       a.logger,
	})

	restored, err := a.backup.Restore(ctx)
	switch {
	case err != nil:
		a.logger.WithError(err).Warn("Chat history restore failed")
	case restored:
		a.logger.WithField("key", cfg.R2HistoryKey).Info("Chat history restored from R2")
	}
	return nil
}

// buildLLMConfig maps the flat configuration onto the provider chain.
func buildLLMConfig(cfg *config.Config, m *metrics.Metrics) genai.LLMConfig {
	llm := genai.LLMConfig{
		Retry: genai.DefaultRetryConfig(),
		Breaker: genai.BreakerConfig{
			Failures: genai.DefaultBreakerFailures,
			Cooldown: genai.DefaultBreakerCooldown,
		},
		Timeout: cfg.LLMTimeout,
		Metrics: m,
	}
	for _, name := range cfg.LLMProviders {
		p := genai.Provider(name)
		llm.Providers = append(llm.Providers, p)
		pc := llm.ProviderConfig(p)
		if pc == nil {
			continue
		}
		pc.APIKey = cfg.ProviderAPIKey(name)
		if model := cfg.ProviderModel(name); model != "" {
			pc.Models = []string{model}
		}
	}
	return llm
}

// router mounts every HTTP surface. Recovery is outermost so panics that
// the sentry middleware re-raises still become 500s.
func (a *Application) router(apiServer *api.Server) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sentry.Middleware())
	r.Use(securityHeadersMiddleware())
	r.Use(loggingMiddleware(a.logger))

	r.GET("/", a.serviceInfo)
	r.GET("/livez", a.livenessCheck)
	r.HEAD("/livez", a.livenessCheck)
	r.GET("/readyz", a.readinessCheck)
	r.HEAD("/readyz", a.readinessCheck)
	r.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	if a.webhookHandler != nil {
		r.POST("/webhook", a.webhookHandler.Handle)
	}
	apiServer.Register(r)
	return r
}

// Run starts the HTTP server and background jobs, then blocks until
// SIGINT or SIGTERM.
//
// Background jobs are stopped and awaited before shutdown closes the
// stores they write to.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	serveErr := a.startHTTPServer()

	select {
	case sig := <-a.waitForShutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serveErr:
		a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
	}

	cancel()
	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by wg.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	if a.backup != nil {
		a.wg.Go(func() {
			a.backup.Run(ctx, a.cfg.R2BackupInterval)
		})
	}
	a.wg.Go(func() {
		a.updateSessionMetrics(ctx)
	})
}

// startHTTPServer serves in a goroutine. The returned channel receives
// the error if the listener fails.
func (a *Application) startHTTPServer() <-chan error {
	errc := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	return errc
}

func (a *Application) waitForShutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown stops the HTTP server, drains webhook events and closes
// resources. Call it only after background jobs have returned.
func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	if a.webhookHandler != nil {
		a.logger.Info("Waiting for webhook events to complete...")
		if err := a.webhookHandler.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
		}
	}

	a.logger.Info("Closing resources...")
	a.closeResources()

	sentry.Flush(2 * time.Second)
	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(ctx); err != nil {
		// The remote sink is gone; stderr is all that is left.
		_, _ = fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
	return nil
}

// closeResources releases everything build may have opened, in dependency
// order. It tolerates partially initialized applications.
func (a *Application) closeResources() {
	if a.completer != nil {
		if err := a.completer.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "completer").Error("Component close error")
		}
	}
	for _, l := range []*ratelimit.Keyed{a.userLimiter, a.llmLimiter, a.apiLimiter} {
		if l != nil {
			l.Stop()
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "session_store").Error("Component close error")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "database").Error("Component close error")
		}
	}
}
