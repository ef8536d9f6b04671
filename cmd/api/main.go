package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/invoice-assistant/internal/catalog"
	clientbook "github.com/noah-isme/invoice-assistant/internal/client"
	"github.com/noah-isme/invoice-assistant/internal/common"
	"github.com/noah-isme/invoice-assistant/internal/config"
	"github.com/noah-isme/invoice-assistant/internal/db"
	"github.com/noah-isme/invoice-assistant/internal/health"
	"github.com/noah-isme/invoice-assistant/internal/invoice"
	"github.com/noah-isme/invoice-assistant/internal/llm"
	"github.com/noah-isme/invoice-assistant/internal/obs"
	"github.com/noah-isme/invoice-assistant/internal/pdfgen"
	"github.com/noah-isme/invoice-assistant/internal/rag"
	"github.com/noah-isme/invoice-assistant/internal/ratelimit"
	"github.com/noah-isme/invoice-assistant/internal/resilience"
	"github.com/noah-isme/invoice-assistant/internal/settings"
	"github.com/noah-isme/invoice-assistant/internal/storage"
	"github.com/noah-isme/invoice-assistant/internal/tasks"
	"github.com/noah-isme/invoice-assistant/internal/voice"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "invoice_assistant")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "invoice-assistant-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: 1.0,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "invoice-assistant-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	files, err := storage.NewDisk(cfg.InvoicesDir())
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise file store")
	}

	settingsStore := settings.NewStore(pool)
	settingsHandler := settings.Handler{Store: settingsStore}

	clientStore := clientbook.NewStore(pool)
	clientHandler := clientbook.Handler{Store: clientStore}

	catalogService := catalog.NewService(catalog.ServiceConfig{
		Store:  catalog.NewStore(pool),
		Cache:  catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Logger: logger,
	})
	catalogHandler := catalog.Handler{Service: catalogService}

	chunkStore := rag.NewStore(pool)
	retriever := rag.Retriever{Store: chunkStore, MaxDocs: cfg.RAGMaxDocs}

	generator := llm.Client{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		HTTP:    outboundClient(cfg, cfg.GenerateTimeout),
		Logger:  logger,
	}

	var enqueuer invoice.IndexEnqueuer
	if cfg.IndexOnExport {
		redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url for task queue")
		}
		taskClient := asynq.NewClient(redisConn)
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		}()
		enqueuer = tasks.Enqueuer{Client: taskClient, Queue: cfg.WorkerQueueName}
	}

	invoiceService := &invoice.Service{
		Records:         invoice.NewStore(pool),
		Files:           files,
		Chunks:          chunkStore,
		Retriever:       retriever,
		Generator:       generator,
		Renderer:        pdfgen.Renderer{},
		Profile:         settingsStore,
		Clients:         clientStore,
		Enqueuer:        enqueuer,
		Logger:          logger,
		ChunkSize:       cfg.ChunkSize,
		ChunkOverlap:    cfg.ChunkOverlap,
		DefaultCurrency: cfg.DefaultCurrency,
		IndexOnExport:   cfg.IndexOnExport,
	}
	invoiceHandler := invoice.Handler{Service: invoiceService, MaxUploadBytes: cfg.MaxUploadBytes}

	voiceHandler := voice.Handler{
		Client: voice.Client{
			APIKey:  cfg.SpeechmaticsAPIKey,
			BaseURL: cfg.SpeechmaticsBaseURL,
			HTTP:    outboundClient(cfg, cfg.TranscribeTimeout),
			Logger:  logger,
			PollMax: cfg.TranscribePollWindow(),
		},
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	limiter := ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"}
	generateLimit := ratelimit.Handler{
		Limiter: limiter,
		Config:  ratelimit.Config{Key: rateKey("generate"), Window: cfg.GenerateRateWin, Max: cfg.GenerateRateMax},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit check failed") },
	}
	transcribeLimit := ratelimit.Handler{
		Limiter: limiter,
		Config:  ratelimit.Config{Key: rateKey("transcribe"), Window: cfg.TranscribeRateWin, Max: cfg.TranscribeRateMax},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit check failed") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    500 * time.Millisecond,
		RedisTimeout: 300 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/invoices", func(inv chi.Router) {
			inv.Get("/", invoiceHandler.List)
			inv.Post("/upload", invoiceHandler.Upload)
			inv.With(generateLimit.Middleware).Post("/generate", invoiceHandler.Generate)
			inv.With(idem.Middleware).Post("/export", invoiceHandler.Export)
			inv.Route("/{id}", func(one chi.Router) {
				one.Get("/pdf", invoiceHandler.GetPDF)
				one.Post("/index", invoiceHandler.Index)
				one.Delete("/", invoiceHandler.Delete)
			})
		})

		v.Route("/clients", func(c chi.Router) {
			c.Get("/", clientHandler.List)
			c.Post("/", clientHandler.Create)
			c.Route("/{id}", func(one chi.Router) {
				one.Get("/", clientHandler.Get)
				one.Put("/", clientHandler.Update)
				one.Delete("/", clientHandler.Delete)
				one.Post("/addresses", clientHandler.AddAddress)
				one.Delete("/addresses/{addressID}", clientHandler.DeleteAddress)
			})
		})

		v.Route("/catalog", func(c chi.Router) {
			c.Get("/", catalogHandler.List)
			c.Post("/", catalogHandler.Create)
			c.Route("/{id}", func(one chi.Router) {
				one.Get("/", catalogHandler.Get)
				one.Put("/", catalogHandler.Update)
				one.Delete("/", catalogHandler.Delete)
			})
		})

		v.Get("/settings", settingsHandler.Get)
		v.Put("/settings", settingsHandler.Put)

		v.With(transcribeLimit.Middleware).Post("/voice/transcribe", voiceHandler.Transcribe)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer drainCancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	health.SetReady(true)
	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func outboundClient(cfg *config.Config, timeout time.Duration) resilience.HTTPClient {
	if timeout <= 0 {
		timeout = cfg.OutboundTimeout
	}
	return resilience.HTTPClient{
		Client:      &http.Client{},
		Breaker:     resilience.NewBreaker(cfg.CircuitMinReq, cfg.CircuitFailureRate, cfg.CircuitOpenFor),
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: cfg.RetryMaxAttempts,
		Jitter:      cfg.RetryJitterPercent,
		Timeout:     timeout,
	}
}

func rateKey(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		return scope + ":" + common.ClientIP(r)
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}
