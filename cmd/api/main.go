// Package main is the entrypoint for the FairShare groups API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairshare/fairshare/internal/cache"
	"github.com/fairshare/fairshare/internal/config"
	"github.com/fairshare/fairshare/internal/handler"
	"github.com/fairshare/fairshare/internal/metrics"
	"github.com/fairshare/fairshare/internal/middleware"
	"github.com/fairshare/fairshare/internal/repository"
	"github.com/fairshare/fairshare/internal/repository/memory"
	"github.com/fairshare/fairshare/internal/server"
	"github.com/fairshare/fairshare/internal/service"
	"github.com/fairshare/fairshare/internal/tracing"
)

// store is what the services need from a storage backend.
type store interface {
	service.UserRepository
	service.GroupRepository
	service.TxProvisioner
	Ping(ctx context.Context) error
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := tracing.Init(ctx, logger, cfg.OTLPEndpoint, cfg.OTELServiceName, cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var cacheClient *cache.Cache
	if cfg.RedisEnabled() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			closeStore()
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return fmt.Errorf("connect to Redis: %w", err)
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set: idempotency keys, rate limiting and the group cache are disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := setupRouter(deps{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		cache:    cacheClient,
		registry: reg,
	})

	srv := server.New(otelhttp.NewHandler(router, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/readyz" && r.URL.Path != "/metrics"
		}),
	), server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("store", func(context.Context) error {
		closeStore()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}
	srv.OnShutdown("tracing", server.ShutdownFunc(shutdownTracing))

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"store", cfg.StoreBackend,
		"provision_mode", cfg.ProvisionMode,
	)

	return srv.Run(ctx)
}

// openStore connects the configured backend and returns its close function.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store, func(), error) {
	if !cfg.UsesPostgres() {
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database")

	if cfg.DBAutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database schema up to date")
	}

	return repo, repo.Close, nil
}

type deps struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store
	cache    *cache.Cache
	registry *prometheus.Registry
}

// setupRouter wires services and handlers and registers every route.
func setupRouter(d deps) *chi.Mux {
	cfg, logger := d.cfg, d.logger
	recorder := metrics.NewPrometheus(d.registry)
	httpMetrics := metrics.NewHTTPMetrics(d.registry)

	var (
		groupCache  service.GroupCache
		idempotency handler.IdempotencyStore
		limiter     middleware.IPRateLimiter
		redisCheck  handler.HealthChecker
	)
	if d.cache != nil {
		groupCache = cache.NewGroupCache(d.cache, cfg.GroupCacheTTL)
		idempotency = cache.NewIdempotencyStore(d.cache, "provision", cfg.IdempotencyPendingTTL, cfg.IdempotencyTTL)
		limiter = d.cache
		redisCheck = d.cache
	}

	users := service.NewUserService(d.store, recorder, cfg.StoreTimeout)
	groups := service.NewGroupService(d.store, groupCache, recorder, cfg.StoreTimeout)
	query := service.NewQueryService(groups, groupCache, recorder)
	workflow := service.NewProvisioningWorkflow(users, groups, d.store, service.ProvisionMode(cfg.ProvisionMode), recorder)

	h := handler.New()
	healthHandler := handler.NewHealthHandler(map[string]handler.HealthChecker{
		"store": d.store,
		"redis": redisCheck,
	})
	userHandler := handler.NewUserHandler(users, logger)
	groupHandler := handler.NewGroupHandler(groups, query, logger)
	provisionHandler := handler.NewProvisionHandler(workflow, idempotency, logger)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	rateLimit := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: limiter,
		Enabled: cfg.RateLimitEnabled,
		RPS:     cfg.RateLimitRPS,
		Burst:   cfg.RateLimitBurst,
	})

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.IsDevelopment()))
	r.Use(middleware.CORS(corsCfg))
	r.Use(httpMetrics.Middleware)

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Method(http.MethodGet, "/metrics", handler.NewMetricsHandler(d.registry))

	r.Group(func(r chi.Router) {
		r.Get("/groups", groupHandler.List)
		r.Get("/groups/{id}", groupHandler.Get)
		r.Get("/groups/{id}/members", groupHandler.ListMembers)
		r.Get("/users", userHandler.List)
		r.Get("/users/by-email", userHandler.GetByEmail)
		r.Get("/users/orphans", userHandler.ListOrphans)
		r.Get("/users/{id}", userHandler.Get)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
		r.Use(rateLimit)

		r.Post("/users", userHandler.Create)
		r.Post("/users:discard-orphans", userHandler.DiscardOrphans)
		r.Delete("/users/{id}", userHandler.Delete)
		r.Post("/groups", groupHandler.Create)
		r.Post("/groups:provision", provisionHandler.Provision)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
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
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL drops the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

// sanitizeError replaces connection URLs in an error message with their
// redacted form.
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
