package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/trimtrove/libs/config"
	"github.com/md-rashed-zaman/trimtrove/libs/db"
	"github.com/md-rashed-zaman/trimtrove/libs/httpx"
	"github.com/md-rashed-zaman/trimtrove/libs/kafkax"
	otelx "github.com/md-rashed-zaman/trimtrove/libs/otel"
	"github.com/md-rashed-zaman/trimtrove/libs/runtime"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/trimtrove/services/booking-service/migrations"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	cfg, err := loadSettings()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(cfg.Service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool, migrations.FS, ".", logger); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	metrics.Register()

	catalogRepo := storage.NewCatalogRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool, cfg.Booking.Location)
	bookingSvc := booking.NewService(catalogRepo, catalogRepo, bookingRepo, booking.SystemClock{}, cfg.Booking, logger)

	outboxPublisher := outbox.NewPublisher(pool, logger, outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
		OnPublish: metrics.IncEventPublished,
	})
	go outboxPublisher.Run(ctx)

	slotsLimit, closeLimiter := rateLimiter(cfg, logger)
	defer closeLimiter()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)},
	)
	mux.Handle("/metrics", promhttp.Handler())
	handlers.Routes{
		Booking:    handlers.NewBookingHandler(bookingSvc, logger),
		Catalog:    handlers.NewCatalogHandler(catalogRepo, logger),
		Authn:      handlers.RequireAuth(cfg.JWTSecret),
		SlotsLimit: slotsLimit,
	}.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: cfg.CORS,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("booking service exited", "err", err)
	}
}

// rateLimiter throttles the slot query: shared across replicas through
// Redis when REDIS_ADDR is set, per process otherwise.
func rateLimiter(cfg settings, logger *slog.Logger) (httpx.Middleware, func()) {
	if cfg.RateLimitPerMin <= 0 {
		return nil, func() {}
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMin, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:slots"))
		logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMin, "redis_addr", cfg.RedisAddr)
		return rl.Middleware(logger, cfg.RateLimitOpen), func() { _ = rdb.Close() }
	}
	rl := httpx.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)
	logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMin)
	return rl.Middleware(), func() {}
}
