package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slotwise/bookingd/internal/booking"
	"github.com/slotwise/bookingd/internal/cache"
	"github.com/slotwise/bookingd/internal/consumer"
	"github.com/slotwise/bookingd/internal/handlers"
	"github.com/slotwise/bookingd/internal/inbox"
	"github.com/slotwise/bookingd/internal/occupancy"
	"github.com/slotwise/bookingd/internal/outbox"
	"github.com/slotwise/bookingd/internal/platform/config"
	"github.com/slotwise/bookingd/internal/platform/db"
	"github.com/slotwise/bookingd/internal/platform/httpx"
	"github.com/slotwise/bookingd/internal/platform/kafkax"
	"github.com/slotwise/bookingd/internal/platform/otelx"
	"github.com/slotwise/bookingd/internal/platform/runtime"
	"github.com/slotwise/bookingd/internal/quota"
	"github.com/slotwise/bookingd/internal/schedule"
	"github.com/slotwise/bookingd/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "bookingd")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: config.String("REDIS_ADDR", "localhost:6379"),
	})
	defer func() { _ = rdb.Close() }()

	bizRepo := storage.NewBusinessRepository(pool)
	bookRepo := storage.NewBookingRepository(pool)
	entRepo := storage.NewEntitlementRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	resolver := schedule.NewResolver(bizRepo, logger)
	calendar := cache.NewCalendar(resolver, rdb, config.Minutes("CALENDAR_CACHE_TTL_MINUTES", cache.DefaultEntryTTL), logger)
	occupancyIndex := occupancy.NewIndex(bookRepo)
	gate := quota.NewGate(entRepo, bookRepo, bizRepo, logger)
	txStore := storage.NewTxStore(pool, bookRepo, outboxRepo)

	svc := booking.NewService(bizRepo, calendar, occupancyIndex, gate, txStore, logger)

	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: time.Duration(config.Int("OUTBOX_POLL_SECONDS", 2)) * time.Second,
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}
	startConsumer(
		config.String("KAFKA_ENTITLEMENTS_TOPIC", "billing.entitlements.updated.v1"),
		consumer.EntitlementsHandler(entRepo, logger),
	)
	startConsumer(
		config.String("KAFKA_HOURS_TOPIC", "business.hours.updated.v1"),
		consumer.HoursInvalidationHandler(calendar, logger),
	)

	bookingHandler := handlers.NewBookingHandler(svc, logger)
	adminHandler := handlers.NewAdminHandler(bizRepo, pool, outboxRepo, calendar, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)

	// Public routes sit behind the Redis rate limiter; admin routes and
	// business-console routes do not.
	limiter := httpx.NewRedisRateLimiter(rdb,
		config.Int("PUBLIC_RATE_LIMIT", 120), time.Minute, "rl:public")
	limited := limiter.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	mux.Handle("/api/v1/public/slots", limited(http.HandlerFunc(bookingHandler.Slots)))
	mux.Handle("/api/v1/public/book", limited(http.HandlerFunc(bookingHandler.Create)))

	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/confirm", bookingHandler.Confirm)
	mux.HandleFunc("/api/v1/appointments/complete", bookingHandler.Complete)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/no-show", bookingHandler.NoShow)

	mux.HandleFunc("/api/v1/admin/businesses", adminHandler.Businesses)
	mux.HandleFunc("/api/v1/admin/businesses/hours", adminHandler.Hours)
	mux.HandleFunc("/api/v1/admin/businesses/overrides", adminHandler.Overrides)
	mux.HandleFunc("/api/v1/admin/closures", adminHandler.Closures)
	mux.HandleFunc("/api/v1/admin/services", adminHandler.Services)
	mux.HandleFunc("/api/v1/admin/staff", adminHandler.Staff)
	mux.HandleFunc("/api/v1/admin/staff/assign", adminHandler.Assign)
	mux.HandleFunc("/api/v1/admin/staff/hours", adminHandler.StaffHours)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
