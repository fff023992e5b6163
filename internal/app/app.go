package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/voltmart/checkout/internal/domain/checkout"
	"github.com/voltmart/checkout/internal/domain/coupon"
	"github.com/voltmart/checkout/internal/domain/order"
	"github.com/voltmart/checkout/internal/events"
	"github.com/voltmart/checkout/internal/handler"
	"github.com/voltmart/checkout/internal/repository"
	"github.com/voltmart/checkout/pkg/health"
	"github.com/voltmart/checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Optional Redis cache for order confirmation summaries.
	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer cache.Close()
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if cache != nil {
		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		})
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	stockRepo := repository.NewStockRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	orderStore := repository.NewOrderStore(pool, lg.Named("orders"))

	// Order event publishing, instrumented so placements show up in traces
	// and metrics even when no brokers are configured.
	var publisher order.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, lg.Named("events"))
		defer kp.Close()
		publisher = kp
	}
	publisher, err = events.Instrument(publisher, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "instrument publisher")
	}

	// Domain services.
	evaluator := coupon.NewEvaluator(couponRepo)
	builder := checkout.NewBuilder(cartRepo, productRepo, stockRepo)
	orderService := order.NewService(orderStore, evaluator, publisher, cfg.shippingFee())

	// HTTP routes: health endpoints + checkout API on one server.
	var summaryCache handler.SummaryCache
	if cache != nil {
		summaryCache = cache
	}
	h := handler.New(
		handler.Config{ShippingFee: cfg.shippingFee()},
		builder,
		evaluator,
		orderService,
		summaryCache,
	)

	mux := chi.NewRouter()
	mux.Get("/livez", healthSvc.LiveEndpoint)
	mux.Get("/readyz", healthSvc.ReadyEndpoint)
	mux.Mount("/api/checkOut", h.Routes(customerRepo, []byte(cfg.TokenPepper)))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("checkout-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
