// Package app wires every dependency together and runs the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/gearbox-checkout/internal/api"
	"github.com/xenking/gearbox-checkout/internal/domain/cart"
	"github.com/xenking/gearbox-checkout/internal/domain/checkout"
	"github.com/xenking/gearbox-checkout/internal/domain/coupon"
	"github.com/xenking/gearbox-checkout/internal/payment"
	"github.com/xenking/gearbox-checkout/internal/storage/postgres"
	"github.com/xenking/gearbox-checkout/pkg/health"
	"github.com/xenking/gearbox-checkout/pkg/httpmiddleware"
)

const couponFilterReloadInterval = 5 * time.Minute

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	if cfg.PayPal.HealthCheck {
		// Any HTTP answer from the token endpoint proves reachability; the
		// probe sends no credentials.
		healthSvc.AddReadinessCheck("gateway", 5*time.Second, health.HTTPGetCheck(
			&http.Client{Timeout: cfg.PayPal.Timeout},
			cfg.PayPal.BaseURL+"/v1/oauth2/token",
		))
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	addressRepo := postgres.NewAddressRepository(pool)
	orderStore := postgres.NewOrderStore(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	committer := postgres.NewCommitter(pool)

	// Coupon code filter, reloaded in the background so new coupons become
	// visible without a restart.
	codeFilter, err := coupon.NewCodeFilter(ctx, couponRepo)
	if err != nil {
		return errors.Wrap(err, "build coupon code filter")
	}
	go func() {
		ticker := time.NewTicker(couponFilterReloadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := codeFilter.Reload(ctx, couponRepo); err != nil {
					lg.Warn("Coupon filter reload failed", zap.Error(err))
				}
			}
		}
	}()

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo, codeFilter)
	cartService := cart.NewService(cartRepo, productRepo)
	gateway := payment.NewPayPalClient(payment.PayPalConfig{
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		Currency:     cfg.PayPal.Currency,
		Timeout:      cfg.PayPal.Timeout,
	})
	checkoutService := checkout.NewService(
		cartRepo, productRepo, couponValidator, addressRepo, gateway, committer,
	)

	// HTTP handlers.
	h := api.NewHandler(cartService, checkoutService, orderStore, apikeyRepo, cfg.APIKeyPepper)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Routes())

	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(
			otelhttp.NewHandler(mux, "gearbox-api",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{"Content-Type", "X-API-Key"},
				MaxAge:       86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
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
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
