package app

import (
	"context"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/topup-store/internal/domain/order"
	"github.com/xenking/topup-store/internal/domain/pricing"
	"github.com/xenking/topup-store/internal/domain/wallet"
	"github.com/xenking/topup-store/internal/handler"
	"github.com/xenking/topup-store/internal/notify"
	"github.com/xenking/topup-store/internal/repository"
	"github.com/xenking/topup-store/pkg/health"
	"github.com/xenking/topup-store/pkg/httpmiddleware"
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

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	promoRepo := repository.NewPromocodeRepository(pool)
	walletStore := repository.NewWalletStore(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Notification collaborators: process-wide singletons, initialized once
	// here and passed by reference into the services. Domain metrics piggyback
	// on the same event hooks.
	dispatcher := newDispatcher(lg, cfg.Notify)
	metrics, err := newDomainMetrics(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	// Domain services.
	calc := pricing.NewCalculator(promoRepo)
	orderService := order.NewService(productRepo, calc, promoRepo, walletStore, orderRepo,
		&orderEvents{next: dispatcher, m: metrics})
	walletService := wallet.NewService(walletStore, ledgerRepo,
		&walletEvents{next: dispatcher, m: metrics})

	// HTTP handlers.
	h := handler.NewHandler(orderService, walletService, productRepo)

	api := chi.NewRouter()
	api.Use(handler.APIKeyAuth(apikeyRepo, []byte(cfg.APIKeyPepper)))
	h.Routes(api)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", api))

	// Request id, logger injection, and access logging sit inside the otel
	// handler so log lines carry the server span's trace id.
	instrumented := otelhttp.NewHandler(
		httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
		"topup-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
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

// newDispatcher assembles the configured notification targets. With no
// channel configured the dispatcher is a no-op fan-out, which keeps the
// services free of nil checks beyond the interface value itself.
func newDispatcher(lg *zap.Logger, cfg NotifyConfig) *notify.Dispatcher {
	var targets []notify.Target

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		targets = append(targets, notify.NewTelegram(
			&http.Client{Timeout: cfg.Timeout},
			cfg.Telegram.Token,
			cfg.Telegram.ChatID,
		))
	}

	if cfg.Email.Addr != "" && cfg.Email.From != "" && len(cfg.Email.To) > 0 {
		var auth smtp.Auth
		if cfg.Email.Username != "" {
			host := cfg.Email.Addr
			if i := strings.IndexByte(host, ':'); i >= 0 {
				host = host[:i]
			}
			auth = smtp.PlainAuth("", cfg.Email.Username, cfg.Email.Password, host)
		}
		targets = append(targets, notify.NewEmail(cfg.Email.Addr, auth, cfg.Email.From, cfg.Email.To))
	}

	return notify.NewDispatcher(lg.Named("notify"), cfg.Timeout, targets...)
}
