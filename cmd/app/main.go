// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"video-monetization/internal/config"
	"video-monetization/internal/domain/model"
	"video-monetization/internal/domain/ports/adapter"
	payAdapters "video-monetization/internal/infra/adapters/payment"
	"video-monetization/internal/infra/api"
	"video-monetization/internal/infra/api/apiv1"
	pg "video-monetization/internal/infra/db/postgres"
	"video-monetization/internal/infra/logging"
	"video-monetization/internal/infra/metrics"
	red "video-monetization/internal/infra/redis"
	"video-monetization/internal/infra/sched"
	"video-monetization/internal/infra/security"
	"video-monetization/internal/infra/worker"
	"video-monetization/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.ConnectPostgres(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Encryption ----
	var sealer pg.FieldSealer
	if cfg.Security.EncryptionKey != "" {
		fc, err := security.NewFieldCipher(cfg.Security.EncryptionKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption")
		}
		sealer = fc
	} else {
		logger.Warn().Msg("security.encryption_key not set; bank account numbers are stored in plaintext")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	txRepo := pg.NewTransactionRepo(pool)
	payoutRepo := pg.NewPayoutRepo(pool)
	userRepo := pg.NewUserRepoCacheDecorator(pg.NewPostgresUserRepo(pool, sealer), redisClient, cfg.Redis.TTL, logger)
	productRepo := pg.NewProductRepo(pool)
	settingsRepo := pg.NewSettingsRepo(pool)
	notifier := pg.NewNotificationRepo(pool)

	// ---- Payment providers ----
	providers, err := buildProviders(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment providers")
	}
	if err := seedSettings(ctx, settingsRepo, cfg, providers[0].Name(), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed platform settings")
	}
	router := usecase.NewGatewayRouter(settingsRepo, providers...)
	metrics.SetProvidersConfigured(router.Keys()...)

	// ---- Side-effect workers ----
	workers := worker.NewPool(cfg.Workers, logger)
	// Detached from ctx so queued notifications drain on Stop.
	workers.Start(context.WithoutCancel(ctx))
	defer workers.Stop()

	// ---- Use cases ----
	purchaseUC := usecase.NewPurchaseUseCase(txRepo, productRepo, userRepo, router, notifier, workers, cfg.Payment.CallbackURL, logger)
	payoutUC := usecase.NewPayoutUseCase(payoutRepo, txRepo, userRepo, router, tm, locker, notifier, workers,
		usecase.PayoutOptions{Currency: cfg.Payment.Currency, LockTTL: cfg.Payout.LockTTL}, logger)
	webhookUC := usecase.NewWebhookUseCase(router, txRepo, purchaseUC, payoutUC, logger)
	bankUC := usecase.NewBankUseCase(router, logger)
	settingsUC := usecase.NewSettingsUseCase(settingsRepo, router, logger)

	// ---- Pending payment reconciler ----
	reconciler := sched.NewPaymentReconciler(purchaseUC, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.StaleAfter, cfg.Scheduler.BatchSize, logger)
	go reconciler.Start(ctx)

	// ---- HTTP ----
	v1 := apiv1.NewServer(apiv1.Deps{
		Purchases:       purchaseUC,
		Payouts:         payoutUC,
		Webhooks:        webhookUC,
		Banks:           bankUC,
		Settings:        settingsUC,
		Auth:            apiv1.NewAdminAuth(cfg.Admin.JWTSecret),
		Limiter:         rateLimiter,
		Currency:        cfg.Payment.Currency,
		RateLimit:       cfg.HTTP.RateLimit,
		MaxWebhookBytes: cfg.HTTP.MaxWebhookBytes,
		Logger:          logger,
	})
	checks := map[string]api.Pinger{
		"postgres": func() error { return pool.Ping(ctx) },
		"redis":    func() error { return redisClient.Ping(ctx) },
	}
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      api.NewRouter(v1, cfg.HTTP.WriteTimeout, logger, checks),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Strs("providers", router.Keys()).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

// buildProviders returns an adapter for every provider with credentials. The
// first entry is the default when platform settings are seeded.
func buildProviders(cfg *config.Config, logger *zerolog.Logger) ([]adapter.PaymentProvider, error) {
	p := cfg.Payment
	var out []adapter.PaymentProvider

	if p.Paystack.SecretKey != "" {
		ps, err := payAdapters.NewPaystackProvider(p.Paystack.SecretKey, p.Paystack.BaseURL, p.Currency, p.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("paystack: %w", err)
		}
		out = append(out, ps)
	}
	if p.Stripe.SecretKey != "" {
		currency := p.Stripe.Currency
		if currency == "" {
			currency = p.Currency
		}
		st, err := payAdapters.NewStripeProvider(p.Stripe.SecretKey, p.Stripe.WebhookSecret, p.Stripe.BaseURL, currency, p.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		out = append(out, st)
	}
	if p.Nomba.ClientID != "" {
		nb, err := payAdapters.NewNombaProvider(p.Nomba.ClientID, p.Nomba.ClientSecret, p.Nomba.AccountID,
			p.Nomba.WebhookSecret, p.Nomba.BaseURL, p.Currency, p.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("nomba: %w", err)
		}
		out = append(out, nb)
	}
	if p.Sandbox.Enabled {
		logger.Warn().Msg("sandbox payment provider enabled; never use in production")
		out = append(out, payAdapters.NewSandboxProvider(p.Sandbox.WebhookSecret))
	}
	if len(out) == 0 {
		return nil, errors.New("no payment provider configured")
	}
	return out, nil
}

type settingsSeeder interface {
	Seed(ctx context.Context, s *model.PlatformSettings) (bool, error)
}

// seedSettings writes the initial platform settings row when none exists.
func seedSettings(ctx context.Context, store settingsSeeder, cfg *config.Config, provider string, logger *zerolog.Logger) error {
	s := &model.PlatformSettings{
		IncomingProvider: provider,
		PayoutProvider:   provider,
		PayoutMode:       model.PayoutModeManual,
		CommissionRate:   cfg.Payment.CommissionRate,
		UpdatedAt:        time.Now().UTC(),
		UpdatedBy:        "bootstrap",
	}
	created, err := store.Seed(ctx, s)
	if err != nil {
		return err
	}
	if created {
		logger.Info().Str("provider", provider).Float64("commission_rate", s.CommissionRate).Msg("platform settings seeded")
	}
	return nil
}
