package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/aktionfilm/aktionfilm-backend/api/controllers"
	"github.com/aktionfilm/aktionfilm-backend/api/routes"
	"github.com/aktionfilm/aktionfilm-backend/internal/accounts"
	"github.com/aktionfilm/aktionfilm-backend/internal/avatars"
	"github.com/aktionfilm/aktionfilm-backend/internal/billing"
	"github.com/aktionfilm/aktionfilm-backend/internal/jobs"
	"github.com/aktionfilm/aktionfilm-backend/internal/ledger"
	"github.com/aktionfilm/aktionfilm-backend/internal/presets"
	"github.com/aktionfilm/aktionfilm-backend/internal/speech"
	stripewebhook "github.com/aktionfilm/aktionfilm-backend/internal/webhooks/stripe"
	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
	"github.com/aktionfilm/aktionfilm-backend/pkg/db"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/metrics"
	"github.com/aktionfilm/aktionfilm-backend/pkg/migrate"
	"github.com/aktionfilm/aktionfilm-backend/pkg/redis"
	"github.com/aktionfilm/aktionfilm-backend/pkg/stripe"
	"github.com/aktionfilm/aktionfilm-backend/pkg/vendors/a2e"
	"github.com/aktionfilm/aktionfilm-backend/pkg/vendors/fal"
	"github.com/aktionfilm/aktionfilm-backend/pkg/vendors/probe"
	"github.com/aktionfilm/aktionfilm-backend/pkg/vendors/replicate"
	"github.com/aktionfilm/aktionfilm-backend/pkg/vendors/tts"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	a2eClient, err := a2e.NewClient(cfg.A2E)
	if err != nil {
		logg.Error(context.Background(), "failed to create a2e client", err)
		os.Exit(1)
	}
	falClient, err := fal.NewClient(cfg.FAL)
	if err != nil {
		logg.Error(context.Background(), "failed to create fal client", err)
		os.Exit(1)
	}
	replicateClient, err := replicate.NewClient(cfg.Replicate)
	if err != nil {
		logg.Error(context.Background(), "failed to create replicate client", err)
		os.Exit(1)
	}
	ttsClient, err := tts.NewClient(cfg.OpenAI)
	if err != nil {
		logg.Error(context.Background(), "failed to create tts client", err)
		os.Exit(1)
	}

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repo:     ledger.NewRepository(dbClient.DB()),
		TxRunner: dbClient,
		Config:   cfg.Ledger,
		Metrics:  ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	jobsService, err := jobs.NewService(jobs.ServiceParams{
		Repo: jobs.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create jobs service", err)
		os.Exit(1)
	}

	avatarsService, err := avatars.NewService(avatars.ServiceParams{
		Ledger:  ledgerService,
		Jobs:    jobsService,
		Client:  a2eClient,
		Prober:  probe.New(),
		Logger:  logg,
		Metrics: ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create avatars service", err)
		os.Exit(1)
	}

	presetsService, err := presets.NewService(presets.ServiceParams{
		Ledger:    ledgerService,
		Jobs:      jobsService,
		FAL:       falClient,
		Replicate: replicateClient,
		Logger:    logg,
		Metrics:   ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create presets service", err)
		os.Exit(1)
	}

	speechService, err := speech.NewService(speech.ServiceParams{
		Ledger:  ledgerService,
		Client:  ttsClient,
		Logger:  logg,
		Metrics: ledgerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create speech service", err)
		os.Exit(1)
	}

	accountsService, err := accounts.NewService(accounts.ServiceParams{
		Repo:     accounts.NewRepository(dbClient.DB()),
		Ledger:   ledgerService,
		TxRunner: dbClient,
		JWT:      cfg.JWT,
		Password: cfg.Password,
		Ledgers:  cfg.Ledger,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create accounts service", err)
		os.Exit(1)
	}

	billingRepo := billing.NewRepository(dbClient.DB())
	billingService, err := billing.NewService(billing.ServiceParams{
		Repo:   billingRepo,
		Stripe: billing.NewStripeClient(stripeClient),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		BillingRepo: billingRepo,
		Ledger:      ledgerService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Ledger.WebhookEventTTL, "stripe-events")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:             cfg,
		Logger:             logg,
		Readiness:          []controllers.Pinger{dbClient, redisClient},
		RedisClient:        redisClient,
		AccountsService:    accountsService,
		LedgerService:      ledgerService,
		AvatarsService:     avatarsService,
		PresetsService:     presetsService,
		SpeechService:      speechService,
		JobsService:        jobsService,
		BillingService:     billingService,
		StripeClient:       stripeClient,
		StripeWebhook:      webhookService,
		StripeWebhookGuard: webhookGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	stop, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	closeErr = multierr.Append(closeErr, redisClient.Close())
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(ctx, "shutdown finished with errors", closeErr)
		os.Exit(1)
	}
	logg.Info(ctx, "shutdown complete")
}
