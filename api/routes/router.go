package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aktionfilm/aktionfilm-backend/api/controllers"
	webhookcontrollers "github.com/aktionfilm/aktionfilm-backend/api/controllers/webhooks"
	"github.com/aktionfilm/aktionfilm-backend/api/middleware"
	"github.com/aktionfilm/aktionfilm-backend/internal/accounts"
	"github.com/aktionfilm/aktionfilm-backend/internal/avatars"
	"github.com/aktionfilm/aktionfilm-backend/internal/billing"
	"github.com/aktionfilm/aktionfilm-backend/internal/jobs"
	"github.com/aktionfilm/aktionfilm-backend/internal/ledger"
	"github.com/aktionfilm/aktionfilm-backend/internal/presets"
	"github.com/aktionfilm/aktionfilm-backend/internal/speech"
	stripewebhook "github.com/aktionfilm/aktionfilm-backend/internal/webhooks/stripe"
	"github.com/aktionfilm/aktionfilm-backend/pkg/config"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/redis"
	"github.com/aktionfilm/aktionfilm-backend/pkg/stripe"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config             *config.Config
	Logger             *logger.Logger
	Readiness          []controllers.Pinger
	RedisClient        *redis.Client
	AccountsService    accounts.Service
	LedgerService      ledger.Service
	AvatarsService     avatars.Service
	PresetsService     presets.Service
	SpeechService      speech.Service
	JobsService        jobs.Service
	BillingService     billing.Service
	StripeClient       *stripe.Client
	StripeWebhook      *stripewebhook.Service
	StripeWebhookGuard *stripewebhook.IdempotencyGuard
	MetricsHandler     http.Handler
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, params.Readiness, logg))
	})

	metricsHandler := params.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(params.StripeWebhook, params.StripeClient, params.StripeWebhookGuard, logg))
	})

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, params.RedisClient, logg)).
			Post("/login", controllers.AuthLogin(params.AccountsService, logg))
		r.With(
			middleware.AuthRateLimit(registerPolicy, params.RedisClient, logg),
			middleware.Idempotency(params.RedisClient, logg),
		).Post("/register", controllers.AuthRegister(params.AccountsService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(params.RedisClient, logg))

		r.Route("/avatars", func(r chi.Router) {
			r.Post("/train-video", controllers.AvatarTrainVideo(params.AvatarsService, logg))
			r.Post("/train-image", controllers.AvatarTrainImage(params.AvatarsService, logg))
			r.Get("/{jobId}/status", controllers.AvatarStatus(params.AvatarsService, logg))
		})

		r.Route("/presets", func(r chi.Router) {
			r.Post("/generate", controllers.PresetGenerate(params.PresetsService, logg))
			r.Get("/{jobId}/status", controllers.PresetStatus(params.PresetsService, logg))
		})

		r.Route("/speech", func(r chi.Router) {
			r.Post("/synthesize", controllers.SpeechSynthesize(params.SpeechService, logg))
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", controllers.JobsList(params.JobsService, logg))
			r.Patch("/{jobId}/visibility", controllers.JobsSetVisibility(params.JobsService, logg))
		})

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", controllers.CreditBalance(params.LedgerService, logg))
			r.Get("/history", controllers.CreditHistory(params.LedgerService, logg))
			r.Get("/packs", controllers.CreditPacks(params.BillingService, logg))
			r.Post("/checkout", controllers.CreditCheckout(params.BillingService, logg))
		})
	})

	return r
}
