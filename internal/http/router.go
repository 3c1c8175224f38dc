package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/maatcontabil/portal/internal/config"
	httpmiddleware "github.com/maatcontabil/portal/internal/http/middleware"
	"github.com/maatcontabil/portal/internal/notify"
	"github.com/maatcontabil/portal/internal/payment"
	"github.com/maatcontabil/portal/internal/pix"
	"github.com/maatcontabil/portal/internal/request"
	"github.com/maatcontabil/portal/internal/service"
	"github.com/maatcontabil/portal/internal/settings"
	"github.com/maatcontabil/portal/internal/storage"
	"github.com/maatcontabil/portal/internal/user"
	"github.com/maatcontabil/portal/internal/vault"
)

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   *service.AuthService
	requests      *request.Service
	payments      *payment.Orchestrator
	notify        *notify.Service
	vault         *vault.Service
	settings      *settings.Service
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, authService *service.AuthService) (http.Handler, error) {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	userRepo := user.NewRepository(pool)

	notifyRepo := notify.NewRepository(pool)
	notifyLogger := log.With().Str("component", "notify").Logger()
	notifyService := notify.NewService(notifyRepo, userRepo, redisClient, notifyLogger)

	var uploader storage.Uploader = storage.NoopUploader{}
	switch cfg.Storage.Provider {
	case "", "noop":
		// mantém uploader padrão
	case "s3", "r2", "cloudflare-r2":
		s3, err := storage.NewS3Uploader(storage.S3Config{
			Endpoint:  cfg.Storage.S3Endpoint,
			Region:    cfg.Storage.S3Region,
			Bucket:    cfg.Storage.S3Bucket,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
			PublicURL: cfg.Storage.S3PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		uploader = s3
	default:
		return nil, fmt.Errorf("storage: provedor %s não suportado", cfg.Storage.Provider)
	}

	vaultRepo := vault.NewRepository(pool)
	vaultLogger := log.With().Str("component", "vault").Logger()
	vaultService := vault.NewService(vaultRepo, uploader, vaultLogger)

	requestRepo := request.NewRepository(pool)
	requestService := request.NewService(requestRepo, notifyService, vaultService)

	settingsRepo := settings.NewRepository(pool)
	settingsService := settings.NewService(settingsRepo)

	gateway, err := buildPixGateway(context.Background(), cfg, settingsService)
	if err != nil {
		return nil, err
	}

	paymentService := payment.NewOrchestrator(requestRepo, userRepo, gateway, notifyService)

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		authService:   authService,
		requests:      requestService,
		payments:      paymentService,
		notify:        notifyService,
		vault:         vaultService,
		settings:      settingsService,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    devCookies,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Login)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})

		public.Post("/webhooks/pix", h.PixWebhook)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)
		private.Get("/request-types", h.ListRequestTypes)

		private.Route("/requests", func(req chi.Router) {
			req.Get("/", h.ListRequests)
			req.Get("/{id}", h.GetRequest)
			req.Post("/{id}/transition", h.TransitionRequest)
			req.Get("/{id}/messages", h.ListRequestMessages)
			req.Post("/{id}/messages", h.AddRequestMessage)

			req.Group(func(client chi.Router) {
				client.Use(httpmiddleware.RequireClient)
				client.Post("/", h.CreateRequest)
				client.Post("/{id}/charge", h.RequestCharge)
			})

			req.Group(func(admin chi.Router) {
				admin.Use(httpmiddleware.RequireAdmin)
				admin.Delete("/{id}", h.DeleteRequest)
				admin.Post("/{id}/restore", h.RestoreRequest)
			})
		})

		private.Get("/vault/documents", h.ListVaultDocuments)

		private.Route("/notifications", func(n chi.Router) {
			n.Get("/", h.ListNotifications)
			n.Post("/{id}/read", h.ReadNotification)
		})

		private.Route("/settings", func(s chi.Router) {
			s.Use(httpmiddleware.RequireAdmin)
			s.Get("/payment", h.GetPaymentSettings)
			s.Put("/payment", h.UpdatePaymentSettings)
		})
	})

	return r, nil
}

// buildPixGateway decide se a cobrança Pix fica ativa: o singleton em
// banco prevalece sobre o ambiente e pode sobrepor a chave recebedora.
// Sem credenciais completas o gateway fica nulo e a API responde
// GATEWAY_CONFIG nas rotas de cobrança.
func buildPixGateway(ctx context.Context, cfg *config.Config, settingsService *settings.Service) (payment.Gateway, error) {
	pixCfg := cfg.Pix
	enabled := pixCfg.Enabled

	if dbCfg, err := settingsService.GetPaymentSettings(ctx); err == nil {
		enabled = dbCfg.PixEnabled
		if strings.TrimSpace(dbCfg.PixKey) != "" {
			pixCfg.PixKey = dbCfg.PixKey
		}
	} else if !errors.Is(err, settings.ErrNotFound) {
		return nil, fmt.Errorf("pix(config): %w", err)
	}

	if !enabled {
		return nil, nil
	}
	if !pixCfg.IsComplete() {
		log.Warn().Msg("pix habilitado mas com credenciais incompletas; cobrança ficará indisponível")
		return nil, nil
	}

	client, err := pix.New(pix.Config{
		BaseURL:       pixCfg.BaseURL,
		ClientID:      pixCfg.ClientID,
		ClientSecret:  pixCfg.ClientSecret,
		CertFile:      pixCfg.CertFile,
		KeyFile:       pixCfg.KeyFile,
		PixKey:        pixCfg.PixKey,
		Scope:         pixCfg.Scope,
		ExpirySeconds: pixCfg.ExpirySeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("pix(client): %w", err)
	}
	return client, nil
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.pool.Ping(ctx)
	redisErr := h.redis.Ping(ctx).Err()

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
