package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcygoogle/demo-for-google-identity/internal/application"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/config"
	"github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/handlers"
	"github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/middleware/auth"
	"github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/middleware/ratelimit"
	"github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/middleware/session"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HealthCheck reports whether a backing service is reachable
type HealthCheck func(ctx context.Context) error

// Dependencies are the stores the router serves
type Dependencies struct {
	Clients domain.ClientRegistry
	Codes   domain.CodeStore
	Tokens  domain.TokenService
	// Checks run on /health/ready, keyed by name
	Checks map[string]HealthCheck
}

type Router struct {
	router      *chi.Mux
	rateLimiter *ratelimit.RateLimiter
}

func NewRouter(deps Dependencies, cfg *config.Config, logger *zap.Logger) (*Router, error) {
	sessions, err := session.NewManager(session.Options{
		AuthKey:       cfg.SessionAuthKey,
		EncryptionKey: cfg.SessionEncryptionKey,
		Secure:        cfg.Environment != "development",
	}, logger)
	if err != nil {
		return nil, err
	}

	authMiddleware := auth.NewAuthMiddleware(auth.NewHMACValidator(cfg.AdminJWTSecret), logger)

	oauth2Service := application.NewOAuth2Service(deps.Clients, deps.Codes, deps.Tokens, logger)
	validator := application.NewAuthorizationRequestValidator(deps.Clients, logger)

	// Initialize handlers
	oauth2Handler := handlers.NewOAuth2Handler(oauth2Service, validator, sessions, logger)
	linksHandler := handlers.NewLinksHandler(oauth2Service, logger)
	clientHandler := handlers.NewClientHandler(deps.Clients, logger)

	// Create router with middleware
	router := createRouter()

	rateLimiter := ratelimit.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 3*time.Minute)

	// Health check endpoints
	router.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
			for name, check := range deps.Checks {
				if err := check(r.Context()); err != nil {
					logger.Error("Health check failed", zap.String("check", name), zap.Error(err))
					w.WriteHeader(http.StatusServiceUnavailable)
					w.Write([]byte(name + " connection failed"))
					return
				}
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Ready"))
		})

		r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("Alive"))
		})
	})

	// Swagger UI configuration
	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
		httpSwagger.DeepLinking(true),
		httpSwagger.PersistAuthorization(true),
	))

	// Serve Swagger JSON with CORS headers
	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, "docs/swagger.json")
	})

	router.Route("/oauth2", func(r chi.Router) {
		// User facing routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.OptionalAuthenticator, sessions.RequireUser)
			r.Get("/authorize", oauth2Handler.AuthorizeHandler)
			r.Post("/authorize", oauth2Handler.DecisionHandler)
		})

		// Client facing routes
		r.Group(func(r chi.Router) {
			r.Use(rateLimiter.Middleware)
			r.Post("/token", oauth2Handler.TokenHandler)
			r.Post("/revoke", oauth2Handler.RevokeHandler)
		})

		r.Get("/tokeninfo", oauth2Handler.TokenInfoHandler)
	})

	router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.OptionalAuthenticator, sessions.RequireUser)
			r.Get("/links", linksHandler.ListLinksHandler)
			r.Delete("/links/{client_id}", linksHandler.UnlinkHandler)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticator, authMiddleware.RequireRole(auth.RoleAdmin))
			r.Get("/oauth2/clients", clientHandler.ListClientsHandler)
			r.Post("/oauth2/clients", clientHandler.CreateClientHandler)
			r.Get("/oauth2/clients/{client_id}", clientHandler.GetClientHandler)
			r.Put("/oauth2/clients/{client_id}", clientHandler.UpdateClientHandler)
		})
	})

	return &Router{router: router, rateLimiter: rateLimiter}, nil
}

func createRouter() *chi.Mux {
	router := chi.NewRouter()

	// Add middleware
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Timeout(60 * time.Second))

	return router
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.rateLimiter.Stop()
}
