package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mcygoogle/demo-for-google-identity/internal/application"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/config"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/repository"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/secret"
	"github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/middleware/session"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testClientSecret = "secret"
	testRedirectURI  = "https://www.google.com"
	testUserHeader   = "X-Test-User"
)

type oauth2Fixture struct {
	clients *repository.InMemoryClientRepository
	tokens  *application.InMemoryTokenService
	service *application.OAuth2Service
	router  chi.Router
}

func newOAuth2Fixture(t *testing.T) *oauth2Fixture {
	t.Helper()
	logger := zap.NewNop()

	clients := repository.NewInMemoryClientRepository(logger)
	hash, err := secret.Hash(testClientSecret)
	require.NoError(t, err)
	added, err := clients.AddClient(context.Background(), domain.ClientDetails{
		ClientID: "google",
		Secret:   hash,
		Scopes:   []string{"read"},
		IsScoped: true,
		GrantTypes: []domain.GrantType{
			domain.GrantTypeAuthorizationCode,
			domain.GrantTypeImplicit,
			domain.GrantTypeRefreshToken,
		},
		RedirectURIs: []string{testRedirectURI},
	})
	require.NoError(t, err)
	require.True(t, added)

	tokens, err := application.NewInMemoryTokenService(config.DefaultTokenServiceConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(tokens.Stop)

	sessions, err := session.NewManager(session.Options{}, logger)
	require.NoError(t, err)

	codes := repository.NewInMemoryCodeRepository(0, logger)
	service := application.NewOAuth2Service(clients, codes, tokens, logger)
	validator := application.NewAuthorizationRequestValidator(clients, logger)
	handler := NewOAuth2Handler(service, validator, sessions, logger)
	links := NewLinksHandler(service, logger)

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(testSubject, sessions.RequireUser)
		r.Get("/oauth2/authorize", handler.AuthorizeHandler)
		r.Post("/oauth2/authorize", handler.DecisionHandler)
		r.Get("/api/links", links.ListLinksHandler)
		r.Delete("/api/links/{client_id}", links.UnlinkHandler)
	})
	router.Post("/oauth2/token", handler.TokenHandler)
	router.Post("/oauth2/revoke", handler.RevokeHandler)
	router.Get("/oauth2/tokeninfo", handler.TokenInfoHandler)

	return &oauth2Fixture{
		clients: clients,
		tokens:  tokens,
		service: service,
		router:  router,
	}
}

// testSubject stands in for the bearer middleware
func testSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := r.Header.Get(testUserHeader); user != "" {
			r = r.WithContext(domain.WithSubject(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func (f *oauth2Fixture) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// withCookies adds the last value of every cookie set on w to req
func withCookies(req *http.Request, w *httptest.ResponseRecorder) *http.Request {
	latest := map[string]*http.Cookie{}
	var order []string
	for _, cookie := range w.Result().Cookies() {
		if _, seen := latest[cookie.Name]; !seen {
			order = append(order, cookie.Name)
		}
		latest[cookie.Name] = cookie
	}
	for _, name := range order {
		req.AddCookie(latest[name])
	}
	return req
}
