package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mcygoogle/demo-for-google-identity/internal/application"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/config"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/repository"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/seed"
	"github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/middleware/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testJWTSecret = "router-test-secret"

func newTestRouter(t *testing.T, checks map[string]HealthCheck) *Router {
	t.Helper()
	logger := zap.NewNop()

	cfg := config.NewConfig()
	cfg.AdminJWTSecret = testJWTSecret
	cfg.Environment = "development"

	clients := repository.NewInMemoryClientRepository(logger)
	require.NoError(t, seed.Apply(context.Background(), clients, seed.DefaultClients(), logger))

	tokens, err := application.NewInMemoryTokenService(cfg.TokenServiceConfig(), logger)
	require.NoError(t, err)
	t.Cleanup(tokens.Stop)

	router, err := NewRouter(Dependencies{
		Clients: clients,
		Codes:   repository.NewInMemoryCodeRepository(cfg.AuthCodeTTL, logger),
		Tokens:  tokens,
		Checks:  checks,
	}, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(router.Close)
	return router
}

func bearer(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	token, err := auth.NewHMACValidator(testJWTSecret).IssueToken(subject, roles, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
	})

	for path, body := range map[string]string{"/health": "OK", "/health/live": "Alive", "/health/ready": "Ready"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, body, w.Body.String(), path)
	}
}

func TestRouter_HealthReadyFailure(t *testing.T) {
	router := newTestRouter(t, map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "redis connection failed", w.Body.String())
}

func TestRouter_AdminRoutes(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name           string
		authorization  string
		expectedStatus int
	}{
		{name: "no token", expectedStatus: http.StatusUnauthorized},
		{name: "not an admin", authorization: bearer(t, "alice"), expectedStatus: http.StatusForbidden},
		{name: "admin", authorization: bearer(t, "root", auth.RoleAdmin), expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/oauth2/clients", nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	body, err := json.Marshal(map[string]interface{}{
		"client_id":     "example",
		"secret":        "s3cret",
		"grant_types":   []string{"authorization_code"},
		"redirect_uris": []string{"https://example.com/cb"},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/oauth2/clients", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "root", auth.RoleAdmin))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRouter_AuthorizationCodeFlow(t *testing.T) {
	router := newTestRouter(t, nil)

	query := url.Values{
		"client_id":     {"google"},
		"redirect_uri":  {"https://oauth-redirect.googleusercontent.com/r"},
		"response_type": {"code"},
		"state":         {"abc"},
	}
	req := httptest.NewRequest(http.MethodGet, "/oauth2/authorize?"+query.Encode(), nil)
	req.Header.Set("Authorization", bearer(t, "alice"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookies := map[string]*http.Cookie{}
	for _, cookie := range w.Result().Cookies() {
		cookies[cookie.Name] = cookie
	}
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodPost, "/oauth2/authorize", strings.NewReader("user_approve=true"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	code := location.Query().Get("code")
	require.NotEmpty(t, code)

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {"https://oauth-redirect.googleusercontent.com/r"},
	}
	req = httptest.NewRequest(http.MethodPost, "/oauth2/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("google", "secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tokens application.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&tokens))
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "read", tokens.Scope)
}
