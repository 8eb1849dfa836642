package auth

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	httperrors "github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// RoleAdmin grants access to the client admin API
const RoleAdmin = "admin"

// ErrNoSecret is returned when bearer tokens are checked without a configured secret
var ErrNoSecret = errors.New("no token secret configured")

// Claims are the claims accepted in bearer tokens. The subject is the username.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenValidator validates bearer tokens issued by the upstream identity provider
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// HMACValidator validates HS256 tokens signed with a shared secret
type HMACValidator struct {
	secret []byte
}

func NewHMACValidator(secret string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret)}
}

func (v *HMACValidator) ValidateToken(token string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, ErrNoSecret
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// IssueToken signs a token for subject, used by operators and tests
func (v *HMACValidator) IssueToken(subject string, roles []string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, logger: logger}
}

// Authenticator rejects requests without a valid bearer token
func (m *AuthMiddleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httperrors.RespondWithError(w, httperrors.ErrCodeAuthentication, "Unauthorized", nil, http.StatusUnauthorized)
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			m.logger.Debug("Bearer token rejected", zap.Error(err))
			httperrors.RespondWithError(w, httperrors.ErrCodeAuthentication, "Invalid token", nil, http.StatusUnauthorized)
			return
		}

		ctx := domain.WithSubject(r.Context(), claims.Subject)
		ctx = domain.WithRoles(ctx, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthenticator records the subject of a valid bearer token and lets
// requests without one through
func (m *AuthMiddleware) OptionalAuthenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if extractToken(r) == "" {
			next.ServeHTTP(w, r)
			return
		}
		m.Authenticator(next).ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, ok := domain.GetRoles(r.Context())
			if !ok || !slices.Contains(roles, role) {
				httperrors.RespondWithError(w, httperrors.ErrCodeForbidden, "Forbidden", nil, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
