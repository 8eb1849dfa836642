package domain

import (
	"slices"
	"time"
)

// Default token service settings
const (
	DefaultAccessTokenValidity = 10 * time.Minute
	DefaultTokenSweepInterval  = time.Hour
	DefaultTokenKeyBits        = 256
)

// AccessToken is a short-lived credential for one user and client
type AccessToken struct {
	Token       string    `json:"access_token"`
	ClientID    string    `json:"client_id"`
	Username    string    `json:"username"`
	IsScoped    bool      `json:"is_scoped"`
	Scopes      []string  `json:"scopes"`
	ExpiredTime time.Time `json:"expired_time"`
	// RefreshToken is set only when a refresh token was minted or reused by the same call
	RefreshToken string `json:"refresh_token,omitempty"`
}

// IsExpired reports whether the token is past its expiry at now
func (t AccessToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiredTime)
}

// Clone returns a deep copy of the token
func (t AccessToken) Clone() AccessToken {
	t.Scopes = slices.Clone(t.Scopes)
	return t
}

// RefreshToken mints new access tokens; it has no expiry of its own
type RefreshToken struct {
	Token    string   `json:"refresh_token"`
	ClientID string   `json:"client_id"`
	Username string   `json:"username"`
	IsScoped bool     `json:"is_scoped"`
	Scopes   []string `json:"scopes"`
}

// Clone returns a deep copy of the token
func (t RefreshToken) Clone() RefreshToken {
	t.Scopes = slices.Clone(t.Scopes)
	return t
}

// TokenService issues, reads, refreshes, lists and revokes tokens.
// Lookups that find nothing return false rather than an error.
type TokenService interface {
	GenerateAccessToken(request OAuth2Request) (AccessToken, error)
	RefreshToken(refreshToken string) (AccessToken, bool, error)
	ReadAccessToken(accessToken string) (AccessToken, bool)
	ReadRefreshToken(refreshToken string) (RefreshToken, bool)
	RevokeByAccessToken(accessToken string) bool
	RevokeByRefreshToken(refreshToken string) bool
	RevokeUserClientTokens(username, clientID string) bool
	ListUserClient(username string) []string
	ListUserClientAccessTokens(username, clientID string) []AccessToken
	ListUserClientRefreshTokens(username, clientID string) []RefreshToken
	Reset()
}
