package application

import (
	"sort"
	"sync"
	"time"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
)

// userTokens owns every token of one username, partitioned by client ID.
// All access goes through mu; removed is set once the sweep or a reset has
// detached the bucket from the service, after which it must not be written.
type userTokens struct {
	mu            sync.Mutex
	username      string
	accessTokens  map[string]map[string]domain.AccessToken
	refreshTokens map[string]map[string]domain.RefreshToken
	removed       bool
}

func newUserTokens(username string) *userTokens {
	return &userTokens{
		username:      username,
		accessTokens:  make(map[string]map[string]domain.AccessToken),
		refreshTokens: make(map[string]map[string]domain.RefreshToken),
	}
}

func (u *userTokens) hasAccessToken(clientID, token string) bool {
	_, ok := u.accessTokens[clientID][token]
	return ok
}

func (u *userTokens) hasRefreshToken(clientID, token string) bool {
	_, ok := u.refreshTokens[clientID][token]
	return ok
}

func (u *userTokens) readAccessToken(clientID, token string) (domain.AccessToken, bool) {
	t, ok := u.accessTokens[clientID][token]
	if !ok {
		return domain.AccessToken{}, false
	}
	return t.Clone(), true
}

func (u *userTokens) readRefreshToken(clientID, token string) (domain.RefreshToken, bool) {
	t, ok := u.refreshTokens[clientID][token]
	if !ok {
		return domain.RefreshToken{}, false
	}
	return t.Clone(), true
}

func (u *userTokens) addAccessToken(token domain.AccessToken) {
	tokens, ok := u.accessTokens[token.ClientID]
	if !ok {
		tokens = make(map[string]domain.AccessToken)
		u.accessTokens[token.ClientID] = tokens
	}
	tokens[token.Token] = token
}

func (u *userTokens) addRefreshToken(token domain.RefreshToken) {
	tokens, ok := u.refreshTokens[token.ClientID]
	if !ok {
		tokens = make(map[string]domain.RefreshToken)
		u.refreshTokens[token.ClientID] = tokens
	}
	tokens[token.Token] = token
}

func (u *userTokens) removeAccessToken(clientID, token string) bool {
	tokens, ok := u.accessTokens[clientID]
	if !ok {
		return false
	}
	if _, ok := tokens[token]; !ok {
		return false
	}
	delete(tokens, token)
	if len(tokens) == 0 {
		delete(u.accessTokens, clientID)
	}
	return true
}

func (u *userTokens) removeRefreshToken(clientID, token string) bool {
	tokens, ok := u.refreshTokens[clientID]
	if !ok {
		return false
	}
	if _, ok := tokens[token]; !ok {
		return false
	}
	delete(tokens, token)
	if len(tokens) == 0 {
		delete(u.refreshTokens, clientID)
	}
	return true
}

// revokeClient drops every token the client holds for this user and returns how many went
func (u *userTokens) revokeClient(clientID string) int {
	revoked := len(u.accessTokens[clientID]) + len(u.refreshTokens[clientID])
	delete(u.accessTokens, clientID)
	delete(u.refreshTokens, clientID)
	return revoked
}

// listClients returns the sorted client IDs holding a refresh token or an unexpired access token
func (u *userTokens) listClients(now time.Time) []string {
	seen := make(map[string]struct{})
	for clientID, tokens := range u.refreshTokens {
		if len(tokens) > 0 {
			seen[clientID] = struct{}{}
		}
	}
	for clientID, tokens := range u.accessTokens {
		for _, t := range tokens {
			if !t.IsExpired(now) {
				seen[clientID] = struct{}{}
				break
			}
		}
	}

	clients := make([]string, 0, len(seen))
	for clientID := range seen {
		clients = append(clients, clientID)
	}
	sort.Strings(clients)
	return clients
}

func (u *userTokens) listAccessTokens(clientID string, now time.Time) []domain.AccessToken {
	tokens := make([]domain.AccessToken, 0, len(u.accessTokens[clientID]))
	for _, t := range u.accessTokens[clientID] {
		if !t.IsExpired(now) {
			tokens = append(tokens, t.Clone())
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].ExpiredTime.Before(tokens[j].ExpiredTime)
	})
	return tokens
}

func (u *userTokens) listRefreshTokens(clientID string) []domain.RefreshToken {
	tokens := make([]domain.RefreshToken, 0, len(u.refreshTokens[clientID]))
	for _, t := range u.refreshTokens[clientID] {
		tokens = append(tokens, t.Clone())
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Token < tokens[j].Token
	})
	return tokens
}

// clearExpiredTokens drops expired access tokens and returns how many went
func (u *userTokens) clearExpiredTokens(now time.Time) int {
	cleared := 0
	for clientID, tokens := range u.accessTokens {
		for token, t := range tokens {
			if t.IsExpired(now) {
				delete(tokens, token)
				cleared++
			}
		}
		if len(tokens) == 0 {
			delete(u.accessTokens, clientID)
		}
	}
	return cleared
}

func (u *userTokens) isEmpty() bool {
	return len(u.accessTokens) == 0 && len(u.refreshTokens) == 0
}
