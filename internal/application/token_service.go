package application

import (
	"fmt"
	"sync"
	"time"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/config"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/tokencodec"
	"go.uber.org/zap"
)

// tokenLogLength is how much of a token string goes into logs
const tokenLogLength = 8

var _ domain.TokenService = (*InMemoryTokenService)(nil)

// InMemoryTokenService keeps every token in per-user buckets and encodes the
// owner of each token into the token string itself, so a presented token can
// be routed to its bucket without a global reverse index.
type InMemoryTokenService struct {
	mu      sync.RWMutex
	buckets map[string]*userTokens

	codec          *tokencodec.Codec
	accessValidity time.Duration
	now            func() time.Time
	logger         *zap.Logger

	stopSweep chan struct{}
	sweepDone chan struct{}
	stopOnce  sync.Once
}

// NewInMemoryTokenService generates the process key and starts the expiry sweep.
// Zero config values fall back to the defaults. Call Stop to end the sweep.
func NewInMemoryTokenService(cfg config.TokenServiceConfig, logger *zap.Logger) (*InMemoryTokenService, error) {
	defaults := config.DefaultTokenServiceConfig()
	if cfg.AccessTokenValidity <= 0 {
		cfg.AccessTokenValidity = defaults.AccessTokenValidity
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.KeyBits == 0 {
		cfg.KeyBits = defaults.KeyBits
	}

	codec, err := tokencodec.New(cfg.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token key: %w", err)
	}

	s := &InMemoryTokenService{
		buckets:        make(map[string]*userTokens),
		codec:          codec,
		accessValidity: cfg.AccessTokenValidity,
		now:            time.Now,
		logger:         logger,
		stopSweep:      make(chan struct{}),
		sweepDone:      make(chan struct{}),
	}

	go s.sweepLoop(cfg.SweepInterval)

	logger.Info("Token service started",
		zap.Duration("access_token_validity", cfg.AccessTokenValidity),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Int("key_bits", cfg.KeyBits))

	return s, nil
}

// Stop ends the expiry sweep and waits for it to exit
func (s *InMemoryTokenService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopSweep)
	})
	<-s.sweepDone
}

// GenerateAccessToken mints an access token for the request, plus a refresh
// token when the request is refreshable. Both are stored or neither is.
func (s *InMemoryTokenService) GenerateAccessToken(request domain.OAuth2Request) (domain.AccessToken, error) {
	var (
		token domain.AccessToken
		err   error
	)
	s.withBucket(request.Auth.Username, true, func(b *userTokens) {
		token, err = s.issue(b, request, "")
	})
	if err != nil {
		s.logger.Error("Failed to generate access token",
			zap.String("username", request.Auth.Username),
			zap.String("client_id", request.Auth.ClientID),
			zap.Error(err))
		return domain.AccessToken{}, err
	}

	s.logger.Debug("Access token generated",
		zap.String("username", token.Username),
		zap.String("client_id", token.ClientID),
		zap.Bool("refreshable", token.RefreshToken != ""))
	return token, nil
}

// RefreshToken mints a new access token from a live refresh token. The refresh
// token string is reused, not rotated. Unknown and revoked tokens both yield false.
func (s *InMemoryTokenService) RefreshToken(refreshToken string) (domain.AccessToken, bool, error) {
	identity, ok := s.decode(refreshToken, "refresh")
	if !ok {
		return domain.AccessToken{}, false, nil
	}

	var (
		token domain.AccessToken
		found bool
		err   error
	)
	s.withBucket(identity.Username, false, func(b *userTokens) {
		current, ok := b.readRefreshToken(identity.ClientID, refreshToken)
		if !ok {
			return
		}
		found = true

		request := domain.OAuth2Request{
			Auth: domain.RequestAuth{
				ClientID: current.ClientID,
				Username: current.Username,
			},
			Body: domain.RequestBody{
				Scopes:      current.Scopes,
				IsScoped:    current.IsScoped,
				Refreshable: true,
				GrantType:   domain.GrantTypeRefreshToken,
			},
		}
		token, err = s.issue(b, request, refreshToken)
	})
	if err != nil {
		return domain.AccessToken{}, false, err
	}
	if !found {
		return domain.AccessToken{}, false, nil
	}

	s.logger.Debug("Access token refreshed",
		zap.String("username", token.Username),
		zap.String("client_id", token.ClientID))
	return token, true, nil
}

// ReadAccessToken returns the live, unexpired access token for the string
func (s *InMemoryTokenService) ReadAccessToken(accessToken string) (domain.AccessToken, bool) {
	identity, ok := s.decode(accessToken, "access")
	if !ok {
		return domain.AccessToken{}, false
	}

	var (
		token domain.AccessToken
		found bool
	)
	now := s.now()
	s.withBucket(identity.Username, false, func(b *userTokens) {
		token, found = b.readAccessToken(identity.ClientID, accessToken)
	})
	if !found || token.IsExpired(now) {
		return domain.AccessToken{}, false
	}
	return token, true
}

// ReadRefreshToken returns the live refresh token for the string
func (s *InMemoryTokenService) ReadRefreshToken(refreshToken string) (domain.RefreshToken, bool) {
	identity, ok := s.decode(refreshToken, "refresh")
	if !ok {
		return domain.RefreshToken{}, false
	}

	var (
		token domain.RefreshToken
		found bool
	)
	s.withBucket(identity.Username, false, func(b *userTokens) {
		token, found = b.readRefreshToken(identity.ClientID, refreshToken)
	})
	return token, found
}

// RevokeByAccessToken removes a live access token. Expired tokens count as absent.
func (s *InMemoryTokenService) RevokeByAccessToken(accessToken string) bool {
	identity, ok := s.decode(accessToken, "access")
	if !ok {
		return false
	}

	revoked := false
	now := s.now()
	s.withBucket(identity.Username, false, func(b *userTokens) {
		token, ok := b.readAccessToken(identity.ClientID, accessToken)
		if !ok || token.IsExpired(now) {
			return
		}
		revoked = b.removeAccessToken(identity.ClientID, accessToken)
	})

	if revoked {
		s.logger.Debug("Access token revoked",
			zap.String("username", identity.Username),
			zap.String("client_id", identity.ClientID))
	}
	return revoked
}

// RevokeByRefreshToken removes a refresh token
func (s *InMemoryTokenService) RevokeByRefreshToken(refreshToken string) bool {
	identity, ok := s.decode(refreshToken, "refresh")
	if !ok {
		return false
	}

	revoked := false
	s.withBucket(identity.Username, false, func(b *userTokens) {
		revoked = b.removeRefreshToken(identity.ClientID, refreshToken)
	})

	if revoked {
		s.logger.Debug("Refresh token revoked",
			zap.String("username", identity.Username),
			zap.String("client_id", identity.ClientID))
	}
	return revoked
}

// RevokeUserClientTokens removes every token of the (user, client) pair.
// It returns false only when the user has no tokens at all.
func (s *InMemoryTokenService) RevokeUserClientTokens(username, clientID string) bool {
	revoked := 0
	found := s.withBucket(username, false, func(b *userTokens) {
		revoked = b.revokeClient(clientID)
	})
	if found {
		s.logger.Info("User client tokens revoked",
			zap.String("username", username),
			zap.String("client_id", clientID),
			zap.Int("revoked", revoked))
	}
	return found
}

// ListUserClient returns the clients holding any live token for the user
func (s *InMemoryTokenService) ListUserClient(username string) []string {
	clients := []string{}
	now := s.now()
	s.withBucket(username, false, func(b *userTokens) {
		clients = b.listClients(now)
	})
	return clients
}

// ListUserClientAccessTokens returns the unexpired access tokens of the pair
func (s *InMemoryTokenService) ListUserClientAccessTokens(username, clientID string) []domain.AccessToken {
	tokens := []domain.AccessToken{}
	now := s.now()
	s.withBucket(username, false, func(b *userTokens) {
		tokens = b.listAccessTokens(clientID, now)
	})
	return tokens
}

// ListUserClientRefreshTokens returns the refresh tokens of the pair
func (s *InMemoryTokenService) ListUserClientRefreshTokens(username, clientID string) []domain.RefreshToken {
	tokens := []domain.RefreshToken{}
	s.withBucket(username, false, func(b *userTokens) {
		tokens = b.listRefreshTokens(clientID)
	})
	return tokens
}

// ClearExpiredTokens runs one sweep: expired access tokens are dropped and
// buckets left with no tokens at all are removed. It returns the number of
// tokens and buckets removed.
func (s *InMemoryTokenService) ClearExpiredTokens() (int, int) {
	now := s.now()

	s.mu.RLock()
	snapshot := make(map[string]*userTokens, len(s.buckets))
	for username, b := range s.buckets {
		snapshot[username] = b
	}
	s.mu.RUnlock()

	clearedTokens, removedBuckets := 0, 0
	for username, b := range snapshot {
		b.mu.Lock()
		empty := false
		if !b.removed {
			clearedTokens += b.clearExpiredTokens(now)
			if b.isEmpty() {
				b.removed = true
				empty = true
			}
		}
		b.mu.Unlock()

		if empty {
			s.detach(username, b)
			removedBuckets++
		}
	}

	s.logger.Debug("Expired tokens cleared",
		zap.Int("tokens", clearedTokens),
		zap.Int("buckets", removedBuckets))
	return clearedTokens, removedBuckets
}

// Reset drops every bucket
func (s *InMemoryTokenService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.buckets {
		b.mu.Lock()
		b.removed = true
		b.mu.Unlock()
	}
	s.buckets = make(map[string]*userTokens)
}

func (s *InMemoryTokenService) sweepLoop(interval time.Duration) {
	defer close(s.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.ClearExpiredTokens()
		}
	}
}

// issue mints and stores tokens inside b's critical section. A non-empty
// refreshToken is attached as-is instead of minting a new refresh token.
func (s *InMemoryTokenService) issue(b *userTokens, request domain.OAuth2Request, refreshToken string) (domain.AccessToken, error) {
	username := request.Auth.Username
	clientID := request.Auth.ClientID

	var minted *domain.RefreshToken
	if request.Body.Refreshable && refreshToken == "" {
		value, err := s.newTokenString(username, clientID, func(candidate string) bool {
			return b.hasRefreshToken(clientID, candidate)
		})
		if err != nil {
			return domain.AccessToken{}, err
		}
		minted = &domain.RefreshToken{
			Token:    value,
			ClientID: clientID,
			Username: username,
			IsScoped: request.Body.IsScoped,
			Scopes:   cloneScopes(request.Body.Scopes),
		}
		refreshToken = value
	}

	value, err := s.newTokenString(username, clientID, func(candidate string) bool {
		return b.hasAccessToken(clientID, candidate)
	})
	if err != nil {
		return domain.AccessToken{}, err
	}

	access := domain.AccessToken{
		Token:        value,
		ClientID:     clientID,
		Username:     username,
		IsScoped:     request.Body.IsScoped,
		Scopes:       cloneScopes(request.Body.Scopes),
		ExpiredTime:  s.now().Add(s.accessValidity),
		RefreshToken: refreshToken,
	}

	if minted != nil {
		b.addRefreshToken(*minted)
	}
	b.addAccessToken(access)
	return access.Clone(), nil
}

// newTokenString encodes fresh identities until one is not already taken
func (s *InMemoryTokenService) newTokenString(username, clientID string, taken func(string) bool) (string, error) {
	for {
		identity, err := tokencodec.NewIdentity(username, clientID)
		if err != nil {
			return "", err
		}
		token, err := s.codec.Encode(identity)
		if err != nil {
			return "", err
		}
		if !taken(token) {
			return token, nil
		}
		s.logger.Warn("Token collision, regenerating",
			zap.String("username", username),
			zap.String("client_id", clientID))
	}
}

func (s *InMemoryTokenService) decode(token, tokenType string) (tokencodec.Identity, bool) {
	identity, err := s.codec.Decode(token)
	if err != nil {
		s.logger.Info("Invalid token value",
			zap.String("token_type", tokenType),
			zap.String("token_prefix", truncate(token, tokenLogLength)),
			zap.Error(err))
		return tokencodec.Identity{}, false
	}
	return identity, true
}

// bucket returns the username's bucket, creating it when create is set
func (s *InMemoryTokenService) bucket(username string, create bool) *userTokens {
	s.mu.RLock()
	b, ok := s.buckets[username]
	s.mu.RUnlock()
	if ok || !create {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[username]; ok {
		return b
	}
	b = newUserTokens(username)
	s.buckets[username] = b
	return b
}

// withBucket runs fn with the username's bucket locked. A bucket the sweep
// detached between lookup and lock is dropped and a fresh one resolved. It
// returns false when there is no bucket and create is unset.
func (s *InMemoryTokenService) withBucket(username string, create bool, fn func(*userTokens)) bool {
	for {
		b := s.bucket(username, create)
		if b == nil {
			return false
		}

		b.mu.Lock()
		if b.removed {
			b.mu.Unlock()
			s.detach(username, b)
			continue
		}
		fn(b)
		b.mu.Unlock()
		return true
	}
}

// detach unlinks b from the map if it is still the username's bucket
func (s *InMemoryTokenService) detach(username string, b *userTokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[username] == b {
		delete(s.buckets, username)
	}
}

func cloneScopes(scopes []string) []string {
	if scopes == nil {
		return nil
	}
	return append([]string(nil), scopes...)
}

func truncate(value string, length int) string {
	if len(value) <= length {
		return value
	}
	return value[:length]
}
