package application

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	apperrors "github.com/mcygoogle/demo-for-google-identity/internal/domain/errors"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/secret"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// TokenTypeBearer is the only token type issued
const TokenTypeBearer = "Bearer"

// TokenResponse is the token endpoint payload
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenInfo describes a live access token to a resource server
type TokenInfo struct {
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Scope     string `json:"scope,omitempty"`
	ExpiresIn int64  `json:"expires_in"`
}

// OAuth2Service drives the grants on top of the client registry, the code
// store and the token service
type OAuth2Service struct {
	clients domain.ClientRegistry
	codes   domain.CodeStore
	tokens  domain.TokenService
	now     func() time.Time
	logger  *zap.Logger
}

func NewOAuth2Service(clients domain.ClientRegistry, codes domain.CodeStore, tokens domain.TokenService, logger *zap.Logger) *OAuth2Service {
	return &OAuth2Service{
		clients: clients,
		codes:   codes,
		tokens:  tokens,
		now:     time.Now,
		logger:  logger,
	}
}

// NewAuthorizationRequest builds the pending request for a validated
// authorization GET. Without a scope parameter the client's scopes are requested.
func NewAuthorizationRequest(client *domain.ClientDetails, username string, params url.Values) domain.OAuth2Request {
	scopes := client.Scopes
	if params.Has(ParamScope) {
		scopes = domain.ParseScope(params.Get(ParamScope))
	}

	responseType := domain.ResponseType(params.Get(ParamResponseType))
	grantType, _ := responseType.ImpliedGrant()

	redirectURI, err := url.QueryUnescape(params.Get(ParamRedirectURI))
	if err != nil {
		redirectURI = params.Get(ParamRedirectURI)
	}

	request := domain.OAuth2Request{
		Auth: domain.RequestAuth{
			ClientID: client.ClientID,
			Username: username,
		},
		Body: domain.RequestBody{
			Scopes:       scopes,
			IsScoped:     client.IsScoped,
			GrantType:    grantType,
			ResponseType: responseType,
			RedirectURI:  redirectURI,
			State:        params.Get(ParamState),
		},
	}
	return request.Clone()
}

// AuthenticateClient checks the client credentials presented at the token endpoint
func (s *OAuth2Service) AuthenticateClient(ctx context.Context, clientID, clientSecret string) (*domain.ClientDetails, error) {
	if clientID == "" {
		return nil, apperrors.NewInvalidClientError()
	}

	client, err := s.lookupClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		s.logger.Debug("Unknown client", zap.String("client_id", clientID))
		return nil, apperrors.NewInvalidClientError()
	}

	if err := secret.Check(clientSecret, client.Secret); err != nil {
		if !errors.Is(err, domain.ErrInvalidClientSecret) {
			s.logger.Error("Failed to check client secret", zap.String("client_id", clientID), zap.Error(err))
		}
		s.logger.Debug("Client authentication failed", zap.String("client_id", clientID))
		return nil, apperrors.NewInvalidClientError()
	}

	return client, nil
}

// Authorize completes an approved authorization request and returns the URL
// the user agent is sent back to
func (s *OAuth2Service) Authorize(ctx context.Context, request domain.OAuth2Request) (string, error) {
	if request.Auth.Username == "" {
		return "", apperrors.NewInvalidRequestError(apperrors.ReasonNoUser)
	}

	client, err := s.lookupClient(ctx, request.Auth.ClientID)
	if err != nil {
		return "", err
	}
	if client == nil {
		return "", apperrors.NewInvalidRequestError(apperrors.ReasonNonexistentClientID)
	}
	if !client.AllowsScopes(request.Body.Scopes) {
		return "", apperrors.NewInvalidScopeError()
	}

	redirect, err := url.Parse(request.Body.RedirectURI)
	if err != nil {
		s.logger.Error("Failed to parse redirect URI",
			zap.String("client_id", client.ClientID),
			zap.String("redirect_uri", request.Body.RedirectURI),
			zap.Error(err))
		return "", apperrors.NewServerError("invalid redirect uri")
	}

	switch request.Body.ResponseType {
	case domain.ResponseTypeCode:
		code, err := s.bindCode(ctx, request)
		if err != nil {
			return "", err
		}

		query := redirect.Query()
		query.Set("code", code)
		if request.Body.State != "" {
			query.Set("state", request.Body.State)
		}
		redirect.RawQuery = query.Encode()

		s.logger.Debug("Authorization code issued",
			zap.String("client_id", client.ClientID),
			zap.String("username", request.Auth.Username))
		return redirect.String(), nil

	case domain.ResponseTypeToken:
		implicit := request.Clone()
		implicit.Body.Refreshable = false
		implicit.Body.GrantType = domain.GrantTypeImplicit

		token, err := s.tokens.GenerateAccessToken(implicit)
		if err != nil {
			return "", apperrors.NewServerError("failed to issue access token")
		}

		fragment := url.Values{}
		fragment.Set("access_token", token.Token)
		fragment.Set("token_type", TokenTypeBearer)
		fragment.Set("expires_in", strconv.FormatInt(s.expiresIn(token), 10))
		if request.Body.State != "" {
			fragment.Set("state", request.Body.State)
		}
		redirect.Fragment = ""

		s.logger.Debug("Implicit access token issued",
			zap.String("client_id", client.ClientID),
			zap.String("username", request.Auth.Username))
		return redirect.String() + "#" + fragment.Encode(), nil
	}

	return "", apperrors.NewUnsupportedResponseTypeError()
}

// ExchangeAuthorizationCode redeems a code for tokens. The code is consumed
// even when the exchange is then refused.
func (s *OAuth2Service) ExchangeAuthorizationCode(ctx context.Context, client *domain.ClientDetails, code, redirectURI string) (*TokenResponse, error) {
	if code == "" {
		return nil, apperrors.NewInvalidRequestError(apperrors.ReasonNoCode)
	}
	if !client.HasGrantType(domain.GrantTypeAuthorizationCode) {
		return nil, apperrors.NewUnauthorizedClientError()
	}

	request, ok, err := s.codes.ConsumeCode(ctx, code)
	if err != nil {
		s.logger.Error("Failed to consume authorization code", zap.String("client_id", client.ClientID), zap.Error(err))
		return nil, apperrors.NewServerError("failed to consume authorization code")
	}
	if !ok {
		return nil, apperrors.NewInvalidGrantError("Invalid authorization code!")
	}
	if request.Auth.ClientID != client.ClientID {
		s.logger.Info("Authorization code presented by another client",
			zap.String("client_id", client.ClientID),
			zap.String("code_client_id", request.Auth.ClientID))
		return nil, apperrors.NewInvalidGrantError("Invalid authorization code!")
	}
	if request.Body.RedirectURI != "" && redirectURI != request.Body.RedirectURI {
		return nil, apperrors.NewInvalidGrantError("Redirect Uri Mismatch!")
	}

	request.Body.GrantType = domain.GrantTypeAuthorizationCode
	request.Body.Refreshable = client.HasGrantType(domain.GrantTypeRefreshToken)
	request.Body.IsScoped = client.IsScoped

	return s.issue(client, request)
}

// RefreshAccessToken mints a new access token from a refresh token owned by the client
func (s *OAuth2Service) RefreshAccessToken(ctx context.Context, client *domain.ClientDetails, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, apperrors.NewInvalidRequestError(apperrors.ReasonNoRefreshToken)
	}
	if !client.HasGrantType(domain.GrantTypeRefreshToken) {
		return nil, apperrors.NewUnauthorizedClientError()
	}

	current, ok := s.tokens.ReadRefreshToken(refreshToken)
	if !ok || current.ClientID != client.ClientID {
		return nil, apperrors.NewInvalidGrantError("Invalid refresh token!")
	}
	if !client.AllowsScopes(current.Scopes) {
		return nil, apperrors.NewInvalidScopeError()
	}

	token, ok, err := s.tokens.RefreshToken(refreshToken)
	if err != nil {
		s.logger.Error("Failed to refresh access token", zap.String("client_id", client.ClientID), zap.Error(err))
		return nil, apperrors.NewServerError("failed to refresh access token")
	}
	if !ok {
		return nil, apperrors.NewInvalidGrantError("Invalid refresh token!")
	}

	return s.tokenResponse(token), nil
}

// RevokeToken revokes an access or refresh token owned by the client. Unknown
// tokens are not an error.
func (s *OAuth2Service) RevokeToken(ctx context.Context, client *domain.ClientDetails, token string) error {
	if token == "" {
		return apperrors.NewInvalidRequestError(apperrors.ReasonNoToken)
	}

	if access, ok := s.tokens.ReadAccessToken(token); ok {
		if access.ClientID != client.ClientID {
			return apperrors.NewUnauthorizedClientError()
		}
		s.tokens.RevokeByAccessToken(token)
		return nil
	}

	if refresh, ok := s.tokens.ReadRefreshToken(token); ok {
		if refresh.ClientID != client.ClientID {
			return apperrors.NewUnauthorizedClientError()
		}
		s.tokens.RevokeByRefreshToken(token)
	}
	return nil
}

// ListLinkedClients returns the clients the user has live tokens for
func (s *OAuth2Service) ListLinkedClients(ctx context.Context, username string) ([]domain.ClientDetails, error) {
	if username == "" {
		return nil, apperrors.NewInvalidRequestError(apperrors.ReasonNoUser)
	}

	linked := []domain.ClientDetails{}
	for _, clientID := range s.tokens.ListUserClient(username) {
		client, err := s.lookupClient(ctx, clientID)
		if err != nil {
			return nil, err
		}
		if client == nil {
			linked = append(linked, domain.ClientDetails{ClientID: clientID})
			continue
		}
		linked = append(linked, *client)
	}
	return linked, nil
}

// UnlinkClient revokes every token the user granted to the client
func (s *OAuth2Service) UnlinkClient(ctx context.Context, username, clientID string) bool {
	unlinked := s.tokens.RevokeUserClientTokens(username, clientID)
	s.logger.Info("Client unlinked",
		zap.String("username", username),
		zap.String("client_id", clientID),
		zap.Bool("found", unlinked))
	return unlinked
}

// IntrospectAccessToken describes a live access token
func (s *OAuth2Service) IntrospectAccessToken(token string) (*TokenInfo, bool) {
	access, ok := s.tokens.ReadAccessToken(token)
	if !ok {
		return nil, false
	}
	return &TokenInfo{
		ClientID:  access.ClientID,
		Username:  access.Username,
		Scope:     domain.FormatScope(access.Scopes),
		ExpiresIn: s.expiresIn(access),
	}, true
}

func (s *OAuth2Service) issue(client *domain.ClientDetails, request domain.OAuth2Request) (*TokenResponse, error) {
	if !client.AllowsScopes(request.Body.Scopes) {
		s.logger.Warn("Refusing to issue scopes outside the client registration",
			zap.String("client_id", client.ClientID),
			zap.Strings("scopes", request.Body.Scopes))
		return nil, apperrors.NewInvalidScopeError()
	}

	token, err := s.tokens.GenerateAccessToken(request)
	if err != nil {
		return nil, apperrors.NewServerError("failed to issue access token")
	}
	return s.tokenResponse(token), nil
}

// bindCode mints codes until one binds
func (s *OAuth2Service) bindCode(ctx context.Context, request domain.OAuth2Request) (string, error) {
	for {
		code := ulid.Make().String()
		ok, err := s.codes.SetCode(ctx, code, request)
		if err != nil {
			s.logger.Error("Failed to store authorization code",
				zap.String("client_id", request.Auth.ClientID),
				zap.Error(err))
			return "", apperrors.NewServerError("failed to store authorization code")
		}
		if ok {
			return code, nil
		}
		s.logger.Warn("Authorization code collision, regenerating", zap.String("client_id", request.Auth.ClientID))
	}
}

// lookupClient returns nil without error for unknown clients
func (s *OAuth2Service) lookupClient(ctx context.Context, clientID string) (*domain.ClientDetails, error) {
	client, ok, err := s.clients.GetClientByID(ctx, clientID)
	if err != nil {
		s.logger.Error("Failed to look up client", zap.String("client_id", clientID), zap.Error(err))
		return nil, apperrors.NewServerError("failed to look up client")
	}
	if !ok {
		return nil, nil
	}
	return client, nil
}

func (s *OAuth2Service) tokenResponse(token domain.AccessToken) *TokenResponse {
	return &TokenResponse{
		AccessToken:  token.Token,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    s.expiresIn(token),
		RefreshToken: token.RefreshToken,
		Scope:        domain.FormatScope(token.Scopes),
	}
}

func (s *OAuth2Service) expiresIn(token domain.AccessToken) int64 {
	seconds := int64(token.ExpiredTime.Sub(s.now()) / time.Second)
	if seconds < 0 {
		return 0
	}
	return seconds
}
