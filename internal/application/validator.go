package application

import (
	"context"
	"net/url"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	apperrors "github.com/mcygoogle/demo-for-google-identity/internal/domain/errors"
	"go.uber.org/zap"
)

// Authorization request parameter names
const (
	ParamClientID     = "client_id"
	ParamRedirectURI  = "redirect_uri"
	ParamResponseType = "response_type"
	ParamScope        = "scope"
	ParamState        = "state"
	ParamUserApprove  = "user_approve"
)

// AuthorizationRequestValidator checks authorization requests in two phases.
// The GET phase runs ValidateRedirectURI and then ValidateGET; errors from the
// first step must not be redirected since the redirect URI is not trusted yet.
type AuthorizationRequestValidator struct {
	clients domain.ClientRegistry
	logger  *zap.Logger
}

func NewAuthorizationRequestValidator(clients domain.ClientRegistry, logger *zap.Logger) *AuthorizationRequestValidator {
	return &AuthorizationRequestValidator{
		clients: clients,
		logger:  logger,
	}
}

// ValidateRedirectURI resolves the client and checks the redirect URI against its registration
func (v *AuthorizationRequestValidator) ValidateRedirectURI(ctx context.Context, params url.Values) (*domain.ClientDetails, error) {
	clientID := params.Get(ParamClientID)
	if clientID == "" {
		return nil, v.reject(apperrors.NewInvalidRequestError(apperrors.ReasonNoClientID))
	}

	client, ok, err := v.clients.GetClientByID(ctx, clientID)
	if err != nil {
		v.logger.Error("Failed to look up client", zap.String("client_id", clientID), zap.Error(err))
		return nil, apperrors.NewServerError("failed to look up client")
	}
	if !ok {
		return nil, v.reject(apperrors.NewInvalidRequestError(apperrors.ReasonNonexistentClientID), zap.String("client_id", clientID))
	}

	redirectURI := params.Get(ParamRedirectURI)
	if redirectURI == "" {
		return nil, v.reject(apperrors.NewInvalidRequestError(apperrors.ReasonNoRedirectURI), zap.String("client_id", clientID))
	}

	decoded, err := url.QueryUnescape(redirectURI)
	if err != nil {
		v.logger.Info("Failed to decode redirect URI, using raw value",
			zap.String("client_id", clientID),
			zap.String("redirect_uri", redirectURI),
			zap.Error(err))
		decoded = redirectURI
	}

	if !client.HasRedirectURI(decoded) {
		return nil, v.reject(apperrors.NewInvalidRequestError(apperrors.ReasonRedirectURIMismatch),
			zap.String("client_id", clientID),
			zap.String("redirect_uri", decoded))
	}

	return client, nil
}

// ValidateGET checks the response type, the implied grant and the requested
// scopes for a client already returned by ValidateRedirectURI
func (v *AuthorizationRequestValidator) ValidateGET(client *domain.ClientDetails, params url.Values) error {
	value := params.Get(ParamResponseType)
	if value == "" {
		return v.reject(apperrors.NewInvalidRequestError(apperrors.ReasonNoResponseType), zap.String("client_id", client.ClientID))
	}

	grantType, ok := domain.ResponseType(value).ImpliedGrant()
	if !ok {
		return v.reject(apperrors.NewUnsupportedResponseTypeError(),
			zap.String("client_id", client.ClientID),
			zap.String("response_type", value))
	}

	if !client.HasGrantType(grantType) {
		return v.reject(apperrors.NewUnauthorizedClientError(),
			zap.String("client_id", client.ClientID),
			zap.String("grant_type", string(grantType)))
	}

	if params.Has(ParamScope) && client.IsScoped {
		if !client.AllowsScopes(domain.ParseScope(params.Get(ParamScope))) {
			return v.reject(apperrors.NewInvalidScopeError(),
				zap.String("client_id", client.ClientID),
				zap.String("scope", params.Get(ParamScope)))
		}
	}

	return nil
}

// ValidatePOST checks the consent submission. A "true" approval passes.
func (v *AuthorizationRequestValidator) ValidatePOST(hasPendingRequest bool, params url.Values) error {
	if !hasPendingRequest {
		return v.reject(apperrors.NewInvalidRequestError(apperrors.ReasonNoAuthorizationRequest))
	}

	approve := params.Get(ParamUserApprove)
	switch approve {
	case "":
		return v.reject(apperrors.NewInvalidRequestError(apperrors.ReasonNoUserConsent))
	case "true":
		return nil
	case "false":
		return v.reject(apperrors.NewAccessDeniedError())
	default:
		return v.reject(apperrors.NewInvalidRequestError(apperrors.ReasonInvalidUserConsent),
			zap.String("user_approve", approve))
	}
}

func (v *AuthorizationRequestValidator) reject(err *apperrors.OAuth2Error, fields ...zap.Field) error {
	fields = append(fields,
		zap.String("error", err.ErrorType),
		zap.String("reason", string(err.Reason)))
	v.logger.Debug("Authorization request rejected", fields...)
	return err
}
