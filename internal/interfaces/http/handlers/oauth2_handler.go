package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mcygoogle/demo-for-google-identity/internal/application"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	apperrors "github.com/mcygoogle/demo-for-google-identity/internal/domain/errors"
	httperrors "github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/errors"
	"github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/middleware/session"
	"go.uber.org/zap"
)

// ConsentPrompt describes a validated authorization request awaiting the user's decision
type ConsentPrompt struct {
	ClientID     string   `json:"client_id"`
	Username     string   `json:"username"`
	Scopes       []string `json:"scopes"`
	ResponseType string   `json:"response_type"`
	RedirectURI  string   `json:"redirect_uri"`
	State        string   `json:"state,omitempty"`
	ApproveParam string   `json:"approve_param"`
}

// OAuth2Handler serves the authorization, token, revocation and tokeninfo endpoints
type OAuth2Handler struct {
	service   *application.OAuth2Service
	validator *application.AuthorizationRequestValidator
	sessions  *session.Manager
	logger    *zap.Logger
}

func NewOAuth2Handler(
	service *application.OAuth2Service,
	validator *application.AuthorizationRequestValidator,
	sessions *session.Manager,
	logger *zap.Logger,
) *OAuth2Handler {
	return &OAuth2Handler{
		service:   service,
		validator: validator,
		sessions:  sessions,
		logger:    logger,
	}
}

// AuthorizeHandler godoc
// @Summary Start an authorization request
// @Description Validates the request and stores it in the session until the user decides
// @Tags oauth2
// @Produce json
// @Param client_id query string true "Client ID"
// @Param redirect_uri query string true "Redirect URI"
// @Param response_type query string true "code or token"
// @Param scope query string false "Space separated scopes"
// @Param state query string false "Opaque client state"
// @Success 200 {object} ConsentPrompt
// @Failure 302 "Redirect to the client with an error"
// @Failure 400 {object} apperrors.OAuth2Error
// @Failure 401 {object} apperrors.OAuth2Error
// @Router /oauth2/authorize [get]
func (h *OAuth2Handler) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	username, _ := domain.GetUsername(r.Context())
	params := r.URL.Query()

	client, err := h.validator.ValidateRedirectURI(r.Context(), params)
	if err != nil {
		httperrors.RespondWithOAuth2Error(w, err)
		return
	}

	request := application.NewAuthorizationRequest(client, username, params)

	if err := h.validator.ValidateGET(client, params); err != nil {
		httperrors.RedirectWithOAuth2Error(w, r, request.Body.RedirectURI, request.Body.State, err)
		return
	}

	if err := h.sessions.SetPendingRequest(w, r, request); err != nil {
		h.logger.Error("Failed to save pending authorization request", zap.Error(err))
		httperrors.RespondWithOAuth2Error(w, apperrors.NewServerError("failed to save session"))
		return
	}

	h.logger.Debug("Authorization request awaiting consent",
		zap.String("client_id", client.ClientID),
		zap.String("username", username))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(ConsentPrompt{
		ClientID:     client.ClientID,
		Username:     username,
		Scopes:       request.Body.Scopes,
		ResponseType: string(request.Body.ResponseType),
		RedirectURI:  request.Body.RedirectURI,
		State:        request.Body.State,
		ApproveParam: application.ParamUserApprove,
	})
}

// DecisionHandler godoc
// @Summary Submit the user's decision
// @Description Approves or denies the pending authorization request and redirects to the client
// @Tags oauth2
// @Accept x-www-form-urlencoded
// @Param user_approve formData string true "true or false"
// @Success 302 "Redirect to the client"
// @Failure 400 {object} apperrors.OAuth2Error
// @Failure 401 {object} apperrors.OAuth2Error
// @Router /oauth2/authorize [post]
func (h *OAuth2Handler) DecisionHandler(w http.ResponseWriter, r *http.Request) {
	username, _ := domain.GetUsername(r.Context())
	if err := r.ParseForm(); err != nil {
		h.logger.Debug("Failed to parse consent form", zap.Error(err))
	}

	pending, ok := h.sessions.PendingRequest(r)
	if ok && pending.Auth.Username != username {
		h.logger.Info("Pending request belongs to another user",
			zap.String("username", username),
			zap.String("pending_username", pending.Auth.Username))
		ok = false
	}

	if err := h.validator.ValidatePOST(ok, r.Form); err != nil {
		if apperrors.IsOAuth2Error(err, apperrors.AccessDenied) {
			h.clearPending(w, r)
			httperrors.RedirectWithOAuth2Error(w, r, pending.Body.RedirectURI, pending.Body.State, err)
			return
		}
		httperrors.RespondWithOAuth2Error(w, err)
		return
	}

	h.clearPending(w, r)

	location, err := h.service.Authorize(r.Context(), pending)
	if err != nil {
		if oauthErr, ok := apperrors.As(err); ok && oauthErr.ErrorType != apperrors.ServerError {
			httperrors.RedirectWithOAuth2Error(w, r, pending.Body.RedirectURI, pending.Body.State, err)
			return
		}
		httperrors.RespondWithOAuth2Error(w, err)
		return
	}

	http.Redirect(w, r, location, http.StatusFound)
}

func (h *OAuth2Handler) clearPending(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ClearPendingRequest(w, r); err != nil {
		h.logger.Error("Failed to clear pending authorization request", zap.Error(err))
	}
}

// TokenHandler godoc
// @Summary Exchange a grant for tokens
// @Tags oauth2
// @Accept x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "authorization_code or refresh_token"
// @Param code formData string false "Authorization code"
// @Param redirect_uri formData string false "Redirect URI used for the code"
// @Param refresh_token formData string false "Refresh token"
// @Param client_id formData string false "Client ID when not using basic auth"
// @Param client_secret formData string false "Client secret when not using basic auth"
// @Success 200 {object} application.TokenResponse
// @Failure 400 {object} apperrors.OAuth2Error
// @Failure 401 {object} apperrors.OAuth2Error
// @Router /oauth2/token [post]
func (h *OAuth2Handler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Debug("Failed to parse token request", zap.Error(err))
	}

	grantType := r.PostForm.Get("grant_type")
	if grantType == "" {
		httperrors.RespondWithOAuth2Error(w, apperrors.NewInvalidRequestError(apperrors.ReasonNoGrantType))
		return
	}

	var handle func(*domain.ClientDetails) (*application.TokenResponse, error)
	switch domain.GrantType(grantType) {
	case domain.GrantTypeAuthorizationCode:
		handle = func(client *domain.ClientDetails) (*application.TokenResponse, error) {
			return h.service.ExchangeAuthorizationCode(r.Context(), client,
				r.PostForm.Get("code"), r.PostForm.Get(application.ParamRedirectURI))
		}
	case domain.GrantTypeRefreshToken:
		handle = func(client *domain.ClientDetails) (*application.TokenResponse, error) {
			return h.service.RefreshAccessToken(r.Context(), client, r.PostForm.Get("refresh_token"))
		}
	default:
		h.logger.Debug("Unsupported grant type", zap.String("grant_type", grantType))
		httperrors.RespondWithOAuth2Error(w, apperrors.NewUnsupportedGrantTypeError())
		return
	}

	client, err := h.authenticateClient(r)
	if err != nil {
		httperrors.RespondWithOAuth2Error(w, err)
		return
	}

	response, err := handle(client)
	if err != nil {
		httperrors.RespondWithOAuth2Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	json.NewEncoder(w).Encode(response)
}

// RevokeHandler godoc
// @Summary Revoke an access or refresh token
// @Tags oauth2
// @Accept x-www-form-urlencoded
// @Param token formData string true "Token to revoke"
// @Success 200 "Token revoked or unknown"
// @Failure 400 {object} apperrors.OAuth2Error
// @Failure 401 {object} apperrors.OAuth2Error
// @Router /oauth2/revoke [post]
func (h *OAuth2Handler) RevokeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Debug("Failed to parse revocation request", zap.Error(err))
	}

	client, err := h.authenticateClient(r)
	if err != nil {
		httperrors.RespondWithOAuth2Error(w, err)
		return
	}

	if err := h.service.RevokeToken(r.Context(), client, r.PostForm.Get("token")); err != nil {
		httperrors.RespondWithOAuth2Error(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}

// TokenInfoHandler godoc
// @Summary Describe a live access token
// @Tags oauth2
// @Produce json
// @Param access_token query string false "Access token when not sent as a bearer header"
// @Success 200 {object} application.TokenInfo
// @Failure 400 {object} apperrors.OAuth2Error
// @Router /oauth2/tokeninfo [get]
func (h *OAuth2Handler) TokenInfoHandler(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		httperrors.RespondWithOAuth2Error(w, apperrors.NewInvalidRequestError(apperrors.ReasonNoToken))
		return
	}

	info, ok := h.service.IntrospectAccessToken(token)
	if !ok {
		httperrors.RespondWithOAuth2Error(w, apperrors.NewInvalidGrantError("Invalid access token!"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(info)
}

// authenticateClient reads HTTP basic credentials, falling back to the form
func (h *OAuth2Handler) authenticateClient(r *http.Request) (*domain.ClientDetails, error) {
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostForm.Get("client_id")
		clientSecret = r.PostForm.Get("client_secret")
	}
	return h.service.AuthenticateClient(r.Context(), clientID, clientSecret)
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
