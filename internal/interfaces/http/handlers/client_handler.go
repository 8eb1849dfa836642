package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/secret"
	httperrors "github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// ClientRequest represents the request to create/update an OAuth2 client
type ClientRequest struct {
	ClientID     string   `json:"client_id"`
	Secret       string   `json:"secret"`
	Scopes       []string `json:"scopes"`
	IsScoped     bool     `json:"is_scoped"`
	GrantTypes   []string `json:"grant_types"`
	RedirectURIs []string `json:"redirect_uris"`
	RiscURI      string   `json:"risc_uri"`
	RiscAud      string   `json:"risc_aud"`
}

// ClientHandler handles OAuth2 client management
type ClientHandler struct {
	clients domain.ClientRegistry
	logger  *zap.Logger
}

// NewClientHandler creates a new ClientHandler
func NewClientHandler(clients domain.ClientRegistry, logger *zap.Logger) *ClientHandler {
	return &ClientHandler{
		clients: clients,
		logger:  logger,
	}
}

// CreateClientHandler godoc
// @Summary Register a client
// @Tags clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param client body ClientRequest true "Client registration"
// @Success 201 {object} domain.ClientDetails
// @Failure 400 {object} httperrors.ErrorResponse
// @Failure 409 {object} httperrors.ErrorResponse
// @Router /api/oauth2/clients [post]
func (h *ClientHandler) CreateClientHandler(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Failed to decode request body", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Invalid request body", nil, http.StatusBadRequest)
		return
	}

	if errs := validateClientRequest(req, true); errs != nil {
		h.logger.Debug("Invalid client request", zap.Any("validation_errors", errs))
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Validation failed", *errs, http.StatusBadRequest)
		return
	}

	client, err := h.buildClient(req)
	if err != nil {
		h.logger.Error("Failed to hash client secret", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to create client", nil, http.StatusInternalServerError)
		return
	}

	added, err := h.clients.AddClient(r.Context(), client)
	if err != nil {
		h.logger.Error("Failed to create client", zap.String("client_id", client.ClientID), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to create client", nil, http.StatusInternalServerError)
		return
	}
	if !added {
		httperrors.RespondWithError(w, httperrors.ErrCodeConflict, "Client already exists", nil, http.StatusConflict)
		return
	}

	h.logger.Info("Client created", zap.String("client_id", client.ClientID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(client)
}

// UpdateClientHandler godoc
// @Summary Replace a client registration
// @Description An empty secret keeps the current one
// @Tags clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param client_id path string true "Client ID"
// @Param client body ClientRequest true "Client registration"
// @Success 200 {object} domain.ClientDetails
// @Failure 400 {object} httperrors.ErrorResponse
// @Failure 404 {object} httperrors.ErrorResponse
// @Router /api/oauth2/clients/{client_id} [put]
func (h *ClientHandler) UpdateClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")

	var req ClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Failed to decode request body", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Invalid request body", nil, http.StatusBadRequest)
		return
	}
	req.ClientID = clientID

	if errs := validateClientRequest(req, false); errs != nil {
		h.logger.Debug("Invalid client request", zap.Any("validation_errors", errs))
		httperrors.RespondWithError(w, httperrors.ErrCodeValidation, "Validation failed", *errs, http.StatusBadRequest)
		return
	}

	existing, ok, err := h.clients.GetClientByID(r.Context(), clientID)
	if err != nil {
		h.logger.Error("Failed to find client", zap.String("client_id", clientID), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to find client", nil, http.StatusInternalServerError)
		return
	}
	if !ok {
		httperrors.RespondWithError(w, httperrors.ErrCodeNotFound, "Client not found", nil, http.StatusNotFound)
		return
	}

	client, err := h.buildClient(req)
	if err != nil {
		h.logger.Error("Failed to hash client secret", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to update client", nil, http.StatusInternalServerError)
		return
	}
	if req.Secret == "" {
		client.Secret = existing.Secret
	}

	updated, err := h.clients.UpdateClient(r.Context(), client)
	if err != nil {
		h.logger.Error("Failed to update client", zap.String("client_id", clientID), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to update client", nil, http.StatusInternalServerError)
		return
	}
	if !updated {
		httperrors.RespondWithError(w, httperrors.ErrCodeNotFound, "Client not found", nil, http.StatusNotFound)
		return
	}

	h.logger.Info("Client updated", zap.String("client_id", clientID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(client)
}

// ListClientsHandler godoc
// @Summary List clients
// @Tags clients
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.ClientDetails
// @Router /api/oauth2/clients [get]
func (h *ClientHandler) ListClientsHandler(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.ListClients(r.Context())
	if err != nil {
		h.logger.Error("Failed to list clients", zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to list clients", nil, http.StatusInternalServerError)
		return
	}
	if clients == nil {
		clients = []domain.ClientDetails{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(clients)
}

// GetClientHandler godoc
// @Summary Get a client
// @Tags clients
// @Produce json
// @Security BearerAuth
// @Param client_id path string true "Client ID"
// @Success 200 {object} domain.ClientDetails
// @Failure 404 {object} httperrors.ErrorResponse
// @Router /api/oauth2/clients/{client_id} [get]
func (h *ClientHandler) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")

	client, ok, err := h.clients.GetClientByID(r.Context(), clientID)
	if err != nil {
		h.logger.Error("Failed to find client", zap.String("client_id", clientID), zap.Error(err))
		httperrors.RespondWithError(w, httperrors.ErrCodeInternal, "Failed to find client", nil, http.StatusInternalServerError)
		return
	}
	if !ok {
		httperrors.RespondWithError(w, httperrors.ErrCodeNotFound, "Client not found", nil, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(client)
}

func (h *ClientHandler) buildClient(req ClientRequest) (domain.ClientDetails, error) {
	client := domain.ClientDetails{
		ClientID:     req.ClientID,
		Scopes:       req.Scopes,
		IsScoped:     req.IsScoped,
		RedirectURIs: req.RedirectURIs,
		RiscURI:      req.RiscURI,
		RiscAud:      req.RiscAud,
	}
	if client.Scopes == nil {
		client.Scopes = []string{}
	}
	for _, value := range req.GrantTypes {
		grantType, _ := domain.ParseGrantType(value)
		client.GrantTypes = append(client.GrantTypes, grantType)
	}

	if req.Secret != "" {
		hash, err := secret.Hash(req.Secret)
		if err != nil {
			return domain.ClientDetails{}, err
		}
		client.Secret = hash
	}
	return client, nil
}

// validateClientRequest validates the client request
func validateClientRequest(req ClientRequest, create bool) *httperrors.FieldErrors {
	var errors httperrors.FieldErrors

	if req.ClientID == "" {
		errors.Add("client_id", "Client ID is required")
	}
	if create && req.Secret == "" {
		errors.Add("secret", "Client secret is required")
	}
	if len(req.RedirectURIs) == 0 {
		errors.Add("redirect_uris", "At least one redirect URI is required")
	}
	if len(req.GrantTypes) == 0 {
		errors.Add("grant_types", "At least one grant type is required")
	}
	for _, value := range req.GrantTypes {
		if _, ok := domain.ParseGrantType(value); !ok {
			errors.Add("grant_types", "Unknown grant type "+value)
		}
	}
	if req.IsScoped && len(req.Scopes) == 0 {
		errors.Add("scopes", "A scoped client needs at least one scope")
	}

	if errors.HasErrors() {
		return &errors
	}
	return nil
}
