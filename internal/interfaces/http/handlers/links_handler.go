package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mcygoogle/demo-for-google-identity/internal/application"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	httperrors "github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

// LinkedClient is a client the user has granted access to
type LinkedClient struct {
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes"`
	RiscURI  string   `json:"risc_uri,omitempty"`
}

// LinksHandler lets the logged in user see and unlink the clients holding their tokens
type LinksHandler struct {
	service *application.OAuth2Service
	logger  *zap.Logger
}

func NewLinksHandler(service *application.OAuth2Service, logger *zap.Logger) *LinksHandler {
	return &LinksHandler{service: service, logger: logger}
}

// ListLinksHandler godoc
// @Summary List linked clients
// @Tags links
// @Produce json
// @Success 200 {array} LinkedClient
// @Failure 401 {object} apperrors.OAuth2Error
// @Router /api/links [get]
func (h *LinksHandler) ListLinksHandler(w http.ResponseWriter, r *http.Request) {
	username, _ := domain.GetUsername(r.Context())

	clients, err := h.service.ListLinkedClients(r.Context(), username)
	if err != nil {
		httperrors.RespondWithOAuth2Error(w, err)
		return
	}

	links := make([]LinkedClient, 0, len(clients))
	for _, client := range clients {
		links = append(links, LinkedClient{
			ClientID: client.ClientID,
			Scopes:   client.Scopes,
			RiscURI:  client.RiscURI,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(links)
}

// UnlinkHandler godoc
// @Summary Unlink a client
// @Description Revokes every token the user granted to the client. 404 when the user holds no tokens at all.
// @Tags links
// @Param client_id path string true "Client ID"
// @Success 204
// @Failure 404 {object} httperrors.ErrorResponse
// @Router /api/links/{client_id} [delete]
func (h *LinksHandler) UnlinkHandler(w http.ResponseWriter, r *http.Request) {
	username, _ := domain.GetUsername(r.Context())
	clientID := chi.URLParam(r, "client_id")

	if !h.service.UnlinkClient(r.Context(), username, clientID) {
		httperrors.RespondWithError(w, httperrors.ErrCodeNotFound, "Client is not linked", nil, http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
