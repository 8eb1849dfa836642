package errors

import (
	"encoding/json"
	"net/http"
	"net/url"

	apperrors "github.com/mcygoogle/demo-for-google-identity/internal/domain/errors"
)

// RespondWithOAuth2Error writes err as an OAuth2 error body. Anything that is
// not an OAuth2Error is rendered as server_error.
func RespondWithOAuth2Error(w http.ResponseWriter, err error) {
	oauthErr := toOAuth2Error(err)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if oauthErr.ErrorType == apperrors.InvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	}
	w.WriteHeader(oauthErr.HTTPStatus)
	json.NewEncoder(w).Encode(oauthErr)
}

// RedirectWithOAuth2Error sends the user agent back to a trusted redirect URI
// with the error in the query
func RedirectWithOAuth2Error(w http.ResponseWriter, r *http.Request, redirectURI, state string, err error) {
	oauthErr := toOAuth2Error(err)

	target, parseErr := url.Parse(redirectURI)
	if parseErr != nil {
		RespondWithOAuth2Error(w, oauthErr)
		return
	}

	query := target.Query()
	query.Set("error", oauthErr.ErrorType)
	if oauthErr.Description != "" {
		query.Set("error_description", oauthErr.Description)
	}
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func toOAuth2Error(err error) *apperrors.OAuth2Error {
	if oauthErr, ok := apperrors.As(err); ok {
		return oauthErr
	}
	return apperrors.NewServerError("internal server error")
}
