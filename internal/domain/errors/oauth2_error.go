package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuth2 error types as rendered in the "error" response field
const (
	InvalidRequest          = "invalid_request"
	InvalidClient           = "invalid_client"
	InvalidGrant            = "invalid_grant"
	UnauthorizedClient      = "unauthorized_client"
	AccessDenied            = "access_denied"
	InvalidScope            = "invalid_scope"
	UnsupportedResponseType = "unsupported_response_type"
	UnsupportedGrantType    = "unsupported_grant_type"
	ServerError             = "server_error"
)

// Reason pins down why an invalid_request was raised
type Reason string

const (
	ReasonNoClientID             Reason = "NO_CLIENT_ID"
	ReasonNonexistentClientID    Reason = "NONEXISTENT_CLIENT_ID"
	ReasonNoRedirectURI          Reason = "NO_REDIRECT_URI"
	ReasonRedirectURIMismatch    Reason = "REDIRECT_URI_MISMATCH"
	ReasonNoResponseType         Reason = "NO_RESPONSE_TYPE"
	ReasonNoAuthorizationRequest Reason = "NO_AUTHORIZATION_REQUEST"
	ReasonNoUserConsent          Reason = "NO_USER_CONSENT"
	ReasonInvalidUserConsent     Reason = "INVALID_USER_CONSENT"
	ReasonNoGrantType            Reason = "NO_GRANT_TYPE"
	ReasonNoCode                 Reason = "NO_CODE"
	ReasonNoRefreshToken         Reason = "NO_REFRESH_TOKEN"
	ReasonNoToken                Reason = "NO_TOKEN"
	ReasonNoUser                 Reason = "NO_USER"
)

var reasonDescriptions = map[Reason]string{
	ReasonNoClientID:             "No Client ID!",
	ReasonNonexistentClientID:    "Client ID does not exist!",
	ReasonNoRedirectURI:          "No Redirect Uri!",
	ReasonRedirectURIMismatch:    "Redirect Uri Mismatch!",
	ReasonNoResponseType:         "No Response Type!",
	ReasonNoAuthorizationRequest: "No Authorization Request!",
	ReasonNoUserConsent:          "No User Consent!",
	ReasonInvalidUserConsent:     "Invalid User Consent!",
	ReasonNoGrantType:            "No Grant Type!",
	ReasonNoCode:                 "No Authorization Code!",
	ReasonNoRefreshToken:         "No Refresh Token!",
	ReasonNoToken:                "No Token!",
	ReasonNoUser:                 "No Logged In User!",
}

// OAuth2Error is a protocol error surfaced to the endpoint layer.
// ErrorType, HTTPStatus and Description are what the endpoint renders.
type OAuth2Error struct {
	ErrorType   string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Reason      Reason `json:"-"`
	HTTPStatus  int    `json:"-"`
}

// Error returns the error message
func (e *OAuth2Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.ErrorType, e.Reason, e.Description)
	}
	return fmt.Sprintf("%s: %s", e.ErrorType, e.Description)
}

// Is matches another OAuth2Error with the same type and reason
func (e *OAuth2Error) Is(target error) bool {
	t, ok := target.(*OAuth2Error)
	if !ok {
		return false
	}
	return e.ErrorType == t.ErrorType && e.Reason == t.Reason
}

// NewInvalidRequestError creates an invalid_request error for the given reason
func NewInvalidRequestError(reason Reason) *OAuth2Error {
	return &OAuth2Error{
		ErrorType:   InvalidRequest,
		Reason:      reason,
		Description: reasonDescriptions[reason],
		HTTPStatus:  http.StatusBadRequest,
	}
}

// NewNoUserError creates the invalid_request returned when no user is logged in
func NewNoUserError() *OAuth2Error {
	err := NewInvalidRequestError(ReasonNoUser)
	err.HTTPStatus = http.StatusUnauthorized
	return err
}

// NewInvalidClientError creates an invalid_client error
func NewInvalidClientError() *OAuth2Error {
	return &OAuth2Error{
		ErrorType:   InvalidClient,
		Description: "Client authentication failed!",
		HTTPStatus:  http.StatusUnauthorized,
	}
}

// NewInvalidGrantError creates an invalid_grant error
func NewInvalidGrantError(description string) *OAuth2Error {
	return &OAuth2Error{
		ErrorType:   InvalidGrant,
		Description: description,
		HTTPStatus:  http.StatusBadRequest,
	}
}

// NewUnauthorizedClientError creates an unauthorized_client error
func NewUnauthorizedClientError() *OAuth2Error {
	return &OAuth2Error{
		ErrorType:   UnauthorizedClient,
		Description: "Client is not authorized to use this grant type!",
		HTTPStatus:  http.StatusBadRequest,
	}
}

// NewAccessDeniedError creates an access_denied error
func NewAccessDeniedError() *OAuth2Error {
	return &OAuth2Error{
		ErrorType:   AccessDenied,
		Description: "User denied the request!",
		HTTPStatus:  http.StatusForbidden,
	}
}

// NewInvalidScopeError creates an invalid_scope error
func NewInvalidScopeError() *OAuth2Error {
	return &OAuth2Error{
		ErrorType:   InvalidScope,
		Description: "Requested scope is not allowed for this client!",
		HTTPStatus:  http.StatusBadRequest,
	}
}

// NewUnsupportedResponseTypeError creates an unsupported_response_type error
func NewUnsupportedResponseTypeError() *OAuth2Error {
	return &OAuth2Error{
		ErrorType:   UnsupportedResponseType,
		Description: "Response type must be code or token!",
		HTTPStatus:  http.StatusBadRequest,
	}
}

// NewUnsupportedGrantTypeError creates an unsupported_grant_type error
func NewUnsupportedGrantTypeError() *OAuth2Error {
	return &OAuth2Error{
		ErrorType:   UnsupportedGrantType,
		Description: "Grant type is not supported!",
		HTTPStatus:  http.StatusBadRequest,
	}
}

// NewServerError creates a server_error
func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{
		ErrorType:   ServerError,
		Description: description,
		HTTPStatus:  http.StatusInternalServerError,
	}
}

// As extracts an OAuth2Error from err's chain
func As(err error) (*OAuth2Error, bool) {
	var oauthErr *OAuth2Error
	if errors.As(err, &oauthErr) {
		return oauthErr, true
	}
	return nil, false
}

// IsOAuth2Error checks if err carries the given error type
func IsOAuth2Error(err error, errorType string) bool {
	oauthErr, ok := As(err)
	return ok && oauthErr.ErrorType == errorType
}

// HasReason checks if err is an invalid_request with the given reason
func HasReason(err error, reason Reason) bool {
	oauthErr, ok := As(err)
	return ok && oauthErr.Reason == reason
}
