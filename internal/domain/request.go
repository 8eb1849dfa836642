package domain

import (
	"slices"
	"strings"
)

// ResponseType is the response_type of an authorization request
type ResponseType string

const (
	ResponseTypeCode  ResponseType = "code"
	ResponseTypeToken ResponseType = "token"
)

// ImpliedGrant maps a response type onto the grant it belongs to
func (r ResponseType) ImpliedGrant() (GrantType, bool) {
	switch r {
	case ResponseTypeCode:
		return GrantTypeAuthorizationCode, true
	case ResponseTypeToken:
		return GrantTypeImplicit, true
	}
	return "", false
}

// RequestAuth identifies who is asking and on whose behalf
type RequestAuth struct {
	ClientID string `json:"client_id"`
	Username string `json:"username"`
}

// RequestBody carries what is being asked for
type RequestBody struct {
	Scopes       []string     `json:"scopes"`
	IsScoped     bool         `json:"is_scoped"`
	Refreshable  bool         `json:"refreshable"`
	GrantType    GrantType    `json:"grant_type,omitempty"`
	ResponseType ResponseType `json:"response_type,omitempty"`
	RedirectURI  string       `json:"redirect_uri,omitempty"`
	State        string       `json:"state,omitempty"`
}

// OAuth2Request is built once per authorization or token-exchange attempt
type OAuth2Request struct {
	Auth RequestAuth `json:"auth"`
	Body RequestBody `json:"body"`
}

// Clone returns a deep copy of the request
func (r OAuth2Request) Clone() OAuth2Request {
	r.Body.Scopes = slices.Clone(r.Body.Scopes)
	return r
}

// ParseScope splits a space-delimited scope parameter into a set, keeping first-seen order
func ParseScope(scope string) []string {
	fields := strings.Fields(scope)
	scopes := make([]string, 0, len(fields))
	for _, field := range fields {
		if !slices.Contains(scopes, field) {
			scopes = append(scopes, field)
		}
	}
	return scopes
}

// FormatScope joins scopes into a space-delimited parameter
func FormatScope(scopes []string) string {
	return strings.Join(scopes, " ")
}
