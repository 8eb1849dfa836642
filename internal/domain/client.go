package domain

import (
	"context"
	"slices"
)

// GrantType is an OAuth2 grant a client may be allowed to use
type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypeImplicit          GrantType = "implicit"
	GrantTypeRefreshToken      GrantType = "refresh_token"
	GrantTypeJWTAssertion      GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// ParseGrantType maps the wire value of a grant type onto the enumeration
func ParseGrantType(value string) (GrantType, bool) {
	switch GrantType(value) {
	case GrantTypeAuthorizationCode, GrantTypeImplicit, GrantTypeRefreshToken, GrantTypeJWTAssertion:
		return GrantType(value), true
	}
	return "", false
}

// ClientDetails represents a registered relying party
type ClientDetails struct {
	ClientID     string      `json:"client_id" yaml:"client_id"`
	Secret       string      `json:"-" yaml:"secret"` // bcrypt hash
	Scopes       []string    `json:"scopes" yaml:"scopes"`
	IsScoped     bool        `json:"is_scoped" yaml:"is_scoped"`
	GrantTypes   []GrantType `json:"grant_types" yaml:"grant_types"`
	RedirectURIs []string    `json:"redirect_uris" yaml:"redirect_uris"`
	RiscURI      string      `json:"risc_uri,omitempty" yaml:"risc_uri"`
	RiscAud      string      `json:"risc_aud,omitempty" yaml:"risc_aud"`
}

// Clone returns a deep copy so callers never share slices with a registry
func (c ClientDetails) Clone() ClientDetails {
	c.Scopes = slices.Clone(c.Scopes)
	c.GrantTypes = slices.Clone(c.GrantTypes)
	c.RedirectURIs = slices.Clone(c.RedirectURIs)
	return c
}

// HasGrantType reports whether the client is allowed to use the grant
func (c ClientDetails) HasGrantType(grantType GrantType) bool {
	return slices.Contains(c.GrantTypes, grantType)
}

// HasRedirectURI reports whether uri is one of the registered redirect URIs.
// Matching is exact.
func (c ClientDetails) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// AllowsScopes reports whether every requested scope is configured for the client.
// Clients that are not scoped allow anything.
func (c ClientDetails) AllowsScopes(scopes []string) bool {
	if !c.IsScoped {
		return true
	}
	for _, scope := range scopes {
		if !slices.Contains(c.Scopes, scope) {
			return false
		}
	}
	return true
}

// ClientRegistry holds client metadata. Implementations must make AddClient and
// UpdateClient atomic with respect to concurrent calls on the same client ID.
type ClientRegistry interface {
	// GetClientByID returns the client and true, or false when it is not registered
	GetClientByID(ctx context.Context, clientID string) (*ClientDetails, bool, error)

	// AddClient registers a new client; it returns false if the ID is taken
	AddClient(ctx context.Context, client ClientDetails) (bool, error)

	// UpdateClient replaces an existing client; it returns false if the ID is unknown
	UpdateClient(ctx context.Context, client ClientDetails) (bool, error)

	// ListClients returns every registered client
	ListClients(ctx context.Context) ([]ClientDetails, error)

	// Reset removes every client
	Reset(ctx context.Context) error
}
