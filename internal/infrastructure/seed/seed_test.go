package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/repository"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seedYAML = `
clients:
  - client_id: google
    secret: secret
    scopes: [read]
    is_scoped: true
    grant_types: [authorization_code, refresh_token]
    redirect_uris:
      - https://www.google.com
    risc_uri: https://risc.googleapis.com/v1beta/events:report
    risc_aud: google_account_linking
  - client_id: internal
    secret: other
    grant_types: [implicit]
    redirect_uris: [https://internal.example.com/cb]
`

func TestParse(t *testing.T) {
	clients, err := Parse([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, clients, 2)

	assert.Equal(t, "google", clients[0].ClientID)
	assert.Equal(t, "secret", clients[0].Secret)
	assert.True(t, clients[0].IsScoped)
	assert.Equal(t, []domain.GrantType{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken}, clients[0].GrantTypes)
	assert.Equal(t, "google_account_linking", clients[0].RiscAud)

	assert.False(t, clients[1].IsScoped)
	assert.Equal(t, []domain.GrantType{domain.GrantTypeImplicit}, clients[1].GrantTypes)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "not yaml", data: "clients: [", wantErr: nil},
		{name: "missing id", data: "clients:\n  - secret: x\n", wantErr: domain.ErrEmptyClientID},
		{name: "unknown grant", data: "clients:\n  - client_id: a\n    grant_types: [password]\n", wantErr: domain.ErrUnknownGrantType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	clients, err := Load("")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "google", clients[0].ClientID)
	assert.Len(t, clients[0].RedirectURIs, 3)

	path := filepath.Join(t.TempDir(), "clients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))
	clients, err = Load(path)
	require.NoError(t, err)
	assert.Len(t, clients, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	registry := repository.NewInMemoryClientRepository(zap.NewNop())

	require.NoError(t, Apply(ctx, registry, DefaultClients(), zap.NewNop()))

	client, found, err := registry.GetClientByID(ctx, "google")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEqual(t, "secret", client.Secret)
	assert.NoError(t, secret.Check("secret", client.Secret))

	// a second pass keeps the first registration
	reseed := DefaultClients()
	reseed[0].Scopes = []string{"write"}
	require.NoError(t, Apply(ctx, registry, reseed, zap.NewNop()))

	client, _, err = registry.GetClientByID(ctx, "google")
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, client.Scopes)
}

func TestApply_KeepsHashedSecret(t *testing.T) {
	ctx := context.Background()
	registry := repository.NewInMemoryClientRepository(zap.NewNop())

	hashed, err := secret.Hash("secret")
	require.NoError(t, err)
	clients := DefaultClients()
	clients[0].Secret = hashed

	require.NoError(t, Apply(ctx, registry, clients, zap.NewNop()))

	client, _, err := registry.GetClientByID(ctx, "google")
	require.NoError(t, err)
	assert.Equal(t, hashed, client.Secret)
}
