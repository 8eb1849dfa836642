// Package seed loads the initial client registrations
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/mcygoogle/demo-for-google-identity/internal/infrastructure/secret"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// File is the layout of a client seed file
type File struct {
	Clients []domain.ClientDetails `yaml:"clients"`
}

// DefaultClients returns the built-in registrations used when no seed file is configured.
// Secrets are plaintext and get hashed on load.
func DefaultClients() []domain.ClientDetails {
	return []domain.ClientDetails{
		{
			ClientID: "google",
			Secret:   "secret",
			Scopes:   []string{"read"},
			IsScoped: true,
			GrantTypes: []domain.GrantType{
				domain.GrantTypeAuthorizationCode,
				domain.GrantTypeImplicit,
				domain.GrantTypeRefreshToken,
				domain.GrantTypeJWTAssertion,
			},
			RedirectURIs: []string{
				"https://www.google.com",
				"https://oauth-redirect.googleusercontent.com/r",
				"https://oauth-redirect-sandbox.googleusercontent.com/r",
			},
			RiscURI: "https://risc.googleapis.com/v1beta/events:report",
			RiscAud: "google_account_linking",
		},
	}
}

// LoadFile reads client registrations from a YAML file
func LoadFile(path string) ([]domain.ClientDetails, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes client registrations from YAML and checks each grant type
func Parse(data []byte) ([]domain.ClientDetails, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i, client := range file.Clients {
		if client.ClientID == "" {
			return nil, fmt.Errorf("client %d: %w", i, domain.ErrEmptyClientID)
		}
		for _, grantType := range client.GrantTypes {
			if _, ok := domain.ParseGrantType(string(grantType)); !ok {
				return nil, fmt.Errorf("client %s: %w: %s", client.ClientID, domain.ErrUnknownGrantType, grantType)
			}
		}
	}
	return file.Clients, nil
}

// Apply hashes plaintext secrets and adds every client to the registry.
// Clients that are already registered are left untouched.
func Apply(ctx context.Context, registry domain.ClientRegistry, clients []domain.ClientDetails, logger *zap.Logger) error {
	for _, client := range clients {
		if !secret.IsHashed(client.Secret) {
			hashed, err := secret.Hash(client.Secret)
			if err != nil {
				return fmt.Errorf("failed to hash secret for client %s: %w", client.ClientID, err)
			}
			client.Secret = hashed
		}

		added, err := registry.AddClient(ctx, client)
		if err != nil {
			return fmt.Errorf("failed to seed client %s: %w", client.ClientID, err)
		}
		if added {
			logger.Info("Seeded client", zap.String("client_id", client.ClientID))
		} else {
			logger.Debug("Client already registered, skipping seed", zap.String("client_id", client.ClientID))
		}
	}
	return nil
}

// Load resolves the clients from path, or the built-in clients when path is empty
func Load(path string) ([]domain.ClientDetails, error) {
	if path == "" {
		return DefaultClients(), nil
	}
	return LoadFile(path)
}
