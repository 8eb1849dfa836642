package application

import (
	"context"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockClientRegistry is a mock implementation of domain.ClientRegistry
type MockClientRegistry struct {
	mock.Mock
}

func (m *MockClientRegistry) GetClientByID(ctx context.Context, clientID string) (*domain.ClientDetails, bool, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.ClientDetails), args.Bool(1), args.Error(2)
}

func (m *MockClientRegistry) AddClient(ctx context.Context, client domain.ClientDetails) (bool, error) {
	args := m.Called(ctx, client)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRegistry) UpdateClient(ctx context.Context, client domain.ClientDetails) (bool, error) {
	args := m.Called(ctx, client)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRegistry) ListClients(ctx context.Context) ([]domain.ClientDetails, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ClientDetails), args.Error(1)
}

func (m *MockClientRegistry) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCodeStore is a mock implementation of domain.CodeStore
type MockCodeStore struct {
	mock.Mock
}

func (m *MockCodeStore) SetCode(ctx context.Context, code string, request domain.OAuth2Request) (bool, error) {
	args := m.Called(ctx, code, request)
	return args.Bool(0), args.Error(1)
}

func (m *MockCodeStore) ConsumeCode(ctx context.Context, code string) (domain.OAuth2Request, bool, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(domain.OAuth2Request), args.Bool(1), args.Error(2)
}

func (m *MockCodeStore) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// googleClient mirrors the built-in seed client
func googleClient() *domain.ClientDetails {
	return &domain.ClientDetails{
		ClientID: "google",
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
	}
}
