package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"go.uber.org/zap"
)

// InMemoryClientRepository implements domain.ClientRegistry with a guarded map
type InMemoryClientRepository struct {
	mu      sync.RWMutex
	clients map[string]domain.ClientDetails
	logger  *zap.Logger
}

// NewInMemoryClientRepository creates an empty in-memory client registry
func NewInMemoryClientRepository(logger *zap.Logger) *InMemoryClientRepository {
	return &InMemoryClientRepository{
		clients: make(map[string]domain.ClientDetails),
		logger:  logger,
	}
}

func (r *InMemoryClientRepository) GetClientByID(ctx context.Context, clientID string) (*domain.ClientDetails, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	if !ok {
		return nil, false, nil
	}
	clone := client.Clone()
	return &clone, true, nil
}

func (r *InMemoryClientRepository) AddClient(ctx context.Context, client domain.ClientDetails) (bool, error) {
	if client.ClientID == "" {
		return false, domain.ErrEmptyClientID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[client.ClientID]; exists {
		r.logger.Debug("Client already registered", zap.String("client_id", client.ClientID))
		return false, nil
	}
	r.clients[client.ClientID] = client.Clone()
	return true, nil
}

func (r *InMemoryClientRepository) UpdateClient(ctx context.Context, client domain.ClientDetails) (bool, error) {
	if client.ClientID == "" {
		return false, domain.ErrEmptyClientID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[client.ClientID]; !exists {
		r.logger.Debug("Client not registered", zap.String("client_id", client.ClientID))
		return false, nil
	}
	r.clients[client.ClientID] = client.Clone()
	return true, nil
}

// ListClients returns every client ordered by ID
func (r *InMemoryClientRepository) ListClients(ctx context.Context) ([]domain.ClientDetails, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]domain.ClientDetails, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client.Clone())
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ClientID < clients[j].ClientID
	})
	return clients, nil
}

func (r *InMemoryClientRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients = make(map[string]domain.ClientDetails)
	return nil
}
