package repository

import (
	"context"
	"sync"
	"time"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"go.uber.org/zap"
)

type pendingCode struct {
	request   domain.OAuth2Request
	expiresAt time.Time
}

// InMemoryCodeRepository implements domain.CodeStore with a single mutex, which
// makes SetCode and ConsumeCode linearizable per code
type InMemoryCodeRepository struct {
	mu     sync.Mutex
	codes  map[string]pendingCode
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewInMemoryCodeRepository creates an empty code store. A zero ttl keeps
// codes until they are consumed.
func NewInMemoryCodeRepository(ttl time.Duration, logger *zap.Logger) *InMemoryCodeRepository {
	return &InMemoryCodeRepository{
		codes:  make(map[string]pendingCode),
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

func (r *InMemoryCodeRepository) SetCode(ctx context.Context, code string, request domain.OAuth2Request) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if existing, ok := r.codes[code]; ok && !r.expired(existing, now) {
		return false, nil
	}

	pending := pendingCode{request: request.Clone()}
	if r.ttl > 0 {
		pending.expiresAt = now.Add(r.ttl)
	}
	r.codes[code] = pending
	return true, nil
}

func (r *InMemoryCodeRepository) ConsumeCode(ctx context.Context, code string) (domain.OAuth2Request, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, ok := r.codes[code]
	if !ok {
		return domain.OAuth2Request{}, false, nil
	}
	delete(r.codes, code)

	if r.expired(pending, r.now()) {
		r.logger.Debug("Authorization code expired", zap.String("client_id", pending.request.Auth.ClientID))
		return domain.OAuth2Request{}, false, nil
	}
	return pending.request, true, nil
}

func (r *InMemoryCodeRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codes = make(map[string]pendingCode)
	return nil
}

func (r *InMemoryCodeRepository) expired(pending pendingCode, now time.Time) bool {
	return !pending.expiresAt.IsZero() && !now.Before(pending.expiresAt)
}
