package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultCodeKeyPrefix namespaces authorization code keys
const DefaultCodeKeyPrefix = "oauth2:code:"

// RedisCodeRepository implements domain.CodeStore on Redis. SET NX binds a
// code and GETDEL consumes it, each a single atomic command.
type RedisCodeRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCodeRepository creates a Redis backed code store whose codes expire after ttl
func NewRedisCodeRepository(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *RedisCodeRepository {
	if prefix == "" {
		prefix = DefaultCodeKeyPrefix
	}
	return &RedisCodeRepository{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *RedisCodeRepository) SetCode(ctx context.Context, code string, request domain.OAuth2Request) (bool, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return false, fmt.Errorf("failed to marshal authorization request: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(code), data, r.ttl).Result()
	if err != nil {
		r.logger.Error("Failed to store authorization code", zap.Error(err))
		return false, err
	}
	return ok, nil
}

func (r *RedisCodeRepository) ConsumeCode(ctx context.Context, code string) (domain.OAuth2Request, bool, error) {
	data, err := r.client.GetDel(ctx, r.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OAuth2Request{}, false, nil
		}
		r.logger.Error("Failed to consume authorization code", zap.Error(err))
		return domain.OAuth2Request{}, false, err
	}

	var request domain.OAuth2Request
	if err := json.Unmarshal(data, &request); err != nil {
		return domain.OAuth2Request{}, false, fmt.Errorf("failed to unmarshal authorization request: %w", err)
	}
	return request, true, nil
}

// Reset deletes every key under the prefix
func (r *RedisCodeRepository) Reset(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *RedisCodeRepository) key(code string) string {
	return r.prefix + code
}
