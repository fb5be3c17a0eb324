package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"storefront/internal/cart/models"
)

// RedisStore persists the snapshot under a single namespaced key.
type RedisStore struct {
	client redis.Cmdable
	key    string
	logger *slog.Logger
}

func NewRedis(client redis.Cmdable, key string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, key: key, logger: logger}
}

func (s *RedisStore) Load(ctx context.Context) ([]models.Line, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	return decodeLines(data, s.logger), nil
}

func (s *RedisStore) Save(ctx context.Context, lines []models.Line) error {
	data, err := encodeLines(lines)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}
