package valkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/codegate/lib/store"
	valkey "github.com/redis/go-redis/v9"
)

// Store implements store.Interface on top of valkey or any redis-compatible
// server. Expiry is delegated to the server, so every codegate instance
// pointed at the same database sees the same challenges.
type Store struct {
	rdb valkey.UniversalClient
}

// New wraps an existing client. The caller owns the client's lifecycle.
func New(rdb valkey.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("can't delete from valkey: %w", err)
	}

	switch n {
	case 0:
		return fmt.Errorf("%w: %d key(s) deleted", store.ErrNotFound, n)
	default:
		return nil
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, valkey.Nil) {
			return nil, fmt.Errorf("%w: %w", store.ErrNotFound, err)
		}

		return nil, fmt.Errorf("can't fetch from valkey: %w", err)
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	if _, err := s.rdb.Set(ctx, key, value, expiry).Result(); err != nil {
		return fmt.Errorf("can't set %q in valkey: %w", key, err)
	}

	return nil
}
