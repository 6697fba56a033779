// internal/pkg/idempotency/redis_store.go
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keys processed webhook deliveries by (paymentID, eventType)
// so that a provider re-delivery becomes a no-op instead of re-running the
// reconcile writes.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    72 * time.Hour,
	}
}

func (s *RedisStore) key(paymentID, eventType string) string {
	return fmt.Sprintf("webhook:processed:%s:%s", paymentID, eventType)
}

// FirstDelivery atomically claims the (paymentID, eventType) pair. It
// returns true only for the first delivery; concurrent and later retries
// see false.
func (s *RedisStore) FirstDelivery(ctx context.Context, paymentID, eventType string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(paymentID, eventType), time.Now().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook delivery: %w", err)
	}
	return ok, nil
}

// Release drops the claim so the provider's retry can reprocess after a
// failed reconcile.
func (s *RedisStore) Release(ctx context.Context, paymentID, eventType string) error {
	return s.client.Del(ctx, s.key(paymentID, eventType)).Err()
}
