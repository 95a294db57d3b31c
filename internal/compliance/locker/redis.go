package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"credready/internal/platform/redis"
	id "credready/pkg/domain"
)

const (
	keyPrefix    = "credready:recompute-lock:"
	lockTTL      = 10 * time.Second
	retryBackoff = 50 * time.Millisecond
	maxWait      = 3 * time.Second
)

// Redis serializes recomputation across processes with SET NX PX. Locks carry
// a holder token so a slow holder's expired lock is never released by someone
// else. If the lock cannot be acquired within the wait budget an error is
// returned and the caller proceeds unserialized. Recomputation is
// idempotent, so the lock only narrows the lost-update window, it does not
// guard correctness.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Lock(ctx context.Context, clinicianID id.ClinicianID) (func(), error) {
	key := keyPrefix + clinicianID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(maxWait)

	for {
		ok, err := r.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire recompute lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("recompute lock for %s held past wait budget", clinicianID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryBackoff):
		}
	}

	release := func() {
		// Check-and-delete via watch; losing the race to TTL expiry is fine.
		_ = r.client.Watch(context.Background(), func(tx *goredis.Tx) error {
			current, err := tx.Get(context.Background(), key).Result()
			if err != nil || current != token {
				return err
			}
			_, err = tx.TxPipelined(context.Background(), func(pipe goredis.Pipeliner) error {
				pipe.Del(context.Background(), key)
				return nil
			})
			return err
		}, key)
	}
	return release, nil
}
