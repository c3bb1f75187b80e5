package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"subreg/pkg/platform/sentinel"
)

// leaseTTL bounds how long a crashed process can wedge a label.
const leaseTTL = 30 * time.Second

// releaseScript frees the lease only if we still hold it, so an expired
// lease re-acquired by another process is never released from here.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker coordinates registrations across processes with SET NX leases.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, label common.Hash) (func(), error) {
	key := "subreg:lock:" + label.Hex()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, leaseTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire label lease: %w", err)
	}
	if !ok {
		return nil, sentinel.ErrLockHeld
	}
	return func() {
		// Release on a background context: the request context may already
		// be done when the deferred unlock runs.
		_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
	}, nil
}
