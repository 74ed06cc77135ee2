package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaseKeyPrefix = "content-pipeline:claim:"

// releaseScript deletes the key only while it still holds our owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a SETNX lease keyed by job id
type RedisLease struct {
	client redis.UniversalClient
	owner  string
}

// NewRedisLease creates a lease owned by the given worker id
func NewRedisLease(client redis.UniversalClient, owner string) *RedisLease {
	return &RedisLease{client: client, owner: owner}
}

func leaseKey(jobID string) string {
	return leaseKeyPrefix + jobID
}

// Acquire implements Lease
func (l *RedisLease) Acquire(ctx context.Context, jobID string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, leaseKey(jobID), l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return ok, nil
}

// Release implements Lease
func (l *RedisLease) Release(ctx context.Context, jobID string) error {
	err := releaseScript.Run(ctx, l.client, []string{leaseKey(jobID)}, l.owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
