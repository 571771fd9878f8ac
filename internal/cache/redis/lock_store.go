package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

// deleteIfEqualsLua deletes a key only while its value matches the caller's
// token, so a holder whose lease already expired cannot delete a lock that
// another holder re-acquired in the meantime.
const deleteIfEqualsLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockStore implements domain.LockStore using Redis SETNX with a TTL and a
// Lua-based conditional delete. Both primitives are atomic on the server.
type LockStore struct {
	rdb      *redis.Client
	deleteSc *redis.Script
}

// NewLockStore creates a LockStore backed by the given Client.
func NewLockStore(c *Client) *LockStore {
	return &LockStore{
		rdb:      c.Underlying(),
		deleteSc: redis.NewScript(deleteIfEqualsLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// SetIfAbsent stores value under key with the given TTL only if the key does
// not exist, reporting whether the value was stored.
func (ls *LockStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := ls.rdb.SetNX(ctx, lockKey(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: setnx %s: %w", key, err)
	}
	return ok, nil
}

// DeleteIfEquals deletes key only if its stored value equals value, reporting
// whether a deletion happened.
func (ls *LockStore) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	n, err := ls.deleteSc.Run(ctx, ls.rdb, []string{lockKey(key)}, value).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: conditional delete %s: %w", key, err)
	}
	return n == 1, nil
}

// Compile-time interface check.
var _ domain.LockStore = (*LockStore)(nil)
