package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

const pendingKeyPrefix = "escrow:pending:"

// takePendingScript deletes the pending marker only if it exists, so the
// check and the delete cannot interleave with another resolver.
var takePendingScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 1 then
	redis.call('DEL', key)
	return 1
end

return 0
`)

// RedisStore keeps the order existence map in Redis. Markers carry no TTL:
// a pending order stays pending until resolved.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) MarkPending(ctx context.Context, id common.Hash) (bool, error) {
	return r.client.SetNX(ctx, pendingKey(id), 1, 0).Result()
}

func (r *RedisStore) TakePending(ctx context.Context, id common.Hash) (bool, error) {
	result, err := takePendingScript.Run(ctx, r.client, []string{pendingKey(id)}).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *RedisStore) RestorePending(ctx context.Context, id common.Hash) error {
	return r.client.Set(ctx, pendingKey(id), 1, 0).Err()
}

func pendingKey(id common.Hash) string {
	return pendingKeyPrefix + id.Hex()
}
