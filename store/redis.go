package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Under a store's prefix, values live in the "v:" keyspace and the order
// index is the single key "idx", so no caller key can collide with it.
const (
	valueSpace = "v:"
	indexName  = "idx"
)

// clearBatch bounds the number of keys deleted per DEL round trip.
const clearBatch = 512

// Redis is a persistent Store on top of a Redis server. Values live under
// prefix+"v:"+key; a sorted set at prefix+"idx", scored by first-insertion
// time, provides stable enumeration. Several Redis stores may share one server as long as their
// prefixes differ.
//
// Unlike a fail-soft cache layer, every Redis error is returned to the caller.
type Redis struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Prefix scopes every key written by the store. Defaults to "nutcache:".
	Prefix string
}

// NewRedis creates a Redis-backed store. No connection is made until the
// first operation; use Ping to verify connectivity.
func NewRedis(opts RedisOptions) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisFromClient(rdb, opts.Prefix)
}

// NewRedisFromClient wraps an existing client. Closing the store closes the
// client.
func NewRedisFromClient(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "nutcache:"
	}
	return &Redis{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *Redis) indexKey() string { return r.prefix + indexName }

func (r *Redis) valueKey(key string) string { return r.prefix + valueSpace + key }

func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.rdb.ZCard(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *Redis) Key(ctx context.Context, index int) (string, bool, error) {
	if index < 0 {
		return "", false, nil
	}
	keys, err := r.rdb.ZRange(ctx, r.indexKey(), int64(index), int64(index)).Result()
	if err != nil {
		return "", false, err
	}
	if len(keys) == 0 {
		return "", false, nil
	}
	return keys[0], true, nil
}

func (r *Redis) GetItem(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, r.valueKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetItem writes the value and, for new keys only, its index position in a
// single transaction.
func (r *Redis) SetItem(ctx context.Context, key, value string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.valueKey(key), value, 0)
		pipe.ZAddNX(ctx, r.indexKey(), redis.Z{
			Score:  float64(r.now().UnixMicro()),
			Member: key,
		})
		return nil
	})
	return err
}

func (r *Redis) RemoveItem(ctx context.Context, key string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.valueKey(key))
		pipe.ZRem(ctx, r.indexKey(), key)
		return nil
	})
	return err
}

// Clear deletes every indexed key and then the index itself. Keys under the
// prefix that were not written through this store are left alone.
func (r *Redis) Clear(ctx context.Context) error {
	keys, err := r.rdb.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += clearBatch {
		end := min(start+clearBatch, len(keys))
		full := make([]string, 0, end-start)
		for _, k := range keys[start:end] {
			full = append(full, r.valueKey(k))
		}
		if err := r.rdb.Del(ctx, full...).Err(); err != nil {
			return err
		}
	}
	return r.rdb.Del(ctx, r.indexKey()).Err()
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
