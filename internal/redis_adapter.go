package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lychee-technology/dataeditor"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of redis.Client used by the redis adapter.
type RedisClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HSetNX(ctx context.Context, key, field string, value interface{}) *redis.BoolCmd
	HExists(ctx context.Context, key, field string) *redis.BoolCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
}

// redisAdapter keeps one hash of JSON records per model and a sorted set
// that remembers insertion order.
type redisAdapter struct {
	client   RedisClient
	hashKey  string
	orderKey string
	options  AdapterOptions
	nowFunc  func() time.Time

	mu sync.Mutex
}

// NewRedisAdapter stores the records of modelID under keyPrefix.
func NewRedisAdapter(client RedisClient, keyPrefix, modelID string, options AdapterOptions) dataeditor.Adapter {
	base := modelID
	if keyPrefix != "" {
		base = keyPrefix + ":" + modelID
	}
	return &redisAdapter{
		client:   client,
		hashKey:  base + ":records",
		orderKey: base + ":order",
		options:  options,
		nowFunc:  time.Now,
	}
}

func (a *redisAdapter) List(ctx context.Context) ([]dataeditor.Record, error) {
	keys, err := a.client.ZRange(ctx, a.orderKey, 0, -1).Result()
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to list record keys", err)
	}
	records := make([]dataeditor.Record, 0, len(keys))
	if len(keys) == 0 {
		return records, nil
	}
	values, err := a.client.HMGet(ctx, a.hashKey, keys...).Result()
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to list records", err)
	}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// order entry without a record; skipped until the next delete cleans it up
			continue
		}
		record, err := decodeRecord([]byte(raw))
		if err != nil {
			return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to decode record %s", keys[i]), err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (a *redisAdapter) Read(ctx context.Context, id string) (dataeditor.Record, error) {
	raw, err := a.client.HGet(ctx, a.hashKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to read record %s", id), err)
	}
	record, err := decodeRecord([]byte(raw))
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to decode record %s", id), err)
	}
	return record, nil
}

func (a *redisAdapter) insert(ctx context.Context, key string, record dataeditor.Record, score float64) error {
	payload, err := encodeRecord(record)
	if err != nil {
		return dataeditor.NewAdapterError("failed to encode record", err)
	}
	created, err := a.client.HSetNX(ctx, a.hashKey, key, string(payload)).Result()
	if err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to store record %s", key), err)
	}
	if !created {
		return dataeditor.NewEntryExistsError(key)
	}
	if err := a.client.ZAdd(ctx, a.orderKey, redis.Z{Score: score, Member: key}).Err(); err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to index record %s", key), err)
	}
	return nil
}

func (a *redisAdapter) Create(ctx context.Context, data dataeditor.Record) (dataeditor.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	record := a.options.assignKey(data)
	key := RecordKey(record, a.options.primaryKey())
	if err := a.insert(ctx, key, record, float64(a.nowFunc().UnixMicro())); err != nil {
		return nil, err
	}
	return dataeditor.CloneRecord(record), nil
}

func (a *redisAdapter) Update(ctx context.Context, id string, data dataeditor.Record) (dataeditor.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	found, err := a.client.HExists(ctx, a.hashKey, id).Result()
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to read record %s", id), err)
	}
	if !found {
		return nil, dataeditor.NewEntryNotFoundError(id)
	}

	newKey := RecordKey(data, a.options.primaryKey())
	if newKey == id {
		payload, err := encodeRecord(data)
		if err != nil {
			return nil, dataeditor.NewAdapterError("failed to encode record", err)
		}
		if err := a.client.HSet(ctx, a.hashKey, id, string(payload)).Err(); err != nil {
			return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to store record %s", id), err)
		}
		return dataeditor.CloneRecord(data), nil
	}

	score, err := a.client.ZScore(ctx, a.orderKey, id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to read position of %s", id), err)
	}
	if errors.Is(err, redis.Nil) {
		score = float64(a.nowFunc().UnixMicro())
	}
	if err := a.insert(ctx, newKey, data, score); err != nil {
		return nil, err
	}
	if err := a.remove(ctx, id); err != nil {
		return nil, err
	}
	return dataeditor.CloneRecord(data), nil
}

func (a *redisAdapter) remove(ctx context.Context, id string) error {
	if err := a.client.HDel(ctx, a.hashKey, id).Err(); err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to delete record %s", id), err)
	}
	if err := a.client.ZRem(ctx, a.orderKey, id).Err(); err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to unindex record %s", id), err)
	}
	return nil
}

func (a *redisAdapter) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed, err := a.client.HDel(ctx, a.hashKey, id).Result()
	if err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to delete record %s", id), err)
	}
	if err := a.client.ZRem(ctx, a.orderKey, id).Err(); err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to unindex record %s", id), err)
	}
	if removed == 0 {
		return dataeditor.NewEntryNotFoundError(id)
	}
	return nil
}
