package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/liora-bloom/internal/core/domain"
)

const (
	deviceKeyPrefix  = "device:"
	productKeyPrefix = "product:"
)

// Writes a field and pushes the hash's expiry forward in one step.
var setFieldScript = redis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]
local value = ARGV[2]
local ttl = tonumber(ARGV[3])

redis.call('HSET', key, field, value)
if ttl > 0 then
	redis.call('PEXPIRE', key, ttl)
end
return 1
`)

type RedisAdapter struct {
	client     *redis.Client
	deviceTTL  time.Duration
	productTTL time.Duration
}

func NewRedisAdapter(client *redis.Client, deviceTTL, productTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{
		client:     client,
		deviceTTL:  deviceTTL,
		productTTL: productTTL,
	}
}

// DeviceStore returns the local store of one device, a hash under
// device:{id} that expires after deviceTTL without access.
func (r *RedisAdapter) DeviceStore(deviceID string) *DeviceStore {
	return &DeviceStore{
		client: r.client,
		key:    deviceKeyPrefix + deviceID,
		ttl:    r.deviceTTL,
	}
}

type DeviceStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func (d *DeviceStore) Get(ctx context.Context, field string) ([]byte, bool, error) {
	var get *redis.StringCmd
	_, err := d.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, d.key, field)
		if d.ttl > 0 {
			pipe.PExpire(ctx, d.key, d.ttl)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("hget %s: %w", d.key, err)
	}

	value, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("hget %s: %w", d.key, err)
	}
	return value, true, nil
}

func (d *DeviceStore) Set(ctx context.Context, field string, value []byte) error {
	err := setFieldScript.Run(ctx, d.client, []string{d.key}, field, value, d.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("hset %s: %w", d.key, err)
	}
	return nil
}

func (d *DeviceStore) Clear(ctx context.Context) error {
	if err := d.client.Del(ctx, d.key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", d.key, err)
	}
	return nil
}

// Product cache

func (r *RedisAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	data, err := r.client.Get(ctx, productKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode cached product %s: %w", id, err)
	}
	return &p, nil
}

func (r *RedisAdapter) SetProduct(ctx context.Context, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product %s: %w", p.ID, err)
	}
	if err := r.client.Set(ctx, productKeyPrefix+p.ID, data, r.productTTL).Err(); err != nil {
		return fmt.Errorf("set product %s: %w", p.ID, err)
	}
	return nil
}

func (r *RedisAdapter) DeleteProduct(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, productKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("del product %s: %w", id, err)
	}
	return nil
}
