package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/liora-bloom/internal/core/domain"
)

func setupTestRedis(t *testing.T) (*RedisAdapter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisAdapter(client, 30*24*time.Hour, 15*time.Minute), mr
}

func TestDeviceStore_SetGet(t *testing.T) {
	adapter, mr := setupTestRedis(t)
	ctx := context.Background()
	store := adapter.DeviceStore("dev-1")

	_, ok, err := store.Get(ctx, "liora_blooms_cart")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "liora_blooms_cart", []byte(`[]`)))
	require.NoError(t, store.Set(ctx, "liora_blooms_session", []byte(`{"access_token":"t"}`)))

	value, ok, err := store.Get(ctx, "liora_blooms_cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(value))

	assert.Equal(t, `{"access_token":"t"}`, mr.HGet("device:dev-1", "liora_blooms_session"))
	assert.Equal(t, 30*24*time.Hour, mr.TTL("device:dev-1"))
}

func TestDeviceStore_SlidingExpiry(t *testing.T) {
	adapter, mr := setupTestRedis(t)
	ctx := context.Background()
	store := adapter.DeviceStore("dev-1")

	require.NoError(t, store.Set(ctx, "k", []byte("v")))
	mr.FastForward(29 * 24 * time.Hour)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 30*24*time.Hour, mr.TTL("device:dev-1"), "reads refresh the expiry")

	mr.FastForward(31 * 24 * time.Hour)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeviceStore_ClearIsPerDevice(t *testing.T) {
	adapter, _ := setupTestRedis(t)
	ctx := context.Background()
	a, b := adapter.DeviceStore("dev-a"), adapter.DeviceStore("dev-b")

	require.NoError(t, a.Set(ctx, "k", []byte("a")))
	require.NoError(t, b.Set(ctx, "k", []byte("b")))
	require.NoError(t, a.Clear(ctx))

	_, ok, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", string(value))
}

func TestDeviceStore_ConcurrentWrites(t *testing.T) {
	adapter, mr := setupTestRedis(t)
	ctx := context.Background()
	store := adapter.DeviceStore("dev-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Set(ctx, "k", []byte("v")))
		}()
	}
	wg.Wait()

	assert.Equal(t, "v", mr.HGet("device:dev-1", "k"))
}

func TestProductCache(t *testing.T) {
	adapter, mr := setupTestRedis(t)
	ctx := context.Background()

	miss, err := adapter.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Nil(t, miss)

	product := &domain.Product{
		ID:        "prod-1",
		Name:      "Blush Roses",
		Category:  "Roses",
		Images:    []string{"https://cdn.example.test/a.jpg"},
		Price:     decimal.RequireFromString("250"),
		SalePrice: decimal.NewNullDecimal(decimal.RequireFromString("199.99")),
		Popular:   true,
	}
	require.NoError(t, adapter.SetProduct(ctx, product))
	assert.Equal(t, 15*time.Minute, mr.TTL("product:prod-1"))

	got, err := adapter.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Blush Roses", got.Name)
	assert.Equal(t, product.Images, got.Images)
	assert.True(t, got.Price.Equal(product.Price))
	assert.True(t, got.OnSale())
	assert.Equal(t, "199.99", got.SalePrice.Decimal.String())

	require.NoError(t, adapter.DeleteProduct(ctx, "prod-1"))
	miss, err = adapter.GetProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestProductCache_CorruptEntry(t *testing.T) {
	adapter, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("product:prod-1", "not json"))

	_, err := adapter.GetProduct(context.Background(), "prod-1")
	assert.Error(t, err)
}
