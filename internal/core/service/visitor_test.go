package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

type visitorFixture struct {
	mu     sync.Mutex
	stores map[string]*memoryStore
	auths  map[string]*fakeAuth
	builds int
}

func (f *visitorFixture) deps() VisitorDeps {
	return VisitorDeps{
		LocalStore: func(deviceID string) port.LocalStore {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.builds++
			s, ok := f.stores[deviceID]
			if !ok {
				s = newMemoryStore()
				f.stores[deviceID] = s
			}
			return s
		},
		Auth: func(deviceID string, store port.LocalStore) port.AuthBackend {
			f.mu.Lock()
			defer f.mu.Unlock()
			a := newFakeAuth()
			f.auths[deviceID] = a
			return a
		},
		Profiles: newMockProfiles(thandi()),
		Orders:   newMockOrders(),
		Refs:     NewReferenceGenerator("LB"),
		Settings: testSettings(),
	}
}

func newVisitorFixture() *visitorFixture {
	return &visitorFixture{
		stores: make(map[string]*memoryStore),
		auths:  make(map[string]*fakeAuth),
	}
}

func TestVisitors_GetBuildsOnce(t *testing.T) {
	f := newVisitorFixture()
	vs := NewVisitors(f.deps(), time.Minute, zap.NewNop())
	defer vs.Close()

	var wg sync.WaitGroup
	got := make([]*Visitor, 10)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := vs.Get(context.Background(), "device-a")
			assert.NoError(t, err)
			got[i] = v
		}(i)
	}
	wg.Wait()

	for _, v := range got {
		assert.Same(t, got[0], v)
	}
	assert.Equal(t, 1, f.builds)
	assert.Equal(t, 1, vs.Len())
	assert.Equal(t, domain.SessionAnonymous, got[0].Gate.State())
	assert.Nil(t, got[0].Owner())
}

// ctxStore fails reads once the caller's context is done.
type ctxStore struct {
	*memoryStore
}

func (c ctxStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return c.memoryStore.Get(ctx, key)
}

func TestVisitors_BuildOutlivesCancelledRequest(t *testing.T) {
	f := newVisitorFixture()
	deps := f.deps()
	deps.LocalStore = func(string) port.LocalStore { return ctxStore{newMemoryStore()} }
	vs := NewVisitors(deps, time.Minute, zap.NewNop())
	defer vs.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := vs.Get(ctx, "device-a")
	require.NoError(t, err)
	assert.Zero(t, v.Cart.Len())
	assert.Equal(t, 1, vs.Len())
}

func TestVisitors_RestoresPersistedCart(t *testing.T) {
	ctx := context.Background()
	f := newVisitorFixture()
	vs := NewVisitors(f.deps(), time.Minute, zap.NewNop())
	defer vs.Close()

	v, err := vs.Get(ctx, "device-a")
	require.NoError(t, err)
	_, err = v.Cart.AddItem(ctx, roseBouquet(), nil)
	require.NoError(t, err)

	vs.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, vs.EvictIdle())
	assert.Zero(t, vs.Len())

	again, err := vs.Get(ctx, "device-a")
	require.NoError(t, err)
	assert.NotSame(t, v, again)
	assert.Equal(t, 1, again.Cart.Len(), "cart survives eviction")
}

func TestVisitors_DevicesAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newVisitorFixture()
	vs := NewVisitors(f.deps(), time.Minute, zap.NewNop())
	defer vs.Close()

	a, err := vs.Get(ctx, "device-a")
	require.NoError(t, err)
	b, err := vs.Get(ctx, "device-b")
	require.NoError(t, err)

	_, err = a.Cart.AddItem(ctx, roseBouquet(), nil)
	require.NoError(t, err)
	assert.Zero(t, b.Cart.Len())
}

func TestVisitors_EvictKeepsActive(t *testing.T) {
	ctx := context.Background()
	f := newVisitorFixture()
	vs := NewVisitors(f.deps(), time.Minute, zap.NewNop())
	defer vs.Close()

	base := time.Now()
	vs.now = func() time.Time { return base }
	_, err := vs.Get(ctx, "old")
	require.NoError(t, err)

	vs.now = func() time.Time { return base.Add(50 * time.Second) }
	_, err = vs.Get(ctx, "fresh")
	require.NoError(t, err)

	vs.now = func() time.Time { return base.Add(90 * time.Second) }
	assert.Equal(t, 1, vs.EvictIdle())
	assert.Equal(t, 1, vs.Len())
}

func TestVisitors_LogoutEmptiesLiveCart(t *testing.T) {
	ctx := context.Background()
	f := newVisitorFixture()
	vs := NewVisitors(f.deps(), time.Minute, zap.NewNop())
	defer vs.Close()

	v, err := vs.Get(ctx, "device-a")
	require.NoError(t, err)
	_, err = v.Cart.AddItem(ctx, roseBouquet(), nil)
	require.NoError(t, err)

	require.NoError(t, v.Gate.Logout(ctx))
	assert.Zero(t, v.Cart.Len())
}
