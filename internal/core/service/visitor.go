package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

// Visitor is everything one browser owns: its local store, cart, identity
// gate and checkout.
type Visitor struct {
	DeviceID string
	Cart     *CartStore
	Gate     *IdentityGate
	Checkout *CheckoutService

	mu       sync.Mutex
	lastSeen time.Time
}

func (v *Visitor) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *Visitor) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// Owner is the signed-in profile, or nil for a guest.
func (v *Visitor) Owner() *domain.Profile {
	profile, ok := v.Gate.Current()
	if !ok {
		return nil
	}
	return &profile
}

type VisitorDeps struct {
	// LocalStore returns the durable key space of a device
	LocalStore func(deviceID string) port.LocalStore
	// Auth returns an identity client that keeps its session in store
	Auth func(deviceID string, store port.LocalStore) port.AuthBackend

	Profiles port.ProfileRepository
	Orders   port.OrderRepository
	Refs     *ReferenceGenerator
	Events   *EventDispatcher
	Settings CheckoutSettings
}

type Visitors struct {
	deps    VisitorDeps
	idleTTL time.Duration
	log     *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*Visitor
	sfg      singleflight.Group

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewVisitors(deps VisitorDeps, idleTTL time.Duration, log *zap.Logger) *Visitors {
	return &Visitors{
		deps:     deps,
		idleTTL:  idleTTL,
		log:      log,
		now:      time.Now,
		visitors: make(map[string]*Visitor),
		stop:     make(chan struct{}),
	}
}

// Get returns the visitor for deviceID, building it on first use.
func (vs *Visitors) Get(ctx context.Context, deviceID string) (*Visitor, error) {
	if v := vs.lookup(deviceID); v != nil {
		return v, nil
	}

	res, err, _ := vs.sfg.Do(deviceID, func() (interface{}, error) {
		if v := vs.lookup(deviceID); v != nil {
			return v, nil
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		v, err := vs.build(ctx, deviceID)
		if err != nil {
			return nil, err
		}

		vs.mu.Lock()
		vs.visitors[deviceID] = v
		vs.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*Visitor), nil
}

func (vs *Visitors) lookup(deviceID string) *Visitor {
	vs.mu.Lock()
	v, ok := vs.visitors[deviceID]
	vs.mu.Unlock()
	if !ok {
		return nil
	}
	v.touch(vs.now())
	return v
}

func (vs *Visitors) build(ctx context.Context, deviceID string) (*Visitor, error) {
	log := vs.log.With(zap.String("device_id", deviceID))
	store := vs.deps.LocalStore(deviceID)

	cart := NewCartStore(store, log)
	outcome, err := cart.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if outcome != LoadEmpty {
		log.Debug("cart loaded", zap.Stringer("outcome", outcome), zap.Int("items", cart.Len()))
	}

	gate := NewIdentityGate(vs.deps.Auth(deviceID, store), vs.deps.Profiles, store, log)
	gate.OnLocalClear(cart.Reset)
	gate.Start(ctx)

	var events eventSink
	if vs.deps.Events != nil {
		events = vs.deps.Events
	}
	checkout := NewCheckoutService(cart, vs.deps.Orders, vs.deps.Refs, events, vs.deps.Settings, log)

	v := &Visitor{
		DeviceID: deviceID,
		Cart:     cart,
		Gate:     gate,
		Checkout: checkout,
	}
	v.touch(vs.now())
	return v, nil
}

func (vs *Visitors) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.visitors)
}

// StartJanitor evicts idle visitors every interval until Close.
func (vs *Visitors) StartJanitor(interval time.Duration) {
	vs.wg.Add(1)
	go func() {
		defer vs.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-vs.stop:
				return
			case <-ticker.C:
				if n := vs.EvictIdle(); n > 0 {
					vs.log.Debug("evicted idle visitors", zap.Int("count", n))
				}
			}
		}
	}()
}

// EvictIdle drops visitors not seen within the idle TTL. Their persisted
// cart and session survive in the local store.
func (vs *Visitors) EvictIdle() int {
	cutoff := vs.now().Add(-vs.idleTTL)

	vs.mu.Lock()
	var idle []*Visitor
	for id, v := range vs.visitors {
		if v.idleSince().Before(cutoff) {
			idle = append(idle, v)
			delete(vs.visitors, id)
		}
	}
	vs.mu.Unlock()

	for _, v := range idle {
		v.Gate.Close()
	}
	return len(idle)
}

func (vs *Visitors) Close() {
	vs.stopOnce.Do(func() {
		close(vs.stop)
	})
	vs.wg.Wait()

	vs.mu.Lock()
	all := make([]*Visitor, 0, len(vs.visitors))
	for id, v := range vs.visitors {
		all = append(all, v)
		delete(vs.visitors, id)
	}
	vs.mu.Unlock()

	for _, v := range all {
		v.Gate.Close()
	}
}
