package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

// CartStorageKey is the local store key holding the serialized cart.
const CartStorageKey = "liora_blooms_cart"

type LoadOutcome int

const (
	// LoadEmpty means nothing was stored, or the stored cart had no lines
	LoadEmpty LoadOutcome = iota
	// LoadRestored means a non-empty cart was read back
	LoadRestored
	// LoadCorrupt means stored data could not be read; the cart starts empty
	LoadCorrupt
)

func (o LoadOutcome) String() string {
	switch o {
	case LoadRestored:
		return "restored"
	case LoadCorrupt:
		return "corrupt"
	default:
		return "empty"
	}
}

// CartStore holds one device's cart. Every mutation is written through to
// the local store before it becomes visible.
type CartStore struct {
	mu    sync.Mutex
	store port.LocalStore
	log   *zap.Logger
	newID func() string
	cart  domain.Cart
}

func NewCartStore(store port.LocalStore, log *zap.Logger) *CartStore {
	return &CartStore{
		store: store,
		log:   log,
		newID: uuid.NewString,
	}
}

func (s *CartStore) Load(ctx context.Context) (LoadOutcome, error) {
	data, ok, err := s.store.Get(ctx, CartStorageKey)
	if err != nil {
		return LoadEmpty, fmt.Errorf("read cart: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Items = nil
	if !ok {
		return LoadEmpty, nil
	}

	items, err := decodeLines(data)
	if err != nil {
		s.log.Warn("discarding unreadable cart", zap.Error(err), zap.Int("bytes", len(data)))
		return LoadCorrupt, nil
	}
	if len(items) == 0 {
		return LoadEmpty, nil
	}

	s.cart.Items = items
	return LoadRestored, nil
}

func (s *CartStore) AddItem(ctx context.Context, product domain.Product, addons []domain.AddOn) (domain.LineItem, error) {
	basePrice, lineTotal := ResolvePrice(product, addons)

	item := domain.LineItem{
		ID:        s.newID(),
		Product:   product.Ref(),
		BasePrice: basePrice,
		AddOns:    append(make([]domain.AddOn, 0, len(addons)), addons...),
		LineTotal: lineTotal,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.LineItem, 0, len(s.cart.Items)+1)
	next = append(next, s.cart.Items...)
	next = append(next, item)

	if err := s.persist(ctx, next); err != nil {
		return domain.LineItem{}, err
	}

	s.cart.Items = next
	s.cart.Open = true
	return item, nil
}

// RemoveItem drops the line with lineID. An unknown id is not an error.
func (s *CartStore) RemoveItem(ctx context.Context, lineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, item := range s.cart.Items {
		if item.ID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	next := make([]domain.LineItem, 0, len(s.cart.Items)-1)
	next = append(next, s.cart.Items[:idx]...)
	next = append(next, s.cart.Items[idx+1:]...)

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.cart.Items = next
	return nil
}

// RemoveLines drops every line whose id is in lineIDs and persists once.
// Lines added since the ids were taken are kept.
func (s *CartStore) RemoveLines(ctx context.Context, lineIDs []string) error {
	drop := make(map[string]struct{}, len(lineIDs))
	for _, id := range lineIDs {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.LineItem, 0, len(s.cart.Items))
	for _, item := range s.cart.Items {
		if _, ok := drop[item.ID]; !ok {
			next = append(next, item)
		}
	}
	if len(next) == len(s.cart.Items) {
		return nil
	}

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.cart.Items = next
	return nil
}

func (s *CartStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, nil); err != nil {
		return err
	}
	s.cart.Items = nil
	return nil
}

// Reset empties the in-memory cart without writing, for when the local
// store has already been wiped.
func (s *CartStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = domain.Cart{}
}

func (s *CartStore) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

func (s *CartStore) Items() []domain.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LineItem(nil), s.cart.Items...)
}

func (s *CartStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cart.Items)
}

// Snapshot returns a copy of the cart that later mutations do not affect.
func (s *CartStore) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Cart{
		Items: append([]domain.LineItem(nil), s.cart.Items...),
		Open:  s.cart.Open,
	}
}

func (s *CartStore) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Open
}

// SetOpen toggles the slide-over panel flag. It is never persisted.
func (s *CartStore) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Open = open
}

func (s *CartStore) persist(ctx context.Context, items []domain.LineItem) error {
	data, err := encodeLines(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.store.Set(ctx, CartStorageKey, data); err != nil {
		return fmt.Errorf("write cart: %w", err)
	}
	return nil
}
