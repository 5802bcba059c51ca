package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

// sharedFetchTimeout bounds a singleflight call, which runs detached from
// the request that started it.
const sharedFetchTimeout = 10 * time.Second

// AddOnCatalog is the fixed list of extras a shopper can attach to a
// bouquet.
type AddOnCatalog struct {
	ordered []domain.AddOn
	byID    map[string]domain.AddOn
}

func NewAddOnCatalog(addons []domain.AddOn) *AddOnCatalog {
	c := &AddOnCatalog{
		ordered: append([]domain.AddOn(nil), addons...),
		byID:    make(map[string]domain.AddOn, len(addons)),
	}
	for _, a := range addons {
		c.byID[a.ID] = a
	}
	return c
}

func (c *AddOnCatalog) List() []domain.AddOn {
	return append([]domain.AddOn(nil), c.ordered...)
}

// Resolve maps ids to add-ons in the order given. Repeated ids are kept.
func (c *AddOnCatalog) Resolve(ids []string) ([]domain.AddOn, error) {
	out := make([]domain.AddOn, 0, len(ids))
	for _, id := range ids {
		a, ok := c.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAddOn, id)
		}
		out = append(out, a)
	}
	return out, nil
}

type CatalogService struct {
	products port.ProductRepository
	cache    port.ProductCache
	addons   *AddOnCatalog
	log      *zap.Logger
	sfg      singleflight.Group
}

func NewCatalogService(products port.ProductRepository, cache port.ProductCache, addons *AddOnCatalog, log *zap.Logger) *CatalogService {
	return &CatalogService{
		products: products,
		cache:    cache,
		addons:   addons,
		log:      log,
	}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	v, err, _ := s.sfg.Do(id, func() (interface{}, error) {
		// shared by every waiter, so one caller going away must not fail the rest
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		cached, err := s.cache.GetProduct(ctx, id)
		if err != nil {
			s.log.Warn("product cache read failed", zap.String("product_id", id), zap.Error(err))
		}
		if cached != nil {
			return *cached, nil
		}

		product, err := s.products.GetProduct(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			return nil, ErrProductNotFound
		}

		if err := s.cache.SetProduct(ctx, product); err != nil {
			s.log.Warn("product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
		return *product, nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return v.(domain.Product), nil
}

// Related returns up to n other products from the same category.
func (s *CatalogService) Related(ctx context.Context, product domain.Product, n int) ([]domain.Product, error) {
	if n <= 0 {
		return nil, nil
	}
	candidates, err := s.products.ListProducts(ctx, domain.ProductFilter{Category: product.Category})
	if err != nil {
		return nil, fmt.Errorf("list related: %w", err)
	}

	related := make([]domain.Product, 0, n)
	for _, p := range candidates {
		if p.ID == product.ID {
			continue
		}
		related = append(related, p)
		if len(related) == n {
			break
		}
	}
	return related, nil
}

func (s *CatalogService) AddOns() []domain.AddOn {
	return s.addons.List()
}

func (s *CatalogService) ResolveAddOns(ids []string) ([]domain.AddOn, error) {
	return s.addons.Resolve(ids)
}

// Invalidate drops the cached copy after a write.
func (s *CatalogService) Invalidate(ctx context.Context, id string) {
	if err := s.cache.DeleteProduct(ctx, id); err != nil {
		s.log.Warn("product cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}
