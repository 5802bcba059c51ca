package port

import (
	"context"

	"github.com/rl1809/liora-bloom/internal/core/domain"
)

type ProductCache interface {
	// GetProduct returns nil on a cache miss
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	SetProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
}
