package port

import (
	"context"

	"github.com/rl1809/liora-bloom/internal/core/domain"
)

type ProfileRepository interface {
	// GetProfile returns nil when no profile exists for userID
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, profile domain.Profile) error
	UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) error
	ListProfilesByRole(ctx context.Context, roles ...domain.Role) ([]domain.Profile, error)
	SetRole(ctx context.Context, userID string, role domain.Role) error
	DeleteProfile(ctx context.Context, userID string) error
}

type ProductRepository interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) error
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type OrderRepository interface {
	// CreateOrder inserts the order, ErrDuplicateReference on a reference clash
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// UpdateOrderStatus moves the order from one status to another. It fails
	// with ErrStatusConflict when the order is not in from, ErrNotFound when
	// there is no such order.
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
	Stats(ctx context.Context) (domain.DashboardStats, error)
}

type PromotionRepository interface {
	ListPromotions(ctx context.Context) ([]domain.Promotion, error)
	SavePromotion(ctx context.Context, promo domain.Promotion) error
	DeletePromotion(ctx context.Context, id string) error
}

type ReviewRepository interface {
	ListReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error)
	CreateReview(ctx context.Context, review domain.Review) error
	// DeleteReview removes the review only if it belongs to userID
	DeleteReview(ctx context.Context, userID, reviewID string) error
}
