package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

type ReviewInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Rating    int    `json:"rating" validate:"min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

type ProfileInput struct {
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone"`
}

// AccountService serves the signed-in customer's own pages.
type AccountService struct {
	orders   port.OrderRepository
	profiles port.ProfileRepository
	reviews  port.ReviewRepository
	products port.ProductRepository
}

func NewAccountService(
	orders port.OrderRepository,
	profiles port.ProfileRepository,
	reviews port.ReviewRepository,
	products port.ProductRepository,
) *AccountService {
	return &AccountService{
		orders:   orders,
		profiles: profiles,
		reviews:  reviews,
		products: products,
	}
}

func (s *AccountService) Orders(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *AccountService) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return domain.Profile{}, ErrProfileNotFound
	}
	return *profile, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := check(in); err != nil {
		return err
	}

	err := s.profiles.UpdateProfile(ctx, userID, domain.ProfileUpdate{FullName: in.FullName, Phone: in.Phone})
	if errors.Is(err, port.ErrNotFound) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *AccountService) Reviews(ctx context.Context, userID string) ([]domain.Review, error) {
	reviews, err := s.reviews.ListReviewsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func (s *AccountService) AddReview(ctx context.Context, userID string, in ReviewInput) (domain.Review, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Comment = strings.TrimSpace(in.Comment)
	if err := check(in); err != nil {
		return domain.Review{}, err
	}

	product, err := s.products.GetProduct(ctx, in.ProductID)
	if err != nil {
		return domain.Review{}, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return domain.Review{}, ErrProductNotFound
	}

	review := domain.Review{
		ID:          uuid.NewString(),
		ProductID:   product.ID,
		ProductName: product.Name,
		UserID:      userID,
		Rating:      in.Rating,
		Comment:     in.Comment,
		CreatedAt:   time.Now(),
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		return domain.Review{}, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

// DeleteReview only removes reviews written by userID.
func (s *AccountService) DeleteReview(ctx context.Context, userID, reviewID string) error {
	err := s.reviews.DeleteReview(ctx, userID, reviewID)
	if errors.Is(err, port.ErrNotFound) {
		return ErrReviewNotFound
	}
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}
