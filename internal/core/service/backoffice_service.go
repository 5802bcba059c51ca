package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

const (
	defaultCategory = "General"
	imagePrefix     = "bouquets"
)

type ProductInput struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       string   `json:"price" validate:"required,numeric"`
	SalePrice   string   `json:"sale_price" validate:"omitempty,numeric"`
	Stock       int      `json:"stock" validate:"min=0"`
	Popular     bool     `json:"popular"`
	Images      []string `json:"images" validate:"dive,url"`
}

type PromotionInput struct {
	ID      string     `json:"id"`
	Code    string     `json:"code" validate:"required"`
	Type    string     `json:"type" validate:"required,oneof=percentage fixed"`
	Value   string     `json:"value" validate:"required,numeric"`
	Active  bool       `json:"active"`
	Expires *time.Time `json:"expires"`
}

// BackOfficeService backs the admin pages. Callers must have checked
// IsPrivileged first.
type BackOfficeService struct {
	orders     port.OrderRepository
	products   port.ProductRepository
	promotions port.PromotionRepository
	profiles   port.ProfileRepository
	blobs      port.BlobStorage
	catalog    *CatalogService
	events     eventSink
	log        *zap.Logger
	now        func() time.Time
}

type BackOfficeDeps struct {
	Orders     port.OrderRepository
	Products   port.ProductRepository
	Promotions port.PromotionRepository
	Profiles   port.ProfileRepository
	Blobs      port.BlobStorage
	Catalog    *CatalogService
	Events     *EventDispatcher
}

func NewBackOfficeService(deps BackOfficeDeps, log *zap.Logger) *BackOfficeService {
	s := &BackOfficeService{
		orders:     deps.Orders,
		products:   deps.Products,
		promotions: deps.Promotions,
		profiles:   deps.Profiles,
		blobs:      deps.Blobs,
		catalog:    deps.Catalog,
		log:        log,
		now:        time.Now,
	}
	if deps.Events != nil {
		s.events = deps.Events
	}
	return s
}

// Orders

func (s *BackOfficeService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order along the fulfilment table. Asking for
// the status it already has changes nothing.
func (s *BackOfficeService) UpdateOrderStatus(ctx context.Context, orderID string, next domain.OrderStatus) (domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return domain.Order{}, ErrOrderNotFound
	}

	current := order.Status
	if current == next {
		return *order, nil
	}
	if !current.CanTransitionTo(next) {
		return domain.Order{}, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, current, next)
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, current, next); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return domain.Order{}, ErrOrderNotFound
		}
		if errors.Is(err, port.ErrStatusConflict) {
			return domain.Order{}, fmt.Errorf("%w: %s is no longer %s", ErrIllegalTransition, orderID, current)
		}
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	order.Status = next
	order.UpdatedAt = s.now()

	s.log.Info("order status changed",
		zap.String("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.String("from", string(current)),
		zap.String("to", string(next)),
	)

	if s.events != nil {
		s.events.Enqueue(Event{
			Type: domain.EventOrderStatusChanged,
			Key:  order.Reference,
			Payload: domain.OrderStatusChanged{
				OrderID:   order.ID,
				Reference: order.Reference,
				From:      current,
				To:        next,
				ChangedAt: order.UpdatedAt,
			},
		})
	}
	return *order, nil
}

// Products

func (s *BackOfficeService) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	product, err := productFromInput(in)
	if err != nil {
		return domain.Product{}, err
	}
	now := s.now()
	product.ID = uuid.NewString()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return product, nil
}

func (s *BackOfficeService) UpdateProduct(ctx context.Context, id string, in ProductInput) (domain.Product, error) {
	existing, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	if existing == nil {
		return domain.Product{}, ErrProductNotFound
	}

	product, err := productFromInput(in)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = id
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.now()

	if err := s.saveProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (s *BackOfficeService) DeleteProduct(ctx context.Context, id string) error {
	err := s.products.DeleteProduct(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.catalog.Invalidate(ctx, id)
	return nil
}

// UploadImage stores the file and makes it the product's only image.
func (s *BackOfficeService) UploadImage(ctx context.Context, productID, filename, contentType string, body io.Reader) (domain.Product, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return domain.Product{}, ErrProductNotFound
	}

	objectPath := imagePrefix + "/" + uuid.NewString()
	if ext := strings.TrimPrefix(path.Ext(filename), "."); ext != "" {
		objectPath += "." + strings.ToLower(ext)
	}

	url, err := s.blobs.Upload(ctx, objectPath, contentType, body)
	if err != nil {
		return domain.Product{}, fmt.Errorf("upload image: %w", err)
	}

	product.Images = []string{url}
	product.UpdatedAt = s.now()
	if err := s.saveProduct(ctx, *product); err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *BackOfficeService) saveProduct(ctx context.Context, product domain.Product) error {
	err := s.products.UpdateProduct(ctx, product)
	if errors.Is(err, port.ErrNotFound) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	s.catalog.Invalidate(ctx, product.ID)
	return nil
}

func productFromInput(in ProductInput) (domain.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Price = strings.TrimSpace(in.Price)
	in.SalePrice = strings.TrimSpace(in.SalePrice)
	if err := check(in); err != nil {
		return domain.Product{}, err
	}

	price, err := decimal.NewFromString(in.Price)
	if err != nil || price.IsNegative() {
		return domain.Product{}, &ValidationError{Fields: []string{"price"}}
	}

	var sale decimal.NullDecimal
	if in.SalePrice != "" {
		v, err := decimal.NewFromString(in.SalePrice)
		if err != nil || v.IsNegative() {
			return domain.Product{}, &ValidationError{Fields: []string{"sale_price"}}
		}
		sale = decimal.NewNullDecimal(v)
	}

	category := in.Category
	if category == "" {
		category = defaultCategory
	}

	var images []string
	if len(in.Images) > 0 {
		images = append(images, in.Images...)
	}

	return domain.Product{
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Images:      images,
		Price:       price,
		SalePrice:   sale,
		Stock:       in.Stock,
		Popular:     in.Popular,
	}, nil
}

// Promotions

func (s *BackOfficeService) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	promos, err := s.promotions.ListPromotions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	return promos, nil
}

// SavePromotion inserts when in.ID is empty and updates otherwise.
func (s *BackOfficeService) SavePromotion(ctx context.Context, in PromotionInput) (domain.Promotion, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Type = strings.TrimSpace(in.Type)
	in.Value = strings.TrimSpace(in.Value)
	if err := check(in); err != nil {
		return domain.Promotion{}, err
	}

	value, err := decimal.NewFromString(in.Value)
	if err != nil || !value.IsPositive() {
		return domain.Promotion{}, &ValidationError{Fields: []string{"value"}}
	}
	kind := domain.DiscountType(in.Type)
	if kind == domain.DiscountPercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return domain.Promotion{}, &ValidationError{Fields: []string{"value"}}
	}

	promo := domain.Promotion{
		ID:        in.ID,
		Code:      in.Code,
		Type:      kind,
		Value:     value,
		Active:    in.Active,
		Expires:   in.Expires,
		CreatedAt: s.now(),
	}
	if promo.ID == "" {
		promo.ID = uuid.NewString()
	}

	if err := s.promotions.SavePromotion(ctx, promo); err != nil {
		return domain.Promotion{}, fmt.Errorf("save promotion: %w", err)
	}
	return promo, nil
}

func (s *BackOfficeService) DeletePromotion(ctx context.Context, id string) error {
	err := s.promotions.DeletePromotion(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	return nil
}

// People

func (s *BackOfficeService) Customers(ctx context.Context) ([]domain.Profile, error) {
	profiles, err := s.profiles.ListProfilesByRole(ctx, domain.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return profiles, nil
}

func (s *BackOfficeService) UpdateCustomer(ctx context.Context, userID string, in ProfileInput) error {
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
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// DeleteCustomer removes the profile row only, the credential stays with
// the identity backend.
func (s *BackOfficeService) DeleteCustomer(ctx context.Context, userID string) error {
	err := s.profiles.DeleteProfile(ctx, userID)
	if errors.Is(err, port.ErrNotFound) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

func (s *BackOfficeService) Staff(ctx context.Context) ([]domain.Profile, error) {
	profiles, err := s.profiles.ListProfilesByRole(ctx, domain.RoleAdmin, domain.RoleStaff)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return profiles, nil
}

func (s *BackOfficeService) SetRole(ctx context.Context, userID string, role domain.Role) error {
	if _, ok := domain.ParseRole(string(role)); !ok {
		return &ValidationError{Fields: []string{"role"}}
	}
	err := s.profiles.SetRole(ctx, userID, role)
	if errors.Is(err, port.ErrNotFound) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	s.log.Info("role changed", zap.String("user_id", userID), zap.String("role", string(role)))
	return nil
}

func (s *BackOfficeService) Demote(ctx context.Context, userID string) error {
	return s.SetRole(ctx, userID, domain.RoleUser)
}

// Dashboard

func (s *BackOfficeService) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	stats, err := s.orders.Stats(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}
