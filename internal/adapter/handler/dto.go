package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/core/service"
)

type ProductDTO struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category"`
	Images      []string         `json:"images"`
	Price       decimal.Decimal  `json:"price"`
	SalePrice   *decimal.Decimal `json:"sale_price,omitempty"`
	OnSale      bool             `json:"on_sale"`
	Stock       int              `json:"stock"`
	Popular     bool             `json:"popular"`
}

func toProductDTO(p domain.Product) ProductDTO {
	dto := ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Images:      p.Images,
		Price:       p.Price,
		OnSale:      p.OnSale(),
		Stock:       p.Stock,
		Popular:     p.Popular,
	}
	if dto.Images == nil {
		dto.Images = []string{}
	}
	if p.SalePrice.Valid {
		sale := p.SalePrice.Decimal
		dto.SalePrice = &sale
	}
	return dto
}

func toProductDTOs(products []domain.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		out = append(out, toProductDTO(p))
	}
	return out
}

type AddOnDTO struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

func toAddOnDTOs(addons []domain.AddOn) []AddOnDTO {
	out := make([]AddOnDTO, 0, len(addons))
	for _, a := range addons {
		out = append(out, AddOnDTO{ID: a.ID, Name: a.Name, Price: a.Price})
	}
	return out
}

type LineItemDTO struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category,omitempty"`
	Image     string          `json:"image,omitempty"`
	BasePrice decimal.Decimal `json:"base_price"`
	AddOns    []AddOnDTO      `json:"addons"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func toLineItemDTO(item domain.LineItem) LineItemDTO {
	dto := LineItemDTO{
		ID:        item.ID,
		ProductID: item.Product.ID,
		Name:      item.Product.Name,
		Category:  item.Product.Category,
		BasePrice: item.BasePrice,
		AddOns:    toAddOnDTOs(item.AddOns),
		LineTotal: item.LineTotal,
	}
	if len(item.Product.Images) > 0 {
		dto.Image = item.Product.Images[0]
	}
	return dto
}

func toLineItemDTOs(items []domain.LineItem) []LineItemDTO {
	out := make([]LineItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toLineItemDTO(item))
	}
	return out
}

type CartDTO struct {
	Items []LineItemDTO   `json:"items"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
	Open  bool            `json:"open"`
}

func toCartDTO(cart domain.Cart) CartDTO {
	return CartDTO{
		Items: toLineItemDTOs(cart.Items),
		Count: len(cart.Items),
		Total: cart.Total(),
		Open:  cart.Open,
	}
}

type AddressDTO struct {
	Street     string `json:"street_address"`
	Unit       string `json:"unit,omitempty"`
	Suburb     string `json:"suburb,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Phone      string `json:"phone"`
}

type OrderDTO struct {
	ID            string          `json:"id"`
	Reference     string          `json:"reference"`
	UserID        *string         `json:"user_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerPhone string          `json:"customer_phone"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	DeliveryDate  string          `json:"delivery_date"`
	Items         []LineItemDTO   `json:"items"`
	Shipping      AddressDTO      `json:"shipping_address"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toOrderDTO(o domain.Order) OrderDTO {
	return OrderDTO{
		ID:            o.ID,
		Reference:     o.Reference,
		UserID:        o.UserID,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		CustomerPhone: o.CustomerPhone,
		Total:         o.Total,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		DeliveryDate:  o.DeliveryDate.Format(time.DateOnly),
		Items:         toLineItemDTOs(o.Items),
		Shipping: AddressDTO{
			Street:     o.Shipping.Street,
			Unit:       o.Shipping.Unit,
			Suburb:     o.Shipping.Suburb,
			City:       o.Shipping.City,
			PostalCode: o.Shipping.PostalCode,
			Phone:      o.Shipping.Phone,
		},
		CreatedAt: o.CreatedAt,
	}
}

func toOrderDTOs(orders []domain.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	return out
}

type BankDTO struct {
	Bank          string `json:"bank"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BranchCode    string `json:"branch_code"`
	ProofEmail    string `json:"proof_email"`
}

type ReceiptDTO struct {
	Reference  string          `json:"reference"`
	Order      OrderDTO        `json:"order"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	CourierFee decimal.Decimal `json:"courier_fee"`
	Total      decimal.Decimal `json:"total"`
	Bank       BankDTO         `json:"bank"`
}

func toReceiptDTO(r service.Receipt) ReceiptDTO {
	return ReceiptDTO{
		Reference:  r.Order.Reference,
		Order:      toOrderDTO(r.Order),
		Subtotal:   r.Subtotal,
		CourierFee: r.CourierFee,
		Total:      r.Order.Total,
		Bank: BankDTO{
			Bank:          r.Bank.Bank,
			AccountName:   r.Bank.AccountName,
			AccountNumber: r.Bank.AccountNumber,
			BranchCode:    r.Bank.BranchCode,
			ProofEmail:    r.Bank.ProofEmail,
		},
	}
}

type ProfileDTO struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
}

func toProfileDTO(p domain.Profile) ProfileDTO {
	return ProfileDTO{ID: p.ID, FullName: p.FullName, Email: p.Email, Phone: p.Phone, Role: string(p.Role)}
}

func toProfileDTOs(profiles []domain.Profile) []ProfileDTO {
	out := make([]ProfileDTO, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileDTO(p))
	}
	return out
}

type SessionDTO struct {
	State         string      `json:"state"`
	Profile       *ProfileDTO `json:"profile,omitempty"`
	Privileged    bool        `json:"privileged"`
	CheckoutEntry string      `json:"checkout_entry"`
}

func toSessionDTO(gate *service.IdentityGate) SessionDTO {
	dto := SessionDTO{
		State:         gate.State().String(),
		Privileged:    gate.IsPrivileged(),
		CheckoutEntry: string(gate.CheckoutEntry()),
	}
	if profile, ok := gate.Current(); ok {
		p := toProfileDTO(profile)
		dto.Profile = &p
	}
	return dto
}

type ReviewDTO struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name,omitempty"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toReviewDTO(r domain.Review) ReviewDTO {
	return ReviewDTO{
		ID:          r.ID,
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Rating:      r.Rating,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt,
	}
}

func toReviewDTOs(reviews []domain.Review) []ReviewDTO {
	out := make([]ReviewDTO, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, toReviewDTO(r))
	}
	return out
}

type PromotionDTO struct {
	ID      string          `json:"id"`
	Code    string          `json:"code"`
	Type    string          `json:"type"`
	Value   decimal.Decimal `json:"value"`
	Active  bool            `json:"active"`
	Expires *time.Time      `json:"expires,omitempty"`
	Expired bool            `json:"expired"`
}

func toPromotionDTO(p domain.Promotion, now time.Time) PromotionDTO {
	return PromotionDTO{
		ID:      p.ID,
		Code:    p.Code,
		Type:    string(p.Type),
		Value:   p.Value,
		Active:  p.Active,
		Expires: p.Expires,
		Expired: p.Expired(now),
	}
}

type DashboardDTO struct {
	Orders        int             `json:"orders"`
	PendingOrders int             `json:"pending_orders"`
	Revenue       decimal.Decimal `json:"revenue"`
	Customers     int             `json:"customers"`
}
