package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Images      []string
	Price       decimal.Decimal
	SalePrice   decimal.NullDecimal
	Stock       int
	Popular     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OnSale reports whether the sale price overrides the list price. A sale
// price above list price still counts.
func (p Product) OnSale() bool {
	return p.SalePrice.Valid && p.SalePrice.Decimal.IsPositive()
}

// Ref is the product snapshot carried by a cart line.
func (p Product) Ref() ProductRef {
	var images []string
	if len(p.Images) > 0 {
		images = append(images, p.Images...)
	}
	return ProductRef{
		ID:       p.ID,
		Name:     p.Name,
		Category: p.Category,
		Images:   images,
	}
}

type ProductRef struct {
	ID       string
	Name     string
	Category string
	Images   []string
}

// AddOn is an optional priced extra (vase, card, chocolates) attached to a
// product selection.
type AddOn struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

type ProductFilter struct {
	Category    string
	PopularOnly bool
}
