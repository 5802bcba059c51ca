package service

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/liora-bloom/internal/core/domain"
)

// ResolvePrice returns the effective unit price of product and the line
// total once the selected add-ons are included.
func ResolvePrice(product domain.Product, addons []domain.AddOn) (basePrice, lineTotal decimal.Decimal) {
	basePrice = product.Price
	if product.OnSale() {
		basePrice = product.SalePrice.Decimal
	}

	lineTotal = basePrice
	for _, addon := range addons {
		lineTotal = lineTotal.Add(addon.Price)
	}
	return basePrice, lineTotal
}
