package service

import (
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rl1809/liora-bloom/internal/core/domain"
)

// Persisted cart layout. Field names follow what the storefront has always
// written under the cart key, so carts saved by older builds still load.
type storedLine struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category,omitempty"`
	Images         []string        `json:"images,omitempty"`
	CartItemID     string          `json:"cartItemId"`
	SelectedAddons []storedAddOn   `json:"selectedAddons"`
	BasePrice      decimal.Decimal `json:"basePrice"`
	ItemTotal      decimal.Decimal `json:"itemTotal"`
}

type storedAddOn struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

var errMalformedLine = errors.New("malformed cart line")

func encodeLines(items []domain.LineItem) ([]byte, error) {
	lines := make([]storedLine, 0, len(items))
	for _, item := range items {
		addons := make([]storedAddOn, 0, len(item.AddOns))
		for _, a := range item.AddOns {
			addons = append(addons, storedAddOn{ID: a.ID, Name: a.Name, Price: a.Price})
		}
		lines = append(lines, storedLine{
			ID:             item.Product.ID,
			Name:           item.Product.Name,
			Category:       item.Product.Category,
			Images:         item.Product.Images,
			CartItemID:     item.ID,
			SelectedAddons: addons,
			BasePrice:      item.BasePrice,
			ItemTotal:      item.LineTotal,
		})
	}
	return json.Marshal(lines)
}

// decodeLines recomputes each line total from its parts rather than
// trusting the stored one.
func decodeLines(data []byte) ([]domain.LineItem, error) {
	var lines []*storedLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, err
	}

	items := make([]domain.LineItem, 0, len(lines))
	for _, line := range lines {
		if line == nil || line.CartItemID == "" {
			return nil, errMalformedLine
		}

		addons := make([]domain.AddOn, 0, len(line.SelectedAddons))
		total := line.BasePrice
		for _, a := range line.SelectedAddons {
			addons = append(addons, domain.AddOn{ID: a.ID, Name: a.Name, Price: a.Price})
			total = total.Add(a.Price)
		}

		items = append(items, domain.LineItem{
			ID: line.CartItemID,
			Product: domain.ProductRef{
				ID:       line.ID,
				Name:     line.Name,
				Category: line.Category,
				Images:   line.Images,
			},
			BasePrice: line.BasePrice,
			AddOns:    addons,
			LineTotal: total,
		})
	}
	return items, nil
}
