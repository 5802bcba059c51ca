package domain

import "github.com/shopspring/decimal"

// LineItem is immutable once created: the only way to change a selection is
// to remove the whole line.
type LineItem struct {
	ID        string
	Product   ProductRef
	BasePrice decimal.Decimal
	AddOns    []AddOn
	LineTotal decimal.Decimal
}

type Cart struct {
	Items []LineItem
	Open  bool
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal)
	}
	return total
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
