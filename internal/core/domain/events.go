package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

type OrderPlaced struct {
	OrderID   string          `json:"order_id"`
	Reference string          `json:"reference"`
	UserID    *string         `json:"user_id,omitempty"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
	PlacedAt  time.Time       `json:"placed_at"`
}

type OrderStatusChanged struct {
	OrderID   string      `json:"order_id"`
	Reference string      `json:"reference"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedAt time.Time   `json:"changed_at"`
}
