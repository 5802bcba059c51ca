package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusDelivered, OrderStatusCancelled},
}

// ParseOrderStatus accepts any letter case, older rows carry "Delivered".
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

type PaymentMethod string

const PaymentMethodEFT PaymentMethod = "eft"

type ShippingAddress struct {
	Street     string
	Unit       string
	Suburb     string
	City       string
	PostalCode string
	Phone      string
}

type Order struct {
	ID            string
	UserID        *string // nil for guest orders
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Reference     string
	Total         decimal.Decimal
	Status        OrderStatus
	PaymentMethod PaymentMethod
	DeliveryDate  time.Time
	Items         []LineItem
	Shipping      ShippingAddress
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (o Order) IsGuest() bool {
	return o.UserID == nil
}

type DashboardStats struct {
	Orders        int
	PendingOrders int
	Revenue       decimal.Decimal
	Customers     int
}
