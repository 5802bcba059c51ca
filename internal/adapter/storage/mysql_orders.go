package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

// orderItem keeps the storefront's cart line shape inside the items column.
type orderItem struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Category       string           `json:"category,omitempty"`
	Images         []string         `json:"images,omitempty"`
	CartItemID     string           `json:"cartItemId"`
	SelectedAddons []orderItemAddOn `json:"selectedAddons"`
	BasePrice      decimal.Decimal  `json:"basePrice"`
	ItemTotal      decimal.Decimal  `json:"itemTotal"`
}

type orderItemAddOn struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type shippingAddress struct {
	Street string `json:"street"`
	Unit   string `json:"unit"`
	Suburb string `json:"suburb"`
	City   string `json:"city"`
	Zip    string `json:"zip"`
	Phone  string `json:"phone"`
}

func encodeItems(items []domain.LineItem) ([]byte, error) {
	out := make([]orderItem, 0, len(items))
	for _, it := range items {
		addons := make([]orderItemAddOn, 0, len(it.AddOns))
		for _, a := range it.AddOns {
			addons = append(addons, orderItemAddOn{ID: a.ID, Name: a.Name, Price: a.Price})
		}
		out = append(out, orderItem{
			ID:             it.Product.ID,
			Name:           it.Product.Name,
			Category:       it.Product.Category,
			Images:         it.Product.Images,
			CartItemID:     it.ID,
			SelectedAddons: addons,
			BasePrice:      it.BasePrice,
			ItemTotal:      it.LineTotal,
		})
	}
	return json.Marshal(out)
}

func decodeItems(data []byte) ([]domain.LineItem, error) {
	var stored []orderItem
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	items := make([]domain.LineItem, 0, len(stored))
	for _, s := range stored {
		addons := make([]domain.AddOn, 0, len(s.SelectedAddons))
		for _, a := range s.SelectedAddons {
			addons = append(addons, domain.AddOn{ID: a.ID, Name: a.Name, Price: a.Price})
		}
		items = append(items, domain.LineItem{
			ID: s.CartItemID,
			Product: domain.ProductRef{
				ID:       s.ID,
				Name:     s.Name,
				Category: s.Category,
				Images:   s.Images,
			},
			BasePrice: s.BasePrice,
			AddOns:    addons,
			LineTotal: s.ItemTotal,
		})
	}
	return items, nil
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	items, err := encodeItems(order.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	shipping, err := json.Marshal(shippingAddress{
		Street: order.Shipping.Street,
		Unit:   order.Shipping.Unit,
		Suburb: order.Shipping.Suburb,
		City:   order.Shipping.City,
		Zip:    order.Shipping.PostalCode,
		Phone:  order.Shipping.Phone,
	})
	if err != nil {
		return fmt.Errorf("encode shipping address: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, customer_name, customer_email, customer_phone, order_ref,
			total_amount, status, payment_method, delivery_date, items, shipping_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.Reference,
		order.Total, string(order.Status), string(order.PaymentMethod), order.DeliveryDate.Format("2006-01-02"),
		items, shipping, order.CreatedAt, order.UpdatedAt,
	)
	if isDuplicateEntry(err) {
		return port.ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, customer_name, customer_email, customer_phone, order_ref, total_amount,
	status, payment_method, delivery_date, items, shipping_address, created_at, updated_at`

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o        domain.Order
		userID   sql.NullString
		status   string
		payment  string
		items    []byte
		shipping []byte
	)
	err := row.Scan(&o.ID, &userID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.Reference,
		&o.Total, &status, &payment, &o.DeliveryDate, &items, &shipping, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}

	if userID.Valid {
		o.UserID = &userID.String
	}
	if o.Status, err = domain.ParseOrderStatus(status); err != nil {
		return domain.Order{}, err
	}
	o.PaymentMethod = domain.PaymentMethod(payment)

	if o.Items, err = decodeItems(items); err != nil {
		return domain.Order{}, fmt.Errorf("decode items of %s: %w", o.ID, err)
	}
	var addr shippingAddress
	if err := json.Unmarshal(shipping, &addr); err != nil {
		return domain.Order{}, fmt.Errorf("decode shipping address of %s: %w", o.ID, err)
	}
	o.Shipping = domain.ShippingAddress{
		Street:     addr.Street,
		Unit:       addr.Unit,
		Suburb:     addr.Suburb,
		City:       addr.City,
		PostalCode: addr.Zip,
		Phone:      addr.Phone,
	}
	return o, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(m.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return &o, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return m.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (m *MySQLAdapter) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return m.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (m *MySQLAdapter) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW(6) WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if err := expectRow(result); !errors.Is(err, port.ErrNotFound) {
		return err
	}

	// no row matched: either the order is gone or its status moved on
	var one int
	err = m.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return port.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	return port.ErrStatusConflict
}

func (m *MySQLAdapter) Stats(ctx context.Context) (domain.DashboardStats, error) {
	var stats domain.DashboardStats
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(CASE WHEN status <> 'cancelled' THEN total_amount END), 0)
		FROM orders`,
	).Scan(&stats.Orders, &stats.PendingOrders, &stats.Revenue)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("query order stats: %w", err)
	}

	err = m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE role = 'user'`).Scan(&stats.Customers)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("query customer count: %w", err)
	}
	return stats, nil
}
