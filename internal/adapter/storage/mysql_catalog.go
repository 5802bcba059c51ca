package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/liora-bloom/internal/core/domain"
)

// Products

const productColumns = `id, name, description, category, images, price, sale_price, stock, popular, created_at, updated_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p           domain.Product
		description sql.NullString
		images      []byte
	)
	err := row.Scan(&p.ID, &p.Name, &description, &p.Category, &images, &p.Price, &p.SalePrice,
		&p.Stock, &p.Popular, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.Description = description.String
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return domain.Product{}, fmt.Errorf("decode images of %s: %w", p.ID, err)
		}
		if len(p.Images) == 0 {
			p.Images = nil
		}
	}
	return p, nil
}

func encodeImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	return json.Marshal(images)
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.PopularOnly {
		where = append(where, "popular = TRUE")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(m.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	images, err := encodeImages(p.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, category, images, price, sale_price, stock, popular, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Category, images, p.Price, p.SalePrice, p.Stock, p.Popular, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	images, err := encodeImages(p.Images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, category = ?, images = ?, price = ?, sale_price = ?,
			stock = ?, popular = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Category, images, p.Price, p.SalePrice, p.Stock, p.Popular, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return expectRow(result)
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectRow(result)
}

// Promotions

func (m *MySQLAdapter) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, code, type, value, active, expires, created_at
		FROM promotions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query promotions: %w", err)
	}
	defer rows.Close()

	var promos []domain.Promotion
	for rows.Next() {
		var (
			p       domain.Promotion
			kind    string
			expires sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Code, &kind, &p.Value, &p.Active, &expires, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		p.Type = domain.DiscountType(kind)
		if expires.Valid {
			p.Expires = &expires.Time
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// SavePromotion upserts by id. created_at is kept on update.
func (m *MySQLAdapter) SavePromotion(ctx context.Context, p domain.Promotion) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO promotions (id, code, type, value, active, expires, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE code = VALUES(code), type = VALUES(type), value = VALUES(value),
			active = VALUES(active), expires = VALUES(expires)`,
		p.ID, p.Code, string(p.Type), p.Value, p.Active, p.Expires, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save promotion: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) DeletePromotion(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM promotions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	return expectRow(result)
}

// Reviews

func (m *MySQLAdapter) ListReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT r.id, r.product_id, COALESCE(p.name, ''), r.user_id, r.rating, r.comment, r.created_at
		FROM reviews r
		LEFT JOIN products p ON p.id = r.product_id
		WHERE r.user_id = ?
		ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var (
			r       domain.Review
			comment sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.ProductID, &r.ProductName, &r.UserID, &r.Rating, &comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		r.Comment = comment.String
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (m *MySQLAdapter) CreateReview(ctx context.Context, r domain.Review) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO reviews (id, product_id, user_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProductID, r.UserID, r.Rating, r.Comment, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteReview(ctx context.Context, userID, reviewID string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ? AND user_id = ?`, reviewID, userID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return expectRow(result)
}
