package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

const mysqlErrDuplicateEntry = 1062

// MySQLAdapter implements every table repository over one pool.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenMySQL opens and pings the pool.
func OpenMySQL(ctx context.Context, dsn string, opts PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

func expectRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return port.ErrNotFound
	}
	return nil
}

// Profiles

const profileColumns = `id, full_name, email, phone, role, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var (
		p    domain.Profile
		role string
	)
	if err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.Phone, &role, &p.CreatedAt); err != nil {
		return domain.Profile{}, err
	}
	p.Role = domain.Role(role)
	return p, nil
}

func (m *MySQLAdapter) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := scanProfile(m.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

func (m *MySQLAdapter) CreateProfile(ctx context.Context, p domain.Profile) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO profiles (id, full_name, email, phone, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.FullName, p.Email, p.Phone, string(p.Role), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateProfile(ctx context.Context, userID string, u domain.ProfileUpdate) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE profiles SET full_name = ?, phone = ? WHERE id = ?`,
		u.FullName, u.Phone, userID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return m.expectProfile(ctx, result, userID)
}

func (m *MySQLAdapter) ListProfilesByRole(ctx context.Context, roles ...domain.Role) ([]domain.Profile, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	args := make([]any, len(roles))
	for i, r := range roles {
		args[i] = string(r)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(roles)), ", ")

	rows, err := m.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE role IN (`+placeholders+`) ORDER BY created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (m *MySQLAdapter) SetRole(ctx context.Context, userID string, role domain.Role) error {
	result, err := m.db.ExecContext(ctx, `UPDATE profiles SET role = ? WHERE id = ?`, string(role), userID)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return m.expectProfile(ctx, result, userID)
}

func (m *MySQLAdapter) DeleteProfile(ctx context.Context, userID string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return expectRow(result)
}

// MySQL reports zero affected rows when the new values equal the old ones,
// so a miss is confirmed with a lookup.
func (m *MySQLAdapter) expectProfile(ctx context.Context, result sql.Result, userID string) error {
	if err := expectRow(result); !errors.Is(err, port.ErrNotFound) {
		return err
	}
	p, err := m.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if p == nil {
		return port.ErrNotFound
	}
	return nil
}
