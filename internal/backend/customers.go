package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"invoice-assistant/internal/models"

	"github.com/google/uuid"
)

type Customers struct {
	db *sql.DB
}

func NewCustomers(db *sql.DB) *Customers {
	return &Customers{db: db}
}

func (r *Customers) GetByID(ctx context.Context, userID, id string) (*models.Customer, error) {
	var c models.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, COALESCE(email, ''), COALESCE(phone, ''), created_at
		FROM customers
		WHERE user_id = $1 AND id = $2`, userID, id).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: customer lookup: %v", ErrQueryFailed, err)
	}
	return &c, nil
}

// SearchByName does a case-insensitive substring match, newest first.
func (r *Customers) SearchByName(ctx context.Context, userID, query string, limit int) ([]models.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, COALESCE(email, ''), COALESCE(phone, ''), created_at
		FROM customers
		WHERE user_id = $1 AND name ILIKE '%' || $2 || '%'
		ORDER BY created_at DESC
		LIMIT $3`, userID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: customer search: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: customer scan: %v", ErrQueryFailed, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Customers) Insert(ctx context.Context, c *models.Customer) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, user_id, name, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: customer insert: %v", ErrInsertFailed, err)
	}
	return nil
}
