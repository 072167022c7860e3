package backend

import (
	"context"
	"database/sql"
	"fmt"

	"invoice-assistant/internal/models"
)

type Items struct {
	db *sql.DB
}

func NewItems(db *sql.DB) *Items {
	return &Items{db: db}
}

// List returns the user's catalog, name order, capped.
func (r *Items) List(ctx context.Context, userID string, limit int) ([]models.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, COALESCE(description, ''), unit_price
		FROM items
		WHERE user_id = $1
		ORDER BY name ASC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: item list: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.UserID, &it.Name, &it.Description, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("%w: item scan: %v", ErrQueryFailed, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// FindByName matches a catalog entry case-insensitively by name.
func (r *Items) FindByName(ctx context.Context, userID, name string) (*models.Item, error) {
	var it models.Item
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, COALESCE(description, ''), unit_price
		FROM items
		WHERE user_id = $1 AND name ILIKE $2
		LIMIT 1`, userID, name).
		Scan(&it.ID, &it.UserID, &it.Name, &it.Description, &it.UnitPrice)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: item lookup: %v", ErrQueryFailed, err)
	}
	return &it, nil
}
