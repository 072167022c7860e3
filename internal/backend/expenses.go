package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"invoice-assistant/internal/models"

	"github.com/google/uuid"
)

type Expenses struct {
	db *sql.DB
}

func NewExpenses(db *sql.DB) *Expenses {
	return &Expenses{db: db}
}

func (r *Expenses) Insert(ctx context.Context, e *models.Expense) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.IncurredAt.IsZero() {
		e.IncurredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, description, category, amount, incurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.Description, e.Category, e.Amount, e.IncurredAt)
	if err != nil {
		return fmt.Errorf("%w: expense insert: %v", ErrInsertFailed, err)
	}
	return nil
}
