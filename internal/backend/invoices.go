package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"invoice-assistant/internal/models"

	"github.com/google/uuid"
)

type Invoices struct {
	db *sql.DB
}

func NewInvoices(db *sql.DB) *Invoices {
	return &Invoices{db: db}
}

func (r *Invoices) GetByID(ctx context.Context, userID, id string) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, customer_id, number, status, subtotal, tax_amount, total,
		       issued_at, due_at, created_at
		FROM invoices
		WHERE user_id = $1 AND id = $2`, userID, id).
		Scan(&inv.ID, &inv.UserID, &inv.CustomerID, &inv.Number, &inv.Status,
			&inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.IssuedAt, &inv.DueAt, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: invoice %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invoice lookup: %v", ErrQueryFailed, err)
	}
	return &inv, nil
}

// InsertHeader writes the invoice header only. Line items follow in
// InsertLines; the caller owns rollback if that second write fails.
func (r *Invoices) InsertHeader(ctx context.Context, inv *models.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoices (id, user_id, customer_id, number, status, subtotal,
		                      tax_amount, total, issued_at, due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		inv.ID, inv.UserID, inv.CustomerID, inv.Number, inv.Status,
		inv.Subtotal, inv.TaxAmount, inv.Total, inv.IssuedAt, inv.DueAt, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: invoice header insert: %v", ErrInsertFailed, err)
	}
	return nil
}

func (r *Invoices) InsertLines(ctx context.Context, lines []models.InvoiceLine) error {
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.New().String()
		}
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO invoice_items (id, invoice_id, item_id, description, quantity,
			                           unit_price, total)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`,
			lines[i].ID, lines[i].InvoiceID, lines[i].ItemID, lines[i].Description,
			lines[i].Quantity, lines[i].UnitPrice, lines[i].Total)
		if err != nil {
			return fmt.Errorf("%w: invoice line insert: %v", ErrInsertFailed, err)
		}
	}
	return nil
}

// DeleteByID removes an invoice and any line rows already written for it.
// Used as the compensating rollback when line persistence fails partway:
// lines go first so no orphaned invoice_items rows survive the header.
func (r *Invoices) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, id); err != nil {
		return fmt.Errorf("%w: invoice line delete: %v", ErrQueryFailed, err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%w: invoice delete: %v", ErrQueryFailed, err)
	}
	return nil
}

func (r *Invoices) MarkSent(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET status = $1 WHERE user_id = $2 AND id = $3`,
		models.InvoiceSent, userID, id)
	if err != nil {
		return fmt.Errorf("%w: invoice status update: %v", ErrQueryFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: invoice %s", ErrNotFound, id)
	}
	return nil
}
