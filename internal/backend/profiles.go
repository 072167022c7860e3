package backend

import (
	"context"
	"database/sql"
	"fmt"

	"invoice-assistant/internal/models"
)

type Profiles struct {
	db *sql.DB
}

func NewProfiles(db *sql.DB) *Profiles {
	return &Profiles{db: db}
}

func (r *Profiles) GetByUserID(ctx context.Context, userID string) (*models.BusinessProfile, error) {
	var p models.BusinessProfile
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, currency, tax_rate, invoice_prefix, next_invoice_seq,
		       COALESCE(date_format, ''), COALESCE(language, ''), COALESCE(default_template, '')
		FROM business_profiles
		WHERE user_id = $1`, userID).
		Scan(&p.ID, &p.UserID, &p.Name, &p.Currency, &p.TaxRate, &p.InvoicePrefix,
			&p.NextInvoiceSeq, &p.DateFormat, &p.Language, &p.DefaultTemplate)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: profile for user %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: profile lookup: %v", ErrQueryFailed, err)
	}
	return &p, nil
}

// NextInvoiceNumber claims the next number in the profile's sequence and
// returns it formatted as <prefix>-<zero-padded seq>. The UPDATE..RETURNING
// is the single atomic step; no cross-call transaction is assumed.
func (r *Profiles) NextInvoiceNumber(ctx context.Context, userID string) (string, error) {
	var prefix string
	var seq int
	err := r.db.QueryRowContext(ctx, `
		UPDATE business_profiles
		SET next_invoice_seq = next_invoice_seq + 1
		WHERE user_id = $1
		RETURNING invoice_prefix, next_invoice_seq - 1`, userID).
		Scan(&prefix, &seq)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: profile for user %s", ErrNotFound, userID)
	}
	if err != nil {
		return "", fmt.Errorf("%w: invoice number claim: %v", ErrQueryFailed, err)
	}
	return fmt.Sprintf("%s-%04d", prefix, seq), nil
}
