package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Reports struct {
	db *sql.DB
}

func NewReports(db *sql.DB) *Reports {
	return &Reports{db: db}
}

// Aggregate derives revenue/expense/outstanding totals over [from, to).
// Revenue counts paid invoices only; outstanding counts everything issued
// but not yet paid.
func (r *Reports) Aggregate(ctx context.Context, userID string, from, to time.Time) (revenue, expenses, outstanding float64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0)
		FROM invoices
		WHERE user_id = $1 AND status = 'paid' AND issued_at >= $2 AND issued_at < $3`,
		userID, from, to).Scan(&revenue)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: revenue aggregate: %v", ErrQueryFailed, err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE user_id = $1 AND incurred_at >= $2 AND incurred_at < $3`,
		userID, from, to).Scan(&expenses)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: expense aggregate: %v", ErrQueryFailed, err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0)
		FROM invoices
		WHERE user_id = $1 AND status IN ('draft', 'sent', 'overdue')
		  AND issued_at >= $2 AND issued_at < $3`,
		userID, from, to).Scan(&outstanding)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: outstanding aggregate: %v", ErrQueryFailed, err)
	}

	return revenue, expenses, outstanding, nil
}

// RecentActivity returns short human-readable strings for the latest
// invoices and expenses, used as the session's business-context snapshot.
func (r *Reports) RecentActivity(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT description FROM (
			SELECT 'Invoice ' || number || ' (' || total || ')' AS description,
			       created_at
			FROM invoices WHERE user_id = $1
			UNION ALL
			SELECT 'Expense: ' || description || ' (' || amount || ')' AS description,
			       incurred_at AS created_at
			FROM expenses WHERE user_id = $1
		) activity
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent activity: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%w: activity scan: %v", ErrQueryFailed, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
