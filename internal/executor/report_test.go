package executor

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"invoice-assistant/internal/models"
)

func TestResolvePeriod(t *testing.T) {
	// Fixed "current date" mid-month, mid-quarter.
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		period   models.ReportPeriod
		wantFrom time.Time
		wantTo   time.Time
	}{
		{
			name:     "this month",
			period:   models.PeriodThisMonth,
			wantFrom: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "last month is the full previous calendar month",
			period:   models.PeriodLastMonth,
			wantFrom: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "quarter",
			period:   models.PeriodQuarter,
			wantFrom: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "year",
			period:   models.PeriodYear,
			wantFrom: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "empty period defaults to current month",
			period:   "",
			wantFrom: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := ResolvePeriod(tt.period, now)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestResolvePeriod_LastMonthAcrossYearBoundary(t *testing.T) {
	now := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)

	from, to := ResolvePeriod(models.PeriodLastMonth, now)

	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestExecutor_GenerateReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	e := newTestExecutor(t, db)

	from := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("u1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(5000.0))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("u1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(2000.0))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("u1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(750.0))

	sctx := &models.ConversationContext{
		Business: models.BusinessContext{
			Profile: models.BusinessProfile{Currency: "USD"},
		},
	}
	action := models.NewAction(models.ActionGenerateReport, models.GenerateReportParams{
		Period: models.PeriodLastMonth,
	})

	result := e.Execute(context.Background(), "u1", &action, sctx)

	assert.True(t, result.Success)
	report := result.Data["report"].(models.FinancialReport)
	assert.InDelta(t, 5000.0, report.Revenue, 0.001)
	assert.InDelta(t, 2000.0, report.Expenses, 0.001)
	assert.InDelta(t, 3000.0, report.Profit, 0.001)
	assert.InDelta(t, 60.0, report.MarginPct, 0.001)
	assert.InDelta(t, 750.0, report.Outstanding, 0.001)
	assert.Equal(t, "USD", report.Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}
