package executor

import (
	"context"
	"fmt"
	"time"

	"invoice-assistant/internal/models"
)

// ResolvePeriod turns a named period into a half-open calendar range
// [from, to). The zero period falls back to the current month.
func ResolvePeriod(period models.ReportPeriod, now time.Time) (time.Time, time.Time) {
	y, m, _ := now.Date()
	loc := now.Location()

	switch period {
	case models.PeriodLastMonth:
		from := time.Date(y, m-1, 1, 0, 0, 0, 0, loc)
		return from, time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case models.PeriodQuarter:
		qm := time.Month((int(m)-1)/3*3 + 1)
		from := time.Date(y, qm, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 3, 0)
	case models.PeriodYear:
		from := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(1, 0, 0)
	default:
		from := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0)
	}
}

func (e *Executor) generateReport(ctx context.Context, userID string, p models.GenerateReportParams, sctx *models.ConversationContext) *models.ActionResult {
	period := p.Period
	if period == "" {
		period = models.ReportPeriod(e.cfg.DefaultReportPeriod)
	}
	if period == "" {
		period = models.PeriodThisMonth
	}

	from, to := ResolvePeriod(period, e.now())
	revenue, expenses, outstanding, err := e.reports.Aggregate(ctx, userID, from, to)
	if err != nil {
		return e.backendFailure("report aggregate", err)
	}

	report := models.FinancialReport{
		Period:      period,
		From:        from,
		To:          to,
		Revenue:     revenue,
		Expenses:    expenses,
		Profit:      revenue - expenses,
		Outstanding: outstanding,
		Currency:    sctx.Business.Profile.Currency,
	}
	if revenue > 0 {
		report.MarginPct = report.Profit / revenue * 100
	}

	return &models.ActionResult{
		Success: true,
		Message: fmt.Sprintf(
			"%s: revenue %.2f, expenses %.2f, profit %.2f (margin %.1f%%), outstanding %.2f.",
			periodLabel(period), report.Revenue, report.Expenses,
			report.Profit, report.MarginPct, report.Outstanding,
		),
		Data:        map[string]interface{}{"report": report},
		Suggestions: []string{"Show last month", "Show this year"},
	}
}

func periodLabel(p models.ReportPeriod) string {
	switch p {
	case models.PeriodThisMonth:
		return "This month"
	case models.PeriodLastMonth:
		return "Last month"
	case models.PeriodQuarter:
		return "This quarter"
	case models.PeriodYear:
		return "This year"
	}
	return string(p)
}
