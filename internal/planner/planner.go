// Package planner maps a classified intent and its entities onto typed
// Action records. Plan is a pure function; the switch over the Intent enum
// is exhaustive so a new intent without a mapping is visible here, not a
// silent runtime no-op.
package planner

import (
	"strconv"
	"strings"

	"invoice-assistant/internal/models"
)

// Plan converts (intent, entities, context) into zero or more actions.
// Intents with no defined mapping return nil, a safe no-op.
func Plan(intent models.Intent, entities []models.Entity, sctx *models.ConversationContext) []models.Action {
	switch intent {
	case models.IntentCreateInvoice:
		return []models.Action{models.NewAction(models.ActionCreateInvoice, createInvoiceParams(entities, sctx))}

	case models.IntentCreateCustomer:
		name := entityValue(entities, models.EntityCustomer)
		if name == "" {
			return nil
		}
		return []models.Action{models.NewAction(models.ActionCreateCustomer, models.CreateCustomerParams{
			Name: name,
		})}

	case models.IntentAddExpense:
		amount, ok := entityAmount(entities)
		if !ok {
			return nil
		}
		return []models.Action{models.NewAction(models.ActionCreateExpense, models.CreateExpenseParams{
			Description: expenseDescription(entities),
			Amount:      amount,
			Category:    entityValue(entities, models.EntityCategory),
			Date:        entityValue(entities, models.EntityDate),
		})}

	case models.IntentSearchCustomers:
		return []models.Action{models.NewAction(models.ActionSearchCustomers, models.SearchCustomersParams{
			Query: entityValue(entities, models.EntityCustomer),
		})}

	case models.IntentGenerateReport:
		return []models.Action{models.NewAction(models.ActionGenerateReport, models.GenerateReportParams{
			Period: reportPeriod(entities),
		})}

	case models.IntentSendInvoice:
		p := models.SendInvoiceParams{InvoiceNumber: entityValue(entities, models.EntityInvoice)}
		if p.InvoiceNumber == "" && sctx != nil && len(sctx.Recent.Invoices) > 0 {
			latest := sctx.Recent.Invoices[0]
			p.InvoiceID = latest.ID
			p.InvoiceNumber = latest.Number
		}
		if p.InvoiceID == "" && p.InvoiceNumber == "" {
			return nil
		}
		return []models.Action{models.NewAction(models.ActionSendInvoice, p)}

	case models.IntentNavigateInvoice:
		if sctx == nil || len(sctx.Recent.Invoices) == 0 {
			return nil
		}
		return []models.Action{models.NewAction(models.ActionNavigateToInvoice, models.NavigateToInvoiceParams{
			InvoiceID: sctx.Recent.Invoices[0].ID,
		})}

	case models.IntentDeleteInvoice, models.IntentDeleteCustomer:
		// Recognized but not planned; deletion flows live outside chat.
		return nil

	case models.IntentGreeting, models.IntentHelp, models.IntentUnknown:
		return nil
	}

	return nil
}

func createInvoiceParams(entities []models.Entity, sctx *models.ConversationContext) models.CreateInvoiceParams {
	p := models.CreateInvoiceParams{
		CustomerName: entityValue(entities, models.EntityCustomer),
	}
	if amount, ok := entityAmount(entities); ok {
		p.Amount = amount
	}
	for _, e := range entities {
		if e.Type != models.EntityProduct && e.Type != models.EntityService {
			continue
		}
		req := models.LineItemRequest{Description: e.Value, Quantity: 1}
		if e.ResolvedID != "" {
			req.ItemID = e.ResolvedID
		}
		p.Items = append(p.Items, req)
	}
	// A recently disambiguated customer short-circuits the name lookup.
	if sctx != nil && p.CustomerName != "" {
		for _, c := range sctx.Recent.Customers {
			if strings.EqualFold(c.Name, p.CustomerName) {
				p.CustomerID = c.ID
				break
			}
		}
	}
	return p
}

func entityValue(entities []models.Entity, t models.EntityType) string {
	for _, e := range entities {
		if e.Type == t {
			return e.Value
		}
	}
	return ""
}

func entityAmount(entities []models.Entity) (float64, bool) {
	raw := entityValue(entities, models.EntityAmount)
	if raw == "" {
		return 0, false
	}
	raw = strings.NewReplacer(",", "", "$", "", "€", "", "£", "").Replace(raw)
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	return amount, true
}

func expenseDescription(entities []models.Entity) string {
	for _, e := range entities {
		switch e.Type {
		case models.EntityExpense, models.EntityProduct, models.EntityService:
			if e.Value != "" {
				return e.Value
			}
		}
	}
	return "Expense"
}

func reportPeriod(entities []models.Entity) models.ReportPeriod {
	raw := strings.ToLower(entityValue(entities, models.EntityDate))
	switch {
	case strings.Contains(raw, "last"):
		return models.PeriodLastMonth
	case strings.Contains(raw, "quarter"):
		return models.PeriodQuarter
	case strings.Contains(raw, "year"):
		return models.PeriodYear
	case raw != "":
		return models.PeriodThisMonth
	}
	return "" // executor applies the configured default
}
