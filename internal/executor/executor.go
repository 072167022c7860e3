// Package executor performs the side-effecting half of the pipeline. Every
// path returns a structured ActionResult; business failures carry
// suggestions instead of propagating as Go errors.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-assistant/internal/backend"
	"invoice-assistant/internal/common/config"
	commonerrors "invoice-assistant/internal/common/errors"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
	"invoice-assistant/internal/notify"
)

type Executor struct {
	customers *backend.Customers
	items     *backend.Items
	invoices  *backend.Invoices
	expenses  *backend.Expenses
	profiles  *backend.Profiles
	reports   *backend.Reports
	index     *backend.CustomerIndex
	notifier  notify.Notifier
	cfg       config.AssistantConfig
	logger    logger.Logger
	now       func() time.Time
}

func New(
	customers *backend.Customers,
	items *backend.Items,
	invoices *backend.Invoices,
	expenses *backend.Expenses,
	profiles *backend.Profiles,
	reports *backend.Reports,
	index *backend.CustomerIndex,
	notifier notify.Notifier,
	cfg config.AssistantConfig,
	log logger.Logger,
) *Executor {
	return &Executor{
		customers: customers,
		items:     items,
		invoices:  invoices,
		expenses:  expenses,
		profiles:  profiles,
		reports:   reports,
		index:     index,
		notifier:  notifier,
		cfg:       cfg,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Execute dispatches on the action type, records status transitions on the
// action, and updates the session's recent-entity cache on success.
func (e *Executor) Execute(ctx context.Context, userID string, action *models.Action, sctx *models.ConversationContext) *models.ActionResult {
	action.Status = models.ActionInProgress

	var result *models.ActionResult
	switch p := action.Params.(type) {
	case models.CreateInvoiceParams:
		result = e.createInvoice(ctx, userID, p, sctx)
	case models.CreateCustomerParams:
		result = e.createCustomer(ctx, userID, p, sctx)
	case models.CreateExpenseParams:
		result = e.createExpense(ctx, userID, p, sctx)
	case models.SearchCustomersParams:
		result = e.searchCustomers(ctx, userID, p, sctx)
	case models.GenerateReportParams:
		result = e.generateReport(ctx, userID, p, sctx)
	case models.SendInvoiceParams:
		result = e.sendInvoice(ctx, userID, p, sctx)
	case models.NavigateToInvoiceParams:
		result = e.navigate(p)
	default:
		result = &models.ActionResult{
			Success: false,
			Error:   fmt.Sprintf("unsupported action type %s", action.Type),
		}
	}

	if result.Success {
		action.Status = models.ActionCompleted
	} else {
		action.Status = models.ActionFailed
	}
	action.Result = result
	return result
}

func (e *Executor) createInvoice(ctx context.Context, userID string, p models.CreateInvoiceParams, sctx *models.ConversationContext) *models.ActionResult {
	customer, result := e.resolveCustomer(ctx, userID, p, sctx)
	if result != nil {
		return result
	}

	lines, result := e.resolveLines(ctx, userID, p)
	if result != nil {
		return result
	}

	inv, err := e.writeInvoice(ctx, userID, customer.ID, lines)
	if err != nil {
		e.logger.WithError(err).Error("invoice creation failed",
			map[string]interface{}{"customer_id": customer.ID})
		return &models.ActionResult{
			Success: false,
			Error:   "I couldn't save the invoice.",
			Suggestions: []string{
				"Try again in a moment",
				"Check the invoice details and resend",
			},
		}
	}

	sctx.Recent.AddInvoice(*inv)
	sctx.Recent.AddCustomer(*customer)

	return &models.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Invoice %s for %s created, total %.2f.", inv.Number, customer.Name, inv.Total),
		Data: map[string]interface{}{
			"invoiceId":     inv.ID,
			"invoiceNumber": inv.Number,
			"total":         inv.Total,
			"url":           e.invoiceURL(inv.ID),
		},
		Suggestions: []string{fmt.Sprintf("Send invoice %s", inv.Number), "Create another invoice"},
	}
}

func (e *Executor) resolveCustomer(ctx context.Context, userID string, p models.CreateInvoiceParams, sctx *models.ConversationContext) (*models.Customer, *models.ActionResult) {
	if p.CustomerID != "" {
		c, err := e.customers.GetByID(ctx, userID, p.CustomerID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, backend.ErrNotFound) {
			return nil, e.backendFailure("customer lookup", err)
		}
	}

	if p.CustomerName != "" {
		// Recent-entity cache first, then the backend.
		for _, c := range sctx.Recent.Customers {
			if strings.EqualFold(c.Name, p.CustomerName) {
				cached := c
				return &cached, nil
			}
		}
		matches, err := e.FindCustomers(ctx, userID, p.CustomerName)
		if err != nil {
			return nil, e.backendFailure("customer search", err)
		}
		if len(matches) > 0 {
			return &matches[0], nil
		}
	}

	name := p.CustomerName
	if name == "" {
		name = "the customer"
	}
	e.logger.WithError(commonerrors.NewCustomerNotFoundError(name)).
		Debug("customer resolution failed", map[string]interface{}{"user_id": userID})
	return nil, &models.ActionResult{
		Success:   false,
		NeedsInfo: "customer_not_found",
		Error:     fmt.Sprintf("I couldn't find %s in your customers.", name),
		Suggestions: []string{
			fmt.Sprintf("Create customer %s", p.CustomerName),
			"Search your customers",
		},
	}
}

func (e *Executor) resolveLines(ctx context.Context, userID string, p models.CreateInvoiceParams) ([]models.InvoiceLine, *models.ActionResult) {
	var lines []models.InvoiceLine

	for _, req := range p.Items {
		line := models.InvoiceLine{
			Description: req.Description,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
		}
		if line.Quantity <= 0 {
			line.Quantity = 1
		}

		switch {
		case req.ItemID != "":
			line.ItemID = req.ItemID
		case req.UnitPrice == 0 && req.Description != "":
			// Match the free-text description against the catalog for a price.
			item, err := e.items.FindByName(ctx, userID, req.Description)
			if err == nil {
				line.ItemID = item.ID
				line.Description = item.Name
				line.UnitPrice = item.UnitPrice
			} else if !errors.Is(err, backend.ErrNotFound) {
				return nil, e.backendFailure("item lookup", err)
			}
		}
		line.Total = line.Quantity * line.UnitPrice
		lines = append(lines, line)
	}

	if len(lines) == 0 && p.Amount > 0 {
		lines = append(lines, models.InvoiceLine{
			Description: "Services",
			Quantity:    1,
			UnitPrice:   p.Amount,
			Total:       p.Amount,
		})
	}

	if len(lines) == 0 {
		return nil, &models.ActionResult{
			Success:   false,
			NeedsInfo: "items",
			Error:     "I need at least one item or an amount for the invoice.",
			Suggestions: []string{
				"Tell me the amount",
				"Pick items from your catalog",
			},
		}
	}
	return lines, nil
}

// writeInvoice is the two-step persisted write: header then lines, with a
// compensating header delete when the lines fail. No invoice is ever left
// without its items.
func (e *Executor) writeInvoice(ctx context.Context, userID, customerID string, lines []models.InvoiceLine) (*models.Invoice, error) {
	profile, err := e.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load business profile: %w", err)
	}
	number, err := e.profiles.NextInvoiceNumber(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("next invoice number: %w", err)
	}

	var subtotal float64
	for _, l := range lines {
		subtotal += l.Total
	}
	tax := subtotal * profile.TaxRate / 100
	now := e.now()

	inv := &models.Invoice{
		ID:         uuid.New().String(),
		UserID:     userID,
		CustomerID: customerID,
		Number:     number,
		Status:     models.InvoiceDraft,
		Subtotal:   subtotal,
		TaxAmount:  tax,
		Total:      subtotal + tax,
		IssuedAt:   now,
		DueAt:      now.AddDate(0, 0, 30),
		CreatedAt:  now,
	}

	if err := e.invoices.InsertHeader(ctx, inv); err != nil {
		return nil, fmt.Errorf("insert invoice header: %w", err)
	}

	for i := range lines {
		lines[i].ID = uuid.New().String()
		lines[i].InvoiceID = inv.ID
	}
	if err := e.invoices.InsertLines(ctx, lines); err != nil {
		if rbErr := e.invoices.DeleteByID(ctx, inv.ID); rbErr != nil {
			e.logger.WithError(rbErr).Error("invoice rollback failed",
				map[string]interface{}{"invoice_id": inv.ID, "number": inv.Number})
		}
		return nil, commonerrors.NewInvoiceRollbackError(inv.Number, err)
	}
	return inv, nil
}

func (e *Executor) createCustomer(ctx context.Context, userID string, p models.CreateCustomerParams, sctx *models.ConversationContext) *models.ActionResult {
	if strings.TrimSpace(p.Name) == "" {
		return &models.ActionResult{
			Success:     false,
			NeedsInfo:   "name",
			Error:       "I need a name for the new customer.",
			Suggestions: []string{"Tell me the customer's name"},
		}
	}

	c := &models.Customer{
		UserID: userID,
		Name:   strings.TrimSpace(p.Name),
		Email:  p.Email,
		Phone:  p.Phone,
	}
	if err := e.customers.Insert(ctx, c); err != nil {
		return e.backendFailure("customer insert", err)
	}
	sctx.Recent.AddCustomer(*c)

	return &models.ActionResult{
		Success:     true,
		Message:     fmt.Sprintf("Customer %s created.", c.Name),
		Data:        map[string]interface{}{"customerId": c.ID},
		Suggestions: []string{fmt.Sprintf("Create an invoice for %s", c.Name)},
	}
}

func (e *Executor) createExpense(ctx context.Context, userID string, p models.CreateExpenseParams, sctx *models.ConversationContext) *models.ActionResult {
	if p.Amount <= 0 {
		return &models.ActionResult{
			Success:     false,
			NeedsInfo:   "amount",
			Error:       "I need a positive amount for the expense.",
			Suggestions: []string{"Tell me the amount"},
		}
	}

	incurred := e.now()
	if p.Date != "" {
		if parsed, err := time.Parse("2006-01-02", p.Date); err == nil {
			incurred = parsed
		}
	}
	desc := p.Description
	if desc == "" {
		desc = "Expense"
	}

	exp := &models.Expense{
		UserID:      userID,
		Description: desc,
		Category:    p.Category,
		Amount:      p.Amount,
		IncurredAt:  incurred,
	}
	if err := e.expenses.Insert(ctx, exp); err != nil {
		return e.backendFailure("expense insert", err)
	}
	sctx.Recent.AddExpense(*exp)

	return &models.ActionResult{
		Success:     true,
		Message:     fmt.Sprintf("Expense of %.2f recorded.", exp.Amount),
		Data:        map[string]interface{}{"expenseId": exp.ID},
		Suggestions: []string{"Show me this month's report"},
	}
}

func (e *Executor) searchCustomers(ctx context.Context, userID string, p models.SearchCustomersParams, sctx *models.ConversationContext) *models.ActionResult {
	query := strings.TrimSpace(p.Query)
	limit := e.searchLimit()

	// In-memory recent matches come first; backend results fill the rest.
	var merged []models.Customer
	seen := map[string]bool{}
	for _, c := range sctx.Recent.Customers {
		if query == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(query)) {
			merged = append(merged, c)
			seen[c.ID] = true
		}
	}

	found, err := e.FindCustomers(ctx, userID, query)
	if err != nil {
		return e.backendFailure("customer search", err)
	}
	for _, c := range found {
		if !seen[c.ID] {
			merged = append(merged, c)
			seen[c.ID] = true
		}
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}

	if len(merged) == 0 {
		return &models.ActionResult{
			Success:   false,
			NeedsInfo: "customer_not_found",
			Error:     fmt.Sprintf("No customers match %q.", query),
			Suggestions: []string{
				fmt.Sprintf("Create customer %s", query),
			},
		}
	}

	names := make([]string, len(merged))
	for i, c := range merged {
		names[i] = c.Name
	}
	return &models.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Found %d customer(s): %s", len(merged), strings.Join(names, ", ")),
		Data:    map[string]interface{}{"customers": merged},
	}
}

func (e *Executor) sendInvoice(ctx context.Context, userID string, p models.SendInvoiceParams, sctx *models.ConversationContext) *models.ActionResult {
	inv := e.lookupInvoice(ctx, userID, p, sctx)
	if inv == nil {
		return &models.ActionResult{
			Success:     false,
			Error:       "I couldn't tell which invoice to send.",
			Suggestions: []string{"Tell me the invoice number"},
		}
	}

	if !e.notifier.Enabled() {
		// Degrade to a navigate signal; marking it sent would claim a
		// delivery that never happened.
		return &models.ActionResult{
			Success: true,
			Message: fmt.Sprintf("Email sending isn't set up, so here's invoice %s to send yourself.", inv.Number),
			Data: map[string]interface{}{
				"invoiceId": inv.ID,
				"url":       e.invoiceURL(inv.ID),
			},
		}
	}

	customer, err := e.customers.GetByID(ctx, userID, inv.CustomerID)
	if err != nil {
		return e.backendFailure("customer lookup", err)
	}

	currency := sctx.Business.Profile.Currency
	if err := e.notifier.SendInvoice(ctx, *customer, *inv, currency); err != nil {
		e.logger.WithError(err).Error("invoice delivery failed",
			map[string]interface{}{"invoice_id": inv.ID})
		return &models.ActionResult{
			Success:     false,
			Error:       fmt.Sprintf("I couldn't email invoice %s.", inv.Number),
			Suggestions: []string{"Check the customer's email address", "Try again"},
		}
	}

	if err := e.invoices.MarkSent(ctx, userID, inv.ID); err != nil {
		e.logger.WithError(err).Warn("invoice sent but status update failed",
			map[string]interface{}{"invoice_id": inv.ID})
	} else {
		inv.Status = models.InvoiceSent
	}
	sctx.Recent.AddInvoice(*inv)

	return &models.ActionResult{
		Success: true,
		Message: fmt.Sprintf("Invoice %s sent to %s.", inv.Number, customer.Email),
		Data:    map[string]interface{}{"invoiceId": inv.ID, "status": string(inv.Status)},
	}
}

func (e *Executor) lookupInvoice(ctx context.Context, userID string, p models.SendInvoiceParams, sctx *models.ConversationContext) *models.Invoice {
	if p.InvoiceID != "" {
		if inv, err := e.invoices.GetByID(ctx, userID, p.InvoiceID); err == nil {
			return inv
		}
	}
	if p.InvoiceNumber != "" {
		for _, inv := range sctx.Recent.Invoices {
			if strings.EqualFold(inv.Number, p.InvoiceNumber) {
				found := inv
				return &found
			}
		}
	}
	if p.InvoiceID == "" && p.InvoiceNumber == "" && len(sctx.Recent.Invoices) > 0 {
		latest := sctx.Recent.Invoices[0]
		return &latest
	}
	return nil
}

func (e *Executor) navigate(p models.NavigateToInvoiceParams) *models.ActionResult {
	url := p.URL
	if url == "" {
		url = e.invoiceURL(p.InvoiceID)
	}
	return &models.ActionResult{
		Success: true,
		Message: "Here's the invoice.",
		Data:    map[string]interface{}{"invoiceId": p.InvoiceID, "url": url},
	}
}

// FindCustomers satisfies the task machine's CustomerFinder: the search
// index when configured, SQL otherwise. Index errors degrade to SQL rather
// than failing the turn.
func (e *Executor) FindCustomers(ctx context.Context, userID, query string) ([]models.Customer, error) {
	if e.index != nil && e.index.Available() {
		matches, err := e.index.Search(ctx, userID, query, e.searchLimit())
		if err == nil {
			return matches, nil
		}
		e.logger.WithError(err).Warn("customer index search failed, using sql", nil)
	}
	return e.customers.SearchByName(ctx, userID, query, e.searchLimit())
}

// ListItems satisfies the task machine's ItemCatalog.
func (e *Executor) ListItems(ctx context.Context, userID string) ([]models.Item, error) {
	limit := e.cfg.CatalogLimit
	if limit <= 0 {
		limit = 10
	}
	return e.items.List(ctx, userID, limit)
}

// FinalizeInvoice satisfies the task machine's InvoiceFinalizer: writes the
// invoice for an already-disambiguated customer and selected catalog items.
func (e *Executor) FinalizeInvoice(ctx context.Context, userID string, customer models.Customer, items []models.Item) (*models.Invoice, error) {
	lines := make([]models.InvoiceLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, models.InvoiceLine{
			ItemID:      it.ID,
			Description: it.Name,
			Quantity:    1,
			UnitPrice:   it.UnitPrice,
			Total:       it.UnitPrice,
		})
	}
	return e.writeInvoice(ctx, userID, customer.ID, lines)
}

func (e *Executor) searchLimit() int {
	if e.cfg.SearchLimit > 0 {
		return e.cfg.SearchLimit
	}
	return 5
}

func (e *Executor) invoiceURL(invoiceID string) string {
	base := strings.TrimRight(e.cfg.InvoiceBaseURL, "/")
	if base == "" {
		base = "/invoices"
	}
	return base + "/" + invoiceID
}

func (e *Executor) backendFailure(op string, err error) *models.ActionResult {
	e.logger.WithError(err).Error("backend operation failed",
		map[string]interface{}{"operation": op})
	return &models.ActionResult{
		Success:     false,
		Error:       "Something went wrong talking to the database.",
		Suggestions: []string{"Try again in a moment"},
	}
}
