// Package task implements the guided invoice-creation flow: customer search,
// disambiguation, item selection, finalization. The machine is pure against
// its injected collaborators; invalid input re-prompts without a state
// change and never discards collected state.
package task

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	commonerrors "invoice-assistant/internal/common/errors"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
)

// CustomerFinder resolves a free-text name against stored customers.
type CustomerFinder interface {
	FindCustomers(ctx context.Context, userID, query string) ([]models.Customer, error)
}

// ItemCatalog lists the items offered for selection.
type ItemCatalog interface {
	ListItems(ctx context.Context, userID string) ([]models.Item, error)
}

// InvoiceFinalizer writes the invoice for the collected customer and items.
type InvoiceFinalizer interface {
	FinalizeInvoice(ctx context.Context, userID string, customer models.Customer, items []models.Item) (*models.Invoice, error)
}

// StepResult is what one turn of the flow tells the user.
type StepResult struct {
	Reply       string
	Suggestions []string
	Done        bool
	Invoice     *models.Invoice
}

type Machine struct {
	customers CustomerFinder
	catalog   ItemCatalog
	finalizer InvoiceFinalizer
	logger    logger.Logger
}

func NewMachine(customers CustomerFinder, catalog ItemCatalog, finalizer InvoiceFinalizer, log logger.Logger) *Machine {
	return &Machine{
		customers: customers,
		catalog:   catalog,
		finalizer: finalizer,
		logger:    log,
	}
}

// Start begins a flow from a customer query. The returned task is already
// advanced past customer_search when the query resolves unambiguously.
func (m *Machine) Start(ctx context.Context, userID, customerQuery string) (*models.InvoiceTask, *StepResult, error) {
	t := &models.InvoiceTask{
		Step:      models.StepCustomerSearch,
		UpdatedAt: time.Now().UTC(),
	}
	res, err := m.searchCustomer(ctx, userID, t, customerQuery)
	return t, res, err
}

// Advance feeds one user message into an active task. The task pointer is
// mutated in place; callers persist it with the session snapshot.
func (m *Machine) Advance(ctx context.Context, userID string, t *models.InvoiceTask, input string) (*StepResult, error) {
	switch t.Step {
	case models.StepCustomerSearch:
		return m.searchCustomer(ctx, userID, t, input)
	case models.StepCustomerDisambiguation:
		return m.disambiguate(ctx, userID, t, input)
	case models.StepItemSelection:
		return m.selectItems(ctx, userID, t, input)
	case models.StepInvoiceCreation:
		// Terminal. The caller clears the task; answering here keeps the
		// conversation usable if a stale snapshot slips through.
		return &StepResult{
			Reply:       fmt.Sprintf("Invoice %s is done. Want to start another?", t.InvoiceNumber),
			Suggestions: []string{"Create another invoice", "Show me a report"},
			Done:        true,
		}, nil
	default:
		return nil, fmt.Errorf("unknown task step %q", t.Step)
	}
}

func (m *Machine) searchCustomer(ctx context.Context, userID string, t *models.InvoiceTask, query string) (*StepResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &StepResult{Reply: "Who is this invoice for?"}, nil
	}

	matches, err := m.customers.FindCustomers(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("customer search for task: %w", err)
	}
	t.CustomerQuery = query
	t.UpdatedAt = time.Now().UTC()

	switch len(matches) {
	case 0:
		// Stay in customer_search and surface a creation suggestion.
		return &StepResult{
			Reply:       fmt.Sprintf("I couldn't find a customer matching %q.", query),
			Suggestions: []string{fmt.Sprintf("Create customer %s", query), "Try a different name"},
		}, nil
	case 1:
		t.Customer = &matches[0]
		t.Candidates = nil
		return m.enterItemSelection(ctx, userID, t)
	default:
		t.Candidates = matches
		t.Step = models.StepCustomerDisambiguation
		m.logger.WithError(commonerrors.NewResolutionAmbiguousError(query, len(matches))).
			Debug("customer reference ambiguous", nil)
		return &StepResult{
			Reply: fmt.Sprintf("I found %d customers matching %q:\n%s\nWhich one did you mean? Reply with a number.",
				len(matches), query, numberedCustomers(matches)),
		}, nil
	}
}

func (m *Machine) disambiguate(ctx context.Context, userID string, t *models.InvoiceTask, input string) (*StepResult, error) {
	idx, ok := parseSelection(input)
	if !ok || idx < 1 || idx > len(t.Candidates) {
		return &StepResult{
			Reply: fmt.Sprintf("Please pick a number between 1 and %d:\n%s",
				len(t.Candidates), numberedCustomers(t.Candidates)),
		}, nil
	}

	t.Customer = &t.Candidates[idx-1]
	t.Candidates = nil
	t.UpdatedAt = time.Now().UTC()
	return m.enterItemSelection(ctx, userID, t)
}

func (m *Machine) enterItemSelection(ctx context.Context, userID string, t *models.InvoiceTask) (*StepResult, error) {
	items, err := m.catalog.ListItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load item catalog: %w", err)
	}
	t.Catalog = items
	t.Step = models.StepItemSelection
	t.UpdatedAt = time.Now().UTC()

	if len(items) == 0 {
		return &StepResult{
			Reply:       fmt.Sprintf("Invoicing %s. Your catalog is empty, so add an item first.", t.Customer.Name),
			Suggestions: []string{"Add an item"},
		}, nil
	}
	return &StepResult{
		Reply: fmt.Sprintf("Invoicing %s. Pick items by number, then say \"create invoice\" when you're done:\n%s",
			t.Customer.Name, numberedItems(items)),
	}, nil
}

func (m *Machine) selectItems(ctx context.Context, userID string, t *models.InvoiceTask, input string) (*StepResult, error) {
	if isFinishSignal(input) {
		if len(t.SelectedItems) == 0 {
			return &StepResult{
				Reply: "Nothing selected yet. Pick at least one item by number:\n" + numberedItems(t.Catalog),
			}, nil
		}
		return m.finalize(ctx, userID, t)
	}

	indices := parseSelections(input)
	if len(indices) == 0 {
		return &StepResult{
			Reply: "I didn't catch that. Pick items by number, or say \"create invoice\" to finish:\n" + numberedItems(t.Catalog),
		}, nil
	}

	var added []string
	for _, idx := range indices {
		if idx < 1 || idx > len(t.Catalog) {
			return &StepResult{
				Reply: fmt.Sprintf("Item numbers go from 1 to %d:\n%s", len(t.Catalog), numberedItems(t.Catalog)),
			}, nil
		}
		item := t.Catalog[idx-1]
		if containsItem(t.SelectedItems, item.ID) {
			continue
		}
		t.SelectedItems = append(t.SelectedItems, item)
		added = append(added, item.Name)
	}
	t.UpdatedAt = time.Now().UTC()

	reply := fmt.Sprintf("%d item(s) selected so far.", len(t.SelectedItems))
	if len(added) > 0 {
		reply = fmt.Sprintf("Added %s. %s", strings.Join(added, ", "), reply)
	}
	return &StepResult{
		Reply:       reply + " Add more by number, or say \"create invoice\".",
		Suggestions: []string{"Create invoice"},
	}, nil
}

func (m *Machine) finalize(ctx context.Context, userID string, t *models.InvoiceTask) (*StepResult, error) {
	inv, err := m.finalizer.FinalizeInvoice(ctx, userID, *t.Customer, t.SelectedItems)
	if err != nil {
		m.logger.WithError(err).Error("invoice finalization failed", nil)
		// Collected state survives; the user can retry the finish signal.
		return &StepResult{
			Reply:       "I couldn't create the invoice just now. Say \"create invoice\" to try again.",
			Suggestions: []string{"Create invoice"},
		}, nil
	}

	t.InvoiceID = inv.ID
	t.InvoiceNumber = inv.Number
	t.Step = models.StepInvoiceCreation
	t.UpdatedAt = time.Now().UTC()

	return &StepResult{
		Reply: fmt.Sprintf("Invoice %s for %s created, total %.2f.",
			inv.Number, t.Customer.Name, inv.Total),
		Suggestions: []string{fmt.Sprintf("Send invoice %s", inv.Number), "Create another invoice"},
		Done:        true,
		Invoice:     inv,
	}, nil
}

var numberPattern = regexp.MustCompile(`\d+`)

func parseSelection(input string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseSelections(input string) []int {
	var out []int
	for _, m := range numberPattern.FindAllString(input, -1) {
		if n, err := strconv.Atoi(m); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func isFinishSignal(input string) bool {
	s := strings.ToLower(strings.TrimSpace(input))
	switch s {
	case "create invoice", "finish", "done", "create", "that's all", "finalize":
		return true
	}
	return strings.Contains(s, "create invoice") || strings.Contains(s, "create the invoice")
}

func containsItem(items []models.Item, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func numberedCustomers(list []models.Customer) string {
	var b strings.Builder
	for i, c := range list {
		fmt.Fprintf(&b, "%d. %s", i+1, c.Name)
		if c.Email != "" {
			fmt.Fprintf(&b, " (%s)", c.Email)
		}
		if i < len(list)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func numberedItems(list []models.Item) string {
	var b strings.Builder
	for i, it := range list {
		fmt.Fprintf(&b, "%d. %s (%.2f)", i+1, it.Name, it.UnitPrice)
		if i < len(list)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
