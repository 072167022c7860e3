// Package resolver determines which required fields are missing for an
// intent and phrases the clarifying question that asks for them.
package resolver

import (
	"strings"

	"invoice-assistant/internal/models"
)

// Field names a required input the user has not supplied yet.
type Field string

const (
	FieldCustomer Field = "customer"
	FieldItems    Field = "items"
	FieldAmount   Field = "amount"
	FieldPeriod   Field = "period"
	FieldName     Field = "name"
)

// questions is the fixed per-field phrasing table. One clarifying question
// per missing set; multiple fields are concatenated in declaration order.
var questions = map[Field]string{
	FieldCustomer: "Who is this invoice for?",
	FieldItems:    "Which items or services should I put on it?",
	FieldAmount:   "What is the amount?",
	FieldPeriod:   "Which period would you like the report for?",
	FieldName:     "What is the customer's name?",
}

// MissingFields reports the required fields absent from the extracted
// entities. A task already past a step supplies that step's field, so an
// active invoice task suppresses the customer/items requirements it has
// already collected.
func MissingFields(intent models.Intent, entities []models.Entity, sctx *models.ConversationContext) []Field {
	var missing []Field

	switch intent {
	case models.IntentCreateInvoice:
		if !hasCustomer(entities, sctx) {
			missing = append(missing, FieldCustomer)
		}
		if !hasLineSource(entities, sctx) {
			missing = append(missing, FieldItems)
		}
	case models.IntentCreateCustomer:
		if _, ok := first(entities, models.EntityCustomer); !ok {
			missing = append(missing, FieldName)
		}
	case models.IntentAddExpense:
		if _, ok := first(entities, models.EntityAmount); !ok {
			missing = append(missing, FieldAmount)
		}
	case models.IntentGenerateReport:
		// A default period exists, so nothing is strictly required.
	case models.IntentSearchCustomers,
		models.IntentSendInvoice,
		models.IntentDeleteInvoice,
		models.IntentDeleteCustomer,
		models.IntentNavigateInvoice,
		models.IntentGreeting,
		models.IntentHelp,
		models.IntentUnknown:
		// No required fields.
	}

	return missing
}

// Question renders the clarifying question for a missing set. Empty set
// yields an empty string.
func Question(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if q, ok := questions[f]; ok {
			parts = append(parts, q)
		}
	}
	return strings.Join(parts, " ")
}

func first(entities []models.Entity, t models.EntityType) (models.Entity, bool) {
	for _, e := range entities {
		if e.Type == t {
			return e, true
		}
	}
	return models.Entity{}, false
}

func hasCustomer(entities []models.Entity, sctx *models.ConversationContext) bool {
	if _, ok := first(entities, models.EntityCustomer); ok {
		return true
	}
	if sctx != nil && sctx.CurrentTask != nil {
		t := sctx.CurrentTask
		return t.Customer != nil || t.CustomerQuery != "" || t.Step != models.StepCustomerSearch
	}
	return false
}

func hasLineSource(entities []models.Entity, sctx *models.ConversationContext) bool {
	for _, e := range entities {
		switch e.Type {
		case models.EntityProduct, models.EntityService, models.EntityAmount:
			return true
		}
	}
	// The guided flow collects items at item_selection, so an active task
	// satisfies the requirement regardless of this turn's entities.
	return sctx != nil && sctx.CurrentTask != nil
}
