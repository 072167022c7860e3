package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"invoice-assistant/internal/models"
)

func TestMissingFields(t *testing.T) {
	tests := []struct {
		name     string
		intent   models.Intent
		entities []models.Entity
		sctx     *models.ConversationContext
		expected []Field
	}{
		{
			name:     "invoice with no customer and no items",
			intent:   models.IntentCreateInvoice,
			entities: nil,
			expected: []Field{FieldCustomer, FieldItems},
		},
		{
			name:   "invoice with customer but no line source",
			intent: models.IntentCreateInvoice,
			entities: []models.Entity{
				{Type: models.EntityCustomer, Value: "James"},
			},
			expected: []Field{FieldItems},
		},
		{
			name:   "invoice with customer and amount is complete",
			intent: models.IntentCreateInvoice,
			entities: []models.Entity{
				{Type: models.EntityCustomer, Value: "James"},
				{Type: models.EntityAmount, Value: "250"},
			},
			expected: nil,
		},
		{
			name:   "active task supplies collected fields",
			intent: models.IntentCreateInvoice,
			sctx: &models.ConversationContext{
				CurrentTask: &models.InvoiceTask{
					Step:     models.StepItemSelection,
					Customer: &models.Customer{ID: "c1", Name: "James"},
				},
			},
			expected: nil,
		},
		{
			name:     "expense without amount",
			intent:   models.IntentAddExpense,
			entities: []models.Entity{{Type: models.EntityExpense, Value: "fuel"}},
			expected: []Field{FieldAmount},
		},
		{
			name:     "customer creation without a name",
			intent:   models.IntentCreateCustomer,
			expected: []Field{FieldName},
		},
		{
			name:     "report never requires fields",
			intent:   models.IntentGenerateReport,
			expected: nil,
		},
		{
			name:     "greeting never requires fields",
			intent:   models.IntentGreeting,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MissingFields(tt.intent, tt.entities, tt.sctx)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuestion(t *testing.T) {
	assert.Equal(t, "Who is this invoice for?", Question([]Field{FieldCustomer}))
	assert.Equal(t,
		"Who is this invoice for? Which items or services should I put on it?",
		Question([]Field{FieldCustomer, FieldItems}))
	assert.Equal(t, "", Question(nil))
}
