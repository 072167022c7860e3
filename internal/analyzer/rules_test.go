package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"invoice-assistant/internal/models"
)

func TestRuleAnalyzer_Analyze(t *testing.T) {
	tests := []struct {
		name           string
		message        string
		expectedIntent models.Intent
		expectEntity   models.EntityType
		expectValue    string
	}{
		{
			name:           "create invoice with customer after for",
			message:        "Create an invoice for James",
			expectedIntent: models.IntentCreateInvoice,
			expectEntity:   models.EntityCustomer,
			expectValue:    "James",
		},
		{
			name:           "create invoice with amount",
			message:        "Make an invoice for Acme Ltd of $1,500.50",
			expectedIntent: models.IntentCreateInvoice,
			expectEntity:   models.EntityAmount,
			expectValue:    "1500.50",
		},
		{
			name:           "create customer",
			message:        "Add a new customer called Maria Lopez",
			expectedIntent: models.IntentCreateCustomer,
			expectEntity:   models.EntityCustomer,
			expectValue:    "Maria Lopez",
		},
		{
			name:           "expense with amount",
			message:        "I spent 42.50 on fuel",
			expectedIntent: models.IntentAddExpense,
			expectEntity:   models.EntityAmount,
			expectValue:    "42.50",
		},
		{
			name:           "report with period",
			message:        "Show me the revenue for last month",
			expectedIntent: models.IntentGenerateReport,
			expectEntity:   models.EntityDate,
			expectValue:    string(models.PeriodLastMonth),
		},
		{
			name:           "search customers",
			message:        "Find the customer Smith",
			expectedIntent: models.IntentSearchCustomers,
		},
		{
			name:           "send invoice",
			message:        "Send the invoice to the client",
			expectedIntent: models.IntentSendInvoice,
		},
		{
			name:           "greeting",
			message:        "Hello there",
			expectedIntent: models.IntentGreeting,
		},
	}

	a := NewRuleAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := a.Analyze(context.Background(), tt.message, nil, nil)

			assert.NoError(t, err)
			assert.Equal(t, tt.expectedIntent, analysis.Intent)
			assert.Equal(t, models.SourceRules, analysis.Source)

			if tt.expectEntity != "" {
				found := false
				for _, e := range analysis.Entities {
					if e.Type == tt.expectEntity {
						found = true
						if tt.expectValue != "" {
							assert.Equal(t, tt.expectValue, e.Value)
						}
					}
				}
				assert.True(t, found, "expected a %s entity", tt.expectEntity)
			}
		})
	}
}

func TestRuleAnalyzer_UnmatchedTextIsUnknown(t *testing.T) {
	a := NewRuleAnalyzer()

	analysis, err := a.Analyze(context.Background(), "the weather is nice today", nil, nil)

	assert.NoError(t, err)
	assert.Equal(t, models.IntentUnknown, analysis.Intent)
	assert.InDelta(t, 0.3, analysis.Confidence, 0.001)
	assert.Empty(t, analysis.Entities)
}
