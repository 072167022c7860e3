// Package gate decides whether a planned action auto-executes or waits for
// an explicit user confirmation.
package gate

import "invoice-assistant/internal/models"

// Policy is the configurable part of the confirmation decision.
type Policy struct {
	// Threshold is the monetary amount above which creation actions need
	// confirmation, in the business currency's units.
	Threshold float64
}

const DefaultThreshold = 1000

func (p Policy) threshold() float64 {
	if p.Threshold > 0 {
		return p.Threshold
	}
	return DefaultThreshold
}

// sensitiveIntents always require confirmation regardless of amount:
// irreversible or externally visible operations.
var sensitiveIntents = map[models.Intent]bool{
	models.IntentSendInvoice:    true,
	models.IntentDeleteInvoice:  true,
	models.IntentDeleteCustomer: true,
}

// NeedsConfirmation reports whether any of the planned actions must be
// confirmed before execution. Low-value creations and all read-only
// actions auto-execute.
func NeedsConfirmation(intent models.Intent, actions []models.Action, policy Policy) bool {
	if sensitiveIntents[intent] {
		return true
	}
	for _, a := range actions {
		if actionAmount(a) > policy.threshold() {
			return true
		}
	}
	return false
}

func actionAmount(a models.Action) float64 {
	switch p := a.Params.(type) {
	case models.CreateInvoiceParams:
		if p.Amount > 0 {
			return p.Amount
		}
		var total float64
		for _, it := range p.Items {
			total += it.Quantity * it.UnitPrice
		}
		return total
	case models.CreateExpenseParams:
		return p.Amount
	}
	return 0
}
