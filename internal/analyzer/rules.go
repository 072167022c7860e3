package analyzer

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"invoice-assistant/internal/models"
)

// RuleAnalyzer is the deterministic fallback: substring and pattern
// matching over the lowercased message. It never fails and never times out;
// unmatched text yields intent=unknown with confidence 0.3.
type RuleAnalyzer struct{}

func NewRuleAnalyzer() *RuleAnalyzer {
	return &RuleAnalyzer{}
}

func (a *RuleAnalyzer) Available() bool {
	return true
}

var (
	nameAfterForPattern    = regexp.MustCompile(`(?i)\bfor\s+([a-zA-Z][a-zA-Z'. -]*[a-zA-Z.])`)
	nameAfterCalledPattern = regexp.MustCompile(`(?i)\b(?:named|called)\s+([a-zA-Z][a-zA-Z'. -]*[a-zA-Z.])`)
	nameAfterLabelPattern  = regexp.MustCompile(`(?i)\b(?:customer|client)\s+([a-zA-Z][a-zA-Z'. -]*[a-zA-Z.])`)
	amountPattern          = regexp.MustCompile(`(?:\$|€|£)?\s?(\d+(?:,\d{3})*(?:\.\d{1,2})?)\b`)
	greetingPattern        = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|good (morning|afternoon|evening))\b`)
)

func (a *RuleAnalyzer) Analyze(_ context.Context, message string, _ *models.ConversationContext, _ []models.ConversationMessage) (*models.Analysis, error) {
	text := strings.ToLower(message)

	switch {
	case greetingPattern.MatchString(message):
		return ruleResult(models.IntentGreeting, 0.9, nil), nil

	case strings.Contains(text, "help"):
		return ruleResult(models.IntentHelp, 0.85, nil), nil

	case strings.Contains(text, "invoice") && strings.Contains(text, "send"):
		return ruleResult(models.IntentSendInvoice, 0.7, nil), nil

	case strings.Contains(text, "invoice") && containsAny(text, "create", "make", "new", "bill", "draft"):
		entities := extractCustomer(message)
		if amt, ok := extractAmount(message); ok {
			entities = append(entities, amt)
		}
		return ruleResult(models.IntentCreateInvoice, 0.7, entities), nil

	case containsAny(text, "create", "add", "new") && containsAny(text, "customer", "client"):
		return ruleResult(models.IntentCreateCustomer, 0.7, extractCustomer(message)), nil

	case containsAny(text, "expense", "spent", "purchase"):
		var entities []models.Entity
		if amt, ok := extractAmount(message); ok {
			entities = append(entities, amt)
		}
		return ruleResult(models.IntentAddExpense, 0.7, entities), nil

	case containsAny(text, "report", "revenue", "profit", "how much did i"):
		var entities []models.Entity
		if p, ok := extractPeriod(text); ok {
			entities = append(entities, models.Entity{
				Type: models.EntityDate, Value: string(p), Confidence: 0.7,
			})
		}
		return ruleResult(models.IntentGenerateReport, 0.7, entities), nil

	case containsAny(text, "find", "search", "look up", "show me") && containsAny(text, "customer", "client"):
		return ruleResult(models.IntentSearchCustomers, 0.7, extractCustomer(message)), nil
	}

	return ruleResult(models.IntentUnknown, 0.3, nil), nil
}

func ruleResult(intent models.Intent, confidence float64, entities []models.Entity) *models.Analysis {
	if entities == nil {
		entities = []models.Entity{}
	}
	return &models.Analysis{
		Intent:     intent,
		Entities:   entities,
		Confidence: confidence,
		Source:     models.SourceRules,
	}
}

func containsAny(text string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func customerEntity(name string) models.Entity {
	return models.Entity{
		Type:       models.EntityCustomer,
		Value:      strings.TrimSpace(name),
		Confidence: 0.7,
	}
}

func extractCustomer(message string) []models.Entity {
	for _, p := range []*regexp.Regexp{nameAfterCalledPattern, nameAfterForPattern, nameAfterLabelPattern} {
		if m := p.FindStringSubmatch(message); m != nil {
			return []models.Entity{customerEntity(m[1])}
		}
	}
	return nil
}

func extractAmount(message string) (models.Entity, bool) {
	m := amountPattern.FindStringSubmatch(message)
	if m == nil {
		return models.Entity{}, false
	}
	value := strings.ReplaceAll(m[1], ",", "")
	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return models.Entity{}, false
	}
	return models.Entity{Type: models.EntityAmount, Value: value, Confidence: 0.7}, true
}

func extractPeriod(text string) (models.ReportPeriod, bool) {
	switch {
	case strings.Contains(text, "last month"):
		return models.PeriodLastMonth, true
	case strings.Contains(text, "this month"):
		return models.PeriodThisMonth, true
	case strings.Contains(text, "quarter"):
		return models.PeriodQuarter, true
	case strings.Contains(text, "year"):
		return models.PeriodYear, true
	}
	return "", false
}
