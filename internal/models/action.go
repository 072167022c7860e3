package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActionType tags the planned operation. Each type pairs with exactly one
// ActionParams variant, so the planner/executor handoff is checked instead
// of being a loose parameter map.
type ActionType string

const (
	ActionCreateInvoice     ActionType = "create_invoice"
	ActionCreateCustomer    ActionType = "create_customer"
	ActionCreateExpense     ActionType = "create_expense"
	ActionSearchCustomers   ActionType = "search_customers"
	ActionGenerateReport    ActionType = "generate_financial_report"
	ActionSendInvoice       ActionType = "send_invoice"
	ActionNavigateToInvoice ActionType = "navigate_to_invoice"
)

type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
)

// ActionParams is the sealed set of per-type parameter shapes.
type ActionParams interface {
	isActionParams()
}

type LineItemRequest struct {
	ItemID      string  `json:"itemId,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

type CreateInvoiceParams struct {
	CustomerID   string            `json:"customerId,omitempty"`
	CustomerName string            `json:"customerName,omitempty"`
	Items        []LineItemRequest `json:"items,omitempty"`
	Amount       float64           `json:"amount,omitempty"`
}

type CreateCustomerParams struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type CreateExpenseParams struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category,omitempty"`
	Date        string  `json:"date,omitempty"`
}

type SearchCustomersParams struct {
	Query string `json:"query"`
}

type GenerateReportParams struct {
	Period ReportPeriod `json:"period"`
}

type SendInvoiceParams struct {
	InvoiceID     string `json:"invoiceId"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
}

type NavigateToInvoiceParams struct {
	InvoiceID string `json:"invoiceId"`
	URL       string `json:"url"`
}

func (CreateInvoiceParams) isActionParams()     {}
func (CreateCustomerParams) isActionParams()    {}
func (CreateExpenseParams) isActionParams()     {}
func (SearchCustomersParams) isActionParams()   {}
func (GenerateReportParams) isActionParams()    {}
func (SendInvoiceParams) isActionParams()       {}
func (NavigateToInvoiceParams) isActionParams() {}

// ActionResult is the structured outcome of execution. Failures always carry
// actionable suggestions rather than a bare error.
type ActionResult struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Error       string                 `json:"error,omitempty"`
	NeedsInfo   string                 `json:"needsInfo,omitempty"`
	Suggestions []string               `json:"suggestions,omitempty"`
}

// Action is a planned, typed side-effecting operation. Only Status and
// Result transition after creation.
type Action struct {
	ID        string        `json:"id"`
	Type      ActionType    `json:"type"`
	Status    ActionStatus  `json:"status"`
	Params    ActionParams  `json:"params"`
	Result    *ActionResult `json:"result,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func NewAction(t ActionType, params ActionParams) Action {
	return Action{
		ID:        uuid.New().String(),
		Type:      t,
		Status:    ActionPending,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
}

// actionEnvelope is the wire shape; Params round-trips through the type tag.
type actionEnvelope struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Status    ActionStatus    `json:"status"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    *ActionResult   `json:"result,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if a.Params != nil {
		b, err := json.Marshal(a.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal action params: %w", err)
		}
		raw = b
	}
	return json.Marshal(actionEnvelope{
		ID:        a.ID,
		Type:      a.Type,
		Status:    a.Status,
		Params:    raw,
		Result:    a.Result,
		CreatedAt: a.CreatedAt,
	})
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	a.ID = env.ID
	a.Type = env.Type
	a.Status = env.Status
	a.Result = env.Result
	a.CreatedAt = env.CreatedAt
	a.Params = nil

	if len(env.Params) == 0 {
		return nil
	}

	params, err := decodeParams(env.Type, env.Params)
	if err != nil {
		return err
	}
	a.Params = params
	return nil
}

func decodeParams(t ActionType, raw json.RawMessage) (ActionParams, error) {
	switch t {
	case ActionCreateInvoice:
		var p CreateInvoiceParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ActionCreateCustomer:
		var p CreateCustomerParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ActionCreateExpense:
		var p CreateExpenseParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ActionSearchCustomers:
		var p SearchCustomersParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ActionGenerateReport:
		var p GenerateReportParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ActionSendInvoice:
		var p SendInvoiceParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case ActionNavigateToInvoice:
		var p NavigateToInvoiceParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", t)
	}
}
