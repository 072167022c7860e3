package models

import (
	"time"

	"github.com/google/uuid"
)

// Intent is the classified purpose of a user message. Adding an intent
// without handling it in the planner and resolver is a compile-visible gap,
// not a silent no-op.
type Intent string

const (
	IntentCreateInvoice   Intent = "create_invoice"
	IntentCreateCustomer  Intent = "create_customer"
	IntentAddExpense      Intent = "add_expense"
	IntentSearchCustomers Intent = "search_customers"
	IntentGenerateReport  Intent = "generate_financial_report"
	IntentSendInvoice     Intent = "send_invoice"
	IntentDeleteInvoice   Intent = "delete_invoice"
	IntentDeleteCustomer  Intent = "delete_customer"
	IntentNavigateInvoice Intent = "navigate_to_invoice"
	IntentGreeting        Intent = "greeting"
	IntentHelp            Intent = "help"
	IntentUnknown         Intent = "unknown"
)

// KnownIntents lists every intent the analyzer may emit, in the order they
// are described to the language model.
var KnownIntents = []Intent{
	IntentCreateInvoice,
	IntentCreateCustomer,
	IntentAddExpense,
	IntentSearchCustomers,
	IntentGenerateReport,
	IntentSendInvoice,
	IntentDeleteInvoice,
	IntentDeleteCustomer,
	IntentNavigateInvoice,
	IntentGreeting,
	IntentHelp,
	IntentUnknown,
}

func (i Intent) Valid() bool {
	for _, k := range KnownIntents {
		if i == k {
			return true
		}
	}
	return false
}

type EntityType string

const (
	EntityCustomer EntityType = "customer"
	EntityAmount   EntityType = "amount"
	EntityDate     EntityType = "date"
	EntityProduct  EntityType = "product"
	EntityService  EntityType = "service"
	EntityInvoice  EntityType = "invoice"
	EntityExpense  EntityType = "expense"
	EntityCategory EntityType = "category"
)

var KnownEntityTypes = []EntityType{
	EntityCustomer, EntityAmount, EntityDate, EntityProduct,
	EntityService, EntityInvoice, EntityExpense, EntityCategory,
}

// Entity is a typed value extracted from a message.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	ResolvedID string     `json:"resolvedId,omitempty"`
}

type AnalysisSource string

const (
	SourceLLM   AnalysisSource = "llm"
	SourceRules AnalysisSource = "rules"
)

// Analysis is the result of classifying one user message.
type Analysis struct {
	Intent     Intent         `json:"intent"`
	Entities   []Entity       `json:"entities"`
	Confidence float64        `json:"confidence"`
	Source     AnalysisSource `json:"source"`
}

// FirstEntity returns the first entity of the given type, if any.
func (a *Analysis) FirstEntity(t EntityType) (Entity, bool) {
	for _, e := range a.Entities {
		if e.Type == t {
			return e, true
		}
	}
	return Entity{}, false
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageMetadata carries the classification and action linkage for a turn.
type MessageMetadata struct {
	Intent      Intent                 `json:"intent,omitempty"`
	Entities    []Entity               `json:"entities,omitempty"`
	Confidence  float64                `json:"confidence,omitempty"`
	ActionIDs   []string               `json:"actionIds,omitempty"`
	Suggestions []string               `json:"suggestions,omitempty"`
	Display     map[string]interface{} `json:"display,omitempty"`
}

// ConversationMessage is immutable once appended to a session.
type ConversationMessage struct {
	ID        string           `json:"id"`
	SessionID string           `json:"sessionId"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

func NewMessage(sessionID string, role Role, content string) ConversationMessage {
	return ConversationMessage{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionPaused    SessionStatus = "paused"
)

// TaskStep enumerates the invoice-creation flow. customer_search is the
// initial state; invoice_creation is terminal.
type TaskStep string

const (
	StepCustomerSearch         TaskStep = "customer_search"
	StepCustomerDisambiguation TaskStep = "customer_disambiguation"
	StepItemSelection          TaskStep = "item_selection"
	StepInvoiceCreation        TaskStep = "invoice_creation"
)

// InvoiceTask is the per-session record of progress through the guided
// invoice flow. Collected state survives bad turns; only a valid input
// advances Step.
type InvoiceTask struct {
	Step          TaskStep   `json:"step"`
	CustomerQuery string     `json:"customerQuery,omitempty"`
	Customer      *Customer  `json:"customer,omitempty"`
	Candidates    []Customer `json:"candidates,omitempty"`
	Catalog       []Item     `json:"catalog,omitempty"`
	SelectedItems []Item     `json:"selectedItems,omitempty"`
	InvoiceID     string     `json:"invoiceId,omitempty"`
	InvoiceNumber string     `json:"invoiceNumber,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// UserPreferences are seeded from the business profile at session creation.
type UserPreferences struct {
	Template   string `json:"template,omitempty"`
	Currency   string `json:"currency,omitempty"`
	DateFormat string `json:"dateFormat,omitempty"`
	Language   string `json:"language,omitempty"`
}

// BusinessContext is a snapshot taken at session creation, not re-fetched
// every turn.
type BusinessContext struct {
	Profile        BusinessProfile `json:"profile"`
	RecentActivity []string        `json:"recentActivity,omitempty"`
}

// RecentEntities is the bounded most-recently-seen cache. Each list is
// newest-first, deduplicated by id, and capped so session memory stays
// O(constant) regardless of history length.
type RecentEntities struct {
	Customers []Customer `json:"customers,omitempty"`
	Invoices  []Invoice  `json:"invoices,omitempty"`
	Expenses  []Expense  `json:"expenses,omitempty"`
	Items     []Item     `json:"items,omitempty"`
	Cap       int        `json:"cap,omitempty"`
}

const DefaultRecentEntityCap = 8

func (r *RecentEntities) cap() int {
	if r.Cap > 0 {
		return r.Cap
	}
	return DefaultRecentEntityCap
}

func (r *RecentEntities) AddCustomer(c Customer) {
	r.Customers = prependCapped(r.Customers, c, func(x Customer) string { return x.ID }, r.cap())
}

func (r *RecentEntities) AddInvoice(inv Invoice) {
	r.Invoices = prependCapped(r.Invoices, inv, func(x Invoice) string { return x.ID }, r.cap())
}

func (r *RecentEntities) AddExpense(e Expense) {
	r.Expenses = prependCapped(r.Expenses, e, func(x Expense) string { return x.ID }, r.cap())
}

func (r *RecentEntities) AddItem(i Item) {
	r.Items = prependCapped(r.Items, i, func(x Item) string { return x.ID }, r.cap())
}

func prependCapped[T any](list []T, v T, id func(T) string, cap int) []T {
	out := make([]T, 0, cap)
	out = append(out, v)
	for _, existing := range list {
		if id(existing) == id(v) {
			continue
		}
		out = append(out, existing)
		if len(out) == cap {
			break
		}
	}
	return out
}

// ConversationContext is the process-external state carried between turns.
// CurrentTask is present if and only if a task is mid-flight.
type ConversationContext struct {
	Recent         RecentEntities  `json:"recent"`
	CurrentTask    *InvoiceTask    `json:"currentTask,omitempty"`
	Preferences    UserPreferences `json:"preferences"`
	Business       BusinessContext `json:"business"`
	PendingActions []Action        `json:"pendingActions,omitempty"`
}

// PendingAction returns the pending action with the given id, if present.
func (c *ConversationContext) PendingAction(id string) (*Action, bool) {
	for i := range c.PendingActions {
		if c.PendingActions[i].ID == id {
			return &c.PendingActions[i], true
		}
	}
	return nil, false
}

// RemovePendingAction deletes the pending action by id; returns whether it
// was present. Removal after execution is what makes confirmation idempotent.
func (c *ConversationContext) RemovePendingAction(id string) bool {
	for i := range c.PendingActions {
		if c.PendingActions[i].ID == id {
			c.PendingActions = append(c.PendingActions[:i], c.PendingActions[i+1:]...)
			return true
		}
	}
	return false
}

// ConversationSession is the unit of persistence: one user's dialogue plus
// its evolving context, snapshotted whole once per turn.
type ConversationSession struct {
	ID        string                `json:"id"`
	UserID    string                `json:"userId"`
	Status    SessionStatus         `json:"status"`
	Messages  []ConversationMessage `json:"messages"`
	Context   ConversationContext   `json:"context"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// Append adds a message in insertion (chronological) order.
func (s *ConversationSession) Append(m ConversationMessage) {
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = time.Now().UTC()
}

// LastMessages returns the most recent n messages, oldest first.
func (s *ConversationSession) LastMessages(n int) []ConversationMessage {
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
