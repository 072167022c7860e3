package models

import "time"

// Customer is a billable party owned by a user.
type Customer struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Item is a catalog entry (product or service) that can appear on an invoice.
type Item struct {
	ID          string  `json:"id" db:"id"`
	UserID      string  `json:"userId" db:"user_id"`
	Name        string  `json:"name" db:"name"`
	Description string  `json:"description,omitempty" db:"description"`
	UnitPrice   float64 `json:"unitPrice" db:"unit_price"`
}

type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// Invoice is the header record; line items live in InvoiceLine. The two are
// written as a composed sequence with compensating rollback, never a header
// without its lines.
type Invoice struct {
	ID         string        `json:"id" db:"id"`
	UserID     string        `json:"userId" db:"user_id"`
	CustomerID string        `json:"customerId" db:"customer_id"`
	Number     string        `json:"number" db:"number"`
	Status     InvoiceStatus `json:"status" db:"status"`
	Subtotal   float64       `json:"subtotal" db:"subtotal"`
	TaxAmount  float64       `json:"taxAmount" db:"tax_amount"`
	Total      float64       `json:"total" db:"total"`
	IssuedAt   time.Time     `json:"issuedAt" db:"issued_at"`
	DueAt      time.Time     `json:"dueAt" db:"due_at"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
}

type InvoiceLine struct {
	ID          string  `json:"id" db:"id"`
	InvoiceID   string  `json:"invoiceId" db:"invoice_id"`
	ItemID      string  `json:"itemId,omitempty" db:"item_id"`
	Description string  `json:"description" db:"description"`
	Quantity    float64 `json:"quantity" db:"quantity"`
	UnitPrice   float64 `json:"unitPrice" db:"unit_price"`
	Total       float64 `json:"total" db:"total"`
}

type Expense struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category,omitempty" db:"category"`
	Amount      float64   `json:"amount" db:"amount"`
	IncurredAt  time.Time `json:"incurredAt" db:"incurred_at"`
}

// BusinessProfile carries per-user invoicing defaults, including the
// invoice numbering prefix and sequence.
type BusinessProfile struct {
	ID              string  `json:"id" db:"id"`
	UserID          string  `json:"userId" db:"user_id"`
	Name            string  `json:"name" db:"name"`
	Currency        string  `json:"currency" db:"currency"`
	TaxRate         float64 `json:"taxRate" db:"tax_rate"`
	InvoicePrefix   string  `json:"invoicePrefix" db:"invoice_prefix"`
	NextInvoiceSeq  int     `json:"nextInvoiceSeq" db:"next_invoice_seq"`
	DateFormat      string  `json:"dateFormat" db:"date_format"`
	Language        string  `json:"language" db:"language"`
	DefaultTemplate string  `json:"defaultTemplate" db:"default_template"`
}

type ReportPeriod string

const (
	PeriodThisMonth ReportPeriod = "this_month"
	PeriodLastMonth ReportPeriod = "last_month"
	PeriodQuarter   ReportPeriod = "quarter"
	PeriodYear      ReportPeriod = "year"
)

// FinancialReport aggregates paid invoices and expenses over a resolved
// date range.
type FinancialReport struct {
	Period      ReportPeriod `json:"period"`
	From        time.Time    `json:"from"`
	To          time.Time    `json:"to"`
	Revenue     float64      `json:"revenue"`
	Expenses    float64      `json:"expenses"`
	Profit      float64      `json:"profit"`
	MarginPct   float64      `json:"marginPct"`
	Outstanding float64      `json:"outstanding"`
	Currency    string       `json:"currency"`
}
