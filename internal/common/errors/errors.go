// Package errors provides standardized error handling for the conversational
// assistant. Every failure mode resolves to a structured, user-facing message;
// nothing here is fatal to the process.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Analysis: language-model unavailable or malformed output. Always
	// recovered locally via the rule fallback, never surfaced to the user.
	ErrCodeAnalysisFailed ErrorCode = "ANALYSIS_FAILED"
	ErrCodeLLMTimeout     ErrorCode = "LLM_TIMEOUT"

	// Validation: a required entity is missing from the request.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Resolution: a user reference matched multiple backend records.
	ErrCodeResolutionAmbiguous ErrorCode = "RESOLUTION_AMBIGUOUS"

	// Execution: backend read/write failures.
	ErrCodeExecutionFailed    ErrorCode = "EXECUTION_FAILED"
	ErrCodeCustomerNotFound   ErrorCode = "CUSTOMER_NOT_FOUND"
	ErrCodeInvoiceRollback    ErrorCode = "INVOICE_ROLLBACK"
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_FAILED"

	// Auth: no authenticated identity on a write path.
	ErrCodeAuthRequired ErrorCode = "AUTH_REQUIRED"

	// Session store failures.
	ErrCodeSessionLoadFailed ErrorCode = "SESSION_LOAD_FAILED"
	ErrCodeSessionSaveFailed ErrorCode = "SESSION_SAVE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewAnalysisFailedError marks a language-model failure; retryable because a
// later turn may find the service healthy again.
func NewAnalysisFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisFailed,
		Message:   "Language-model analysis failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError marks a bounded language-model call that ran out of time.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "Language-model request timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError creates a non-retryable missing-field error.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Required information is missing",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResolutionAmbiguousError records multiple candidate matches for a
// user reference.
func NewResolutionAmbiguousError(query string, count int) *StandardError {
	return &StandardError{
		Code:      ErrCodeResolutionAmbiguous,
		Message:   "Multiple records match the reference",
		Details:   fmt.Sprintf("query: %s, matches: %d", query, count),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCustomerNotFoundError creates a non-retryable lookup error.
func NewCustomerNotFoundError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCustomerNotFound,
		Message:   "Customer not found",
		Details:   fmt.Sprintf("name: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExecutionFailedError creates a retryable backend failure.
func NewExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExecutionFailed,
		Message:   "Action execution failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvoiceRollbackError records a compensating rollback after a partial
// invoice write.
func NewInvoiceRollbackError(invoiceNumber string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvoiceRollback,
		Message:   "Invoice creation rolled back",
		Details:   fmt.Sprintf("invoice: %s, cause: %s", invoiceNumber, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthRequiredError marks a write attempted without identity. Not
// retryable by the system; the user has to re-authenticate.
func NewAuthRequiredError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthRequired,
		Message:   "Authentication required",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionLoadFailedError creates a retryable session-store read error.
func NewSessionLoadFailedError(sessionID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionLoadFailed,
		Message:   "Conversation state could not be loaded",
		Details:   fmt.Sprintf("session: %s, error: %s", sessionID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionSaveFailedError creates a retryable session-store write error.
func NewSessionSaveFailedError(sessionID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionSaveFailed,
		Message:   "Conversation state could not be saved",
		Details:   fmt.Sprintf("session: %s, error: %s", sessionID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnection,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
