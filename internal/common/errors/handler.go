package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Handler normalizes arbitrary errors into StandardError and renders them
// on the HTTP surface with standardized error handling
type Handler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewHandler(logger Logger) *Handler {
	return &Handler{logger: logger}
}

// HandleHTTP handles any error that escaped the conversational pipeline:
// it is normalized, logged, and written as a structured JSON body. Errors
// the pipeline absorbed into replies never reach this path.
func (h *Handler) HandleHTTP(w http.ResponseWriter, err error) {
	stdErr := h.Normalize(err)

	h.logError(stdErr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(stdErr.Code))
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": stdErr})
}

// Normalize ensures we always have a StandardError
func (h *Handler) Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatus maps an error code to the transport status. Infrastructure
// failures are 503 so load balancers treat them as retryable; everything
// else is a plain 500.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeSessionLoadFailed,
		ErrCodeSessionSaveFailed,
		ErrCodeDatabaseConnection:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) logError(stdErr *StandardError) {
	h.logger.Error("Request failed", map[string]interface{}{
		"errorCode": string(stdErr.Code),
		"message":   stdErr.Message,
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
	})
}
