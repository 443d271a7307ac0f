// Package errors provides standardized error handling for the matching service.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	ErrCodeProfileNotFound      ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeScholarshipsNotFound ErrorCode = "SCHOLARSHIPS_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"

	ErrCodeScoringTimeout ErrorCode = "SCORING_TIMEOUT"
	ErrCodeScoringFailed  ErrorCode = "SCORING_FAILED"
	ErrCodeLLMTimeout     ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMParseFailed ErrorCode = "LLM_PARSE_FAILED"

	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeFeedbackSaveFailed ErrorCode = "FEEDBACK_SAVE_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
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

// ==========================
// 2. HTTP Integration
// ==========================

// HTTPStatus maps an error code to the status the API surface exposes.
// Anything unmapped is a generic 500 so internals never leak.
func (e *StandardError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeProfileNotFound, ErrCodeScholarshipsNotFound, ErrCodeSessionNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the client-safe message. Details stay in the logs.
func (e *StandardError) PublicMessage() string {
	if e.HTTPStatus() == http.StatusInternalServerError {
		return "Internal server error"
	}
	return e.Message
}

// Normalize ensures any error becomes a StandardError before it reaches
// the response writer.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidRequestError creates a non-retryable input validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileNotFoundError creates a non-retryable not-found error.
func NewProfileNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileNotFound,
		Message:   "User profile not found",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScholarshipsNotFoundError creates a non-retryable not-found error.
func NewScholarshipsNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScholarshipsNotFound,
		Message:   "Scholarships not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search error.
func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Scholarship search failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates an error for a timed-out search query.
func NewSearchTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Scholarship search timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringTimeoutError marks a per-item scoring timeout. Recovered locally
// by fallback substitution, never surfaced to the client.
func NewScoringTimeoutError(scholarshipID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoringTimeout,
		Message:   "Scoring timed out",
		Details:   fmt.Sprintf("scholarshipId: %s", scholarshipID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMTimeoutError creates an error for a timed-out model call.
func NewLLMTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "Model call timed out",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMParseFailedError creates an error for a malformed model response.
func NewLLMParseFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMParseFailed,
		Message:   "Model response could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable not-found error.
func NewSessionNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Swipe session not found",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFeedbackSaveFailedError creates a retryable feedback persistence error.
func NewFeedbackSaveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFeedbackSaveFailed,
		Message:   "Failed to submit feedback",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
