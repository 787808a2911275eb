package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the rate limit tracker blocks a request
	// before it is sent.
	ErrRateLimited = errors.New("request blocked: rate limit budget exhausted")
)

// APIError represents an upstream rejection with the full response context.
type APIError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// Status is the HTTP status text.
	Status string

	// ErrorClass classifies the error for retry and metrics decisions.
	ErrorClass ErrorClass

	// Message is the server-provided error message, when the body carried
	// the standard {id, message, status_code, request_id} shape.
	Message string

	// Body is the raw response body, read exactly once.
	Body []byte

	// RequestID is the server-assigned request id, when present.
	RequestID string

	// Err is an underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Status
	}
	if e.Err != nil {
		return fmt.Sprintf("mattermost %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("mattermost %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// wireError is the error body shape the server sends.
type wireError struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id"`
}

// newAPIError builds an APIError from a non-success response. The body is
// consumed here; the response must not be reused afterwards.
func newAPIError(resp *http.Response, class ErrorClass) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		ErrorClass: class,
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr.Err = fmt.Errorf("read error body: %w", err)
		return apiErr
	}
	apiErr.Body = body

	var we wireError
	if err := json.Unmarshal(body, &we); err == nil && we.Message != "" {
		apiErr.Message = we.Message
		apiErr.RequestID = we.RequestID
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return apiErr
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors are not retried; the request itself is wrong
		return false
	case ErrorClassServer:
		// 5xx server errors should be retried
		return true
	case ErrorClassRateLimit:
		// 429 responses should be retried after backoff
		return true
	case ErrorClassNetwork:
		// Network errors should be retried
		return true
	default:
		return false
	}
}
