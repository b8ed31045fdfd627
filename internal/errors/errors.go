// Package errors defines the stable error codes for every failure mode of
// the analysis pipeline. Terminal conditions (tag mismatch, candidate
// overflow, preprocessing overload) carry a sentinel candidate count so
// batch callers can record the outcome and move on to the next advisory.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// TagMismatch indicates the version interval resolved to no tags
	TagMismatch ErrorCode = "TAG_MISMATCH"
	// TooManyCandidates indicates the candidate window exceeded the configured ceiling
	TooManyCandidates ErrorCode = "TOO_MANY_CANDIDATES"
	// PreprocessingOverload indicates the overload watchdog aborted local preprocessing
	PreprocessingOverload ErrorCode = "PREPROCESSING_OVERLOAD"
	// StoreUnreachable indicates the remote feature store is not reachable
	StoreUnreachable ErrorCode = "STORE_UNREACHABLE"
	// TwinLookupFailed indicates the advisory-referenced commit lookup failed
	TwinLookupFailed ErrorCode = "TWIN_LOOKUP_FAILED"
	// RepositoryError indicates a git operation failed
	RepositoryError ErrorCode = "REPOSITORY_ERROR"
	// Timeout indicates an operation exceeded its deadline
	Timeout ErrorCode = "TIMEOUT"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// ProspectorError represents a pipeline error with code, message and cause
type ProspectorError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`

	// CandidateCount is the sentinel value reported for terminal
	// conditions: -1 for tag mismatch, the observed candidate count for
	// overflow and overload. Zero for non-terminal errors.
	CandidateCount int `json:"candidateCount,omitempty"`

	cause error
}

// New creates a new ProspectorError
func New(code ErrorCode, message string, cause error) *ProspectorError {
	return &ProspectorError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error implements the error interface
func (e *ProspectorError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ProspectorError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ProspectorError) WithDetails(details interface{}) *ProspectorError {
	e.Details = details
	return e
}

// WithCandidateCount records the sentinel candidate count
func (e *ProspectorError) WithCandidateCount(n int) *ProspectorError {
	e.CandidateCount = n
	return e
}

// CodeOf extracts the error code from err, or InternalError when err is
// not a ProspectorError.
func CodeOf(err error) ErrorCode {
	var pe *ProspectorError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return InternalError
}

// SentinelCount extracts the sentinel candidate count from a terminal
// error. Returns 0 for errors without one.
func SentinelCount(err error) int {
	var pe *ProspectorError
	if errors.As(err, &pe) {
		return pe.CandidateCount
	}
	return 0
}

// IsTerminal reports whether err ends the run with a sentinel rather
// than being recoverable by a later stage.
func IsTerminal(err error) bool {
	switch CodeOf(err) {
	case TagMismatch, TooManyCandidates, PreprocessingOverload:
		return true
	}
	return false
}
