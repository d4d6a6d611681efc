package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// FailureCode classifies why a tool could not produce data.
type FailureCode string

const (
	FailureNotFound       FailureCode = "not_found"
	FailureEmptyResult    FailureCode = "empty_result"
	FailureUpstream       FailureCode = "upstream_failure"
	FailureMalformedInput FailureCode = "malformed_input"
	FailureCancelled      FailureCode = "cancelled"
	FailureInternal       FailureCode = "internal"
)

// FailureInfo contains metadata about a failure code.
type FailureInfo struct {
	Code        FailureCode
	Retryable   bool
	Description string
}

// FailureRegistry maps failure codes to their metadata.
var FailureRegistry = map[FailureCode]FailureInfo{
	FailureNotFound: {
		Code:        FailureNotFound,
		Description: "Meeting or transcript data does not exist",
	},
	FailureEmptyResult: {
		Code:        FailureEmptyResult,
		Description: "The query ran but matched nothing",
	},
	FailureUpstream: {
		Code:        FailureUpstream,
		Retryable:   true,
		Description: "An external analysis service failed",
	},
	FailureMalformedInput: {
		Code:        FailureMalformedInput,
		Description: "Tool arguments did not match the parameter schema",
	},
	FailureCancelled: {
		Code:        FailureCancelled,
		Retryable:   true,
		Description: "The request was cancelled or timed out",
	},
	FailureInternal: {
		Code:        FailureInternal,
		Description: "Unexpected failure inside a tool",
	},
}

// ToolError is a structured error raised inside a tool before it is converted
// into conversational content at the dispatch boundary.
type ToolError struct {
	Code    FailureCode
	Tool    string
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// NewToolError creates a ToolError.
func NewToolError(code FailureCode, tool, message string, cause error) *ToolError {
	return &ToolError{Code: code, Tool: tool, Message: message, Cause: cause}
}

// Classify inspects an error and returns a *ToolError with the appropriate code.
// Errors that match no known pattern are classified as FailureInternal.
func Classify(err error, tool string) *ToolError {
	if err == nil {
		return nil
	}

	var te *ToolError
	if errors.As(err, &te) {
		return te
	}

	fe := &ToolError{Tool: tool, Cause: err, Message: err.Error()}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fe.Code = FailureCancelled
		fe.Message = "operation timed out"
	case errors.Is(err, context.Canceled):
		fe.Code = FailureCancelled
		fe.Message = "operation cancelled"
	case errors.Is(err, ErrNotFound):
		fe.Code = FailureNotFound
	case errors.Is(err, ErrValidation):
		fe.Code = FailureMalformedInput
	case errors.Is(err, ErrUpstream):
		fe.Code = FailureUpstream
	default:
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "connection refused") ||
			strings.Contains(lower, "unavailable") ||
			strings.Contains(lower, "no such host") ||
			strings.Contains(lower, "rate limit") {
			fe.Code = FailureUpstream
		} else {
			fe.Code = FailureInternal
		}
	}
	return fe
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var te *ToolError
	if errors.As(err, &te) {
		if info, ok := FailureRegistry[te.Code]; ok {
			return info.Retryable
		}
	}
	return false
}
