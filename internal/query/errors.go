package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// BuildError represents a malformed or unbuildable query detected while
// constructing, merging, adapting or parsing a statement tree.
//
// Build errors are programming or model-definition errors: they are
// raised synchronously, before any backend call, and are never retried.
type BuildError struct {
	// Code identifies the error category.
	Code BuildErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context (field, kinds, model, ...).
	Details map[string]string
}

// BuildErrorCode categorizes build errors.
type BuildErrorCode string

const (
	// ErrCodeMissingModel indicates no model reference is attached anywhere in the tree.
	ErrCodeMissingModel BuildErrorCode = "MISSING_MODEL"

	// ErrCodeUnknownNode indicates a node type the consumer does not recognize.
	ErrCodeUnknownNode BuildErrorCode = "UNKNOWN_NODE"

	// ErrCodeNoMergeProvider indicates neither statement can absorb the other.
	ErrCodeNoMergeProvider BuildErrorCode = "NO_MERGE_PROVIDER"

	// ErrCodeInvalidSampling indicates a duplicated or conflicting sampling directive.
	ErrCodeInvalidSampling BuildErrorCode = "INVALID_SAMPLING"

	// ErrCodeUnsupportedCapability indicates the target backend lacks a required capability.
	ErrCodeUnsupportedCapability BuildErrorCode = "UNSUPPORTED_CAPABILITY"

	// ErrCodeTypeMismatch indicates an operand that cannot be coerced into a comparison.
	ErrCodeTypeMismatch BuildErrorCode = "TYPE_MISMATCH"

	// ErrCodeEvaluationUnsupported indicates a statement kind that cannot be evaluated locally.
	ErrCodeEvaluationUnsupported BuildErrorCode = "EVALUATION_UNSUPPORTED"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + e.Details[k]
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

// NewBuildError creates a BuildError. details are alternating key/value pairs.
func NewBuildError(code BuildErrorCode, message string, details ...string) *BuildError {
	e := &BuildError{Code: code, Message: message}
	if len(details) > 1 {
		e.Details = make(map[string]string, len(details)/2)
		for i := 0; i+1 < len(details); i += 2 {
			e.Details[details[i]] = details[i+1]
		}
	}
	return e
}

// IsBuildError returns true if err is (or wraps) a BuildError.
func IsBuildError(err error) bool {
	var be *BuildError
	return errors.As(err, &be)
}

// HasCode returns true if err is (or wraps) a BuildError with the given code.
func HasCode(err error, code BuildErrorCode) bool {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}
