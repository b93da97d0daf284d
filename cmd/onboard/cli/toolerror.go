// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies command errors so that scripts can make
// decisions (retry, fix input, give up) without parsing error text.
// The category appears in --json error output and selects the exit
// code.
type ErrorCategory string

const (
	// CategoryValidation indicates the caller provided invalid input:
	// missing flags, a weak password, an unusable configuration file.
	// The caller should fix the input and retry.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound indicates a referenced resource does not exist:
	// no vault to unlock, a missing snapshot file.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryConflict indicates the operation conflicts with existing
	// state: a vault already exists, the bridge is already initialized,
	// or the password does not open the existing key material.
	CategoryConflict ErrorCategory = "conflict"

	// CategoryTransient indicates a temporary failure: the bridge did
	// not answer in time. The caller should back off and retry.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal indicates an unexpected error: I/O failures,
	// protocol violations, bugs.
	CategoryInternal ErrorCategory = "internal"
)

// ExitCode is the process exit status for the category.
func (c ErrorCategory) ExitCode() int {
	switch c {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 3
	case CategoryConflict:
		return 4
	case CategoryTransient:
		return 5
	default:
		return 1
	}
}

// ToolError is a categorized error returned by commands. It wraps an
// inner error, preserving the full chain for errors.Is and errors.As.
// Use the category-specific constructors rather than constructing
// ToolError directly.
type ToolError struct {
	Category ErrorCategory
	Err      error
}

// Error returns the underlying error message. The category travels
// separately.
func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// Wrap attaches category to err. A nil err stays nil.
func Wrap(category ErrorCategory, err error) error {
	if err == nil {
		return nil
	}
	return &ToolError{Category: category, Err: err}
}

// CategoryOf returns the category of the first ToolError in err's
// chain, or CategoryInternal.
func CategoryOf(err error) ErrorCategory {
	var toolError *ToolError
	if errors.As(err, &toolError) {
		return toolError.Category
	}
	return CategoryInternal
}

// Validation creates a validation error: the caller provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error: a referenced resource does not exist.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Conflict creates a conflict error: the operation conflicts with existing state.
func Conflict(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryConflict, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error: a temporary failure that may succeed on retry.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure, bug, or I/O error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}
