// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package onboarding

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/lib/securestore"
)

// ValidationError reports submission preconditions that do not hold.
// Nothing has been touched on disk or on the bridge when it is
// returned.
type ValidationError struct {
	// Unmet lists failing password predicates in order.
	Unmet []Predicate

	// MissingDocuments lists document slots with no path.
	MissingDocuments []Document

	// EmptyPassword is set by Unlock, which has no predicates.
	EmptyPassword bool
}

func (e *ValidationError) Error() string {
	var problems []string
	if e.EmptyPassword {
		problems = append(problems, "password is empty")
	}
	for _, predicate := range e.Unmet {
		problems = append(problems, "password requirement not met: "+predicate.Description())
	}
	for _, document := range e.MissingDocuments {
		problems = append(problems, document.String()+" not selected")
	}
	return "onboarding: " + strings.Join(problems, "; ")
}

// FileSelectionError reports a failed pick. Retained is the path still
// selected for the slot.
type FileSelectionError struct {
	Document Document
	Path     string
	Retained string
	Err      error
}

func (e *FileSelectionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("selecting %s: %v", e.Document, e.Err)
	}
	return fmt.Sprintf("selecting %s %s: %v", e.Document, e.Path, e.Err)
}

func (e *FileSelectionError) Unwrap() error { return e.Err }

// InitKind classifies a failed bridge initialization.
type InitKind int

const (
	InitFailed InitKind = iota
	InitIncorrectPassword
	InitAlreadyInitialized
	InitUnavailable
)

func (k InitKind) String() string {
	switch k {
	case InitIncorrectPassword:
		return "incorrect_password"
	case InitAlreadyInitialized:
		return "already_initialized"
	case InitUnavailable:
		return "unavailable"
	default:
		return "failed"
	}
}

// InitializationError wraps a bridge initialization failure.
type InitializationError struct {
	Kind InitKind
	Err  error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initializing bridge (%s): %v", e.Kind, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// Retryable reports whether submitting again unchanged may succeed.
func (e *InitializationError) Retryable() bool { return e.Kind == InitUnavailable }

// Detail is the raw bridge message for InitFailed.
func (e *InitializationError) Detail() string {
	var bridgeError *bridge.Error
	if errors.As(e.Err, &bridgeError) {
		return bridgeError.Message
	}
	return e.Err.Error()
}

// classifyInit maps the error returned by Connector.Initialize.
// Uncoded bridge errors were already classified from their message by
// the client; CodeOf sees the result.
func classifyInit(err error) *InitializationError {
	kind := InitFailed
	switch bridge.CodeOf(err) {
	case bridge.CodeIncorrectPassword:
		kind = InitIncorrectPassword
	case bridge.CodeAlreadyInitialized:
		kind = InitAlreadyInitialized
	case bridge.CodeUnavailable:
		kind = InitUnavailable
	}
	if kind == InitFailed && errors.Is(err, context.DeadlineExceeded) {
		kind = InitUnavailable
	}
	return &InitializationError{Kind: kind, Err: err}
}

// Describe renders err as a sentence for the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var validation *ValidationError
	var selection *FileSelectionError
	var storage *securestore.StorageError
	var initialization *InitializationError

	switch {
	case errors.As(err, &validation):
		switch {
		case validation.EmptyPassword:
			return "Enter your password."
		case len(validation.MissingDocuments) > 0:
			return "Select both configuration files."
		default:
			return "The password does not meet every requirement."
		}

	case errors.As(err, &selection):
		switch {
		case errors.Is(selection.Err, ErrSelectionCancelled):
			return "No file was selected."
		case errors.Is(selection.Err, ErrUnsupportedExtension):
			return "Choose a JSON, JSONC, YAML or TOML file."
		case errors.Is(selection.Err, fs.ErrNotExist):
			return "The selected file does not exist."
		default:
			return "The selected file cannot be used."
		}

	case errors.As(err, &initialization):
		switch initialization.Kind {
		case InitIncorrectPassword:
			return "Incorrect password."
		case InitAlreadyInitialized:
			return "The bridge is already initialized elsewhere."
		case InitUnavailable:
			return "The bridge is not responding. Try again."
		default:
			return "The bridge could not be initialized: " + initialization.Detail()
		}

	case errors.As(err, &storage):
		switch {
		case errors.Is(storage.Err, securestore.ErrStoreMissing):
			return "No vault was found. Create one first."
		case errors.Is(storage.Err, securestore.ErrEmptyDocument):
			return "A configuration file is empty."
		case errors.Is(storage.Err, securestore.ErrNotText):
			return "A configuration file is not a text file."
		case errors.Is(storage.Err, securestore.ErrDocumentTooLarge):
			return "A configuration file is too large."
		case errors.Is(storage.Err, fs.ErrPermission):
			return "The vault files cannot be accessed (permission denied)."
		default:
			return "The vault files could not be written."
		}

	case errors.Is(err, context.Canceled):
		return "Cancelled."
	}
	return "Something went wrong: " + err.Error()
}
