// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a bridge failure. Codes travel on the wire.
type Code string

const (
	// CodeIncorrectPassword: the password does not open the node's
	// existing key material.
	CodeIncorrectPassword Code = "incorrect_password"

	// CodeAlreadyInitialized: the node was initialized earlier in its
	// lifetime and cannot be initialized again.
	CodeAlreadyInitialized Code = "already_initialized"

	// CodeNotInitialized: the call needs a session that does not exist
	// or was stopped.
	CodeNotInitialized Code = "not_initialized"

	// CodeNotAuthorized: a governance update was requested before the
	// governance was authorized.
	CodeNotAuthorized Code = "not_authorized"

	// CodeInvalidRequest: malformed or missing request fields.
	CodeInvalidRequest Code = "invalid_request"

	// CodeUnavailable: the node could not be reached or did not answer
	// in time. The only retryable code.
	CodeUnavailable Code = "unavailable"

	// CodeInternal: anything else.
	CodeInternal Code = "internal"
)

// Error is a classified bridge failure.
type Error struct {
	Code    Code
	Action  string
	Message string

	// Err is the local cause, if any (dial errors, context errors).
	// Never sent on the wire.
	Err error
}

func (e *Error) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("bridge: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("bridge %s: %s (%s)", e.Action, e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none. CodeOf(nil) is "".
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var bridgeError *Error
	if errors.As(err, &bridgeError) {
		return bridgeError.Code
	}
	return CodeInternal
}

// Retryable reports whether repeating the same call may succeed.
func Retryable(err error) bool {
	return CodeOf(err) == CodeUnavailable
}

// Message fragments emitted by nodes that report failures as bare
// strings.
var legacySignatures = []struct {
	fragment string
	code     Code
}{
	{"pkcs#5 encryption failed", CodeIncorrectPassword},
	{"could not initialize globally", CodeAlreadyInitialized},
	{"already been initialized", CodeAlreadyInitialized},
	{"ya ha sido inicializado", CodeAlreadyInitialized},
}

// ClassifyMessage maps an uncoded failure message to a code.
// Unrecognized messages are CodeInternal.
func ClassifyMessage(message string) Code {
	lower := strings.ToLower(message)
	for _, signature := range legacySignatures {
		if strings.Contains(lower, signature.fragment) {
			return signature.code
		}
	}
	return CodeInternal
}
