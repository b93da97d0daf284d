// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package onboarding

import (
	"crypto/subtle"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the minimum password length in characters.
const MinPasswordLength = 5

// Predicate is one password requirement.
type Predicate int

// Predicates in evaluation and display order.
const (
	PredicateDigit Predicate = iota
	PredicateLength
	PredicateMatch
	PredicateLowercase
	PredicateUppercase
)

// Predicates lists every predicate in order.
var Predicates = []Predicate{
	PredicateDigit,
	PredicateLength,
	PredicateMatch,
	PredicateLowercase,
	PredicateUppercase,
}

func (p Predicate) String() string {
	switch p {
	case PredicateDigit:
		return "digit"
	case PredicateLength:
		return "length"
	case PredicateMatch:
		return "match"
	case PredicateLowercase:
		return "lowercase"
	case PredicateUppercase:
		return "uppercase"
	default:
		return fmt.Sprintf("Predicate(%d)", int(p))
	}
}

// MarshalText renders the predicate name in JSON output.
func (p Predicate) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Description is the requirement as shown next to the password field.
func (p Predicate) Description() string {
	switch p {
	case PredicateDigit:
		return "contains a number"
	case PredicateLength:
		return fmt.Sprintf("at least %d characters", MinPasswordLength)
	case PredicateMatch:
		return "confirmation matches"
	case PredicateLowercase:
		return "contains a lowercase letter"
	case PredicateUppercase:
		return "contains an uppercase letter"
	default:
		return p.String()
	}
}

// PredicateResult is the outcome of one predicate.
type PredicateResult struct {
	Predicate Predicate `json:"predicate"`
	Satisfied bool      `json:"satisfied"`
}

// PasswordReport holds one result per predicate, in order.
type PasswordReport struct {
	Results []PredicateResult `json:"results"`
}

// Satisfied reports whether every predicate holds.
func (r PasswordReport) Satisfied() bool {
	for _, result := range r.Results {
		if !result.Satisfied {
			return false
		}
	}
	return len(r.Results) == len(Predicates)
}

// Unmet lists the failing predicates in order.
func (r PasswordReport) Unmet() []Predicate {
	var unmet []Predicate
	for _, result := range r.Results {
		if !result.Satisfied {
			unmet = append(unmet, result.Predicate)
		}
	}
	return unmet
}

// EvaluatePassword checks password and its confirmation against every
// predicate. Neither slice is retained.
func EvaluatePassword(password, confirmation []byte) PasswordReport {
	var hasDigit, hasLower, hasUpper bool
	// Decode in place: converting to string would copy the password
	// onto the heap.
	for remaining := password; len(remaining) > 0; {
		r, size := utf8.DecodeRune(remaining)
		remaining = remaining[size:]
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		}
	}

	matches := len(confirmation) > 0 && subtle.ConstantTimeCompare(password, confirmation) == 1

	return PasswordReport{Results: []PredicateResult{
		{PredicateDigit, hasDigit},
		{PredicateLength, utf8.RuneCount(password) >= MinPasswordLength},
		{PredicateMatch, matches},
		{PredicateLowercase, hasLower},
		{PredicateUppercase, hasUpper},
	}}
}
