// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package onboarding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Document names one of the two configuration slots.
type Document int

const (
	DocumentPrimary Document = iota
	DocumentNode
)

func (d Document) String() string {
	switch d {
	case DocumentPrimary:
		return "primary configuration"
	case DocumentNode:
		return "node configuration"
	default:
		return fmt.Sprintf("Document(%d)", int(d))
	}
}

// MarshalText renders the slot name in JSON output.
func (d Document) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// AcceptedExtensions are the configuration file extensions a picker
// may return.
var AcceptedExtensions = []string{".json", ".jsonc", ".yml", ".yaml", ".toml"}

// ErrSelectionCancelled is returned by a Picker when the user backs
// out without choosing.
var ErrSelectionCancelled = errors.New("selection cancelled")

// ErrUnsupportedExtension rejects files outside AcceptedExtensions.
var ErrUnsupportedExtension = errors.New("unsupported file type")

// Picker asks the user for a document path.
type Picker interface {
	Pick(ctx context.Context, document Document) (string, error)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(ctx context.Context, document Document) (string, error)

func (f PickerFunc) Pick(ctx context.Context, document Document) (string, error) {
	return f(ctx, document)
}

// PathPicker always picks path. An empty path is a cancellation.
func PathPicker(path string) Picker {
	return PickerFunc(func(ctx context.Context, _ Document) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if strings.TrimSpace(path) == "" {
			return "", ErrSelectionCancelled
		}
		return path, nil
	})
}

// Selection holds the chosen path for each document. The zero value
// has nothing selected.
type Selection struct {
	paths [2]string
}

// Path returns the current path for document, or "".
func (s *Selection) Path(document Document) string {
	if document < DocumentPrimary || document > DocumentNode {
		return ""
	}
	return s.paths[document]
}

// Select runs picker for document and records the result. On any
// failure the previous path is kept and a *FileSelectionError is
// returned.
func (s *Selection) Select(ctx context.Context, document Document, picker Picker) (string, error) {
	if document < DocumentPrimary || document > DocumentNode {
		return "", fmt.Errorf("onboarding: unknown document slot %d", int(document))
	}
	previous := s.paths[document]
	fail := func(path string, err error) (string, error) {
		return previous, &FileSelectionError{Document: document, Path: path, Retained: previous, Err: err}
	}

	path, err := picker.Pick(ctx, document)
	if err != nil {
		return fail("", err)
	}
	if err := checkDocumentPath(path); err != nil {
		return fail(path, err)
	}

	absolute, err := filepath.Abs(path)
	if err != nil {
		return fail(path, err)
	}
	s.paths[document] = absolute
	return absolute, nil
}

// Clear forgets the path for document.
func (s *Selection) Clear(document Document) {
	if document < DocumentPrimary || document > DocumentNode {
		return
	}
	s.paths[document] = ""
}

// Missing lists the slots with nothing selected.
func (s *Selection) Missing() []Document {
	var missing []Document
	for _, document := range []Document{DocumentPrimary, DocumentNode} {
		if s.paths[document] == "" {
			missing = append(missing, document)
		}
	}
	return missing
}

func checkDocumentPath(path string) error {
	if !slices.Contains(AcceptedExtensions, strings.ToLower(filepath.Ext(path))) {
		return fmt.Errorf("%w %q (accepted: %s)", ErrUnsupportedExtension, filepath.Ext(path), strings.Join(AcceptedExtensions, ", "))
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}
