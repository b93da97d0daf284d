// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package securestore

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreExists is returned by Save when a store is already in
	// place. Callers wipe first.
	ErrStoreExists = errors.New("secure store already exists")

	// ErrStoreMissing is returned when an operation needs a persisted
	// store and there is none.
	ErrStoreMissing = errors.New("secure store does not exist")

	// ErrEmptyDocument rejects source documents with no content.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrNotText rejects source documents that are not UTF-8.
	ErrNotText = errors.New("document is not UTF-8 text")

	// ErrDocumentTooLarge rejects source documents over MaxDocumentSize.
	ErrDocumentTooLarge = errors.New("document exceeds size limit")

	// ErrCorruptSnapshot covers bad magic, unknown compression and
	// digest mismatches.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

// StorageError reports a failed filesystem operation against the store
// or one of its source documents.
type StorageError struct {
	// Op is the step that failed: read, save, wipe, inspect, load,
	// snapshot or restore.
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("secure store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("secure store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
