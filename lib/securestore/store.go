// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package securestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"
)

const (
	// DirectoryName is the store directory inside the data directory.
	DirectoryName = "config"

	PrimaryFileName = "config.json"
	NodeFileName    = "config-node.json"

	// MaxDocumentSize caps each source document.
	MaxDocumentSize = 4 << 20

	stagingPattern = ".config-staging-*"
	directoryMode  = 0o700
	fileMode       = 0o600
)

// Bundle is the pair of documents the store persists.
type Bundle struct {
	Primary []byte
	Node    []byte
}

// Store is the SecureStore rooted at one data directory.
type Store struct {
	dataDir string
	logger  *slog.Logger
}

// New returns the store for dataDir. Nothing is touched on disk.
func New(dataDir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dataDir: dataDir, logger: logger}
}

// DataDir returns the application data directory.
func (s *Store) DataDir() string { return s.dataDir }

// Path returns the store directory.
func (s *Store) Path() string { return filepath.Join(s.dataDir, DirectoryName) }

// PrimaryPath returns the persisted primary document path.
func (s *Store) PrimaryPath() string { return filepath.Join(s.Path(), PrimaryFileName) }

// NodePath returns the persisted node document path.
func (s *Store) NodePath() string { return filepath.Join(s.Path(), NodeFileName) }

// ReadBundle reads the two user-selected source documents. Each must
// be non-blank UTF-8 text no larger than MaxDocumentSize.
func ReadBundle(primaryPath, nodePath string) (Bundle, error) {
	primary, err := readDocument(primaryPath)
	if err != nil {
		return Bundle{}, err
	}
	node, err := readDocument(nodePath)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{Primary: primary, Node: node}, nil
}

func readDocument(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxDocumentSize+1))
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	switch {
	case len(data) > MaxDocumentSize:
		return nil, &StorageError{Op: "read", Path: path, Err: ErrDocumentTooLarge}
	case len(bytes.TrimSpace(data)) == 0:
		return nil, &StorageError{Op: "read", Path: path, Err: ErrEmptyDocument}
	case !utf8.Valid(data):
		return nil, &StorageError{Op: "read", Path: path, Err: ErrNotText}
	}
	return data, nil
}

// Save persists bundle. Either both documents end up in place or the
// store is left absent.
func (s *Store) Save(bundle Bundle) error {
	if _, err := os.Lstat(s.Path()); err == nil {
		return &StorageError{Op: "save", Path: s.Path(), Err: ErrStoreExists}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "save", Path: s.Path(), Err: err}
	}

	if err := os.MkdirAll(s.dataDir, directoryMode); err != nil {
		return &StorageError{Op: "save", Path: s.dataDir, Err: err}
	}

	staging, err := os.MkdirTemp(s.dataDir, stagingPattern)
	if err != nil {
		return &StorageError{Op: "save", Path: s.dataDir, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	if err := writeDocument(filepath.Join(staging, PrimaryFileName), bundle.Primary); err != nil {
		return &StorageError{Op: "save", Path: s.PrimaryPath(), Err: err}
	}
	if err := writeDocument(filepath.Join(staging, NodeFileName), bundle.Node); err != nil {
		return &StorageError{Op: "save", Path: s.NodePath(), Err: err}
	}
	if err := os.Rename(staging, s.Path()); err != nil {
		return &StorageError{Op: "save", Path: s.Path(), Err: err}
	}
	committed = true
	syncDirectory(s.dataDir)

	s.logger.Info("secure store saved",
		"path", s.Path(),
		"primary_bytes", len(bundle.Primary),
		"node_bytes", len(bundle.Node),
	)
	return nil
}

// writeDocument is replaced in tests to simulate a failed write.
var writeDocument = writeSynced

func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// syncDirectory makes a rename durable. Failure is ignored: the rename
// itself already succeeded.
func syncDirectory(path string) {
	directory, err := os.Open(path)
	if err != nil {
		return
	}
	directory.Sync()
	directory.Close()
}

// Wipe deletes the store and any abandoned staging directories. It
// succeeds when there is nothing to delete.
func (s *Store) Wipe() error {
	if err := os.RemoveAll(s.Path()); err != nil {
		return &StorageError{Op: "wipe", Path: s.Path(), Err: err}
	}

	stale, err := filepath.Glob(filepath.Join(s.dataDir, stagingPattern))
	if err != nil {
		return &StorageError{Op: "wipe", Path: s.dataDir, Err: err}
	}
	for _, path := range stale {
		if err := os.RemoveAll(path); err != nil {
			return &StorageError{Op: "wipe", Path: path, Err: err}
		}
	}

	s.logger.Info("secure store wiped", "path", s.Path(), "stale_staging", len(stale))
	return nil
}

// Load reads back both persisted documents.
func (s *Store) Load() (Bundle, error) {
	primary, err := os.ReadFile(s.PrimaryPath())
	if err != nil {
		return Bundle{}, &StorageError{Op: "load", Path: s.PrimaryPath(), Err: err}
	}
	node, err := os.ReadFile(s.NodePath())
	if err != nil {
		return Bundle{}, &StorageError{Op: "load", Path: s.NodePath(), Err: err}
	}
	return Bundle{Primary: primary, Node: node}, nil
}

// FileState describes one canonical document on disk.
type FileState struct {
	Exists bool

	// Readable is true when the entry is a regular file that could be
	// opened for reading.
	Readable bool

	// Err is the reason Readable is false, if any.
	Err error
}

// Inspection is a side-effect-free look at the store.
type Inspection struct {
	DirectoryExists bool
	Primary         FileState
	Node            FileState
}

// Complete reports whether both documents are present and readable.
func (i Inspection) Complete() bool {
	return i.DirectoryExists && i.Primary.Readable && i.Node.Readable
}

// Inspect examines the store without modifying it. The error is set
// only when the store directory itself cannot be examined; problems
// with individual documents are reported in the Inspection.
func (s *Store) Inspect() (Inspection, error) {
	info, err := os.Stat(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return Inspection{}, nil
	}
	if err != nil {
		return Inspection{}, &StorageError{Op: "inspect", Path: s.Path(), Err: err}
	}
	if !info.IsDir() {
		return Inspection{}, &StorageError{Op: "inspect", Path: s.Path(), Err: fmt.Errorf("not a directory")}
	}

	return Inspection{
		DirectoryExists: true,
		Primary:         inspectFile(s.PrimaryPath()),
		Node:            inspectFile(s.NodePath()),
	}, nil
}

func inspectFile(path string) FileState {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return FileState{Err: err}
	}
	if err != nil {
		return FileState{Exists: true, Err: err}
	}
	if !info.Mode().IsRegular() {
		return FileState{Exists: true, Err: fmt.Errorf("%s is not a regular file", path)}
	}

	file, err := os.Open(path)
	if err != nil {
		return FileState{Exists: true, Err: err}
	}
	file.Close()
	return FileState{Exists: true, Readable: true}
}
