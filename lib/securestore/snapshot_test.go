// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package securestore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var snapshotTime = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func savedStore(t *testing.T) *Store {
	t.Helper()
	store := newTestStore(t)
	if err := store.Save(Bundle{Primary: []byte(primaryDocument), Node: []byte(nodeDocument)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			store := savedStore(t)

			var buffer bytes.Buffer
			if err := store.Snapshot(&buffer, compression, snapshotTime); err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			snapshot, err := ReadSnapshot(&buffer)
			if err != nil {
				t.Fatalf("ReadSnapshot: %v", err)
			}
			if snapshot.CreatedAt != "2026-10-17T09:30:00Z" {
				t.Errorf("CreatedAt = %q", snapshot.CreatedAt)
			}

			if err := store.Wipe(); err != nil {
				t.Fatalf("Wipe: %v", err)
			}
			if err := store.Restore(snapshot); err != nil {
				t.Fatalf("Restore: %v", err)
			}
			loaded, err := store.Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(loaded.Primary) != primaryDocument || string(loaded.Node) != nodeDocument {
				t.Errorf("restored bundle = %+v", loaded)
			}
		})
	}
}

func TestReadSnapshot_DetectsTampering(t *testing.T) {
	store := savedStore(t)
	var buffer bytes.Buffer
	if err := store.Snapshot(&buffer, CompressionNone, snapshotTime); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	data := buffer.Bytes()
	index := bytes.Index(data, []byte("gov-a"))
	if index < 0 {
		t.Fatal("uncompressed snapshot does not contain document text")
	}
	data[index] = 'G'

	if _, err := ReadSnapshot(bytes.NewReader(data)); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("ReadSnapshot = %v, want ErrCorruptSnapshot", err)
	}
}

func TestReadSnapshot_BadMagic(t *testing.T) {
	if _, err := ReadSnapshot(bytes.NewReader([]byte("NOPE\x00\x00\x00\x00\x00"))); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("ReadSnapshot = %v, want ErrCorruptSnapshot", err)
	}
	if _, err := ReadSnapshot(bytes.NewReader([]byte("OB"))); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("ReadSnapshot(short) = %v, want ErrCorruptSnapshot", err)
	}
}

func TestSnapshot_HeaderLayout(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			var buffer bytes.Buffer
			if err := savedStore(t).Snapshot(&buffer, compression, snapshotTime); err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			data := buffer.Bytes()
			if len(data) < 9 {
				t.Fatalf("snapshot is %d bytes", len(data))
			}
			if string(data[:4]) != "OBSN" {
				t.Errorf("magic = %q", data[:4])
			}
			if Compression(data[4]) != compression {
				t.Errorf("tag = %d, want %d", data[4], compression)
			}
			size := binary.BigEndian.Uint32(data[5:9])
			if size == 0 {
				t.Error("payload length is zero")
			}
			if compression == CompressionNone && int(size) != len(data)-9 {
				t.Errorf("length = %d, payload is %d bytes", size, len(data)-9)
			}
		})
	}
}

func TestSnapshotToDir(t *testing.T) {
	store := savedStore(t)
	directory := filepath.Join(t.TempDir(), "backups")

	path, err := store.SnapshotToDir(directory, CompressionZstd, snapshotTime)
	if err != nil {
		t.Fatalf("SnapshotToDir: %v", err)
	}
	if filepath.Dir(path) != directory {
		t.Errorf("snapshot written to %s, want inside %s", path, directory)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary snapshot file left behind")
	}

	snapshot, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile: %v", err)
	}
	if len(snapshot.Files) != 2 {
		t.Errorf("snapshot holds %d files, want 2", len(snapshot.Files))
	}
}

func TestSnapshotToDir_NoStore(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SnapshotToDir(t.TempDir(), CompressionNone, snapshotTime)
	if !errors.Is(err, ErrStoreMissing) {
		t.Fatalf("SnapshotToDir = %v, want ErrStoreMissing", err)
	}
}

func TestRestore_RequiresAbsentStore(t *testing.T) {
	store := savedStore(t)
	var buffer bytes.Buffer
	if err := store.Snapshot(&buffer, CompressionLZ4, snapshotTime); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	snapshot, err := ReadSnapshot(&buffer)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}

	err = store.Restore(snapshot)
	if !errors.Is(err, ErrStoreExists) {
		t.Fatalf("Restore over existing store = %v, want ErrStoreExists", err)
	}
	var storageError *StorageError
	if !errors.As(err, &storageError) || storageError.Op != "restore" {
		t.Errorf("error %v not reported as a restore failure", err)
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		compression, err := ParseCompression(name)
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", name, err)
		}
		if compression.String() != name {
			t.Errorf("round trip of %q gave %q", name, compression.String())
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression accepted gzip")
	}
}
