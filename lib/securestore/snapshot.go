// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package securestore

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/onboard/lib/codec"
)

// Compression identifies how a snapshot payload is compressed. The
// values are written to disk and must not change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression accepts none, lz4 or zstd.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown snapshot compression %q", name)
	}
}

// snapshotMagic opens every snapshot file, followed by the compression
// byte and the big-endian uncompressed payload length.
var snapshotMagic = [4]byte{'O', 'B', 'S', 'N'}

const (
	snapshotVersion    = 1
	snapshotHeaderSize = len(snapshotMagic) + 1 + 4
	maxSnapshotPayload = 2*MaxDocumentSize + 64<<10
)

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Version   int            `cbor:"version"`
	CreatedAt string         `cbor:"created_at"`
	Files     []SnapshotFile `cbor:"files"`
}

// SnapshotFile is one document with its BLAKE3-256 digest in hex.
type SnapshotFile struct {
	Name    string `cbor:"name"`
	Content []byte `cbor:"content"`
	Digest  string `cbor:"digest"`
}

// Bundle extracts the canonical documents.
func (s *Snapshot) Bundle() (Bundle, error) {
	var bundle Bundle
	for _, file := range s.Files {
		switch file.Name {
		case PrimaryFileName:
			bundle.Primary = file.Content
		case NodeFileName:
			bundle.Node = file.Content
		}
	}
	if bundle.Primary == nil || bundle.Node == nil {
		return Bundle{}, fmt.Errorf("%w: missing canonical document", ErrCorruptSnapshot)
	}
	return bundle, nil
}

func digest(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Snapshot writes the persisted store to w.
func (s *Store) Snapshot(w io.Writer, compression Compression, now time.Time) error {
	bundle, err := s.Load()
	if err != nil {
		return err
	}

	envelope := Snapshot{
		Version:   snapshotVersion,
		CreatedAt: now.UTC().Format(time.RFC3339),
		Files: []SnapshotFile{
			{Name: PrimaryFileName, Content: bundle.Primary, Digest: digest(bundle.Primary)},
			{Name: NodeFileName, Content: bundle.Node, Digest: digest(bundle.Node)},
		},
	}
	payload, err := codec.Marshal(envelope)
	if err != nil {
		return &StorageError{Op: "snapshot", Err: err}
	}

	compressed, used, err := compress(payload, compression)
	if err != nil {
		return &StorageError{Op: "snapshot", Err: err}
	}

	header := make([]byte, snapshotHeaderSize)
	copy(header, snapshotMagic[:])
	header[len(snapshotMagic)] = byte(used)
	binary.BigEndian.PutUint32(header[len(snapshotMagic)+1:], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return &StorageError{Op: "snapshot", Err: err}
	}
	if _, err := w.Write(compressed); err != nil {
		return &StorageError{Op: "snapshot", Err: err}
	}
	return nil
}

// SnapshotToDir writes a snapshot file named after now into directory
// and returns its path. Returns ErrStoreMissing (wrapped) when there is
// nothing to snapshot.
func (s *Store) SnapshotToDir(directory string, compression Compression, now time.Time) (string, error) {
	inspection, err := s.Inspect()
	if err != nil {
		return "", err
	}
	if !inspection.Complete() {
		return "", &StorageError{Op: "snapshot", Path: s.Path(), Err: ErrStoreMissing}
	}

	if err := os.MkdirAll(directory, directoryMode); err != nil {
		return "", &StorageError{Op: "snapshot", Path: directory, Err: err}
	}
	var buffer bytes.Buffer
	if err := s.Snapshot(&buffer, compression, now); err != nil {
		return "", err
	}

	path := filepath.Join(directory, "config-"+now.UTC().Format("20060102T150405.000000000Z")+".snapshot")
	temporaryPath := path + ".tmp"
	if err := writeSynced(temporaryPath, buffer.Bytes()); err != nil {
		os.Remove(temporaryPath)
		return "", &StorageError{Op: "snapshot", Path: path, Err: err}
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return "", &StorageError{Op: "snapshot", Path: path, Err: err}
	}
	syncDirectory(directory)

	s.logger.Info("secure store snapshot written",
		"path", path,
		"compression", compression.String(),
		"bytes", buffer.Len(),
	)
	return path, nil
}

// ReadSnapshot decodes a snapshot and verifies every digest.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	header := make([]byte, snapshotHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptSnapshot, err)
	}
	if !bytes.Equal(header[:len(snapshotMagic)], snapshotMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}
	compression := Compression(header[len(snapshotMagic)])
	size := int(binary.BigEndian.Uint32(header[len(snapshotMagic)+1:]))
	if size > maxSnapshotPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds limit", ErrCorruptSnapshot, size)
	}

	compressed, err := io.ReadAll(io.LimitReader(r, maxSnapshotPayload+1))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	payload, err := decompress(compressed, compression, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	var snapshot Snapshot
	if err := codec.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: decoding envelope: %v", ErrCorruptSnapshot, err)
	}
	if snapshot.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, snapshot.Version)
	}
	for _, file := range snapshot.Files {
		if digest(file.Content) != file.Digest {
			return nil, fmt.Errorf("%w: digest mismatch for %s", ErrCorruptSnapshot, file.Name)
		}
	}
	return &snapshot, nil
}

// ReadSnapshotFile opens and verifies the snapshot at path.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &StorageError{Op: "restore", Path: path, Err: err}
	}
	defer file.Close()
	return ReadSnapshot(file)
}

// Restore saves the snapshot's documents as the store. The store must
// be absent.
func (s *Store) Restore(snapshot *Snapshot) error {
	bundle, err := snapshot.Bundle()
	if err != nil {
		return &StorageError{Op: "restore", Path: s.Path(), Err: err}
	}
	if err := s.Save(bundle); err != nil {
		var storageError *StorageError
		if errors.As(err, &storageError) {
			storageError.Op = "restore"
		}
		return err
	}
	return nil
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("securestore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("securestore: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns the compressed payload and the compression actually
// used. LZ4 falls back to none for incompressible input.
func compress(payload []byte, compression Compression) ([]byte, Compression, error) {
	switch compression {
	case CompressionNone:
		return payload, CompressionNone, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(payload, nil), CompressionZstd, nil
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(payload)))
		written, err := lz4.CompressBlock(payload, destination, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("lz4 compress: %w", err)
		}
		if written == 0 {
			return payload, CompressionNone, nil
		}
		return destination[:written], CompressionLZ4, nil
	default:
		return nil, 0, fmt.Errorf("unsupported compression %s", compression)
	}
}

func decompress(data []byte, compression Compression, size int) ([]byte, error) {
	switch compression {
	case CompressionNone:
		if len(data) != size {
			return nil, fmt.Errorf("payload is %d bytes, header says %d", len(data), size)
		}
		return data, nil
	case CompressionZstd:
		payload, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(payload) != size {
			return nil, fmt.Errorf("zstd payload is %d bytes, header says %d", len(payload), size)
		}
		return payload, nil
	case CompressionLZ4:
		payload := make([]byte, size)
		read, err := lz4.UncompressBlock(data, payload)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 payload is %d bytes, header says %d", read, size)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
}
