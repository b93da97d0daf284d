// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package localnode

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"github.com/bureau-foundation/onboard/bridge"
	"github.com/bureau-foundation/onboard/lib/codec"
	"github.com/bureau-foundation/onboard/lib/secret"
)

const (
	keystoreVersion    = 1
	keystoreIterations = 210_000
	keystoreSaltSize   = 16
	keyDirectoryName   = "keys"
	keyFileName        = "node.key"
)

// controllerKey keys the BLAKE3 hash that turns a public key into a
// controller id.
var controllerKey = blake3.Sum256([]byte("onboard localnode controller id v1"))

// sealedKey is the on-disk keystore record.
type sealedKey struct {
	Version    int    `cbor:"version"`
	Iterations int    `cbor:"iterations"`
	Salt       []byte `cbor:"salt"`
	Nonce      []byte `cbor:"nonce"`
	Ciphertext []byte `cbor:"ciphertext"`
	PublicKey  string `cbor:"public_key"`
}

// KeyPath returns where the node keeps its key for a given secure
// store directory: a keys directory next to the store, so wiping the
// store leaves the key in place.
func KeyPath(secureStorePath string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(secureStorePath)), keyDirectoryName, keyFileName)
}

// openIdentity loads the node identity at path, creating and sealing a
// fresh one under password when the file does not exist. A password
// that does not open an existing key is CodeIncorrectPassword.
func openIdentity(path string, password *secret.Buffer) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return createIdentity(path, password)
	}
	if err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "reading node key", Err: err}
	}

	var record sealedKey
	if err := codec.Unmarshal(data, &record); err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "node key is corrupt", Err: err}
	}
	if record.Version != keystoreVersion {
		return nil, bridge.Errorf(bridge.CodeInternal, "node key version %d is not supported", record.Version)
	}

	aead, err := chacha20poly1305.NewX(deriveKey(password, record.Salt, record.Iterations))
	if err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "initializing cipher", Err: err}
	}
	plaintext, err := aead.Open(nil, record.Nonce, record.Ciphertext, []byte(record.PublicKey))
	if err != nil {
		return nil, bridge.Errorf(bridge.CodeIncorrectPassword, "PKCS#5 encryption failed")
	}
	defer secret.Zero(plaintext)

	identity, err := age.ParseX25519Identity(string(plaintext))
	if err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "node key is corrupt", Err: err}
	}
	if identity.Recipient().String() != record.PublicKey {
		return nil, bridge.Errorf(bridge.CodeInternal, "node key does not match its public key")
	}
	return identity, nil
}

func createIdentity(path string, password *secret.Buffer) (*age.X25519Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "generating node key", Err: err}
	}

	salt := make([]byte, keystoreSaltSize)
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(salt); err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "generating salt", Err: err}
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "generating nonce", Err: err}
	}

	aead, err := chacha20poly1305.NewX(deriveKey(password, salt, keystoreIterations))
	if err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "initializing cipher", Err: err}
	}

	publicKey := identity.Recipient().String()
	plaintext := []byte(identity.String())
	record := sealedKey{
		Version:    keystoreVersion,
		Iterations: keystoreIterations,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(publicKey)),
		PublicKey:  publicKey,
	}
	secret.Zero(plaintext)

	data, err := codec.Marshal(record)
	if err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "encoding node key", Err: err}
	}
	if err := writeKeyFile(path, data); err != nil {
		return nil, &bridge.Error{Code: bridge.CodeInternal, Message: "writing node key", Err: err}
	}
	return identity, nil
}

func deriveKey(password *secret.Buffer, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password.Bytes(), salt, iterations, chacha20poly1305.KeySize, sha256.New)
}

// writeKeyFile writes via a temporary file and rename so a crash never
// leaves a truncated key.
func writeKeyFile(path string, data []byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	temporary, err := os.CreateTemp(directory, ".node-key-*")
	if err != nil {
		return err
	}
	temporaryPath := temporary.Name()
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return err
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return err
	}
	return nil
}

// controllerID derives the node's public controller identifier from
// its age recipient.
func controllerID(identity *age.X25519Identity) string {
	hasher, err := blake3.NewKeyed(controllerKey[:])
	if err != nil {
		panic("localnode: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write([]byte(identity.Recipient().String()))
	return "E" + base64.RawURLEncoding.EncodeToString(hasher.Sum(nil))
}
