// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package securestore owns the vault's persisted configuration: a
// directory under the application data directory holding exactly two
// documents with fixed names.
//
//	<data_dir>/config/config.json       primary configuration
//	<data_dir>/config/config-node.json  node configuration
//
// The names are canonical regardless of the source documents' format;
// contents are copied verbatim and never parsed here.
//
// [Store.Save] is all-or-nothing. Both documents are written and synced
// inside a staging directory next to the store, which is then renamed
// into place, so a reader sees either the complete store or no store.
// [Store.Wipe] removes the store and any abandoned staging directories
// and succeeds when nothing is there.
//
// Before a wipe the onboarding flow can take a snapshot ([Store.Snapshot])
// so a vault overwritten by mistake can be put back with
// [Store.Restore]. A snapshot is a CBOR envelope with a BLAKE3 digest
// per document, optionally compressed with LZ4 or zstd.
package securestore
