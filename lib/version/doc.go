// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the onboard binaries.
// Values are stamped at link time:
//
//	go build -ldflags "-X github.com/bureau-foundation/onboard/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
