// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by onboard's package tests.
//
// [RequireReceive] and [RequireClosed] are the only places tests wait
// on the wall clock; everything else drives time through lib/clock's
// fake. [SocketDir] returns a short directory for bridge sockets
// (sun_path is limited to 108 bytes, which nested t.TempDir paths can
// exceed). [WriteFile] drops a fixture document on disk and returns
// its path.
//
// Helpers fail the test with t.Fatalf rather than returning errors.
package testutil
