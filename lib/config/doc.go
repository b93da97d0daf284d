// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads onboard's settings: where the vault data lives,
// how to reach the bridge, and how the governance reconciler paces
// itself.
//
// Settings come from exactly one YAML file, named by --config or the
// ONBOARD_CONFIG environment variable. When neither is set the built-in
// defaults apply, because the wizard has to run on a machine that has
// never been configured. Environment variables never override values
// from the file; they are only expanded inside path values written as
// ${VAR} or ${VAR:-default}.
//
// A file may carry development and production sections whose non-zero
// fields replace the base values when environment matches.
package config
