// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework behind the onboard binary.
//
// A [Command] tree is dispatched by [Command.Execute]. Flags are
// declared as tagged struct fields and bound with [FlagsFromParams]:
//
//	type initParams struct {
//	    cli.JSONOutput
//	    Primary string `flag:"primary" desc:"primary configuration file"`
//	}
//
// Commands report failures as [ToolError] values carrying an
// [ErrorCategory], and [ExitError] when they have already written
// their own output. Unknown commands and flags get a "did you mean"
// suggestion based on edit distance.
package cli
