// SPDX-License-Identifier: Apache-2.0

// Package cmdutil holds the CLI-layer helpers shared by every subcommand:
// the JSON output envelope and UoW-provider wiring.
package cmdutil

import (
	"encoding/json"
	"fmt"
)

// Result is the uniform success/failure envelope every subcommand's
// --json mode emits, grounded on the original implementation's
// OperationResponse (operation name, its arguments, a timestamp, and the
// outcome) and on pgroll's cmd/status.go json.MarshalIndent convention.
type Result struct {
	Operation string         `json:"operation"`
	Args      map[string]any `json:"args,omitempty"`
	Timestamp int64          `json:"timestamp"`
	OK        bool           `json:"ok"`
	Data      any            `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Print renders r either as indented JSON (asJSON) or as a short
// human-readable line.
func (r Result) Print(asJSON bool) {
	if asJSON {
		body, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(string(body))
		return
	}

	if r.OK {
		fmt.Printf("%s: ok\n", r.Operation)
		return
	}
	fmt.Printf("%s: failed: %s\n", r.Operation, r.Error)
}

// Success builds an OK Result.
func Success(operation string, args map[string]any, timestamp int64, data any) Result {
	return Result{Operation: operation, Args: args, Timestamp: timestamp, OK: true, Data: data}
}

// Failure builds a failed Result.
func Failure(operation string, args map[string]any, timestamp int64, err error) Result {
	return Result{Operation: operation, Args: args, Timestamp: timestamp, OK: false, Error: err.Error()}
}
