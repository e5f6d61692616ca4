// SPDX-License-Identifier: Apache-2.0

// Package logging wraps pterm for CLI-facing progress reporting, the same
// split pgroll uses: pkg/migrations.Logger talks to pterm directly for
// operation-level narration, while the Logger interface below stays a
// minimal Printf-style interface that does not depend on a rendering
// library.
package logging

import (
	"fmt"

	"github.com/pterm/pterm"
)

// Logger is a minimal Printf-style interface, satisfied by *log.Logger and
// by Reporter below, mirroring pkg/migrations/logger.go's split between a
// rich CLI logger and a stdlib-compatible interface. No package under pkg/
// takes a Logger; pkg/uow and pkg/repository do no logging.
type Logger interface {
	Printf(format string, args ...any)
}

// Reporter is the CLI-facing logger: spinners and tables for one-shot
// subcommand runs, grounded on cmd/init.go's pterm.DefaultSpinner usage and
// cmd/status.go's table rendering.
type Reporter struct{}

func NewReporter() *Reporter { return &Reporter{} }

func (r *Reporter) Printf(format string, args ...any) {
	pterm.Info.Println(fmt.Sprintf(format, args...))
}

// Spinner starts a pterm spinner with text, returning a handle whose
// Success/Fail the caller invokes once the operation resolves.
func (r *Reporter) Spinner(text string) *pterm.SpinnerPrinter {
	sp, _ := pterm.DefaultSpinner.WithText(text).Start()
	return sp
}

// Table renders rows (first row treated as header) the way cmd/status.go's
// JSON output would be rendered for a human instead of a script.
func (r *Reporter) Table(rows [][]string) error {
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
