package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ochairo/symbolpush/internal/domain/entities"
)

// Exit codes for the CLI
const (
	ExitSuccess        = 0
	ExitFailure        = 1 // anything not classified below
	ExitUsage          = 2 // bad flags or configuration
	ExitAuthentication = 3
	ExitRemoteService  = 4
	ExitArtifactUpload = 5
)

// ExitError carries an explicit exit code
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func newUsageError(err error) *ExitError {
	return &ExitError{Code: ExitUsage, Err: err}
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	kind, ok := entities.KindOf(err)
	if !ok {
		return ExitFailure
	}
	switch kind {
	case entities.KindAuthentication:
		return ExitAuthentication
	case entities.KindRemoteService:
		return ExitRemoteService
	case entities.KindArtifactUpload:
		return ExitArtifactUpload
	default:
		return ExitFailure
	}
}

// renderReport writes the report as indented JSON or as plain text
func renderReport(w io.Writer, format string, report *entities.WorkflowReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	p := &printer{w: w}
	p.line("run:      %s", report.RunID)
	p.line("package:  %s", report.PackageName)
	p.line("version:  %d", report.VersionCode)
	p.line("track:    %s", report.Track)
	if report.DryRun {
		p.line("mode:     dry run")
	}
	if report.EditID != "" {
		p.line("edit:     %s", report.EditID)
	}

	p.line("native libraries (not uploaded): %d", len(report.Symbols))
	for _, s := range report.Symbols {
		p.line("  %s (%d bytes) %s", s.Name, s.Size, s.Path)
	}

	switch m := report.Mapping; {
	case m == nil:
		p.line("mapping:  none")
	case m.Skipped:
		p.line("mapping:  skipped, %s not found", m.Path)
	default:
		verb := "uploaded"
		if report.DryRun {
			verb = "ready"
		}
		p.line("mapping:  %s %s as %s (%d bytes)", verb, m.Path, m.SymbolType, m.Size)
		p.line("sha256:   %s", m.SHA256)
		if m.Signed {
			p.line("signed:   yes")
		}
	}

	if c := report.Commit; c != nil {
		p.line("commit:   %s at %s", c.EditID, c.CommittedAt.UTC().Format(time.RFC3339))
	}
	return p.err
}

// printer remembers the first write error
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}
