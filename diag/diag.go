// Package diag is the diagnostic sink threaded through package checker
// and package mir: a single, append-only collector of source-located
// errors and warnings for one compilation pass. It is not safe for
// concurrent use — each function is lowered on a single thread, and
// the sink is never shared across functions concurrently.
package diag

import (
	"fmt"

	"github.com/arrowlang/citron/ast"
)

// Severity distinguishes a hard failure from an advisory warning.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}

	return "error"
}

// Diagnostic is one reported error or warning, located in source.
type Diagnostic struct {
	Pos      ast.Position
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Pos.Line, d.Pos.Column, d.Severity, d.Message)
}

// Error satisfies the error interface so a caller can pass a
// Diagnostic to multierr.Append as is.
func (d Diagnostic) Error() string { return d.String() }

// Sink collects diagnostics emitted while checking or lowering;
// build.Builder shares one Sink across every source file of a
// project. Every call site attaches the position of the node it is
// currently visiting.
type Sink struct {
	diags []Diagnostic
}

// NewSink creates an empty diagnostic sink.
func NewSink() *Sink {
	return &Sink{}
}

// Error records a diagnostic at error severity.
func (s *Sink) Error(pos ast.Position, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{Pos: pos, Severity: SeverityError, Message: fmt.Sprintf(format, args...)})
}

// Warn records a diagnostic at warning severity.
func (s *Sink) Warn(pos ast.Position, format string, args ...any) {
	s.diags = append(s.diags, Diagnostic{Pos: pos, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

// Diagnostics returns every diagnostic recorded so far, in report order.
func (s *Sink) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)

	return out
}

// Errors returns only the error-severity diagnostics, in report order.
func (s *Sink) Errors() []Diagnostic {
	var out []Diagnostic

	for _, d := range s.diags {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}

	return out
}

// HasErrors reports whether any error-severity diagnostic was recorded.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Severity == SeverityError {
			return true
		}
	}

	return false
}
