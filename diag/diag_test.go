package diag

import (
	"testing"

	"github.com/arrowlang/citron/ast"
)

func TestSinkCollectsErrorsAndWarnings(t *testing.T) {
	s := NewSink()

	s.Error(ast.Position{Line: 3, Column: 5}, "undefined label %q", "foo")
	s.Warn(ast.Position{Line: 9, Column: 1}, "unreferenced label %q", "bar")

	if !s.HasErrors() {
		t.Fatal("expected HasErrors to be true")
	}

	if len(s.Diagnostics()) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(s.Diagnostics()))
	}

	errs := s.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error-severity diagnostic, got %d", len(errs))
	}

	if errs[0].Message != `undefined label "foo"` {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}

	if errs[0].Severity.String() != "error" {
		t.Errorf("expected severity string 'error', got %s", errs[0].Severity.String())
	}
}

func TestSinkNoErrors(t *testing.T) {
	s := NewSink()
	s.Warn(ast.Position{Line: 1}, "unreferenced label %q", "x")

	if s.HasErrors() {
		t.Fatal("expected HasErrors to be false when only warnings recorded")
	}

	if len(s.Errors()) != 0 {
		t.Fatalf("expected no error-severity diagnostics, got %d", len(s.Errors()))
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Pos: ast.Position{Line: 2, Column: 7}, Severity: SeverityWarning, Message: "unused variable"}

	want := "2:7: warning: unused variable"
	if d.String() != want {
		t.Errorf("String() = %q, want %q", d.String(), want)
	}

	if d.Error() != want {
		t.Errorf("Error() = %q, want %q", d.Error(), want)
	}
}
