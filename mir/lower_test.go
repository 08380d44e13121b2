package mir

import (
	"testing"

	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/checker"
	"github.com/arrowlang/citron/diag"
	"github.com/arrowlang/citron/lexer"
	"github.com/arrowlang/citron/parser"
)

func lowerSource(t *testing.T, input string) (*Module, *diag.Sink) {
	t.Helper()

	p := parser.New(lexer.New(input))
	file := p.ParseFile()

	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	sink := diag.NewSink()
	c := checker.New(sink)

	if err := c.CheckFile(file); err != nil {
		t.Fatalf("CheckFile returned error: %v", err)
	}

	mod := Lower(file, c.Table(), c.Funcs(), c.StringPool(), sink)

	if sink.HasErrors() {
		t.Fatalf("lowering reported errors: %v", sink.Errors())
	}

	return mod, sink
}

func findFunc(t *testing.T, mod *Module, name string) *Function {
	t.Helper()

	for _, fn := range mod.Functions {
		if fn.Name == name {
			return fn
		}
	}

	t.Fatalf("no lowered function named %q", name)
	return nil
}

func stmtStrings(fn *Function) []string {
	out := make([]string, len(fn.Body))
	for i, s := range fn.Body {
		out[i] = s.String()
	}

	return out
}

// Scenario 1: if (a) b(); else c();
func TestLowerIfElse(t *testing.T) {
	mod, _ := lowerSource(t, `
int b(void);
int c(void);

int main(void) {
	int a;
	if (a) {
		b();
	} else {
		c();
	}
	return 0;
}
`)

	fn := findFunc(t, mod, "main")
	got := stmtStrings(fn)

	want := []string{
		"branch a -> L1, L2",
		"L1:",
		"Call(Addr(b), [])",
		"jump L3",
		"L2:",
		"Call(Addr(c), [])",
		"jump L3",
		"L3:",
		"return 0",
	}

	assertStmts(t, got, want)
}

// Scenario 2: while (i < n) i = i + 1;
func TestLowerWhile(t *testing.T) {
	mod, _ := lowerSource(t, `
int main(void) {
	int i;
	int n;
	while (i < n) {
		i = i + 1;
	}
	return 0;
}
`)

	fn := findFunc(t, mod, "main")
	got := stmtStrings(fn)

	want := []string{
		"L1:",
		"branch LT(i, n) -> L2, L3",
		"L2:",
		"i = ADD(i, 1)",
		"jump L1",
		"L3:",
		"return 0",
	}

	assertStmts(t, got, want)
}

// Scenario 3: x = a[i]; where a is int[10] (element size 4).
func TestLowerArrayIndex(t *testing.T) {
	mod, _ := lowerSource(t, `
int main(void) {
	int a[10];
	int i;
	int x;
	x = a[i];
	return 0;
}
`)

	fn := findFunc(t, mod, "main")

	var assign *Assign
	for _, s := range fn.Body {
		if a, ok := s.(*Assign); ok {
			if v, ok := a.Lhs.(*Var); ok && v.Entity.Name == "x" {
				assign = a
				break
			}
		}
	}

	if assign == nil {
		t.Fatal("expected to find the x = a[i] assignment")
	}

	mem, ok := assign.Rhs.(*Mem)
	if !ok {
		t.Fatalf("expected rhs to be a Mem, got %T", assign.Rhs)
	}

	want := "ADD(Addr(a), MUL(i, 4))"
	if mem.Addr.String() != want {
		t.Errorf("unexpected index address: got %q, want %q", mem.Addr.String(), want)
	}
}

// Scenario 4: p += 3; where p: int* has a constant (identifier) address.
func TestLowerOpAssignConstantAddress(t *testing.T) {
	mod, _ := lowerSource(t, `
int main(void) {
	int *p;
	p += 3;
	return 0;
}
`)

	fn := findFunc(t, mod, "main")

	var assign *Assign
	for _, s := range fn.Body {
		if a, ok := s.(*Assign); ok {
			if v, ok := a.Lhs.(*Var); ok && v.Entity.Name == "p" {
				assign = a
			}
		}
	}

	if assign == nil {
		t.Fatal("expected to find the p += 3 assignment")
	}

	want := "ADD(p, MUL(3, 4))"
	if assign.Rhs.String() != want {
		t.Errorf("unexpected op-assign rhs: got %q, want %q", assign.Rhs.String(), want)
	}
}

// Scenario 6: a && b used as a statement's sub-expression.
func TestLowerLogicalAnd(t *testing.T) {
	mod, _ := lowerSource(t, `
int main(void) {
	int a;
	int b;
	int x;
	x = a && b;
	return 0;
}
`)

	fn := findFunc(t, mod, "main")
	got := stmtStrings(fn)

	want := []string{
		"%t1 = a",
		"branch %t1 -> L1, L2",
		"L1:",
		"%t1 = b",
		"L2:",
		"x = %t1",
		"return 0",
	}

	assertStmts(t, got, want)
}

// Scenario 7: switch(x){ case 1: f(); case 2: g(); break; default: h(); }
func TestLowerSwitch(t *testing.T) {
	mod, _ := lowerSource(t, `
int f(void);
int g(void);
int h(void);

int main(void) {
	int x;
	switch (x) {
	case 1:
		f();
	case 2:
		g();
		break;
	default:
		h();
	}
	return 0;
}
`)

	fn := findFunc(t, mod, "main")
	got := stmtStrings(fn)

	want := []string{
		"switch x {1:L1, 2:L2 default:L3}",
		"L1:",
		"Call(Addr(f), [])",
		"L2:",
		"Call(Addr(g), [])",
		"jump L4",
		"L3:",
		"Call(Addr(h), [])",
		"L4:",
		"return 0",
	}

	assertStmts(t, got, want)
}

func assertStmts(t *testing.T, got, want []string) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("statement count mismatch: got %d (%v), want %d (%v)", len(got), got, len(want), want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLowerDuplicateLabelReportsError(t *testing.T) {
	p := parser.New(lexer.New(`
int main(void) {
done:
	return 0;
done:
	return 1;
}
`))
	file := p.ParseFile()

	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	sink := diag.NewSink()
	c := checker.New(sink)

	if err := c.CheckFile(file); err != nil {
		t.Fatalf("CheckFile returned error: %v", err)
	}

	Lower(file, c.Table(), c.Funcs(), c.StringPool(), sink)

	if !sink.HasErrors() {
		t.Fatal("expected a duplicate-label error")
	}
}

func TestLowerUndefinedGotoReportsError(t *testing.T) {
	p := parser.New(lexer.New(`
int main(void) {
	goto nowhere;
	return 0;
}
`))
	file := p.ParseFile()

	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	sink := diag.NewSink()
	c := checker.New(sink)

	if err := c.CheckFile(file); err != nil {
		t.Fatalf("CheckFile returned error: %v", err)
	}

	Lower(file, c.Table(), c.Funcs(), c.StringPool(), sink)

	if !sink.HasErrors() {
		t.Fatal("expected an undefined-label error")
	}
}

func TestLowerUnreferencedLabelWarns(t *testing.T) {
	p := parser.New(lexer.New(`
int main(void) {
unused:
	return 0;
}
`))
	file := p.ParseFile()

	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	sink := diag.NewSink()
	c := checker.New(sink)

	if err := c.CheckFile(file); err != nil {
		t.Fatalf("CheckFile returned error: %v", err)
	}

	Lower(file, c.Table(), c.Funcs(), c.StringPool(), sink)

	if sink.HasErrors() {
		t.Fatalf("did not expect errors, got %v", sink.Errors())
	}

	warnings := sink.Diagnostics()
	found := false
	for _, d := range warnings {
		if d.Severity == diag.SeverityWarning {
			found = true
		}
	}

	if !found {
		t.Fatal("expected an unreferenced-label warning")
	}
}

func TestLowerBreakOutsideLoopReportsError(t *testing.T) {
	p := parser.New(lexer.New(`
int main(void) {
	break;
	return 0;
}
`))
	file := p.ParseFile()

	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	sink := diag.NewSink()
	c := checker.New(sink)

	if err := c.CheckFile(file); err != nil {
		t.Fatalf("CheckFile returned error: %v", err)
	}

	Lower(file, c.Table(), c.Funcs(), c.StringPool(), sink)

	if !sink.HasErrors() {
		t.Fatal("expected a break-outside-loop error")
	}
}

func TestValidateAcceptsWellFormedFunction(t *testing.T) {
	mod, _ := lowerSource(t, `
int main(void) {
	int i;
	int n;
	while (i < n) {
		i = i + 1;
	}
	return 0;
}
`)

	fn := findFunc(t, mod, "main")

	if errs := Validate(fn); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestValidateRejectsAssignToAddr(t *testing.T) {
	ent := &ast.Entity{Name: "x", Type: nil}
	fn := &Function{
		Name: "broken",
		Body: []Stmt{
			&Assign{Lhs: &Addr{Inner: &Var{Entity: ent}}, Rhs: &IntValue{N: 1}},
			&Return{},
		},
	}

	errs := Validate(fn)
	if len(errs) == 0 {
		t.Fatal("expected a validation error for an Addr assignment target")
	}
}

func TestValidateRejectsUndefinedJumpTarget(t *testing.T) {
	fn := &Function{
		Name: "broken",
		Body: []Stmt{
			&Jump{Target: Label(99)},
		},
	}

	errs := Validate(fn)
	if len(errs) == 0 {
		t.Fatal("expected a validation error for an undefined jump target")
	}
}
