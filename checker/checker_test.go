package checker

import (
	"testing"

	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/diag"
	"github.com/arrowlang/citron/lexer"
	"github.com/arrowlang/citron/parser"
	"github.com/arrowlang/citron/types"
)

func checkSource(t *testing.T, input string) (*ast.File, *Checker, *diag.Sink) {
	t.Helper()

	p := parser.New(lexer.New(input))
	file := p.ParseFile()

	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	sink := diag.NewSink()
	c := New(sink)

	if err := c.CheckFile(file); err != nil {
		t.Fatalf("CheckFile returned error: %v", err)
	}

	return file, c, sink
}

func TestCheckResolvesLocalAndGlobalEntities(t *testing.T) {
	file, _, _ := checkSource(t, `
static int counter = 0;

int bump(int n) {
	int total;
	total = counter + n;
	return total;
}
`)

	globals := file.Globals()
	if len(globals) != 1 || globals[0].Entity == nil {
		t.Fatalf("expected global counter to have a resolved Entity")
	}

	if globals[0].Entity.Storage != ast.StorageStatic {
		t.Errorf("expected global storage class static, got %v", globals[0].Entity.Storage)
	}

	fn := file.Funcs()[0]
	if fn.Params[0].Entity == nil || fn.Params[0].Entity.Storage != ast.StorageParam {
		t.Fatalf("expected param n to resolve to a StorageParam entity")
	}

	assign := fn.Body.Stmts[1].(*ast.ExprStmt).X.(*ast.AssignExpr)
	if assign.Type() != types.IntType {
		t.Errorf("expected assignment type int, got %v", assign.Type())
	}

	ref := assign.Rhs.(*ast.BinaryExpr).Left.(*ast.Ident)
	if ref.Entity == nil || ref.Entity.Name != "counter" {
		t.Fatalf("expected identifier to resolve to the counter entity")
	}
}

func TestCheckStructFieldOffsets(t *testing.T) {
	file, checker, _ := checkSource(t, `
struct Point {
	int x;
	char tag;
	int y;
};

int main(void) {
	struct Point p;
	p.y = 1;
	return 0;
}
`)

	st, ok := checker.Table().LookupStruct("Point")
	if !ok {
		t.Fatal("expected Point to be registered in the type table")
	}

	xField, _ := st.Field("x")
	tagField, _ := st.Field("tag")
	yField, _ := st.Field("y")

	if xField.Offset != 0 {
		t.Errorf("expected x offset 0, got %d", xField.Offset)
	}

	if tagField.Offset != 4 {
		t.Errorf("expected tag offset 4, got %d", tagField.Offset)
	}

	if yField.Offset != 8 {
		t.Errorf("expected y offset 8 (padded for int alignment), got %d", yField.Offset)
	}

	sd := file.Structs()[0]
	if sd.Fields[2].Offset != 8 {
		t.Errorf("expected StructDecl.Fields[2].Offset to be filled in as 8, got %d", sd.Fields[2].Offset)
	}

	main := file.Funcs()[0]
	member := main.Body.Stmts[1].(*ast.ExprStmt).X.(*ast.AssignExpr).Lhs.(*ast.MemberExpr)

	if member.Offset != 8 {
		t.Errorf("expected member access offset 8, got %d", member.Offset)
	}
}

func TestCheckArrayIndexMetadata(t *testing.T) {
	file, _, _ := checkSource(t, `
int main(void) {
	int a[10];
	int x;
	x = a[3];
	return 0;
}
`)

	main := file.Funcs()[0]
	idx := main.Body.Stmts[2].(*ast.ExprStmt).X.(*ast.AssignExpr).Rhs.(*ast.IndexExpr)

	if idx.ElementSize != 4 {
		t.Errorf("expected element size 4, got %d", idx.ElementSize)
	}

	if idx.Length != 10 {
		t.Errorf("expected length 10, got %d", idx.Length)
	}

	if idx.IsMultiDimension {
		t.Error("expected single-dimension array to not be flagged multi-dimension")
	}
}

func TestCheckPointerArithmeticType(t *testing.T) {
	file, _, _ := checkSource(t, `
int main(void) {
	int a[4];
	int *p;
	p = a;
	p = p + 1;
	return 0;
}
`)

	main := file.Funcs()[0]
	add := main.Body.Stmts[3].(*ast.ExprStmt).X.(*ast.AssignExpr).Rhs.(*ast.BinaryExpr)

	if _, ok := add.Type().(*types.PointerType); !ok {
		t.Errorf("expected pointer + int to have pointer type, got %v", add.Type())
	}
}

func TestCheckCastEffectiveness(t *testing.T) {
	file, _, _ := checkSource(t, `
int main(void) {
	int x;
	char c;
	x = (int)c;
	x = (int)x;
	return 0;
}
`)

	main := file.Funcs()[0]

	effective := main.Body.Stmts[2].(*ast.ExprStmt).X.(*ast.AssignExpr).Rhs.(*ast.CastExpr)
	if !effective.IsEffectiveCast {
		t.Error("expected (int)c to be an effective cast (char -> int)")
	}

	noop := main.Body.Stmts[3].(*ast.ExprStmt).X.(*ast.AssignExpr).Rhs.(*ast.CastExpr)
	if noop.IsEffectiveCast {
		t.Error("expected (int)x to be a no-op cast")
	}
}

func TestCheckSizeofResolvesAllocSize(t *testing.T) {
	file, _, _ := checkSource(t, `
struct Point { int x; int y; };

int main(void) {
	int n;
	n = sizeof(struct Point);
	return 0;
}
`)

	main := file.Funcs()[0]
	sz := main.Body.Stmts[1].(*ast.ExprStmt).X.(*ast.AssignExpr).Rhs.(*ast.SizeofExpr)

	if sz.AllocSize != 8 {
		t.Errorf("expected sizeof(struct Point) == 8, got %d", sz.AllocSize)
	}
}

func TestCheckStringLiteralPoolOffsets(t *testing.T) {
	file, checker, _ := checkSource(t, `
int puts(char *s);

int main(void) {
	puts("hello");
	puts("world");
	return 0;
}
`)

	main := file.Funcs()[1]

	first := main.Body.Stmts[0].(*ast.ExprStmt).X.(*ast.CallExpr).Args[0].(*ast.StringLit)
	second := main.Body.Stmts[1].(*ast.ExprStmt).X.(*ast.CallExpr).Args[0].(*ast.StringLit)

	if first.PoolOffset != 0 || second.PoolOffset != 1 {
		t.Errorf("expected pool offsets 0 and 1, got %d and %d", first.PoolOffset, second.PoolOffset)
	}

	pool := checker.StringPool()
	if len(pool) != 2 || pool[0] != "hello" || pool[1] != "world" {
		t.Fatalf("unexpected string pool contents: %v", pool)
	}
}

func TestCheckUndefinedIdentifierReportsError(t *testing.T) {
	p := parser.New(lexer.New(`
int main(void) {
	return missing;
}
`))
	file := p.ParseFile()

	sink := diag.NewSink()
	c := New(sink)

	if err := c.CheckFile(file); err == nil {
		t.Fatal("expected an error for an undefined identifier")
	}

	if !sink.HasErrors() {
		t.Fatal("expected the sink to record an error diagnostic")
	}
}
