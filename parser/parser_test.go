package parser

import (
	"testing"

	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/lexer"
)

func parseFile(t *testing.T, input string) *ast.File {
	t.Helper()

	p := New(lexer.New(input))

	f := p.ParseFile()
	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	return f
}

func TestParseSimpleFunc(t *testing.T) {
	f := parseFile(t, `
int add(int a, int b) {
	return a + b;
}
`)

	funcs := f.Funcs()
	if len(funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(funcs))
	}

	fn := funcs[0]
	if fn.Name != "add" {
		t.Fatalf("expected name add, got %s", fn.Name)
	}

	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}

	if fn.ReturnType == nil || fn.ReturnType.String() != "int" {
		t.Fatalf("expected int return type, got %v", fn.ReturnType)
	}

	if len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected 1 statement in body, got %d", len(fn.Body.Stmts))
	}

	ret, ok := fn.Body.Stmts[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("expected ReturnStmt, got %T", fn.Body.Stmts[0])
	}

	bin, ok := ret.Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", ret.Value)
	}

	if bin.Op != "+" {
		t.Fatalf("expected +, got %s", bin.Op)
	}
}

func TestParseVoidFunc(t *testing.T) {
	f := parseFile(t, `void noop(void) { }`)

	fn := f.Funcs()[0]
	if fn.ReturnType != nil {
		t.Fatalf("expected nil ReturnType for void, got %v", fn.ReturnType)
	}

	if len(fn.Params) != 0 {
		t.Fatalf("expected 0 params for (void), got %d", len(fn.Params))
	}
}

func TestParseVarDeclWithPointerAndArray(t *testing.T) {
	f := parseFile(t, `
int global_count = 0;
static char *name;
int table[10];
`)

	globals := f.Globals()
	if len(globals) != 3 {
		t.Fatalf("expected 3 globals, got %d", len(globals))
	}

	if globals[0].Name != "global_count" || globals[0].Init == nil {
		t.Fatalf("unexpected first global: %+v", globals[0])
	}

	if !globals[1].IsPrivate {
		t.Fatalf("expected static var to be private")
	}

	if _, ok := globals[1].TypeExpr.(*ast.PointerTypeExpr); !ok {
		t.Fatalf("expected pointer type, got %T", globals[1].TypeExpr)
	}

	arr, ok := globals[2].TypeExpr.(*ast.ArrayTypeExpr)
	if !ok {
		t.Fatalf("expected array type, got %T", globals[2].TypeExpr)
	}

	lit, ok := arr.Len.(*ast.IntLit)
	if !ok || lit.Value != 10 {
		t.Fatalf("expected array length 10, got %v", arr.Len)
	}
}

func TestParseStructDecl(t *testing.T) {
	f := parseFile(t, `
struct Point {
	int x;
	int y;
};

struct Point origin;
`)

	structs := f.Structs()
	if len(structs) != 1 {
		t.Fatalf("expected 1 struct, got %d", len(structs))
	}

	if structs[0].Name != "Point" || len(structs[0].Fields) != 2 {
		t.Fatalf("unexpected struct: %+v", structs[0])
	}

	globals := f.Globals()
	if len(globals) != 1 {
		t.Fatalf("expected 1 global, got %d", len(globals))
	}

	named, ok := globals[0].TypeExpr.(*ast.NamedTypeExpr)
	if !ok || named.Name != "Point" {
		t.Fatalf("expected NamedTypeExpr Point, got %+v", globals[0].TypeExpr)
	}
}

func TestParseIfElseChain(t *testing.T) {
	f := parseFile(t, `
int classify(int x) {
	if (x < 0) {
		return -1;
	} else if (x == 0) {
		return 0;
	} else {
		return 1;
	}
}
`)

	fn := f.Funcs()[0]
	ifStmt, ok := fn.Body.Stmts[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected IfStmt, got %T", fn.Body.Stmts[0])
	}

	elseIf, ok := ifStmt.Else.(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected nested IfStmt for else-if, got %T", ifStmt.Else)
	}

	if _, ok := elseIf.Else.(*ast.Block); !ok {
		t.Fatalf("expected final else Block, got %T", elseIf.Else)
	}
}

func TestParseForLoop(t *testing.T) {
	f := parseFile(t, `
int sum(void) {
	int total = 0;
	for (int i = 0; i < 10; i = i + 1) {
		total = total + i;
	}
	return total;
}
`)

	fn := f.Funcs()[0]
	forStmt, ok := fn.Body.Stmts[1].(*ast.ForStmt)
	if !ok {
		t.Fatalf("expected ForStmt, got %T", fn.Body.Stmts[1])
	}

	if _, ok := forStmt.Init.(*ast.VarDecl); !ok {
		t.Fatalf("expected VarDecl init, got %T", forStmt.Init)
	}

	if forStmt.Cond == nil || forStmt.Post == nil {
		t.Fatalf("expected cond and post to be set")
	}
}

func TestParseWhileAndDoWhile(t *testing.T) {
	f := parseFile(t, `
int loop(void) {
	int i = 0;
	while (i < 5) {
		i++;
	}
	do {
		i--;
	} while (i > 0);
	return i;
}
`)

	fn := f.Funcs()[0]

	if _, ok := fn.Body.Stmts[1].(*ast.WhileStmt); !ok {
		t.Fatalf("expected WhileStmt, got %T", fn.Body.Stmts[1])
	}

	if _, ok := fn.Body.Stmts[2].(*ast.DoWhileStmt); !ok {
		t.Fatalf("expected DoWhileStmt, got %T", fn.Body.Stmts[2])
	}
}

func TestParseSwitchStmt(t *testing.T) {
	f := parseFile(t, `
int dispatch(int code) {
	switch (code) {
	case 1:
		return 10;
	case 2:
		return 20;
	default:
		return -1;
	}
}
`)

	fn := f.Funcs()[0]

	sw, ok := fn.Body.Stmts[0].(*ast.SwitchStmt)
	if !ok {
		t.Fatalf("expected SwitchStmt, got %T", fn.Body.Stmts[0])
	}

	if len(sw.Cases) != 2 {
		t.Fatalf("expected 2 case clauses, got %d", len(sw.Cases))
	}

	if sw.Default == nil {
		t.Fatalf("expected default clause")
	}
}

func TestParseGotoAndLabel(t *testing.T) {
	f := parseFile(t, `
int loopback(void) {
	int i = 0;
top:
	i = i + 1;
	if (i < 3) {
		goto top;
	}
	return i;
}
`)

	fn := f.Funcs()[0]

	label, ok := fn.Body.Stmts[1].(*ast.LabelStmt)
	if !ok {
		t.Fatalf("expected LabelStmt, got %T", fn.Body.Stmts[1])
	}

	if label.Name != "top" {
		t.Fatalf("expected label top, got %s", label.Name)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	f := parseFile(t, `
int f(void) {
	return 1 + 2 * 3 == 7 && !0;
}
`)

	fn := f.Funcs()[0]
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)

	top, ok := ret.Value.(*ast.BinaryExpr)
	if !ok || top.Op != "&&" {
		t.Fatalf("expected top-level &&, got %#v", ret.Value)
	}

	eq, ok := top.Left.(*ast.BinaryExpr)
	if !ok || eq.Op != "==" {
		t.Fatalf("expected == on the left of &&, got %#v", top.Left)
	}

	sum, ok := eq.Left.(*ast.BinaryExpr)
	if !ok || sum.Op != "+" {
		t.Fatalf("expected + inside ==, got %#v", eq.Left)
	}

	if _, ok := sum.Right.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected * to bind tighter than +, got %#v", sum.Right)
	}
}

func TestParseTernaryAndAssignRightAssoc(t *testing.T) {
	f := parseFile(t, `
int f(void) {
	int a;
	int b;
	int c;
	a = b = c ? 1 : 2;
	return a;
}
`)

	fn := f.Funcs()[0]
	exprStmt := fn.Body.Stmts[3].(*ast.ExprStmt)

	outer, ok := exprStmt.X.(*ast.AssignExpr)
	if !ok {
		t.Fatalf("expected AssignExpr, got %T", exprStmt.X)
	}

	inner, ok := outer.Rhs.(*ast.AssignExpr)
	if !ok {
		t.Fatalf("expected nested AssignExpr (right-assoc), got %T", outer.Rhs)
	}

	if _, ok := inner.Rhs.(*ast.CondExpr); !ok {
		t.Fatalf("expected CondExpr rhs, got %T", inner.Rhs)
	}
}

func TestParsePointerAndMemberAccess(t *testing.T) {
	f := parseFile(t, `
struct Point { int x; int y; };

int getx(struct Point *p) {
	return p->x;
}
`)

	fn := f.Funcs()[0]
	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)

	mem, ok := ret.Value.(*ast.MemberExpr)
	if !ok {
		t.Fatalf("expected MemberExpr, got %T", ret.Value)
	}

	if !mem.Arrow || mem.Field != "x" {
		t.Fatalf("unexpected member expr: %+v", mem)
	}
}

func TestParseArrayIndexAndCall(t *testing.T) {
	f := parseFile(t, `
int get(int arr[], int i) {
	return arr[i] + f(i, 1);
}
`)

	fn := f.Funcs()[0]

	if _, ok := fn.Params[0].TypeExpr.(*ast.PointerTypeExpr); !ok {
		t.Fatalf("expected decayed pointer param type, got %T", fn.Params[0].TypeExpr)
	}

	ret := fn.Body.Stmts[0].(*ast.ReturnStmt)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected BinaryExpr, got %T", ret.Value)
	}

	if _, ok := bin.Left.(*ast.IndexExpr); !ok {
		t.Fatalf("expected IndexExpr on left, got %T", bin.Left)
	}

	if _, ok := bin.Right.(*ast.CallExpr); !ok {
		t.Fatalf("expected CallExpr on right, got %T", bin.Right)
	}
}

func TestParseCastAndSizeof(t *testing.T) {
	f := parseFile(t, `
struct Point { int x; int y; };

int f(void) {
	int x;
	x = (int)sizeof(struct Point);
	return x;
}
`)

	fn := f.Funcs()[0]
	exprStmt := fn.Body.Stmts[1].(*ast.ExprStmt)

	assign, ok := exprStmt.X.(*ast.AssignExpr)
	if !ok {
		t.Fatalf("expected AssignExpr, got %T", exprStmt.X)
	}

	cast, ok := assign.Rhs.(*ast.CastExpr)
	if !ok {
		t.Fatalf("expected CastExpr, got %T", assign.Rhs)
	}

	if cast.Target == nil || cast.Target.String() != "int" {
		t.Fatalf("expected int cast target, got %v", cast.Target)
	}

	if _, ok := cast.X.(*ast.SizeofExpr); !ok {
		t.Fatalf("expected SizeofExpr operand, got %T", cast.X)
	}
}

func TestParseIncDecPrefixAndPostfix(t *testing.T) {
	f := parseFile(t, `
int f(void) {
	int i = 0;
	i++;
	--i;
	return i;
}
`)

	fn := f.Funcs()[0]

	post := fn.Body.Stmts[1].(*ast.ExprStmt).X.(*ast.IncDecExpr)
	if post.Prefix || post.Op != "++" {
		t.Fatalf("expected postfix ++, got %+v", post)
	}

	pre := fn.Body.Stmts[2].(*ast.ExprStmt).X.(*ast.IncDecExpr)
	if !pre.Prefix || pre.Op != "--" {
		t.Fatalf("expected prefix --, got %+v", pre)
	}
}
