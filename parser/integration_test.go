package parser

import (
	"strings"
	"testing"

	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/lexer"
)

func TestParseFileEndToEnd(t *testing.T) {
	input := `
struct Point {
	int x;
	int y;
};

int distance_sq(struct Point *a, struct Point *b) {
	int dx;
	int dy;
	dx = a->x - b->x;
	dy = a->y - b->y;
	return dx * dx + dy * dy;
}

static int call_count = 0;

int main(void) {
	struct Point origin;
	origin.x = 0;
	origin.y = 0;

	call_count++;

	int i;
	for (i = 0; i < 3; i++) {
		if (i == 1) {
			continue;
		}
		call_count = call_count + i;
	}

	return call_count;
}
`

	l := lexer.New(input)
	p := New(l)
	file := p.ParseFile()

	if len(p.Errors()) != 0 {
		t.Fatalf("parser errors: %v", p.Errors())
	}

	if len(file.Structs()) != 1 {
		t.Fatalf("expected 1 struct, got %d", len(file.Structs()))
	}

	if len(file.Globals()) != 1 {
		t.Fatalf("expected 1 global, got %d", len(file.Globals()))
	}

	funcs := file.Funcs()
	if len(funcs) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(funcs))
	}

	if funcs[0].Name != "distance_sq" || funcs[1].Name != "main" {
		t.Fatalf("unexpected function order: %s, %s", funcs[0].Name, funcs[1].Name)
	}

	result := file.String()

	for _, want := range []string{"struct Point", "distance_sq", "main", "for (", "if ("} {
		if !strings.Contains(result, want) {
			t.Errorf("expected rendered file to contain %q", want)
		}
	}

	mainFn := funcs[1]

	var sawFor bool

	for _, s := range mainFn.Body.Stmts {
		if _, ok := s.(*ast.ForStmt); ok {
			sawFor = true
		}
	}

	if !sawFor {
		t.Fatalf("expected main's body to contain a ForStmt")
	}
}
