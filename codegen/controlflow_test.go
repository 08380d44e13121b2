package codegen

import (
	"strings"
	"testing"
)

func TestCodegenIfStmt(t *testing.T) {
	gen := generateSource(t, `
int main(void) {
	int x;
	x = 10;
	if (x > 5) {
		x = 1;
	}
	return x;
}
`)

	ir := gen.EmitIR()
	if !strings.Contains(ir, "br i1") {
		t.Errorf("expected conditional branch in IR, got:\n%s", ir)
	}
}

func TestCodegenIfElseStmt(t *testing.T) {
	gen := generateSource(t, `
int main(void) {
	int x;
	x = 3;
	if (x > 5) {
		x = 10;
	} else {
		x = 20;
	}
	return x;
}
`)

	ir := gen.EmitIR()
	if !strings.Contains(ir, "br i1") {
		t.Errorf("expected conditional branch in IR, got:\n%s", ir)
	}

	if strings.Count(ir, "br label") < 1 {
		t.Errorf("expected at least one unconditional branch joining the if arms, got:\n%s", ir)
	}
}

func TestCodegenWhileLoop(t *testing.T) {
	gen := generateSource(t, `
int main(void) {
	int i;
	int sum;
	i = 0;
	sum = 0;
	while (i < 5) {
		sum = sum + i;
		i = i + 1;
	}
	return sum;
}
`)

	ir := gen.EmitIR()
	if !strings.Contains(ir, "br i1") {
		t.Errorf("expected loop condition branch in IR, got:\n%s", ir)
	}

	if !strings.Contains(ir, "br label") {
		t.Errorf("expected unconditional back-edge branch in IR, got:\n%s", ir)
	}
}

func TestCodegenForLoopWithBreak(t *testing.T) {
	gen := generateSource(t, `
int main(void) {
	int i;
	int sum;
	sum = 0;
	for (i = 0; i < 10; i = i + 1) {
		if (i > 3) {
			break;
		}
		sum = sum + i;
	}
	return sum;
}
`)

	ir := gen.EmitIR()
	if !strings.Contains(ir, "br i1") {
		t.Errorf("expected conditional branches in IR, got:\n%s", ir)
	}
}

func TestCodegenSwitchFallThrough(t *testing.T) {
	gen := generateSource(t, `
int f(void);
int g(void);
int h(void);

int main(void) {
	int x;
	x = 1;
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

	ir := gen.EmitIR()
	if !strings.Contains(ir, "switch i32") {
		t.Errorf("expected an LLVM switch instruction, got:\n%s", ir)
	}

	if !strings.Contains(ir, "call i32 @f()") || !strings.Contains(ir, "call i32 @g()") {
		t.Errorf("expected calls to both case bodies, got:\n%s", ir)
	}
}
