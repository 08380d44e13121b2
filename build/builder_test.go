package build

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProject(t *testing.T, tmpDir, source string) {
	t.Helper()

	citronToml := filepath.Join(tmpDir, "citron.toml")
	if err := os.WriteFile(citronToml, []byte(`[package]
name = "test"
sources = ["main.c"]
`), 0644); err != nil {
		t.Fatal(err)
	}

	mainFile := filepath.Join(tmpDir, "main.c")
	if err := os.WriteFile(mainFile, []byte(source), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestBuildSinglePackage(t *testing.T) {
	tmpDir := t.TempDir()
	writeProject(t, tmpDir, `int main(void) { return 0; }`)

	builder := NewBuilder(tmpDir)

	if err := builder.Build(); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	irFile := filepath.Join(tmpDir, "build", "ir", "test.ll")
	if _, err := os.Stat(irFile); err != nil {
		t.Errorf("IR file not created: %v", err)
	}
}

func TestIncrementalBuild(t *testing.T) {
	tmpDir := t.TempDir()
	writeProject(t, tmpDir, `int main(void) { return 1; }`)

	builder := NewBuilder(tmpDir)

	if err := builder.Build(); err != nil {
		t.Fatalf("first build failed: %v", err)
	}

	irFile := filepath.Join(tmpDir, "build", "ir", "test.ll")
	info1, err := os.Stat(irFile)
	if err != nil {
		t.Fatalf("IR file missing after first build: %v", err)
	}

	if err := builder.Build(); err != nil {
		t.Fatalf("second build failed: %v", err)
	}

	info2, err := os.Stat(irFile)
	if err != nil {
		t.Fatalf("IR file missing after second build: %v", err)
	}

	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Error("IR file was regenerated unnecessarily")
	}

	writeProject(t, tmpDir, `int main(void) { return 2; }`)

	if err := builder.Build(); err != nil {
		t.Fatalf("third build failed: %v", err)
	}

	info3, err := os.Stat(irFile)
	if err != nil {
		t.Fatalf("IR file missing after third build: %v", err)
	}

	if info2.ModTime().Equal(info3.ModTime()) {
		t.Error("IR file was not regenerated after source change")
	}
}

func TestBuildReportsEveryDiagnostic(t *testing.T) {
	tmpDir := t.TempDir()
	writeProject(t, tmpDir, `
int main(void) {
	goto missing;
	return 0;
}
`)

	builder := NewBuilder(tmpDir)

	err := builder.Build()
	if err == nil {
		t.Fatal("expected build to fail for an undefined label")
	}
}
