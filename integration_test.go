package main

import (
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/arrowlang/citron/build"
)

// TestBuildAndRunHello builds testdata/hello via build.Builder and
// runs the resulting executable, matching the teacher's single
// top-level "build a whole project, execute it, compare output"
// integration test — requires clang on PATH.
func TestBuildAndRunHello(t *testing.T) {
	projectDir := filepath.Join("testdata", "hello")

	builder := build.NewBuilder(projectDir)
	if err := builder.Build(); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	exePath := filepath.Join(projectDir, "build", "bin", "hello")

	cmd := exec.Command(exePath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("execution failed: %v\n%s", err, output)
	}

	want := "01234\n"
	if string(output) != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}
