package main

import (
	"fmt"
	"os"

	"github.com/arrowlang/citron/build"
)

// runBuild runs the build.Builder pipeline over the citron.toml
// project rooted at args[0], or the current directory if args is
// empty.
func runBuild(args []string) error {
	projectRoot := "."
	if len(args) > 0 {
		projectRoot = args[0]
	}

	builder := build.NewBuilder(projectRoot)
	if err := builder.Build(); err != nil {
		return fmt.Errorf("build failed:\n%w", err)
	}

	return nil
}

func readSource(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", path, err)
	}

	return string(source), nil
}
