// Command citronc is the compiler driver: it dispatches to build,
// check, and dump-mir, the same way the teacher's cmd/yar dispatches
// to build/run/check.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error

	switch command {
	case "build":
		err = runBuild(args)
	case "check":
		err = runCheck(args)
	case "dump-mir":
		err = runDumpMIR(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("citronc - the citron compiler")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  citronc build [project dir]     Build a citron.toml project")
	fmt.Println("  citronc check <file>            Type-check a single source file")
	fmt.Println("  citronc dump-mir <file>         Print a single file's lowered IR as JSON")
}
