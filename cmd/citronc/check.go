package main

import (
	"fmt"
	"os"

	"github.com/arrowlang/citron/checker"
	"github.com/arrowlang/citron/diag"
	"github.com/arrowlang/citron/lexer"
	"github.com/arrowlang/citron/parser"
)

// runCheck lexes, parses, and type-checks a single source file,
// printing every diagnostic before failing. It does not lower or
// generate code — it is the "does this file make sense" fast path.
func runCheck(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: citronc check <file>")
	}

	inputFile := args[0]

	source, err := readSource(inputFile)
	if err != nil {
		return err
	}

	p := parser.New(lexer.New(source))
	file := p.ParseFile()

	if len(p.Errors()) > 0 {
		fmt.Fprintln(os.Stderr, "parser errors:")
		for _, msg := range p.Errors() {
			fmt.Fprintf(os.Stderr, "  %s\n", msg)
		}

		return fmt.Errorf("%s has %d parse error(s)", inputFile, len(p.Errors()))
	}

	sink := diag.NewSink()
	c := checker.New(sink)
	c.CheckFile(file)

	for _, d := range sink.Diagnostics() {
		fmt.Fprintln(os.Stderr, d.String())
	}

	if sink.HasErrors() {
		return fmt.Errorf("%s has %d error(s)", inputFile, len(sink.Errors()))
	}

	fmt.Printf("%s type-checks successfully\n", inputFile)

	return nil
}
