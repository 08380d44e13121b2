package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/arrowlang/citron/checker"
	"github.com/arrowlang/citron/diag"
	"github.com/arrowlang/citron/lexer"
	"github.com/arrowlang/citron/mir"
	"github.com/arrowlang/citron/parser"
	"github.com/segmentio/encoding/json"
)

// runDumpMIR lexes, parses, checks, and lowers a single source file,
// then prints the resulting mir.Module as indented JSON — useful for
// inspecting what the lowering pass produced for a given input.
func runDumpMIR(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: citronc dump-mir <file>")
	}

	inputFile := args[0]

	source, err := readSource(inputFile)
	if err != nil {
		return err
	}

	p := parser.New(lexer.New(source))
	file := p.ParseFile()

	if len(p.Errors()) > 0 {
		return fmt.Errorf("%s: parse errors: %v", inputFile, p.Errors())
	}

	sink := diag.NewSink()
	c := checker.New(sink)
	c.CheckFile(file)

	if sink.HasErrors() {
		return diagErrors(inputFile, sink)
	}

	mod := mir.Lower(file, c.Table(), c.Funcs(), c.StringPool(), sink)

	if sink.HasErrors() {
		return diagErrors(inputFile, sink)
	}

	out, err := json.MarshalIndent(mod, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal MIR: %w", err)
	}

	_, err = os.Stdout.Write(append(out, '\n'))

	return err
}

func diagErrors(inputFile string, sink *diag.Sink) error {
	var msgs []string
	for _, d := range sink.Errors() {
		msgs = append(msgs, d.String())
	}

	return fmt.Errorf("%s: %d error(s):\n  %s", inputFile, len(msgs), strings.Join(msgs, "\n  "))
}
