package server

import (
	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/checker"
	"github.com/arrowlang/citron/diag"
	"github.com/arrowlang/citron/lexer"
	"github.com/arrowlang/citron/mir"
	"github.com/arrowlang/citron/parser"
)

// Document represents one open text document and the result of the
// last time it was checked.
type Document struct {
	URI         string
	Version     int
	Content     string
	File        *ast.File
	Diagnostics []diag.Diagnostic
}

// Parse lexes and parses the document content, updating File, and
// reports parse errors as diagnostics. File is always set, since
// ParseFile never returns nil, but Analyze skips a File whose parse
// reported errors.
func (d *Document) Parse() {
	p := parser.New(lexer.New(d.Content))
	d.File = p.ParseFile()

	sink := diag.NewSink()
	for _, msg := range p.Errors() {
		sink.Error(ast.Position{}, "%s", msg)
	}

	d.Diagnostics = sink.Diagnostics()
}

// Analyze runs the checker and lowering pass over the parsed File,
// reporting every diagnostic from both stages. It is a no-op when
// Parse already reported a parse error, since checker and mir both
// assume a syntactically valid File.
func (d *Document) Analyze() {
	if d.File == nil || len(d.Diagnostics) != 0 {
		return
	}

	sink := diag.NewSink()
	c := checker.New(sink)
	c.CheckFile(d.File)

	if !sink.HasErrors() {
		mir.Lower(d.File, c.Table(), c.Funcs(), c.StringPool(), sink)
	}

	d.Diagnostics = sink.Diagnostics()
}

// Update replaces the document content, re-parses, and re-analyzes.
func (d *Document) Update(content string, version int) {
	d.Content = content
	d.Version = version
	d.Parse()
	d.Analyze()
}
