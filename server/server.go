// Package server implements the subset of the Language Server Protocol
// the teacher wired up: initialize, textDocument/didOpen,
// textDocument/didChange, and textDocument/didClose, publishing
// diagnostics after every parse/check/lower pass over the document.
//
// Grounded on the teacher's server/server.go (Server/Document shape,
// DiagnosticCallback publish pattern), domain-adapted from yarlang's
// analysis.SymbolTable-backed completion/hover/go-to-definition (which
// citron's checker has no equivalent symbol-table API for) down to the
// diagnostics-only subset spec.md's editor integration calls for.
package server

import (
	"context"
	"fmt"

	"github.com/arrowlang/citron/diag"
	"go.lsp.dev/protocol"
)

// Server implements the LSP server.
type Server struct {
	documents          map[string]*Document
	DiagnosticCallback func(uri string, diagnostics []protocol.Diagnostic)
}

// New creates a new LSP server.
func New() *Server {
	return &Server{
		documents: make(map[string]*Document),
	}
}

// Initialize handles the initialize request.
func (s *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "citronc-lsp",
			Version: "0.1.0",
		},
	}, nil
}

// DidOpen handles the textDocument/didOpen notification.
func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	doc := &Document{
		URI:     uri,
		Version: int(params.TextDocument.Version),
		Content: params.TextDocument.Text,
	}

	doc.Parse()
	doc.Analyze()

	s.documents[uri] = doc

	s.publishDiagnostics(uri, doc)

	return nil
}

// DidChange handles the textDocument/didChange notification. Sync is
// full-document, so only the latest content change matters.
func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := string(params.TextDocument.URI)

	doc, ok := s.documents[uri]
	if !ok {
		return fmt.Errorf("document not found: %s", uri)
	}

	if len(params.ContentChanges) > 0 {
		doc.Update(params.ContentChanges[0].Text, int(params.TextDocument.Version))
		s.publishDiagnostics(uri, doc)
	}

	return nil
}

// DidClose handles the textDocument/didClose notification.
func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := string(params.TextDocument.URI)
	delete(s.documents, uri)

	return nil
}

// publishDiagnostics converts doc's collected diagnostics to protocol
// diagnostics and hands them to DiagnosticCallback.
func (s *Server) publishDiagnostics(uri string, doc *Document) {
	if s.DiagnosticCallback == nil {
		return
	}

	diagnostics := []protocol.Diagnostic{}

	for _, d := range doc.Diagnostics {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == diag.SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}

		pos := protocol.Position{
			Line:      uint32(max(d.Pos.Line-1, 0)),
			Character: uint32(max(d.Pos.Column-1, 0)),
		}

		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: severity,
			Message:  d.Message,
			Source:   "citronc-lsp",
		})
	}

	s.DiagnosticCallback(uri, diagnostics)
}
