// Command citronc-lsp runs the citron language server over stdio,
// matching the teacher's cmd/yarlang-lsp/main.go transport wiring.
package main

import (
	"context"
	"io"
	"os"

	"github.com/arrowlang/citron/server"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// stdinStdout wraps stdin and stdout into a single ReadWriteCloser.
type stdinStdout struct {
	io.Reader
	io.Writer
}

func (s stdinStdout) Close() error {
	return nil
}

func main() {
	logger, err := newLogger()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	// LSP communicates over stdin/stdout, so logging must go to a file
	// instead of stdout to avoid corrupting the protocol stream.
	rwc := stdinStdout{Reader: os.Stdin, Writer: os.Stdout}
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))

	srv := server.New()

	srv.DiagnosticCallback = func(uri string, diagnostics []protocol.Diagnostic) {
		if err := conn.Notify(context.Background(), "textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
			URI:         protocol.DocumentURI(uri),
			Diagnostics: diagnostics,
		}); err != nil {
			logger.Error("failed to publish diagnostics", zap.String("uri", uri), zap.Error(err))
		}
	}

	handler := protocol.ServerHandler(srv, nil)

	ctx := context.Background()
	conn.Go(ctx, handler)

	<-conn.Done()

	if err := conn.Err(); err != nil {
		logger.Error("connection closed with error", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"/tmp/citronc-lsp.log"}
	cfg.ErrorOutputPaths = []string{"/tmp/citronc-lsp.log"}

	return cfg.Build()
}
