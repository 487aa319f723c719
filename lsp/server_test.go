package lsp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/dhamidi/clangcomplete/binding"
	"github.com/dhamidi/clangcomplete/complete"
	"github.com/dhamidi/clangcomplete/engine"
	"github.com/dhamidi/clangcomplete/engine/enginetest"
	"github.com/dhamidi/clangcomplete/pipeline"
)

type notification struct {
	method string
	params any
}

type recorder struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recorder) notify(method string, params any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{method: method, params: params})
}

func (r *recorder) diagnostics(t *testing.T) []protocol.PublishDiagnosticsParams {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.PublishDiagnosticsParams
	for _, n := range r.sent {
		if n.method == protocol.ServerTextDocumentPublishDiagnostics {
			out = append(out, n.params.(protocol.PublishDiagnosticsParams))
		}
	}
	return out
}

func newTestServer(t *testing.T, b *binding.Binding) (*Server, *recorder, *glsp.Context) {
	t.Helper()
	o, err := pipeline.New(b, pipeline.Config{})
	require.NoError(t, err)
	t.Cleanup(o.Shutdown)

	ls := NewServer("test", o, pipeline.InitOptions{StdFlag: "-std=c++11"})
	rec := &recorder{}
	ctx := &glsp.Context{Notify: rec.notify}

	root := "/work/project"
	_, err = ls.initialize(ctx, &protocol.InitializeParams{RootPath: &root})
	require.NoError(t, err)
	return ls, rec, ctx
}

func TestUriToPath(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"file:///home/user/src/main.cpp", "/home/user/src/main.cpp"},
		{"file:///tmp/with%20space/a.c", "/tmp/with space/a.c"},
		{"/already/a/path.h", "/already/a/path.h"},
	}
	for _, tt := range tests {
		got, err := uriToPath(tt.uri)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.uri)
	}
}

func TestToProtocolDiagnostics(t *testing.T) {
	diags := []engine.Diagnostic{
		{Severity: engine.SeverityError, Path: "/src/a.cpp", Line: 3, Column: 5, Message: "use of undeclared identifier 'x'"},
		{Severity: engine.SeverityWarning, Path: "/src/a.cpp", Line: 1, Column: 1, Message: "unused variable"},
		{Severity: engine.SeverityNote, Path: "/src/a.cpp", Line: 2, Column: 2, Message: "declared here"},
		{Severity: engine.SeverityError, Path: "/src/other.h", Line: 1, Column: 1, Message: "elsewhere"},
		{Severity: engine.SeverityIgnored, Path: "/src/a.cpp", Line: 1, Column: 1, Message: "ignored"},
	}

	got := toProtocolDiagnostics("/src/a.cpp", diags)
	require.Len(t, got, 3)

	assert.Equal(t, protocol.UInteger(2), got[0].Range.Start.Line)
	assert.Equal(t, protocol.UInteger(4), got[0].Range.Start.Character)
	assert.Equal(t, protocol.DiagnosticSeverityError, *got[0].Severity)
	assert.Equal(t, "use of undeclared identifier 'x'", got[0].Message)

	assert.Equal(t, protocol.DiagnosticSeverityWarning, *got[1].Severity)
	assert.Equal(t, protocol.DiagnosticSeverityInformation, *got[2].Severity)
}

func TestToProtocolDiagnosticsEmpty(t *testing.T) {
	got := toProtocolDiagnostics("/src/a.cpp", nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestToCompletionItems(t *testing.T) {
	items := toCompletionItems([]complete.Completion{
		{Trigger: "foo", Hint: "int foo(int x)", Snippet: "(${1:int x})"},
		{Trigger: "bar", Hint: "int bar", Snippet: ""},
	})
	require.Len(t, items, 2)

	assert.Equal(t, "foo", items[0].Label)
	assert.Equal(t, "int foo(int x)", *items[0].Detail)
	assert.Equal(t, "foo(${1:int x})", *items[0].InsertText)
	assert.Equal(t, protocol.InsertTextFormatSnippet, *items[0].InsertTextFormat)
	assert.Nil(t, items[0].Kind)

	assert.Equal(t, "bar", *items[1].InsertText)
}

func TestInitializeUsesRootPathAndOptions(t *testing.T) {
	o, err := pipeline.New(nil, pipeline.Config{})
	require.NoError(t, err)
	ls := NewServer("test", o, pipeline.InitOptions{StdFlag: "-std=c++11", SearchConfigFile: true})

	root := "/work/project"
	_, err = ls.initialize(&glsp.Context{}, &protocol.InitializeParams{
		RootPath: &root,
		InitializationOptions: map[string]any{
			"includes":         []any{"/opt/include"},
			"std":              "-std=c++17",
			"searchConfigFile": false,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/work/project", ls.defaults.ProjectDir)
	assert.Equal(t, []string{"/opt/include"}, ls.defaults.Includes)
	assert.Equal(t, "-std=c++17", ls.defaults.StdFlag)
	assert.False(t, ls.defaults.SearchConfigFile)
}

func TestDocumentLifecycle(t *testing.T) {
	eng := enginetest.New()
	eng.Results = []engine.CompletionResult{{Chunks: []engine.Chunk{
		{Kind: engine.ChunkResultType, Text: "int"},
		{Kind: engine.ChunkTypedText, Text: "foo"},
		{Kind: engine.ChunkLeftParen, Text: "("},
		{Kind: engine.ChunkPlaceholder, Text: "int x"},
		{Kind: engine.ChunkRightParen, Text: ")"},
	}}}
	eng.Diagnostics = []engine.Diagnostic{
		{Severity: engine.SeverityError, Path: "/work/project/main.cpp", Line: 1, Column: 1, Message: "boom"},
	}
	ls, rec, ctx := newTestServer(t, &binding.Binding{Version: binding.Highest(), Loader: "test", Engine: eng})

	uri := "file:///work/project/main.cpp"
	require.NoError(t, ls.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "cpp", Text: "int main() { f }"},
	}))
	require.Equal(t, 1, eng.Parses())
	assert.Equal(t, "/work/project/main.cpp", eng.Requests[0].Path)
	assert.Contains(t, eng.Requests[0].Args, "-std=c++11")

	published := rec.diagnostics(t)
	require.Len(t, published, 1)
	assert.Equal(t, uri, published[0].URI)
	require.Len(t, published[0].Diagnostics, 1)
	assert.Equal(t, "boom", published[0].Diagnostics[0].Message)

	result, err := ls.textDocumentCompletion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: 14},
		},
	})
	require.NoError(t, err)
	items, ok := result.([]protocol.CompletionItem)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "foo", items[0].Label)
	assert.Equal(t, "foo(${1:int x})", *items[0].InsertText)

	require.NoError(t, ls.textDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	published = rec.diagnostics(t)
	require.Len(t, published, 2)
	assert.Empty(t, published[1].Diagnostics)
	assert.True(t, eng.Units[0].Disposed())
}

func TestReloadRefreshPublishesDiagnostics(t *testing.T) {
	eng := enginetest.New()
	eng.Diagnostics = []engine.Diagnostic{
		{Severity: engine.SeverityWarning, Path: "/work/project/main.cpp", Line: 2, Column: 3, Message: "unused"},
	}
	ls, rec, ctx := newTestServer(t, &binding.Binding{Version: binding.Highest(), Loader: "test", Engine: eng})

	uri := "file:///work/project/main.cpp"
	require.NoError(t, ls.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "cpp", Text: "int main() {}"},
	}))
	require.Len(t, rec.diagnostics(t), 1)

	r := pipeline.RefresherFunc(ls.publishDiagnostics)
	r.Refresh(uri)
	published := rec.diagnostics(t)
	require.Len(t, published, 2)
	assert.Equal(t, uri, published[1].URI)
	require.Len(t, published[1].Diagnostics, 1)
	assert.Equal(t, "unused", published[1].Diagnostics[0].Message)

	r.Refresh("file:///work/project/other.cpp")
	assert.Len(t, rec.diagnostics(t), 2)
}

func TestIgnoresNonCFamilyDocuments(t *testing.T) {
	eng := enginetest.New()
	ls, rec, ctx := newTestServer(t, &binding.Binding{Version: binding.Highest(), Loader: "test", Engine: eng})

	require.NoError(t, ls.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///work/README.md", Text: "# readme"},
	}))
	assert.Equal(t, 0, eng.Parses())
	assert.Empty(t, rec.diagnostics(t))
}

func TestDisabledServerShowsMessage(t *testing.T) {
	ls, rec, ctx := newTestServer(t, nil)

	require.NoError(t, ls.initialized(ctx, &protocol.InitializedParams{}))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.sent, 1)
	assert.Equal(t, protocol.ServerWindowShowMessage, rec.sent[0].method)
}
