// Package lsp exposes the completion pipeline as a Language Server
// Protocol server.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/dhamidi/clangcomplete/complete"
	"github.com/dhamidi/clangcomplete/engine"
	"github.com/dhamidi/clangcomplete/pipeline"
	"github.com/dhamidi/clangcomplete/session"
	"github.com/dhamidi/clangcomplete/syntax"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "clangcomplete"

var log = commonlog.GetLogger("clangcomplete.lsp")

type Server struct {
	orchestrator *pipeline.Orchestrator
	defaults     pipeline.InitOptions
	handler      protocol.Handler
	server       *server.Server
	version      string
	watcher      *pipeline.ConfigWatcher

	mu     sync.Mutex
	notify glsp.NotifyFunc
	texts  map[string]session.Document
}

func NewServer(version string, o *pipeline.Orchestrator, defaults pipeline.InitOptions) *Server {
	ls := &Server{
		orchestrator: o,
		defaults:     defaults,
		version:      version,
		texts:        make(map[string]session.Document),
	}

	ls.handler = protocol.Handler{
		Initialize:             ls.initialize,
		Initialized:            ls.initialized,
		Shutdown:               ls.shutdown,
		SetTrace:               ls.setTrace,
		TextDocumentDidOpen:    ls.textDocumentDidOpen,
		TextDocumentDidChange:  ls.textDocumentDidChange,
		TextDocumentDidClose:   ls.textDocumentDidClose,
		TextDocumentDidSave:    ls.textDocumentDidSave,
		TextDocumentCompletion: ls.textDocumentCompletion,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *Server) RunStdio() error {
	return ls.server.RunStdio()
}

// initializationOptions are accepted from the client and override the
// configured defaults.
type initializationOptions struct {
	Includes         []string `json:"includes"`
	StdFlag          *string  `json:"std"`
	SearchConfigFile *bool    `json:"searchConfigFile"`
}

func (ls *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	ls.mu.Lock()
	ls.notify = ctx.Notify
	if ls.defaults.ProjectDir == "" {
		if params.RootPath != nil && *params.RootPath != "" {
			ls.defaults.ProjectDir = *params.RootPath
		} else if params.RootURI != nil && *params.RootURI != "" {
			if path, err := uriToPath(*params.RootURI); err == nil {
				ls.defaults.ProjectDir = path
			}
		}
	}
	if params.InitializationOptions != nil {
		ls.applyInitializationOptions(params.InitializationOptions)
	}
	ls.mu.Unlock()

	capabilities := ls.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", ":", ">"},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

func (ls *Server) applyInitializationOptions(raw any) {
	data, err := json.Marshal(raw)
	if err != nil {
		return
	}
	var opts initializationOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		log.Warningf("ignoring initialization options: %s", err)
		return
	}
	if opts.Includes != nil {
		ls.defaults.Includes = opts.Includes
	}
	if opts.StdFlag != nil {
		ls.defaults.StdFlag = *opts.StdFlag
	}
	if opts.SearchConfigFile != nil {
		ls.defaults.SearchConfigFile = *opts.SearchConfigFile
	}
}

func (ls *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	if !ls.orchestrator.Enabled() {
		ls.showError("clang completion is disabled: no usable clang binding was found")
		return nil
	}
	ls.watcher = pipeline.NewConfigWatcher(ls.orchestrator, time.Second, pipeline.RefresherFunc(ls.publishDiagnostics))
	ls.watcher.Start(context.Background())
	return nil
}

func (ls *Server) shutdown(ctx *glsp.Context) error {
	if ls.watcher != nil {
		ls.watcher.Stop()
		ls.watcher = nil
	}
	ls.orchestrator.Shutdown()
	return nil
}

func (ls *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc, ok := ls.track(params.TextDocument.URI, params.TextDocument.Text)
	if !ok {
		return nil
	}
	ls.mu.Lock()
	opts := ls.defaults
	ls.mu.Unlock()
	if err := ls.orchestrator.Open(context.Background(), doc, opts); err != nil {
		ls.report(err)
		return nil
	}
	ls.publishDiagnostics(doc.ID)
	return nil
}

func (ls *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	textChange, ok := change.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return nil
	}
	doc, ok := ls.track(params.TextDocument.URI, textChange.Text)
	if !ok {
		return nil
	}
	if err := ls.orchestrator.Update(context.Background(), doc.ID, doc.Content); err != nil {
		ls.report(err)
		return nil
	}
	ls.publishDiagnostics(doc.ID)
	return nil
}

func (ls *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	ls.mu.Lock()
	delete(ls.texts, uri)
	ls.mu.Unlock()

	ls.orchestrator.Close(uri)
	ls.publish(uri, nil)
	return nil
}

func (ls *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI
	var err error
	if params.Text != nil {
		doc, ok := ls.track(uri, *params.Text)
		if !ok {
			return nil
		}
		err = ls.orchestrator.Update(context.Background(), doc.ID, doc.Content)
	} else {
		if _, ok := ls.document(uri); !ok {
			return nil
		}
		err = ls.orchestrator.Save(context.Background(), uri)
	}
	if err != nil {
		ls.report(err)
		return nil
	}
	ls.publishDiagnostics(uri)
	return nil
}

func (ls *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc, ok := ls.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	row := int(params.Position.Line) + 1
	col := int(params.Position.Character) + 1

	completions, err := ls.orchestrator.Complete(context.Background(), doc, row, col)
	if err != nil {
		if !errors.Is(err, pipeline.ErrNoCompletions) {
			ls.report(err)
		}
		return nil, nil
	}

	return toCompletionItems(completions), nil
}

// publishDiagnostics sends the current diagnostics of a document to the
// client. Completions need no refresh signal since LSP answers each
// completion request directly.
func (ls *Server) publishDiagnostics(id string) {
	diags, ok := ls.orchestrator.Diagnostics(id)
	if !ok {
		return
	}
	ls.publish(id, diags)
}

func (ls *Server) publish(uri string, diags []engine.Diagnostic) {
	ls.mu.Lock()
	notify := ls.notify
	doc, known := ls.texts[uri]
	ls.mu.Unlock()
	if notify == nil {
		return
	}

	path := doc.Path
	if !known {
		path, _ = uriToPath(uri)
	}
	notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toProtocolDiagnostics(path, diags),
	})
}

func (ls *Server) report(err error) {
	log.Errorf("%s", err)
	ls.showError(err.Error())
}

func (ls *Server) showError(message string) {
	ls.mu.Lock()
	notify := ls.notify
	ls.mu.Unlock()
	if notify == nil {
		return
	}
	notify(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{
		Type:    protocol.MessageTypeError,
		Message: lsName + ": " + message,
	})
}

// track records the latest text of a C family document. Nothing is
// tracked while completion is disabled.
func (ls *Server) track(uri, text string) (session.Document, bool) {
	if !ls.orchestrator.Enabled() {
		return session.Document{}, false
	}
	path, err := uriToPath(uri)
	if err != nil || !syntax.Supported(path) {
		return session.Document{}, false
	}
	doc := session.Document{ID: uri, Path: path, Content: text}
	ls.mu.Lock()
	ls.texts[uri] = doc
	ls.mu.Unlock()
	return doc, true
}

func (ls *Server) document(uri string) (session.Document, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	doc, ok := ls.texts[uri]
	return doc, ok
}

func toCompletionItems(completions []complete.Completion) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(completions))
	for _, c := range completions {
		detail := c.Hint
		insertText := c.Insert()
		format := protocol.InsertTextFormatSnippet

		items = append(items, protocol.CompletionItem{
			Label:            c.Trigger,
			Detail:           &detail,
			InsertText:       &insertText,
			InsertTextFormat: &format,
		})
	}
	return items
}

func toProtocolDiagnostics(path string, diags []engine.Diagnostic) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	source := lsName
	for _, d := range diags {
		if d.Path != path || d.Severity == engine.SeverityIgnored {
			continue
		}
		severity := toProtocolSeverity(d.Severity)
		pos := protocol.Position{
			Line:      protocol.UInteger(max(d.Line-1, 0)),
			Character: protocol.UInteger(max(d.Column-1, 0)),
		}
		out = append(out, protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

func toProtocolSeverity(s engine.Severity) protocol.DiagnosticSeverity {
	switch s {
	case engine.SeverityError, engine.SeverityFatal:
		return protocol.DiagnosticSeverityError
	case engine.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}

func uriToPath(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		parsed, err := url.Parse(uri)
		if err != nil {
			return "", err
		}
		return filepath.Clean(parsed.Path), nil
	}
	return uri, nil
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
