// Package pipeline ties the pieces together for a host editor: include
// resolution, the session cache, engine completion queries and result
// formatting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/clangcomplete/binding"
	"github.com/dhamidi/clangcomplete/complete"
	"github.com/dhamidi/clangcomplete/engine"
	"github.com/dhamidi/clangcomplete/include"
	"github.com/dhamidi/clangcomplete/session"
	"github.com/dhamidi/clangcomplete/syntax"
)

var log = commonlog.GetLogger("clangcomplete.pipeline")

var (
	// ErrDisabled is returned by every operation when no binding was resolved.
	ErrDisabled = errors.New("completion disabled: no engine binding")
	// ErrNoCompletions signals an empty result. It is not a failure.
	ErrNoCompletions = errors.New("no completions")
	// ErrUnknownDocument is returned for documents that were never opened.
	ErrUnknownDocument = errors.New("unknown document")
	// ErrClosed is returned by requests whose document was closed while
	// they were pending.
	ErrClosed = errors.New("document closed")
)

// InitOptions are the per-document initialization settings.
type InitOptions struct {
	Includes         []string
	SearchConfigFile bool
	StdFlag          string
	ProjectDir       string
}

// Refresher is told when completions computed off the caller's goroutine
// are ready to be taken.
type Refresher interface {
	Refresh(id string)
}

type RefresherFunc func(id string)

func (f RefresherFunc) Refresh(id string) {
	f(id)
}

type Config struct {
	// Defaults is used for documents first seen by a completion request.
	Defaults    InitOptions
	MaxSessions int
	Verbose     bool
	// SkipQuiet suppresses completion inside comments and string literals.
	SkipQuiet bool
}

type document struct {
	session.Document
	opts       InitOptions
	configFile string
	configMod  time.Time
	// closed is set by Close. A closed document never gets a session again.
	closed bool
}

// Orchestrator serves one host. It is safe for concurrent use.
type Orchestrator struct {
	binding *binding.Binding
	cache   *session.Cache
	cfg     Config

	mu    sync.Mutex
	docs  map[string]*document
	ready map[string][]complete.Completion

	async sync.WaitGroup
}

// New builds an orchestrator over a resolved binding. A nil binding yields a
// disabled orchestrator.
func New(b *binding.Binding, cfg Config) (*Orchestrator, error) {
	cache, err := session.New(b,
		session.WithMaxSessions(cfg.MaxSessions),
		session.WithVerbose(cfg.Verbose))
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		binding: b,
		cache:   cache,
		cfg:     cfg,
		docs:    make(map[string]*document),
		ready:   make(map[string][]complete.Completion),
	}, nil
}

func (o *Orchestrator) Enabled() bool {
	return o.binding != nil
}

func (o *Orchestrator) Binding() *binding.Binding {
	return o.binding
}

// Open registers a document and builds its session.
func (o *Orchestrator) Open(ctx context.Context, doc session.Document, opts InitOptions) error {
	if !o.Enabled() {
		return ErrDisabled
	}
	d := &document{Document: doc, opts: opts}
	o.mu.Lock()
	o.docs[doc.ID] = d
	o.mu.Unlock()
	return o.init(ctx, d)
}

func (o *Orchestrator) init(ctx context.Context, d *document) error {
	o.mu.Lock()
	doc, opts := d.Document, d.opts
	o.mu.Unlock()

	res := o.resolveIncludes(doc.Path, opts)
	mod := time.Time{}
	if res.ConfigFile != "" {
		if info, err := os.Stat(res.ConfigFile); err == nil {
			mod = info.ModTime()
		}
	}

	o.mu.Lock()
	d.configFile, d.configMod = res.ConfigFile, mod
	o.mu.Unlock()

	return o.cache.Init(ctx, doc, session.Options{Includes: res.Includes, StdFlag: opts.StdFlag})
}

// rebuild re-initializes a document that lost its session. A document
// closed before or during the rebuild is left without one.
func (o *Orchestrator) rebuild(ctx context.Context, d *document) error {
	if o.isClosed(d) {
		return ErrClosed
	}
	if err := o.init(ctx, d); err != nil {
		return err
	}
	if o.isClosed(d) {
		o.evictOrphan(d.ID)
		return ErrClosed
	}
	return nil
}

func (o *Orchestrator) isClosed(d *document) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return d.closed
}

// evictOrphan drops the session of id unless a document was reopened
// under it.
func (o *Orchestrator) evictOrphan(id string) {
	o.mu.Lock()
	_, open := o.docs[id]
	o.mu.Unlock()
	if !open {
		o.cache.Evict(id)
	}
}

// ResolveIncludes returns the include list a document would be built with.
func (o *Orchestrator) ResolveIncludes(path string, opts InitOptions) include.Resolution {
	return o.resolveIncludes(path, opts)
}

func (o *Orchestrator) resolveIncludes(path string, opts InitOptions) include.Resolution {
	return include.Resolve(path, include.Options{
		Initial:          opts.Includes,
		SearchConfigFile: opts.SearchConfigFile,
		ProjectDir:       opts.ProjectDir,
		Verbose:          o.cfg.Verbose,
	})
}

// Update records new buffer content and reparses.
func (o *Orchestrator) Update(ctx context.Context, id, content string) error {
	if !o.Enabled() {
		return ErrDisabled
	}
	d, ok := o.document(id)
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrUnknownDocument)
	}
	o.mu.Lock()
	d.Content = content
	o.mu.Unlock()

	if !o.cache.SetBuffer(id, content) {
		return o.rebuild(ctx, d)
	}
	_, err := o.cache.Reparse(ctx, id)
	return err
}

// Save reparses the document, rebuilding the session if it is gone.
func (o *Orchestrator) Save(ctx context.Context, id string) error {
	if !o.Enabled() {
		return ErrDisabled
	}
	d, ok := o.document(id)
	if !ok {
		return fmt.Errorf("save %s: %w", id, ErrUnknownDocument)
	}
	reparsed, err := o.cache.Reparse(ctx, id)
	if err != nil {
		return err
	}
	if !reparsed {
		return o.rebuild(ctx, d)
	}
	return nil
}

// Close forgets the document and evicts its session.
func (o *Orchestrator) Close(id string) {
	o.mu.Lock()
	if d, ok := o.docs[id]; ok {
		d.closed = true
	}
	delete(o.docs, id)
	delete(o.ready, id)
	o.mu.Unlock()
	o.cache.Evict(id)
}

// Complete returns formatted completions at a 1-based row and column,
// using doc.Content as the current buffer. Documents not opened before are
// initialized with the configured defaults. An empty result is reported as
// ErrNoCompletions.
func (o *Orchestrator) Complete(ctx context.Context, doc session.Document, row, col int) ([]complete.Completion, error) {
	if !o.Enabled() {
		return nil, ErrDisabled
	}

	if o.quiet(ctx, doc, row, col) {
		return nil, ErrNoCompletions
	}
	return o.complete(ctx, o.register(doc), row, col)
}

// quiet reports whether the position is inside a comment or string literal.
func (o *Orchestrator) quiet(ctx context.Context, doc session.Document, row, col int) bool {
	if !o.cfg.SkipQuiet {
		return false
	}
	lang, ok := syntax.LanguageForFile(doc.Path)
	if !ok {
		return false
	}
	quiet, err := syntax.InCommentOrString(ctx, lang, []byte(doc.Content), row, col)
	if err != nil {
		log.Warningf("syntax check of %s: %s", doc.Path, err)
		return false
	}
	return quiet
}

// register records doc as the current buffer of its document, adding it
// with the configured defaults when it was never opened.
func (o *Orchestrator) register(doc session.Document) *document {
	o.mu.Lock()
	defer o.mu.Unlock()
	d, ok := o.docs[doc.ID]
	if !ok {
		d = &document{Document: doc, opts: o.cfg.Defaults}
		o.docs[doc.ID] = d
		return d
	}
	d.Document = doc
	return d
}

func (o *Orchestrator) complete(ctx context.Context, d *document, row, col int) ([]complete.Completion, error) {
	o.mu.Lock()
	doc, closed := d.Document, d.closed
	o.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	if !o.cache.SetBuffer(doc.ID, doc.Content) {
		if err := o.rebuild(ctx, d); err != nil {
			return nil, err
		}
	}
	results, ok, err := o.cache.Complete(ctx, doc.ID, row, col)
	if err != nil {
		return nil, err
	}
	if !ok || len(results) == 0 {
		log.Debugf("no completions for %s:%d:%d", doc.Path, row, col)
		return nil, ErrNoCompletions
	}
	return complete.Format(results), nil
}

// CompleteAsync runs Complete on its own goroutine. The document is
// registered before CompleteAsync returns, so a later Close cancels the
// request. When completions are ready they are stored for TakeCompletions
// and r is told to refresh. Failures are logged and no refresh is sent.
func (o *Orchestrator) CompleteAsync(ctx context.Context, doc session.Document, row, col int, r Refresher) {
	if !o.Enabled() {
		log.Errorf("complete %s:%d:%d: %s", doc.Path, row, col, ErrDisabled)
		return
	}
	d := o.register(doc)
	o.async.Add(1)
	go func() {
		defer o.async.Done()
		if o.quiet(ctx, doc, row, col) {
			return
		}
		completions, err := o.complete(ctx, d, row, col)
		if err != nil {
			if !errors.Is(err, ErrNoCompletions) && !errors.Is(err, ErrClosed) {
				log.Errorf("complete %s:%d:%d: %s", doc.Path, row, col, err)
			}
			return
		}
		o.mu.Lock()
		if d.closed {
			o.mu.Unlock()
			return
		}
		o.ready[doc.ID] = completions
		o.mu.Unlock()
		r.Refresh(doc.ID)
	}()
}

// TakeCompletions returns and clears the completions made ready by
// CompleteAsync.
func (o *Orchestrator) TakeCompletions(id string) ([]complete.Completion, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.ready[id]
	delete(o.ready, id)
	return c, ok
}

// Wait blocks until every CompleteAsync call has finished.
func (o *Orchestrator) Wait() {
	o.async.Wait()
}

// Diagnostics returns the document's diagnostics as of its last parse.
func (o *Orchestrator) Diagnostics(id string) ([]engine.Diagnostic, bool) {
	return o.cache.Diagnostics(id)
}

// Documents lists the ids of open documents.
func (o *Orchestrator) Documents() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.docs))
	for id := range o.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Shutdown waits for pending work and disposes every session.
func (o *Orchestrator) Shutdown() {
	o.Wait()
	o.cache.Close()
}

func (o *Orchestrator) document(id string) (*document, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	d, ok := o.docs[id]
	return d, ok
}
