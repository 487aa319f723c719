// Package session keeps one parsed unit per open document. Mutating
// operations on a document are serialized; different documents proceed
// independently. The store is bounded: when it is full the least recently
// used session is disposed.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tliron/commonlog"

	"github.com/dhamidi/clangcomplete/binding"
	"github.com/dhamidi/clangcomplete/engine"
	"github.com/dhamidi/clangcomplete/include"
)

var log = commonlog.GetLogger("clangcomplete.session")

// DefaultMaxSessions bounds the cache when no size is configured.
const DefaultMaxSessions = 64

// DefaultParseFlags ask the engine for a precompiled preamble and cached
// completion results.
const DefaultParseFlags = engine.PrecompiledPreamble | engine.CacheCompletionResults

// Document is the host's view of one open buffer.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Options are the compiler settings a session is created with.
type Options struct {
	Includes []string
	StdFlag  string
}

// Args is the compiler flag list: the standard flag followed by one -I per
// include, in order.
func (o Options) Args() []string {
	var args []string
	if o.StdFlag != "" {
		args = append(args, o.StdFlag)
	}
	return append(args, include.Flags(o.Includes)...)
}

func (o Options) Equal(other Options) bool {
	return o.StdFlag == other.StdFlag && slices.Equal(o.Includes, other.Includes)
}

// Info describes a live session without exposing its unit.
type Info struct {
	ID      string
	Path    string
	Options Options
	Created time.Time
}

type session struct {
	mu      sync.RWMutex
	info    Info
	content string
	unit    engine.Unit
	closed  bool
}

func (s *session) unsaved() []engine.UnsavedFile {
	return []engine.UnsavedFile{{Path: s.info.Path, Content: s.content}}
}

// close disposes the unit once no operation is using it.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.unit.Dispose()
	s.unit = nil
}

// Cache is the document session store.
type Cache struct {
	engine   engine.Engine
	flags    engine.ParseFlags
	verbose  bool
	locks    *keyedMutex
	sessions *lru.Cache[string, *session]

	// disposing tracks evicted sessions still waiting for their last
	// operation to finish.
	disposing sync.WaitGroup
}

type Option func(*cacheConfig)

type cacheConfig struct {
	maxSessions int
	flags       engine.ParseFlags
	verbose     bool
}

// WithMaxSessions bounds the number of live sessions.
func WithMaxSessions(n int) Option {
	return func(c *cacheConfig) {
		c.maxSessions = n
	}
}

// WithParseFlags overrides DefaultParseFlags.
func WithParseFlags(flags engine.ParseFlags) Option {
	return func(c *cacheConfig) {
		c.flags = flags
	}
}

func WithVerbose(verbose bool) Option {
	return func(c *cacheConfig) {
		c.verbose = verbose
	}
}

// New creates a cache over the binding's engine. A nil binding yields a
// cache whose operations fail with ErrNoBinding.
func New(b *binding.Binding, opts ...Option) (*Cache, error) {
	var eng engine.Engine
	if b != nil {
		eng = b.Engine
	}
	return NewWithEngine(eng, opts...)
}

// NewWithEngine creates a cache over an engine directly.
func NewWithEngine(eng engine.Engine, opts ...Option) (*Cache, error) {
	cfg := cacheConfig{maxSessions: DefaultMaxSessions, flags: DefaultParseFlags}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxSessions <= 0 {
		cfg.maxSessions = DefaultMaxSessions
	}

	c := &Cache{
		engine:  eng,
		flags:   cfg.flags,
		verbose: cfg.verbose,
		locks:   newKeyedMutex(),
	}
	sessions, err := lru.NewWithEvict(cfg.maxSessions, func(id string, s *session) {
		c.release(s)
	})
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	c.sessions = sessions
	return c, nil
}

// release disposes an evicted session. Eviction happens on the goroutine
// of whichever document needed the room, so a session busy with its own
// operation is disposed in the background once that operation returns.
func (c *Cache) release(s *session) {
	if s.mu.TryLock() {
		s.closeLocked()
		s.mu.Unlock()
		return
	}
	c.disposing.Add(1)
	go func() {
		defer c.disposing.Done()
		s.close()
	}()
}

// Init parses the document and stores the session under doc.ID, replacing
// and disposing any previous one. On failure the previous session, if any,
// is kept as it was.
func (c *Cache) Init(ctx context.Context, doc Document, opts Options) error {
	if c.engine == nil {
		return ErrNoBinding
	}
	unlock := c.locks.Lock(doc.ID)
	defer unlock()

	c.logf("compilation started: %s", doc.Path)
	start := time.Now()
	unit, err := c.engine.Parse(ctx, engine.ParseRequest{
		Path:    doc.Path,
		Args:    opts.Args(),
		Unsaved: []engine.UnsavedFile{{Path: doc.Path, Content: doc.Content}},
		Flags:   c.flags,
	})
	if err != nil {
		log.Errorf("compilation of %s failed: %s", doc.Path, err)
		return &ParseError{ID: doc.ID, Path: doc.Path, Err: err}
	}
	c.logf("compilation done: %s in %s", doc.Path, time.Since(start))

	s := &session{
		info: Info{
			ID:      doc.ID,
			Path:    doc.Path,
			Options: Options{Includes: slices.Clone(opts.Includes), StdFlag: opts.StdFlag},
			Created: time.Now(),
		},
		content: doc.Content,
		unit:    unit,
	}
	old, replaced := c.sessions.Peek(doc.ID)
	c.sessions.Add(doc.ID, s)
	if replaced {
		old.close()
	}
	return nil
}

// Reparse refreshes the document's unit from its current buffer. It
// reports false, without error, when there is no session for id.
func (c *Cache) Reparse(ctx context.Context, id string) (bool, error) {
	if c.engine == nil {
		return false, ErrNoBinding
	}
	unlock := c.locks.Lock(id)
	defer unlock()

	s, ok := c.sessions.Get(id)
	if !ok {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, nil
	}

	c.logf("reparsing translation unit: %s", s.info.Path)
	start := time.Now()
	if err := s.unit.Reparse(ctx, s.unsaved()); err != nil {
		log.Errorf("reparse of %s failed: %s", s.info.Path, err)
		return false, &ReparseError{ID: id, Path: s.info.Path, Err: err}
	}
	c.logf("reparsed translation unit %s in %s", s.info.Path, time.Since(start))
	return true, nil
}

// SetBuffer records new unsaved content for the next reparse or completion.
func (c *Cache) SetBuffer(id, content string) bool {
	unlock := c.locks.Lock(id)
	defer unlock()

	s, ok := c.sessions.Get(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.content = content
	return true
}

// Complete queries the document's unit for completions at a 1-based row
// and column. The bool is false when there is no session for id.
func (c *Cache) Complete(ctx context.Context, id string, row, col int) ([]engine.CompletionResult, bool, error) {
	if c.engine == nil {
		return nil, false, ErrNoBinding
	}
	unlock := c.locks.Lock(id)
	defer unlock()

	s, ok := c.sessions.Get(id)
	if !ok {
		return nil, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, nil
	}

	results, err := s.unit.CodeComplete(ctx, s.info.Path, row, col, s.unsaved())
	if err != nil {
		return nil, true, fmt.Errorf("complete %s:%d:%d: %w", s.info.Path, row, col, err)
	}
	return results, true, nil
}

// Diagnostics returns the diagnostics of the document's unit as of the last
// init or reparse. The bool is false when there is no session for id.
func (c *Cache) Diagnostics(id string) ([]engine.Diagnostic, bool) {
	s, ok := c.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false
	}
	diags := s.unit.Diagnostics()
	if diags == nil {
		diags = []engine.Diagnostic{}
	}
	return slices.Clone(diags), true
}

// Evict disposes the document's session. Evicting an unknown id is a no-op.
func (c *Cache) Evict(id string) {
	unlock := c.locks.Lock(id)
	defer unlock()
	c.sessions.Remove(id)
}

// Info describes the document's session.
func (c *Cache) Info(id string) (Info, bool) {
	s, ok := c.sessions.Peek(id)
	if !ok {
		return Info{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Info{}, false
	}
	return s.info, true
}

// IDs lists the documents with a session, least recently used first.
func (c *Cache) IDs() []string {
	return c.sessions.Keys()
}

func (c *Cache) Len() int {
	return c.sessions.Len()
}

// Close disposes every session, waiting for those still in use.
func (c *Cache) Close() {
	c.sessions.Purge()
	c.disposing.Wait()
}

func (c *Cache) logf(format string, args ...any) {
	if c.verbose {
		log.Infof(format, args...)
	} else {
		log.Debugf(format, args...)
	}
}
