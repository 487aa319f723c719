// Package enginetest provides a scripted in-memory engine for tests of code
// that consumes engine.Engine.
package enginetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dhamidi/clangcomplete/engine"
)

var ErrDisposed = errors.New("enginetest: unit disposed")

// Engine records every request and answers from its fields. Fields may be
// changed between calls under the lock returned by Lock.
type Engine struct {
	mu sync.Mutex

	// ParseErr fails the next Parse calls when set.
	ParseErr error
	// ReparseErr fails Reparse calls on every unit when set.
	ReparseErr error
	// Results answers CodeComplete.
	Results []engine.CompletionResult
	// Diagnostics is attached to every parsed or reparsed unit.
	Diagnostics []engine.Diagnostic
	// Hook, when set, runs inside every unit operation.
	Hook func(op string)

	Requests []engine.ParseRequest
	Units    []*Unit

	parses      atomic.Int64
	completions atomic.Int64
}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) Lock() func() {
	e.mu.Lock()
	return e.mu.Unlock
}

func (e *Engine) Parse(ctx context.Context, req engine.ParseRequest) (engine.Unit, error) {
	e.parses.Add(1)
	e.hook("parse")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.Requests = append(e.Requests, req)
	if e.ParseErr != nil {
		return nil, e.ParseErr
	}
	u := &Unit{engine: e, Request: req, diags: e.Diagnostics}
	e.Units = append(e.Units, u)
	return u, nil
}

// Parses is the number of Parse calls so far.
func (e *Engine) Parses() int {
	return int(e.parses.Load())
}

// Completions is the number of CodeComplete calls so far.
func (e *Engine) Completions() int {
	return int(e.completions.Load())
}

func (e *Engine) hook(op string) {
	e.mu.Lock()
	h := e.Hook
	e.mu.Unlock()
	if h != nil {
		h(op)
	}
}

// Unit is a parsed unit handed out by Engine.
type Unit struct {
	engine  *Engine
	Request engine.ParseRequest

	mu       sync.Mutex
	diags    []engine.Diagnostic
	reparses int
	unsaved  []engine.UnsavedFile
	disposed bool
}

func (u *Unit) Reparse(ctx context.Context, unsaved []engine.UnsavedFile) error {
	u.engine.hook("reparse")
	u.engine.mu.Lock()
	err, diags := u.engine.ReparseErr, u.engine.Diagnostics
	u.engine.mu.Unlock()

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.disposed {
		return ErrDisposed
	}
	if err != nil {
		return err
	}
	u.reparses++
	u.unsaved = unsaved
	u.diags = diags
	return nil
}

func (u *Unit) CodeComplete(ctx context.Context, path string, row, col int, unsaved []engine.UnsavedFile) ([]engine.CompletionResult, error) {
	u.engine.completions.Add(1)
	u.engine.hook("complete")
	u.mu.Lock()
	disposed := u.disposed
	u.unsaved = unsaved
	u.mu.Unlock()
	if disposed {
		return nil, ErrDisposed
	}

	u.engine.mu.Lock()
	defer u.engine.mu.Unlock()
	return u.engine.Results, nil
}

func (u *Unit) Diagnostics() []engine.Diagnostic {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.diags
}

func (u *Unit) Dispose() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.disposed = true
}

func (u *Unit) Disposed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.disposed
}

func (u *Unit) Reparses() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.reparses
}

// Unsaved is the buffer content passed to the last reparse or completion.
func (u *Unit) Unsaved() []engine.UnsavedFile {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.unsaved
}
