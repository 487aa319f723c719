// Package clang drives an installed clang binary as the analysis engine.
// Every unit operation is one invocation of the driver with the document
// buffer on stdin: -fsyntax-only for parsing and diagnostics, and
// -code-completion-at for completions.
package clang

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/clangcomplete/engine"
)

var log = commonlog.GetLogger("clangcomplete.engine.clang")

// ErrDisposed is returned by operations on a unit after Dispose.
var ErrDisposed = errors.New("unit disposed")

// Result is the outcome of one driver invocation. A non-zero exit status is
// reported in Exit rather than as an error.
type Result struct {
	Stdout []byte
	Stderr []byte
	Exit   int
}

// Runner executes the driver. dir is the working directory and stdin the
// content fed to the process.
type Runner func(ctx context.Context, dir, binary string, args []string, stdin string) (Result, error)

// ExecRunner runs the binary with os/exec.
func ExecRunner(ctx context.Context, dir, binary string, args []string, stdin string) (Result, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Exit: exitErr.ExitCode()}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("run %s: %w", binary, err)
	}
	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

// Engine is an engine.Engine backed by a clang binary.
type Engine struct {
	binary  string
	dialect Dialect
	run     Runner
}

type Option func(*Engine)

// WithRunner replaces the process runner.
func WithRunner(run Runner) Option {
	return func(e *Engine) {
		e.run = run
	}
}

func New(binary string, dialect Dialect, opts ...Option) *Engine {
	e := &Engine{
		binary:  binary,
		dialect: dialect,
		run:     ExecRunner,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Binary() string {
	return e.binary
}

func (e *Engine) Dialect() Dialect {
	return e.dialect
}

// Probe asks the driver for completions in an empty C buffer. A driver that
// does not understand the dialect's completion flags fails here.
func (e *Engine) Probe(ctx context.Context) error {
	args := []string{"-fsyntax-only"}
	args = append(args, e.completionArgs(1, 1)...)
	args = append(args, "-x", "c", "-")
	res, err := e.run(ctx, "", e.binary, args, "")
	if err != nil {
		return err
	}
	if res.Exit != 0 {
		return fmt.Errorf("probe %s: exit status %d: %s", e.binary, res.Exit, firstLine(res.Stderr))
	}
	return nil
}

func (e *Engine) Parse(ctx context.Context, req engine.ParseRequest) (engine.Unit, error) {
	u := &unit{
		engine:  e,
		path:    req.Path,
		args:    append([]string(nil), req.Args...),
		flags:   req.Flags,
		unsaved: append([]engine.UnsavedFile(nil), req.Unsaved...),
	}
	if err := u.parse(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

func (e *Engine) completionArgs(row, col int) []string {
	args := []string{"-Xclang", "-code-completion-at=-:" + strconv.Itoa(row) + ":" + strconv.Itoa(col)}
	for _, f := range e.dialect.CompletionFlags {
		args = append(args, "-Xclang", f)
	}
	return args
}

type unit struct {
	engine   *Engine
	path     string
	args     []string
	flags    engine.ParseFlags
	unsaved  []engine.UnsavedFile
	diags    []engine.Diagnostic
	disposed bool

	cacheKey string
	cached   []engine.CompletionResult
}

func (u *unit) Reparse(ctx context.Context, unsaved []engine.UnsavedFile) error {
	if u.disposed {
		return ErrDisposed
	}
	if len(unsaved) > 0 {
		u.unsaved = append([]engine.UnsavedFile(nil), unsaved...)
	}
	return u.parse(ctx)
}

func (u *unit) CodeComplete(ctx context.Context, path string, row, col int, unsaved []engine.UnsavedFile) ([]engine.CompletionResult, error) {
	if u.disposed {
		return nil, ErrDisposed
	}
	if len(unsaved) > 0 {
		u.unsaved = append([]engine.UnsavedFile(nil), unsaved...)
	}
	content, err := u.content(path)
	if err != nil {
		return nil, err
	}

	key := ""
	if u.flags.Has(engine.CacheCompletionResults) {
		key = completionKey(path, row, col, content)
		if key == u.cacheKey {
			return u.cached, nil
		}
	}

	args := []string{"-fsyntax-only"}
	args = append(args, u.engine.dialect.DiagnosticFlags...)
	args = append(args, u.engine.completionArgs(row, col)...)
	args = append(args, u.commonArgs(path)...)
	res, err := u.engine.run(ctx, filepath.Dir(path), u.engine.binary, args, content)
	if err != nil {
		return nil, err
	}
	results := ParseCompletions(string(res.Stdout))
	if len(results) == 0 && res.Exit != 0 {
		return nil, fmt.Errorf("complete %s:%d:%d: exit status %d: %s", path, row, col, res.Exit, firstLine(res.Stderr))
	}

	if key != "" {
		u.cacheKey, u.cached = key, results
	}
	return results, nil
}

func (u *unit) Diagnostics() []engine.Diagnostic {
	return u.diags
}

func (u *unit) Dispose() {
	u.disposed = true
	u.unsaved = nil
	u.diags = nil
	u.cached = nil
	u.cacheKey = ""
}

func (u *unit) parse(ctx context.Context) error {
	content, err := u.content(u.path)
	if err != nil {
		return err
	}

	args := []string{"-fsyntax-only"}
	args = append(args, u.engine.dialect.DiagnosticFlags...)
	args = append(args, u.commonArgs(u.path)...)
	res, err := u.engine.run(ctx, filepath.Dir(u.path), u.engine.binary, args, content)
	if err != nil {
		return err
	}

	diags := ParseDiagnostics(string(res.Stderr), u.path)
	if res.Exit != 0 && len(diags) == 0 {
		return fmt.Errorf("parse %s: exit status %d: %s", u.path, res.Exit, firstLine(res.Stderr))
	}
	log.Debugf("parsed %s: %d diagnostics", u.path, len(diags))

	u.diags = diags
	u.cacheKey, u.cached = "", nil
	return nil
}

// commonArgs are the document-specific arguments shared by parsing and
// completion. Quoted includes are resolved against the document's directory
// since the buffer arrives on stdin.
func (u *unit) commonArgs(path string) []string {
	args := []string{"-x", languageFor(path, u.args), "-iquote", filepath.Dir(path)}
	args = append(args, u.args...)
	return append(args, "-")
}

func (u *unit) content(path string) (string, error) {
	for _, f := range u.unsaved {
		if f.Path == path {
			return f.Content, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// languageFor picks the -x language. An explicit C or C++ standard flag
// wins over the file extension.
func languageFor(path string, args []string) string {
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "-std=c++"), strings.HasPrefix(a, "-std=gnu++"):
			return "c++"
		case strings.HasPrefix(a, "-std=c"), strings.HasPrefix(a, "-std=gnu"), strings.HasPrefix(a, "-std=iso9899"):
			return "c"
		}
	}
	if strings.ToLower(filepath.Ext(path)) == ".c" {
		return "c"
	}
	return "c++"
}

func completionKey(path string, row, col int, content string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d:%d\x00", path, row, col)
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
