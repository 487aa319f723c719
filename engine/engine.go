// Package engine describes the surface of the external source-analysis
// engine. The engine parses a source file into a Unit, which can be
// reparsed, queried for code completions, and asked for diagnostics.
package engine

import (
	"context"
	"fmt"
)

// ChunkKind identifies the role of one chunk in a completion string.
type ChunkKind int

const (
	ChunkTypedText ChunkKind = iota
	ChunkText
	ChunkPlaceholder
	ChunkInformative
	ChunkCurrentParameter
	ChunkLeftParen
	ChunkRightParen
	ChunkLeftBracket
	ChunkRightBracket
	ChunkLeftBrace
	ChunkRightBrace
	ChunkLeftAngle
	ChunkRightAngle
	ChunkComma
	ChunkResultType
	ChunkColon
	ChunkSemiColon
	ChunkEqual
	ChunkHorizontalSpace
	ChunkVerticalSpace
	ChunkOptional
)

var chunkKindNames = [...]string{
	ChunkTypedText:        "TypedText",
	ChunkText:             "Text",
	ChunkPlaceholder:      "Placeholder",
	ChunkInformative:      "Informative",
	ChunkCurrentParameter: "CurrentParameter",
	ChunkLeftParen:        "LeftParen",
	ChunkRightParen:       "RightParen",
	ChunkLeftBracket:      "LeftBracket",
	ChunkRightBracket:     "RightBracket",
	ChunkLeftBrace:        "LeftBrace",
	ChunkRightBrace:       "RightBrace",
	ChunkLeftAngle:        "LeftAngle",
	ChunkRightAngle:       "RightAngle",
	ChunkComma:            "Comma",
	ChunkResultType:       "ResultType",
	ChunkColon:            "Colon",
	ChunkSemiColon:        "SemiColon",
	ChunkEqual:            "Equal",
	ChunkHorizontalSpace:  "HorizontalSpace",
	ChunkVerticalSpace:    "VerticalSpace",
	ChunkOptional:         "Optional",
}

func (k ChunkKind) String() string {
	if k >= 0 && int(k) < len(chunkKindNames) {
		return chunkKindNames[k]
	}
	return fmt.Sprintf("ChunkKind(%d)", int(k))
}

// Chunk is one typed piece of a completion string.
type Chunk struct {
	Kind ChunkKind
	Text string
}

// CompletionResult is one raw completion candidate.
type CompletionResult struct {
	Chunks   []Chunk
	Priority int
}

type Severity int

const (
	SeverityIgnored Severity = iota
	SeverityNote
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal error"
	default:
		return "ignored"
	}
}

// Diagnostic is a single message reported by the engine for a parsed unit.
// Line and Column are 1-based.
type Diagnostic struct {
	Severity Severity
	Path     string
	Line     int
	Column   int
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Path, d.Line, d.Column, d.Severity, d.Message)
}

// UnsavedFile supplies in-memory content for a path, overriding what is on disk.
type UnsavedFile struct {
	Path    string
	Content string
}

// ParseFlags are hints passed to the engine when a unit is created.
type ParseFlags uint

const (
	PrecompiledPreamble ParseFlags = 1 << iota
	CacheCompletionResults
)

func (f ParseFlags) Has(flag ParseFlags) bool {
	return f&flag != 0
}

// ParseRequest describes a unit to be built.
type ParseRequest struct {
	Path    string
	Args    []string
	Unsaved []UnsavedFile
	Flags   ParseFlags
}

// Engine produces parsed units.
type Engine interface {
	Parse(ctx context.Context, req ParseRequest) (Unit, error)
}

// Unit is the engine's parsed representation of one source file. A Unit is
// not safe for concurrent use; callers serialize access to it.
type Unit interface {
	Reparse(ctx context.Context, unsaved []UnsavedFile) error
	CodeComplete(ctx context.Context, path string, row, col int, unsaved []UnsavedFile) ([]CompletionResult, error)
	Diagnostics() []Diagnostic
	Dispose()
}
