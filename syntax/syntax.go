// Package syntax answers cheap questions about a C or C++ buffer with
// tree-sitter, without involving the compiler.
package syntax

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Language is a tree-sitter grammar name.
type Language string

const (
	C   Language = "c"
	CPP Language = "cpp"
)

var extToLanguage = map[string]Language{
	".c":   C,
	".h":   CPP,
	".cc":  CPP,
	".cpp": CPP,
	".cxx": CPP,
	".c++": CPP,
	".hh":  CPP,
	".hpp": CPP,
	".hxx": CPP,
	".inl": CPP,
	".m":   C,
	".mm":  CPP,
}

var (
	grammars     map[Language]*sitter.Language
	grammarsOnce sync.Once
)

func grammar(lang Language) (*sitter.Language, bool) {
	grammarsOnce.Do(func() {
		grammars = map[Language]*sitter.Language{
			C:   c.GetLanguage(),
			CPP: cpp.GetLanguage(),
		}
	})
	g, ok := grammars[lang]
	return g, ok
}

// LanguageForFile returns the grammar for a path based on its extension.
func LanguageForFile(path string) (Language, bool) {
	lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// Supported reports whether the path looks like a C family source file.
func Supported(path string) bool {
	_, ok := LanguageForFile(path)
	return ok
}

var quietKinds = map[string]bool{
	"comment":              true,
	"string_literal":       true,
	"raw_string_literal":   true,
	"char_literal":         true,
	"system_lib_string":    true,
	"concatenated_string":  true,
	"string_content":       true,
	"escape_sequence":      true,
	"preproc_include_path": true,
}

// InCommentOrString reports whether the 1-based row and column in src fall
// inside a comment or a string or character literal.
func InCommentOrString(ctx context.Context, lang Language, src []byte, row, col int) (bool, error) {
	g, ok := grammar(lang)
	if !ok {
		return false, fmt.Errorf("unsupported language %q", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return false, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	// The cursor sits after the last typed character; look at that one.
	point := sitter.Point{Row: uint32(max(row-1, 0)), Column: uint32(max(col-2, 0))}
	for n := tree.RootNode().NamedDescendantForPointRange(point, point); n != nil; n = n.Parent() {
		if quietKinds[n.Type()] {
			return !endsAt(n, point, src), nil
		}
	}
	return false, nil
}

// endsAt reports whether a literal node is closed by the character at p,
// so the cursor is already past it.
func endsAt(n *sitter.Node, p sitter.Point, src []byte) bool {
	if n.Type() == "comment" {
		text := n.Content(src)
		if strings.HasPrefix(text, "//") {
			return false
		}
	}
	end := n.EndPoint()
	return end.Row == p.Row && end.Column == p.Column+1
}
