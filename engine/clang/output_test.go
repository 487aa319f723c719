package clang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/clangcomplete/engine"
)

func chunk(kind engine.ChunkKind, text string) engine.Chunk {
	return engine.Chunk{Kind: kind, Text: text}
}

func TestParseCompletionString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []engine.Chunk
	}{
		{
			name:  "foo",
			input: "[#int#]foo(<#int x#>)",
			want: []engine.Chunk{
				chunk(engine.ChunkResultType, "int"),
				chunk(engine.ChunkTypedText, "foo"),
				chunk(engine.ChunkLeftParen, "("),
				chunk(engine.ChunkPlaceholder, "int x"),
				chunk(engine.ChunkRightParen, ")"),
			},
		},
		{
			name:  "bar",
			input: "[#void#]bar(<#int a#>{#, <#int b#>#})",
			want: []engine.Chunk{
				chunk(engine.ChunkResultType, "void"),
				chunk(engine.ChunkTypedText, "bar"),
				chunk(engine.ChunkLeftParen, "("),
				chunk(engine.ChunkPlaceholder, "int a"),
				chunk(engine.ChunkOptional, ", int b"),
				chunk(engine.ChunkRightParen, ")"),
			},
		},
		{
			name:  "size",
			input: "[#size_t#]size()[# const#]",
			want: []engine.Chunk{
				chunk(engine.ChunkResultType, "size_t"),
				chunk(engine.ChunkTypedText, "size"),
				chunk(engine.ChunkLeftParen, "("),
				chunk(engine.ChunkRightParen, ")"),
				chunk(engine.ChunkInformative, " const"),
			},
		},
		{
			name:  "Pattern",
			input: "[#size_t#]sizeof(<#expression-or-type#>)",
			want: []engine.Chunk{
				chunk(engine.ChunkResultType, "size_t"),
				chunk(engine.ChunkTypedText, "sizeof"),
				chunk(engine.ChunkLeftParen, "("),
				chunk(engine.ChunkPlaceholder, "expression-or-type"),
				chunk(engine.ChunkRightParen, ")"),
			},
		},
		{
			name:  "std",
			input: "std::",
			want: []engine.Chunk{
				chunk(engine.ChunkTypedText, "std"),
				chunk(engine.ChunkText, "::"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name+" "+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCompletionString(tt.name, tt.input))
		})
	}
}

func TestParseCompletions(t *testing.T) {
	output := `COMPLETION: foo : [#int#]foo(<#int x#>)
COMPLETION: int
OVERLOAD: [#int#]foo(<#int x#>)
COMPLETION: hidden (Hidden) : [#int#]hidden
`
	results := ParseCompletions(output)
	require.Len(t, results, 3)
	assert.Equal(t, []engine.Chunk{chunk(engine.ChunkTypedText, "int")}, results[1].Chunks)
	assert.Equal(t, []engine.Chunk{
		chunk(engine.ChunkResultType, "int"),
		chunk(engine.ChunkTypedText, "hidden"),
	}, results[2].Chunks)
}

func TestParseCompletionsEmpty(t *testing.T) {
	assert.Empty(t, ParseCompletions(""))
}

func TestParseDiagnostics(t *testing.T) {
	stderr := `In file included from <stdin>:1:
/usr/include/foo.h:3:1: warning: unused thing
<stdin>:4:7: error: use of undeclared identifier 'y'
clang: error: some driver complaint
-:9:2: fatal error: 'missing.h' file not found
`
	diags := ParseDiagnostics(stderr, "/proj/main.cpp")
	require.Len(t, diags, 3)

	assert.Equal(t, engine.Diagnostic{
		Severity: engine.SeverityWarning,
		Path:     "/usr/include/foo.h",
		Line:     3,
		Column:   1,
		Message:  "unused thing",
	}, diags[0])
	assert.Equal(t, "/proj/main.cpp:4:7: error: use of undeclared identifier 'y'", diags[1].String())
	assert.Equal(t, engine.SeverityFatal, diags[2].Severity)
	assert.Equal(t, "/proj/main.cpp", diags[2].Path)
}
