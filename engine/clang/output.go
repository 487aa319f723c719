package clang

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/dhamidi/clangcomplete/engine"
)

const (
	completionPrefix = "COMPLETION: "
	stdinName        = "<stdin>"
)

// ParseCompletions reads the output of -code-completion-at. Every
// "COMPLETION: name : string" line becomes one result; lines of any other
// form (OVERLOAD:, diagnostics) are skipped.
func ParseCompletions(output string) []engine.CompletionResult {
	var results []engine.CompletionResult
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, completionPrefix) {
			continue
		}
		name, str, found := strings.Cut(line[len(completionPrefix):], " : ")
		name = strings.TrimSuffix(name, " (Hidden)")
		if !found {
			results = append(results, engine.CompletionResult{
				Chunks: []engine.Chunk{{Kind: engine.ChunkTypedText, Text: name}},
			})
			continue
		}
		results = append(results, engine.CompletionResult{Chunks: ParseCompletionString(name, str)})
	}
	return results
}

// ParseCompletionString splits clang's textual rendering of a completion
// string back into chunks. [#..#] is a result type before the typed text
// and informative after it, <#..#> is a placeholder, {#..#} is an optional
// group which may nest.
func ParseCompletionString(name, s string) []engine.Chunk {
	p := &stringParser{name: name, src: s}
	chunks := p.parse("")
	if !p.typed {
		for i, c := range chunks {
			if c.Kind == engine.ChunkText {
				chunks[i].Kind = engine.ChunkTypedText
				break
			}
		}
	}
	return chunks
}

type stringParser struct {
	name  string
	src   string
	pos   int
	typed bool
}

// parse consumes chunks until the closing marker is found or input ends.
func (p *stringParser) parse(closing string) []engine.Chunk {
	var chunks []engine.Chunk
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			chunks = append(chunks, p.splitText(text.String())...)
			text.Reset()
		}
	}
	for p.pos < len(p.src) {
		rest := p.src[p.pos:]
		switch {
		case closing != "" && strings.HasPrefix(rest, closing):
			p.pos += len(closing)
			flush()
			return chunks
		case strings.HasPrefix(rest, "[#"):
			flush()
			body := p.until("#]")
			kind := engine.ChunkResultType
			if p.typed {
				kind = engine.ChunkInformative
			}
			chunks = append(chunks, engine.Chunk{Kind: kind, Text: body})
		case strings.HasPrefix(rest, "<#"):
			flush()
			chunks = append(chunks, engine.Chunk{Kind: engine.ChunkPlaceholder, Text: p.until("#>")})
		case strings.HasPrefix(rest, "{#"):
			flush()
			p.pos += 2
			inner := p.parse("#}")
			chunks = append(chunks, engine.Chunk{Kind: engine.ChunkOptional, Text: flatten(inner)})
		default:
			text.WriteByte(p.src[p.pos])
			p.pos++
		}
	}
	flush()
	return chunks
}

// until returns the text between the opening marker at pos and closing.
func (p *stringParser) until(closing string) string {
	start := p.pos + 2
	end := strings.Index(p.src[start:], closing)
	if end < 0 {
		p.pos = len(p.src)
		return p.src[start:]
	}
	p.pos = start + end + len(closing)
	return p.src[start : start+end]
}

var punctuation = map[byte]engine.ChunkKind{
	'(': engine.ChunkLeftParen,
	')': engine.ChunkRightParen,
	'[': engine.ChunkLeftBracket,
	']': engine.ChunkRightBracket,
	'{': engine.ChunkLeftBrace,
	'}': engine.ChunkRightBrace,
	'<': engine.ChunkLeftAngle,
	'>': engine.ChunkRightAngle,
	';': engine.ChunkSemiColon,
	'=': engine.ChunkEqual,
}

func (p *stringParser) splitText(s string) []engine.Chunk {
	var chunks []engine.Chunk
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			chunks = append(chunks, engine.Chunk{Kind: engine.ChunkText, Text: text.String()})
			text.Reset()
		}
	}
	for i := 0; i < len(s); {
		if !p.typed && p.name != "" && strings.HasPrefix(s[i:], p.name) {
			flush()
			chunks = append(chunks, engine.Chunk{Kind: engine.ChunkTypedText, Text: p.name})
			p.typed = true
			i += len(p.name)
			continue
		}
		c := s[i]
		switch {
		case c == ',':
			flush()
			n := 1
			if i+1 < len(s) && s[i+1] == ' ' {
				n = 2
			}
			chunks = append(chunks, engine.Chunk{Kind: engine.ChunkComma, Text: s[i : i+n]})
			i += n
		case c == ':' && !(i+1 < len(s) && s[i+1] == ':') && !(i > 0 && s[i-1] == ':'):
			flush()
			chunks = append(chunks, engine.Chunk{Kind: engine.ChunkColon, Text: ":"})
			i++
		case c == ' ' || c == '\t':
			flush()
			j := i
			for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
				j++
			}
			chunks = append(chunks, engine.Chunk{Kind: engine.ChunkHorizontalSpace, Text: s[i:j]})
			i = j
		default:
			if kind, ok := punctuation[c]; ok {
				flush()
				chunks = append(chunks, engine.Chunk{Kind: kind, Text: string(c)})
			} else {
				text.WriteByte(c)
			}
			i++
		}
	}
	flush()
	return chunks
}

func flatten(chunks []engine.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

var diagnosticLine = regexp.MustCompile(`^(.+?):(\d+):(\d+): (fatal error|error|warning|note|remark): (.*)$`)

// ParseDiagnostics reads clang's stderr. Locations reported against stdin
// are attributed to path.
func ParseDiagnostics(output, path string) []engine.Diagnostic {
	var diags []engine.Diagnostic
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		m := diagnosticLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		file := m[1]
		if file == stdinName || file == "-" {
			file = path
		}
		line, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		diags = append(diags, engine.Diagnostic{
			Severity: parseSeverity(m[4]),
			Path:     file,
			Line:     line,
			Column:   col,
			Message:  m[5],
		})
	}
	return diags
}

func parseSeverity(s string) engine.Severity {
	switch s {
	case "fatal error":
		return engine.SeverityFatal
	case "error":
		return engine.SeverityError
	case "warning":
		return engine.SeverityWarning
	case "note":
		return engine.SeverityNote
	default:
		return engine.SeverityIgnored
	}
}
