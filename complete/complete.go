// Package complete turns raw engine completion results into snippet
// completions for the editor.
package complete

import (
	"strconv"
	"strings"

	"github.com/dhamidi/clangcomplete/engine"
)

// Completion is one formatted suggestion. Snippet holds what follows the
// trigger, with numbered ${n:text} placeholders.
type Completion struct {
	Trigger string
	Hint    string
	Snippet string
}

// Label is the trigger and the display hint separated by a tab.
func (c Completion) Label() string {
	return c.Trigger + "\t" + c.Hint
}

// Insert is the full text for hosts that replace the typed word.
func (c Completion) Insert() string {
	return c.Trigger + c.Snippet
}

// Format converts every raw result, in order. It never fails: a result
// without a typed-text chunk gets an empty trigger.
func Format(results []engine.CompletionResult) []Completion {
	completions := make([]Completion, 0, len(results))
	for _, r := range results {
		completions = append(completions, FormatResult(r))
	}
	return completions
}

func FormatResult(r engine.CompletionResult) Completion {
	var c Completion
	var hint, snippet strings.Builder
	placeholder := 1
	for _, chunk := range r.Chunks {
		hint.WriteString(chunk.Text)
		switch chunk.Kind {
		case engine.ChunkTypedText:
			c.Trigger = chunk.Text
		case engine.ChunkResultType:
			hint.WriteByte(' ')
		case engine.ChunkOptional, engine.ChunkInformative:
		case engine.ChunkPlaceholder:
			snippet.WriteString("${" + strconv.Itoa(placeholder) + ":" + chunk.Text + "}")
			placeholder++
		default:
			snippet.WriteString(chunk.Text)
		}
	}
	c.Hint = hint.String()
	c.Snippet = snippet.String()
	return c
}
