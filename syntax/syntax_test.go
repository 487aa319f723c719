package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageForFile(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"main.c", C, true},
		{"main.cpp", CPP, true},
		{"Widget.HPP", CPP, true},
		{"header.h", CPP, true},
		{"notes.txt", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInCommentOrString(t *testing.T) {
	src := []byte(`#include <stdio.h>
int main() {
  // call s.
  const char *s = "a.b";
  /* block s. */
  s.
  return 0;
}
`)
	tests := []struct {
		name string
		row  int
		col  int
		want bool
	}{
		{"line comment", 3, 13, true},
		{"string literal", 4, 22, true},
		{"after string literal", 4, 24, false},
		{"block comment", 5, 14, true},
		{"member access", 6, 5, false},
		{"function body", 7, 9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InCommentOrString(context.Background(), C, src, tt.row, tt.col)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInCommentOrStringUnsupported(t *testing.T) {
	_, err := InCommentOrString(context.Background(), Language("go"), nil, 1, 1)
	assert.Error(t, err)
}
