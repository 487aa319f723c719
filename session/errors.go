package session

import (
	"errors"
	"fmt"
)

// ErrNoBinding is returned by every operation of a cache built without a
// binding.
var ErrNoBinding = errors.New("no engine binding")

// ParseError reports that the engine could not produce a unit for a document.
type ParseError struct {
	ID   string
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReparseError reports that the engine failed to refresh an existing unit.
type ReparseError struct {
	ID   string
	Path string
	Err  error
}

func (e *ReparseError) Error() string {
	return fmt.Sprintf("reparse %s: %v", e.Path, e.Err)
}

func (e *ReparseError) Unwrap() error {
	return e.Err
}
