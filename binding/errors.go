package binding

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when no engine binary is configured.
var ErrNotConfigured = errors.New("clang binary not defined")

// VersionError reports that the engine version could not be detected, either
// because the probe failed or because its output holds no version.
type VersionError struct {
	Binary string
	Output string
	Err    error
}

func (e *VersionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("detect version of %q: %v", e.Binary, e.Err)
	}
	return fmt.Sprintf("detect version of %q: no version in output %q", e.Binary, e.Output)
}

func (e *VersionError) Unwrap() error {
	return e.Err
}

// UnavailableError reports that no binding could be loaded for a version.
// Err joins the failures of every loader that was tried.
type UnavailableError struct {
	Version EngineVersion
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no binding for clang %s", e.Version)
	}
	return fmt.Sprintf("no binding for clang %s: %v", e.Version, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
