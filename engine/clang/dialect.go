package clang

import "fmt"

// Dialect is the command-line surface of one clang release line. Code
// completion through the driver is spelled with -Xclang escapes whose set
// grew over time, so each supported version bucket pins its own flags.
type Dialect struct {
	Version string

	// CompletionFlags are passed, each behind -Xclang, alongside
	// -code-completion-at.
	CompletionFlags []string

	// DiagnosticFlags are passed to every invocation.
	DiagnosticFlags []string
}

var baseDiagnosticFlags = []string{"-fno-color-diagnostics", "-fno-caret-diagnostics"}

var dialects = map[string]Dialect{
	"3.2": {Version: "3.2", CompletionFlags: []string{"-code-completion-patterns"}, DiagnosticFlags: baseDiagnosticFlags},
	"3.3": {Version: "3.3", CompletionFlags: []string{"-code-completion-patterns"}, DiagnosticFlags: baseDiagnosticFlags},
	"3.4": {Version: "3.4", CompletionFlags: []string{"-code-completion-patterns", "-code-completion-macros"}, DiagnosticFlags: baseDiagnosticFlags},
	"3.5": {Version: "3.5", CompletionFlags: []string{"-code-completion-patterns", "-code-completion-macros"}, DiagnosticFlags: baseDiagnosticFlags},
	"3.6": {Version: "3.6", CompletionFlags: []string{"-code-completion-patterns", "-code-completion-macros"}, DiagnosticFlags: baseDiagnosticFlags},
	"3.7": {Version: "3.7", CompletionFlags: []string{"-code-completion-patterns", "-code-completion-macros"}, DiagnosticFlags: baseDiagnosticFlags},
	"3.8": {Version: "3.8", CompletionFlags: []string{"-code-completion-patterns", "-code-completion-macros"}, DiagnosticFlags: baseDiagnosticFlags},
}

// DialectFor returns the pinned dialect for a version bucket such as "3.4".
func DialectFor(version string) (Dialect, error) {
	d, ok := dialects[version]
	if !ok {
		return Dialect{}, fmt.Errorf("no clang dialect for version %s", version)
	}
	return d, nil
}

// CurrentDialect is the flag set of the newest release line. It is what an
// installed driver is expected to understand when no pinning is requested.
func CurrentDialect() Dialect {
	d := dialects["3.8"]
	d.Version = "current"
	return d
}
