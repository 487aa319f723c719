// Package binding selects the engine binding that matches the installed
// clang. The version is probed once, clamped to the newest supported
// bucket, and a binding is loaded from an ordered list of loaders: the
// system one first, then the bundled one pinned to the version bucket.
package binding

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/clangcomplete/engine"
	"github.com/dhamidi/clangcomplete/engine/clang"
)

var log = commonlog.GetLogger("clangcomplete.binding")

// Binding is the engine surface bound to one resolved version. It is built
// once by Resolve and not modified afterwards.
type Binding struct {
	Binary  string
	Version EngineVersion
	Loader  string
	Engine  engine.Engine
}

func (b *Binding) String() string {
	return fmt.Sprintf("clang %s (%s binding, %s)", b.Version, b.Loader, b.Binary)
}

// Loader produces an engine for a version bucket.
type Loader interface {
	Name() string
	Load(ctx context.Context, binary string, version EngineVersion) (engine.Engine, error)
}

// Prober returns the output of asking the engine binary for its version.
type Prober func(ctx context.Context, binary string) (string, error)

// ExecProber runs `<binary> --version`.
func ExecProber(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("run %s --version: %w", binary, err)
	}
	return string(out), nil
}

type resolver struct {
	probe   Prober
	loaders []Loader
	verbose bool
}

type Option func(*resolver)

// WithProber replaces the version probe.
func WithProber(p Prober) Option {
	return func(r *resolver) {
		r.probe = p
	}
}

// WithLoaders replaces the loader chain.
func WithLoaders(loaders ...Loader) Option {
	return func(r *resolver) {
		r.loaders = loaders
	}
}

// WithRunner makes the default loaders drive clang through run.
func WithRunner(run clang.Runner) Option {
	return func(r *resolver) {
		r.loaders = DefaultLoaders(clang.WithRunner(run))
	}
}

// DefaultLoaders is the system loader followed by the bundled loader.
func DefaultLoaders(opts ...clang.Option) []Loader {
	return []Loader{
		&SystemLoader{Options: opts},
		&BundledLoader{Options: opts},
	}
}

// Resolve detects the version of binary and loads a binding for it. On any
// failure no binding is returned; callers treat the system as disabled and
// do not retry until Resolve is called again.
func Resolve(ctx context.Context, binary string, verbose bool, opts ...Option) (*Binding, error) {
	r := &resolver{
		probe:   ExecProber,
		loaders: DefaultLoaders(),
		verbose: verbose,
	}
	for _, opt := range opts {
		opt(r)
	}

	if binary == "" {
		r.logf("clang binary not defined")
		return nil, ErrNotConfigured
	}

	output, err := r.probe(ctx, binary)
	if err != nil {
		log.Errorf("make sure %q is in PATH: %s", binary, err)
		return nil, &VersionError{Binary: binary, Err: err}
	}
	version, err := ParseVersion(output)
	if err != nil {
		var verr *VersionError
		if errors.As(err, &verr) {
			verr.Binary = binary
		}
		return nil, err
	}
	version = version.Clamp()
	r.logf("found a binding for clang v: %s", version)

	if !version.IsSupported() {
		return nil, &UnavailableError{Version: version}
	}

	var errs []error
	for _, l := range r.loaders {
		eng, err := l.Load(ctx, binary, version)
		if err != nil {
			r.logf("cannot get %s binding: %s", l.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
			continue
		}
		r.logf("using %s binding for clang %s", l.Name(), version)
		return &Binding{
			Binary:  binary,
			Version: version,
			Loader:  l.Name(),
			Engine:  eng,
		}, nil
	}
	return nil, &UnavailableError{Version: version, Err: errors.Join(errs...)}
}

func (r *resolver) logf(format string, args ...any) {
	if r.verbose {
		log.Infof(format, args...)
	} else {
		log.Debugf(format, args...)
	}
}

// SystemLoader drives the installed binary with the current dialect. It
// only succeeds if the binary accepts a probe completion request.
type SystemLoader struct {
	Options []clang.Option
}

func (l *SystemLoader) Name() string {
	return "system"
}

func (l *SystemLoader) Load(ctx context.Context, binary string, version EngineVersion) (engine.Engine, error) {
	e := clang.New(binary, clang.CurrentDialect(), l.Options...)
	if err := e.Probe(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// BundledLoader uses the dialect pinned to the version bucket.
type BundledLoader struct {
	Options []clang.Option
}

func (l *BundledLoader) Name() string {
	return "bundled"
}

func (l *BundledLoader) Load(ctx context.Context, binary string, version EngineVersion) (engine.Engine, error) {
	d, err := clang.DialectFor(version.String())
	if err != nil {
		return nil, err
	}
	return clang.New(binary, d, l.Options...), nil
}
