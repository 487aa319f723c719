package binding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/clangcomplete/engine"
	"github.com/dhamidi/clangcomplete/engine/clang"
	"github.com/dhamidi/clangcomplete/engine/enginetest"
)

func staticProbe(output string) Prober {
	return func(ctx context.Context, binary string) (string, error) {
		return output, nil
	}
}

type fakeLoader struct {
	name    string
	err     error
	calls   int
	version EngineVersion
}

func (l *fakeLoader) Name() string { return l.name }

func (l *fakeLoader) Load(ctx context.Context, binary string, v EngineVersion) (engine.Engine, error) {
	l.calls++
	l.version = v
	if l.err != nil {
		return nil, l.err
	}
	return enginetest.New(), nil
}

func TestResolveClampsNewerVersions(t *testing.T) {
	system := &fakeLoader{name: "system"}
	b, err := Resolve(context.Background(), "clang", false,
		WithProber(staticProbe("clang version 4.0.1")),
		WithLoaders(system))
	require.NoError(t, err)
	assert.Equal(t, EngineVersion{3, 8}, b.Version)
	assert.Equal(t, EngineVersion{3, 8}, system.version)
	assert.Equal(t, "system", b.Loader)
}

func TestResolveWithoutVersion(t *testing.T) {
	system := &fakeLoader{name: "system"}
	b, err := Resolve(context.Background(), "clang", true,
		WithProber(staticProbe("no numbers here")),
		WithLoaders(system))
	assert.Nil(t, b)
	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "clang", verr.Binary)
	assert.Zero(t, system.calls)
}

func TestResolveProbeFailure(t *testing.T) {
	probeErr := errors.New("exit status 127")
	b, err := Resolve(context.Background(), "clang-missing", false,
		WithProber(func(ctx context.Context, binary string) (string, error) { return "", probeErr }))
	assert.Nil(t, b)
	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, probeErr)
}

func TestResolveNotConfigured(t *testing.T) {
	b, err := Resolve(context.Background(), "", false)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestResolveFallsBackToBundled(t *testing.T) {
	system := &fakeLoader{name: "system", err: errors.New("probe failed")}
	bundled := &fakeLoader{name: "bundled"}
	b, err := Resolve(context.Background(), "clang", false,
		WithProber(staticProbe("clang version 3.5.0")),
		WithLoaders(system, bundled))
	require.NoError(t, err)
	assert.Equal(t, "bundled", b.Loader)
	assert.Equal(t, 1, system.calls)
	assert.Equal(t, 1, bundled.calls)
}

func TestResolveSystemFirst(t *testing.T) {
	system := &fakeLoader{name: "system"}
	bundled := &fakeLoader{name: "bundled"}
	b, err := Resolve(context.Background(), "clang", false,
		WithProber(staticProbe("clang version 3.5.0")),
		WithLoaders(system, bundled))
	require.NoError(t, err)
	assert.Equal(t, "system", b.Loader)
	assert.Zero(t, bundled.calls)
}

func TestResolveNoLoaderSucceeds(t *testing.T) {
	systemErr := errors.New("probe failed")
	bundledErr := errors.New("no dialect")
	b, err := Resolve(context.Background(), "clang", false,
		WithProber(staticProbe("clang version 3.6")),
		WithLoaders(&fakeLoader{name: "system", err: systemErr}, &fakeLoader{name: "bundled", err: bundledErr}))
	assert.Nil(t, b)
	var uerr *UnavailableError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, EngineVersion{3, 6}, uerr.Version)
	assert.ErrorIs(t, err, systemErr)
	assert.ErrorIs(t, err, bundledErr)
}

func TestResolveUnsupportedOldVersion(t *testing.T) {
	system := &fakeLoader{name: "system"}
	_, err := Resolve(context.Background(), "clang", false,
		WithProber(staticProbe("clang version 2.9")),
		WithLoaders(system))
	var uerr *UnavailableError
	require.ErrorAs(t, err, &uerr)
	assert.Zero(t, system.calls)
}

func TestDefaultLoadersUseRunner(t *testing.T) {
	run := func(ctx context.Context, dir, binary string, args []string, stdin string) (clang.Result, error) {
		return clang.Result{Exit: 1, Stderr: []byte("error: unknown argument '-code-completion-macros'")}, nil
	}
	b, err := Resolve(context.Background(), "clang", false,
		WithProber(staticProbe("clang version 3.3")),
		WithRunner(run))
	require.NoError(t, err)
	assert.Equal(t, "bundled", b.Loader)

	e, ok := b.Engine.(*clang.Engine)
	require.True(t, ok)
	assert.Equal(t, "3.3", e.Dialect().Version)
}
