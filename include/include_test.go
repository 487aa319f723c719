package include

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "A")
	b := filepath.Join(a, "B")
	c := filepath.Join(b, "C")
	require.NoError(t, os.MkdirAll(c, 0o755))

	t.Run("found in parent", func(t *testing.T) {
		writeFile(t, filepath.Join(b, FlagFileName), "-Iinc\n")
		defer os.Remove(filepath.Join(b, FlagFileName))

		got, ok := FindConfigFile(c, a)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(b, FlagFileName), got)
	})

	t.Run("closest wins", func(t *testing.T) {
		writeFile(t, filepath.Join(a, FlagFileName), "")
		writeFile(t, filepath.Join(c, FlagFileName), "")
		defer os.Remove(filepath.Join(a, FlagFileName))
		defer os.Remove(filepath.Join(c, FlagFileName))

		got, ok := FindConfigFile(c, a)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(c, FlagFileName), got)
	})

	t.Run("boundary is searched", func(t *testing.T) {
		writeFile(t, filepath.Join(a, FlagFileName), "")
		defer os.Remove(filepath.Join(a, FlagFileName))

		got, ok := FindConfigFile(c, a)
		require.True(t, ok)
		assert.Equal(t, filepath.Join(a, FlagFileName), got)
	})

	t.Run("never above boundary", func(t *testing.T) {
		writeFile(t, filepath.Join(root, FlagFileName), "")
		defer os.Remove(filepath.Join(root, FlagFileName))

		_, ok := FindConfigFile(c, a)
		assert.False(t, ok)
	})

	t.Run("directory with flag file name is skipped", func(t *testing.T) {
		require.NoError(t, os.Mkdir(filepath.Join(c, FlagFileName), 0o755))
		defer os.Remove(filepath.Join(c, FlagFileName))

		_, ok := FindConfigFile(c, a)
		assert.False(t, ok)
	})

	t.Run("no boundary climbs to root", func(t *testing.T) {
		writeFile(t, filepath.Join(root, FlagFileName), "")
		defer os.Remove(filepath.Join(root, FlagFileName))

		got, ok := FindConfigFile(c, "")
		require.True(t, ok)
		assert.Equal(t, filepath.Join(root, FlagFileName), got)
	})
}

func TestParseConfigFile(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "proj", "sub")
	file := filepath.Join(sub, FlagFileName)
	writeFile(t, file, "-Ifoo\n-I/usr/inc\n-DDEBUG\n-std=c++11\n-I../shared  \r\n# comment\n-I/opt/x/../y/\n")

	got, err := ParseConfigFile(file)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(sub, "foo"),
		"/usr/inc",
		filepath.Join(dir, "proj", "shared"),
		"/opt/y",
	}, got)
}

func TestParseConfigFileMissing(t *testing.T) {
	_, err := ParseConfigFile(filepath.Join(t.TempDir(), FlagFileName))
	var cerr *ConfigFileError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(dir, FlagFileName), "-Iinclude\n")
	doc := filepath.Join(src, "main.cpp")

	t.Run("configured first", func(t *testing.T) {
		res := Resolve(doc, Options{
			Initial:          []string{"/usr/local/include"},
			SearchConfigFile: true,
			ProjectDir:       dir,
		})
		assert.Equal(t, []string{"/usr/local/include", filepath.Join(dir, "include")}, res.Includes)
		assert.Equal(t, filepath.Join(dir, FlagFileName), res.ConfigFile)
	})

	t.Run("search disabled", func(t *testing.T) {
		res := Resolve(doc, Options{Initial: []string{"/a"}, ProjectDir: dir})
		assert.Equal(t, []string{"/a"}, res.Includes)
		assert.Empty(t, res.ConfigFile)
	})

	t.Run("initial not modified", func(t *testing.T) {
		initial := make([]string, 1, 4)
		initial[0] = "/a"
		Resolve(doc, Options{Initial: initial, SearchConfigFile: true, ProjectDir: dir})
		assert.Equal(t, []string{"/a"}, initial)
		assert.Equal(t, "", initial[:2][1])
	})
}

func TestFlags(t *testing.T) {
	assert.Equal(t, []string{"-I/a", "-I/b"}, Flags([]string{"/a", "/b"}))
	assert.Empty(t, Flags(nil))
}
