// Package include discovers include directories for a document from a
// .clang_complete flag file found by walking up from the document's
// directory toward the project folder.
package include

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("clangcomplete.include")

// FlagFileName is the name of the file listing -I<path> entries.
const FlagFileName = ".clang_complete"

const includeFlag = "-I"

// ConfigFileError reports that a flag file was found but could not be read.
type ConfigFileError struct {
	Path string
	Err  error
}

func (e *ConfigFileError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ConfigFileError) Unwrap() error {
	return e.Err
}

// FindConfigFile looks for FlagFileName in startDir and each of its parents.
// The search includes stopDir but never goes above it, and ends at the
// filesystem root when startDir is not below stopDir.
func FindConfigFile(startDir, stopDir string) (string, bool) {
	current := filepath.Clean(startDir)
	onePastStop := ""
	if stop := filepath.Clean(stopDir); stopDir != "" && filepath.Dir(stop) != stop {
		onePastStop = filepath.Dir(stop)
	}
	for current != onePastStop {
		candidate := filepath.Join(current, FlagFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", false
}

// ParseConfigFile returns the include directories listed in a flag file,
// in line order. Relative entries are resolved against the file's directory.
// Lines that are not -I entries are ignored.
func ParseConfigFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigFileError{Path: path, Err: err}
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var includes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, includeFlag) {
			continue
		}
		p := strings.TrimRight(line[len(includeFlag):], " \t\r\n")
		if filepath.IsAbs(p) {
			includes = append(includes, filepath.Clean(p))
		} else {
			includes = append(includes, filepath.Join(dir, p))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigFileError{Path: path, Err: err}
	}
	return includes, nil
}

// Options controls Resolve.
type Options struct {
	// Initial are the configured include directories; they come first.
	Initial []string
	// SearchConfigFile enables the flag file lookup.
	SearchConfigFile bool
	// ProjectDir bounds the upward search.
	ProjectDir string
	Verbose    bool
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Includes []string
	// ConfigFile is the flag file found for the document, if any.
	ConfigFile string
}

// Resolve merges the configured includes with those from the flag file
// closest to the document. Flag file entries follow the configured ones.
// An unreadable flag file is logged and skipped.
func Resolve(documentPath string, opts Options) Resolution {
	res := Resolution{Includes: append([]string(nil), opts.Initial...)}
	if !opts.SearchConfigFile {
		return res
	}

	file, ok := FindConfigFile(filepath.Dir(documentPath), opts.ProjectDir)
	if !ok {
		return res
	}
	if opts.Verbose {
		log.Infof("found %s", file)
	}
	res.ConfigFile = file

	parsed, err := ParseConfigFile(file)
	if err != nil {
		log.Errorf("%s", err)
		return res
	}
	if opts.Verbose {
		log.Infof("%s contains includes: %v", FlagFileName, parsed)
	}
	res.Includes = append(res.Includes, parsed...)
	return res
}

// Flags renders includes as -I arguments.
func Flags(includes []string) []string {
	flags := make([]string, 0, len(includes))
	for _, inc := range includes {
		flags = append(flags, includeFlag+inc)
	}
	return flags
}
