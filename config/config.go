// Package config loads host settings from an optional YAML settings file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ClangBinary      string
	Verbose          bool
	StdFlag          string
	Includes         []string
	SearchConfigFile bool
	ProjectDir       string
	MaxSessions      int
	LogFile          string
}

func Default() Config {
	return Config{
		ClangBinary:      "clang",
		StdFlag:          "-std=c++11",
		SearchConfigFile: true,
		MaxSessions:      64,
	}
}

// Load reads .env from the working directory when present, applies the
// settings file named by CLANG_COMPLETE_CONFIG (or SettingsFileName in the
// working directory) over the defaults, then the CLANG_* environment
// variables. A missing default settings file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	path, explicit := nonEmpty(os.LookupEnv, "CLANG_COMPLETE_CONFIG")
	if !explicit {
		path = SettingsFileName
	}
	withFile, err := ReadFile(path, cfg)
	switch {
	case err == nil:
		cfg = withFile
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("load settings: %w", err)
	}
	return ApplyEnv(cfg, os.LookupEnv), nil
}

// FromEnv applies the variables found by lookup over the defaults.
func FromEnv(lookup func(string) (string, bool)) Config {
	return ApplyEnv(Default(), lookup)
}

// ApplyEnv applies the variables found by lookup over cfg.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) Config {
	if v, ok := nonEmpty(lookup, "CLANG_BINARY"); ok {
		cfg.ClangBinary = v
	}
	if v, ok := nonEmpty(lookup, "CLANG_COMPLETE_VERBOSE"); ok {
		cfg.Verbose = parseBool(v, cfg.Verbose)
	}
	if v, ok := lookup("CLANG_COMPLETE_STD"); ok {
		cfg.StdFlag = strings.TrimSpace(v)
	}
	if v, ok := nonEmpty(lookup, "CLANG_COMPLETE_INCLUDES"); ok {
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Includes = append(cfg.Includes, p)
			}
		}
	}
	if v, ok := nonEmpty(lookup, "CLANG_COMPLETE_SEARCH_CONFIG"); ok {
		cfg.SearchConfigFile = parseBool(v, cfg.SearchConfigFile)
	}
	if v, ok := nonEmpty(lookup, "CLANG_COMPLETE_PROJECT"); ok {
		cfg.ProjectDir = v
	}
	if v, ok := nonEmpty(lookup, "CLANG_COMPLETE_MAX_SESSIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSessions = n
		}
	}
	if v, ok := nonEmpty(lookup, "CLANG_COMPLETE_LOG"); ok {
		cfg.LogFile = v
	}
	return cfg
}

// Verbosity maps the verbose flag to a commonlog verbosity level.
func (c Config) Verbosity() int {
	if c.Verbose {
		return 2
	}
	return 0
}

func nonEmpty(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
