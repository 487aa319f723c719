package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SettingsFileName is the settings file looked up in the working directory.
const SettingsFileName = ".clangcomplete.yaml"

// settings mirrors Config in the settings file. Absent keys leave the
// underlying value alone.
type settings struct {
	Clang            *string  `yaml:"clang"`
	Verbose          *bool    `yaml:"verbose"`
	Std              *string  `yaml:"std"`
	Includes         []string `yaml:"includes"`
	SearchConfigFile *bool    `yaml:"search_config_file"`
	Project          *string  `yaml:"project"`
	MaxSessions      *int     `yaml:"max_sessions"`
	Log              *string  `yaml:"log"`
}

// ReadFile applies the YAML settings file at path over cfg.
func ReadFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	var s settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return cfg, &FileError{Path: path, Err: err}
	}

	if s.Clang != nil && *s.Clang != "" {
		cfg.ClangBinary = *s.Clang
	}
	if s.Verbose != nil {
		cfg.Verbose = *s.Verbose
	}
	if s.Std != nil {
		cfg.StdFlag = *s.Std
	}
	if s.Includes != nil {
		cfg.Includes = append([]string(nil), s.Includes...)
	}
	if s.SearchConfigFile != nil {
		cfg.SearchConfigFile = *s.SearchConfigFile
	}
	if s.Project != nil {
		cfg.ProjectDir = *s.Project
	}
	if s.MaxSessions != nil && *s.MaxSessions > 0 {
		cfg.MaxSessions = *s.MaxSessions
	}
	if s.Log != nil {
		cfg.LogFile = *s.Log
	}
	return cfg, nil
}

// FileError reports a settings file that could not be decoded.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return "settings file " + e.Path + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}
