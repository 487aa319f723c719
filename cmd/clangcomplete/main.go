package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/dhamidi/clangcomplete/binding"
	"github.com/dhamidi/clangcomplete/config"
	"github.com/dhamidi/clangcomplete/pipeline"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

var log = commonlog.GetLogger("clangcomplete")

// globalFlags override the values loaded by config.Load when set on the
// command line.
type globalFlags struct {
	clang        string
	verbose      bool
	std          string
	includes     []string
	noConfigFile bool
	project      string
}

func main() {
	if err := newRootCmd(&globalFlags{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(g *globalFlags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "clangcomplete",
		Short:        "Semantic C and C++ completion backed by clang",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.clang, "clang", "", "clang binary to use (default $CLANG_BINARY or clang)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log include resolution and engine activity")
	pf.StringVar(&g.std, "std", "", "language standard flag passed to clang, e.g. -std=c++17")
	pf.StringSliceVarP(&g.includes, "include", "I", nil, "additional include directory (repeatable)")
	pf.BoolVar(&g.noConfigFile, "no-config-file", false, "do not search for .clang_complete files")
	pf.StringVar(&g.project, "project", "", "project root bounding the flag file search")

	rootCmd.AddCommand(newLSPCmd(g))
	rootCmd.AddCommand(newCompleteCmd(g))
	rootCmd.AddCommand(newDiagnoseCmd(g))
	rootCmd.AddCommand(newIncludesCmd(g))
	rootCmd.AddCommand(newVersionCmd(g))

	return rootCmd
}

// load reads the environment configuration and applies the flags that were
// set on cmd.
func (g *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	cfg = g.apply(cmd, cfg)
	configureLogging(cfg)
	return cfg, nil
}

func (g *globalFlags) apply(cmd *cobra.Command, cfg config.Config) config.Config {
	flags := cmd.Flags()
	if flags.Changed("clang") {
		cfg.ClangBinary = g.clang
	}
	if flags.Changed("verbose") {
		cfg.Verbose = g.verbose
	}
	if flags.Changed("std") {
		cfg.StdFlag = g.std
	}
	if flags.Changed("include") {
		cfg.Includes = append(cfg.Includes, g.includes...)
	}
	if flags.Changed("no-config-file") {
		cfg.SearchConfigFile = !g.noConfigFile
	}
	if flags.Changed("project") {
		cfg.ProjectDir = g.project
	}
	if cfg.ProjectDir != "" {
		if abs, err := filepath.Abs(cfg.ProjectDir); err == nil {
			cfg.ProjectDir = abs
		}
	}
	return cfg
}

func configureLogging(cfg config.Config) {
	var path *string
	if cfg.LogFile != "" {
		path = &cfg.LogFile
	}
	commonlog.Configure(cfg.Verbosity(), path)
}

func initOptions(cfg config.Config) pipeline.InitOptions {
	return pipeline.InitOptions{
		Includes:         cfg.Includes,
		SearchConfigFile: cfg.SearchConfigFile,
		StdFlag:          cfg.StdFlag,
		ProjectDir:       cfg.ProjectDir,
	}
}

// newOrchestrator resolves the binding and builds a pipeline over it. When
// required is false a failed resolution yields a disabled orchestrator.
func newOrchestrator(ctx context.Context, cfg config.Config, required bool) (*pipeline.Orchestrator, error) {
	b, err := binding.Resolve(ctx, cfg.ClangBinary, cfg.Verbose)
	if err != nil {
		if required {
			return nil, err
		}
		log.Errorf("completion disabled: %s", err)
		b = nil
	} else {
		log.Infof("using %s", b)
	}

	return pipeline.New(b, pipeline.Config{
		Defaults:    initOptions(cfg),
		MaxSessions: cfg.MaxSessions,
		Verbose:     cfg.Verbose,
		SkipQuiet:   true,
	})
}
