package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dhamidi/clangcomplete/engine"
	"github.com/dhamidi/clangcomplete/session"
)

func newDiagnoseCmd(g *globalFlags) *cobra.Command {
	var jobs int

	cmd := &cobra.Command{
		Use:   "diagnose <file>...",
		Short: "Parse files and print clang diagnostics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobs < 1 {
				return fmt.Errorf("invalid --jobs %d: must be at least 1", jobs)
			}
			paths, err := uniquePaths(args)
			if err != nil {
				return err
			}
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			o, err := newOrchestrator(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer o.Shutdown()

			results := make([][]engine.Diagnostic, len(paths))
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.SetLimit(jobs)
			for i, path := range paths {
				eg.Go(func() error {
					content, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					doc := session.Document{ID: path, Path: path, Content: string(content)}
					if err := o.Open(ctx, doc, initOptions(cfg)); err != nil {
						return err
					}
					diags, _ := o.Diagnostics(path)
					results[i] = diags
					o.Close(path)
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}

			if errors := printDiagnostics(cmd.OutOrStdout(), results); errors > 0 {
				return fmt.Errorf("%d error(s)", errors)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "files parsed in parallel")

	return cmd
}

// uniquePaths makes the arguments absolute and drops repeats, keeping the
// first occurrence of each file.
func uniquePaths(args []string) ([]string, error) {
	seen := make(map[string]bool, len(args))
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths, nil
}

// printDiagnostics writes the diagnostics in argument order and returns the
// number of errors among them.
func printDiagnostics(w io.Writer, results [][]engine.Diagnostic) int {
	errors := 0
	for _, diags := range results {
		for _, d := range diags {
			if d.Severity == engine.SeverityIgnored {
				continue
			}
			if d.Severity >= engine.SeverityError {
				errors++
			}
			fmt.Fprintln(w, d.String())
		}
	}
	return errors
}
