package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dhamidi/clangcomplete/complete"
	"github.com/dhamidi/clangcomplete/pipeline"
	"github.com/dhamidi/clangcomplete/session"
)

func newCompleteCmd(g *globalFlags) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "complete <file> <row> <col>",
		Short: "Print completions at a 1-based position in a file",
		Long: `Print the completions clang offers at ROW and COL of FILE.

Each line holds the trigger, the hint and the text to insert, separated
by tabs. Placeholders in the inserted text use the ${n:text} snippet form.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			row, err := strconv.Atoi(args[1])
			if err != nil || row < 1 {
				return fmt.Errorf("invalid row %q", args[1])
			}
			col, err := strconv.Atoi(args[2])
			if err != nil || col < 1 {
				return fmt.Errorf("invalid column %q", args[2])
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			var content []byte
			if fromStdin {
				content, err = io.ReadAll(cmd.InOrStdin())
			} else {
				content, err = os.ReadFile(path)
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
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

			doc := session.Document{ID: path, Path: path, Content: string(content)}
			completions, err := o.Complete(cmd.Context(), doc, row, col)
			if errors.Is(err, pipeline.ErrNoCompletions) {
				return nil
			}
			if err != nil {
				return err
			}
			printCompletions(cmd.OutOrStdout(), completions)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the buffer from stdin instead of the file")

	return cmd
}

func printCompletions(w io.Writer, completions []complete.Completion) {
	for _, c := range completions {
		fmt.Fprintf(w, "%s\t%s\n", c.Label(), c.Insert())
	}
}
