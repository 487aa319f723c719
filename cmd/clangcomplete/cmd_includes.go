package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dhamidi/clangcomplete/include"
)

func newIncludesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "includes <file>",
		Short: "Show the include directories used for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			res := include.Resolve(path, include.Options{
				Initial:          cfg.Includes,
				SearchConfigFile: cfg.SearchConfigFile,
				ProjectDir:       cfg.ProjectDir,
				Verbose:          cfg.Verbose,
			})

			out := cmd.OutOrStdout()
			if res.ConfigFile != "" {
				fmt.Fprintf(out, "# %s\n", res.ConfigFile)
			}
			for _, dir := range res.Includes {
				fmt.Fprintln(out, dir)
			}
			return nil
		},
	}
}
