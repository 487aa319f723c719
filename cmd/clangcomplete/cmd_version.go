package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhamidi/clangcomplete/binding"
	"github.com/dhamidi/clangcomplete/engine/clang"
)

func newVersionCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and the resolved clang binding",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "clangcomplete %s\n", version)

			b, err := binding.Resolve(cmd.Context(), cfg.ClangBinary, cfg.Verbose)
			if err != nil {
				fmt.Fprintf(out, "binding: unavailable: %s\n", err)
				return nil
			}
			fmt.Fprintf(out, "binding: %s\n", b)
			if e, ok := b.Engine.(*clang.Engine); ok {
				fmt.Fprintf(out, "dialect: %s %v\n", e.Dialect().Version, e.Dialect().CompletionFlags)
			}
			return nil
		},
	}
}
