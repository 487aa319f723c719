package main

import (
	"github.com/spf13/cobra"

	"github.com/dhamidi/clangcomplete/lsp"
)

func newLSPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}

			o, err := newOrchestrator(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			server := lsp.NewServer(version, o, initOptions(cfg))
			return server.RunStdio()
		},
	}
}
