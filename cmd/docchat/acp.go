package main

import (
	"github.com/m4xw311/docchat/agent/acp"
	"github.com/spf13/cobra"
)

func newACPCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "acp",
		Short: "Serve chat sessions to an editor over the Agent Client Protocol",
		Long: `acp speaks the Agent Client Protocol on stdin and stdout, for editors such as
Zed. Each editor session gets its own agent and is saved like a terminal
session, so it can be reopened with session/load. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, f)
			if err != nil {
				return err
			}
			defer a.Close()

			return acp.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), acp.Options{
				SessionsDir: a.cfg.SessionsDir,
				NewAgent:    a.newAgent,
			})
		},
	}
}
