package main

import (
	"os"
	"os/signal"

	"github.com/m4xw311/docchat/agent"
	"github.com/m4xw311/docchat/agent/websocket"
	"github.com/m4xw311/docchat/session"
	"github.com/spf13/cobra"
)

func newServeCmd(f *flags) *cobra.Command {
	var addr string
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve chat sessions over websocket",
		Long: `Serve starts a websocket endpoint at ` + websocket.Path + `. Every connection
gets a fresh session; each text message is one input line and replies are sent
as JSON frames of the form {"type": ..., "data": ...}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, f)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := websocket.NewServer(func(name string) (*agent.Agent, error) {
				sess, err := session.New(a.cfg.SessionsDir, name)
				if err != nil {
					return nil, err
				}
				return a.newAgent(sess)
			}, origins...)
			cmd.Printf("WebSocket server running on ws://%s%s\n", addr, websocket.Path)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "Address to listen on")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "Browser origin allowed to connect besides the server's own, e.g. http://localhost:3000 (repeatable)")
	return cmd
}
