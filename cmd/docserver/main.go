package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/m4xw311/docchat/config"
	"github.com/m4xw311/docchat/docserver"
	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

type options struct {
	dir     string
	include []string
	hidden  []string
	samples bool
	debug   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.Default().Documents
	o := &options{}
	cmd := &cobra.Command{
		Use:   "docserver",
		Short: "Serve documents over the Model Context Protocol on stdio",
		Long: `docserver publishes documents to MCP clients such as docchat. It offers the
read_doc_contents and edit_document tools, the docs://documents resources and
the summarize and format prompts. Without --dir it serves a set of sample
documents.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := logging.DefaultConfig
			if o.debug {
				cfg.Level = "debug"
			}
			logging.Init(cfg)

			store, err := loadStore(o)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if err := docserver.New(store, version).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				return errors.Wrapf(err, "docserver stopped")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&o.dir, "dir", "", "Directory to serve documents from")
	cmd.Flags().StringSliceVar(&o.include, "include", defaults.Include, "Globs of files to serve, relative to --dir")
	cmd.Flags().StringSliceVar(&o.hidden, "hidden", defaults.Hidden, "Globs of files never to serve")
	cmd.Flags().BoolVar(&o.samples, "samples", false, "Serve the sample documents (default when --dir is not set)")
	cmd.Flags().BoolVar(&o.debug, "debug", false, "Log debug output to stderr")
	return cmd
}

func loadStore(o *options) (*document.Store, error) {
	store := document.NewStore()
	if o.samples || o.dir == "" {
		store.Merge(document.NewStoreFrom(document.Samples()))
	}
	if o.dir != "" {
		ids, err := document.LoadFiles(store, o.dir, o.include, o.hidden)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load documents from %s", o.dir)
		}
		log.Debug().Str("dir", o.dir).Int("count", len(ids)).Msg("loaded documents")
	}
	return store, nil
}
