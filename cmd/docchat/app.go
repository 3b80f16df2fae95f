package main

import (
	"context"

	"github.com/m4xw311/docchat/command"
	"github.com/m4xw311/docchat/config"
	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/llm"
	"github.com/m4xw311/docchat/logging"
	"github.com/m4xw311/docchat/session"
	"github.com/m4xw311/docchat/tools"
	"github.com/m4xw311/docchat/tools/mcp"
	"github.com/rs/zerolog/log"
)

// app holds what every agent of the process shares: configuration, the
// model client, documents, commands, tools and MCP connections.
type app struct {
	cfg      *config.Config
	llm      llm.Client
	docs     *document.Store
	commands *command.Registry
	tools    []tools.Tool
	clients  []*mcp.Client
}

func newApp(ctx context.Context, f *flags) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, errors.Wrapf(err, "error loading configuration")
	}
	if f.debug {
		cfg.Log.Level = "debug"
	}
	logging.Init(cfg.Log)

	env, err := config.LoadEnv(f.envFile)
	if err != nil {
		return nil, err
	}
	client, err := llm.New(ctx, llm.Options{
		Provider: firstNonEmpty(f.llm, cfg.LLMClient),
		Model:    firstNonEmpty(f.model, cfg.Model),
		Env:      env,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		llm:      client,
		docs:     document.NewStore(),
		commands: command.NewRegistry(),
	}
	if err := a.loadDocuments(f.docsDir); err != nil {
		a.Close()
		return nil, err
	}

	registry := tools.NewRegistry()
	if err := a.connectServers(ctx, f.servers, registry); err != nil {
		a.Close()
		return nil, err
	}
	// Local document tools shadow remote ones of the same name: they work on
	// the store @references are expanded from.
	for _, t := range tools.DocumentTools(a.docs) {
		if _, ok := registry.Get(t.Name()); ok {
			log.Debug().Str("tool", t.Name()).Msg("local tool shadows MCP tool")
		}
		registry.Register(t)
	}
	if a.tools, err = registry.Active(cfg.Tools); err != nil {
		a.Close()
		return nil, err
	}

	command.RegisterBuiltins(a.commands, a.docs)
	return a, nil
}

func (a *app) loadDocuments(dir string) error {
	if a.cfg.Documents.Samples {
		a.docs.Merge(document.NewStoreFrom(document.Samples()))
	}
	root := firstNonEmpty(dir, a.cfg.Documents.Root)
	if root == "" {
		return nil
	}
	ids, err := document.LoadFiles(a.docs, root, a.cfg.Documents.Include, a.cfg.Documents.Hidden)
	if err != nil {
		return errors.Wrapf(err, "could not load documents from %s", root)
	}
	log.Info().Str("root", root).Int("count", len(ids)).Msg("loaded documents")
	return nil
}

// connectServers starts the configured MCP servers named in names, or all
// of them when names is empty, and collects their tools, documents and
// prompts.
func (a *app) connectServers(ctx context.Context, names []string, registry *tools.Registry) error {
	servers := a.cfg.MCPServers
	if len(names) > 0 {
		servers = nil
		for _, name := range names {
			s, ok := a.cfg.Server(name)
			if !ok {
				return errors.New("MCP server '%s' is not configured", name)
			}
			servers = append(servers, *s)
		}
	}

	run := func(ctx context.Context, messages []session.Message) (string, error) {
		return llm.Complete(ctx, a.llm, messages)
	}

	for _, s := range servers {
		c, err := mcp.NewClient(ctx, s.Name, s.Command, s.Args)
		if err != nil {
			return errors.Wrapf(err, "could not connect to MCP server '%s'", s.Name)
		}
		a.clients = append(a.clients, c)

		for _, t := range c.Tools() {
			registry.Register(t)
		}

		docs, err := c.Documents(ctx)
		if err != nil {
			return errors.Wrapf(err, "could not list documents of MCP server '%s'", s.Name)
		}
		for _, d := range docs {
			a.docs.Put(d.ID, d.Content)
		}

		cmds, err := c.Commands(ctx, run)
		if err != nil {
			return errors.Wrapf(err, "could not list prompts of MCP server '%s'", s.Name)
		}
		for _, cmd := range cmds {
			a.commands.Register(cmd)
		}
		log.Info().Str("server", s.Name).Int("tools", len(c.Tools())).Int("documents", len(docs)).Int("prompts", len(cmds)).Msg("connected to MCP server")
	}
	return nil
}

func (a *app) Close() {
	for _, c := range a.clients {
		if err := c.Close(); err != nil {
			log.Debug().Err(err).Str("server", c.Name).Msg("error closing MCP client")
		}
	}
	if closer, ok := a.llm.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing model client")
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
