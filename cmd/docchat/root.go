package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/m4xw311/docchat/agent"
	"github.com/m4xw311/docchat/agent/terminal"
	"github.com/m4xw311/docchat/session"
	"github.com/spf13/cobra"
)

type flags struct {
	session      string
	resume       string
	llm          string
	model        string
	envFile      string
	docsDir      string
	servers      []string
	debug        bool
	noRender     bool
	confirmTools bool
	verbosity    string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "docchat [prompt...]",
		Short: "Chat with a language model about your documents",
		Long: `docchat is a terminal chat client. Mention a document with @id to put its
content into the prompt, and run commands with /name. Type /help for the list.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runChat(ctx, f, strings.Join(args, " "))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.llm, "llm", "", "Model provider: anthropic, gemini, openai, bedrock or mock")
	pf.StringVar(&f.model, "model", "", "Model name, overriding the provider default")
	pf.StringVar(&f.envFile, "env", "", "File with environment variables (defaults to ./.env when present)")
	pf.StringVar(&f.docsDir, "docs", "", "Directory to load documents from")
	pf.StringSliceVar(&f.servers, "server", nil, "Configured MCP server to connect to (repeatable; default all)")
	pf.BoolVar(&f.debug, "debug", false, "Log debug output to stderr")

	cmd.Flags().StringVarP(&f.session, "session", "s", "", "Session name to create or use")
	cmd.Flags().StringVarP(&f.resume, "resume", "r", "", "Resume a session by name")
	cmd.Flags().BoolVar(&f.noRender, "no-render", false, "Print replies as plain text instead of rendered markdown")
	cmd.Flags().BoolVar(&f.confirmTools, "confirm-tools", false, "Ask before every tool call")
	cmd.Flags().StringVar(&f.verbosity, "tool-verbosity", "none", "Tool verbosity level: 'none', 'info', or 'all'")

	cmd.AddCommand(newServeCmd(f), newACPCmd(f), newVersionCmd())
	return cmd
}

func runChat(ctx context.Context, f *flags, initialPrompt string) error {
	verbosity, err := terminal.ParseVerbosity(f.verbosity)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, f)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := openSession(a.cfg.SessionsDir, f)
	if err != nil {
		return err
	}

	chat, err := a.newAgent(sess)
	if err != nil {
		return err
	}

	fmt.Println("docchat is ready. Type your prompt, /help for commands.")
	term := terminal.New(chat, terminal.Options{
		HistoryFile:  a.cfg.HistoryFile,
		Render:       a.cfg.RenderMarkdown && !f.noRender,
		Verbosity:    verbosity,
		ConfirmTools: f.confirmTools,
	})
	return term.Run(ctx, initialPrompt)
}

func openSession(dir string, f *flags) (*session.Session, error) {
	if f.resume != "" {
		sess, err := session.Load(dir, f.resume)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Resuming session: %s\n", f.resume)
		return sess, nil
	}

	name := f.session
	if name == "" {
		name = defaultSessionName()
	}
	sess, err := session.New(dir, name)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Starting new session: %s\n", name)
	return sess, nil
}

func defaultSessionName() string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "docchat"
	}
	return fmt.Sprintf("%s_%s", filepath.Base(wd), time.Now().Format("2006-01-02_15-04-05"))
}

// newAgent is shared by the terminal, the websocket server and acp.
func (a *app) newAgent(sess *session.Session) (*agent.Agent, error) {
	return agent.New(agent.Options{
		Documents:         a.docs,
		Commands:          a.commands,
		LLM:               a.llm,
		Tools:             a.tools,
		Session:           sess,
		SystemPrompt:      a.cfg.SystemPrompt,
		MaxToolIterations: a.cfg.MaxToolIterations,
	})
}
