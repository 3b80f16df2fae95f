package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/charmbracelet/glamour"
	"github.com/m4xw311/docchat/agent"
	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/session"
	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
)

type Verbosity string

const (
	VerbosityNone Verbosity = "none"
	VerbosityInfo Verbosity = "info"
	VerbosityAll  Verbosity = "all"
)

// ParseVerbosity accepts "none", "info" or "all"; empty means none.
func ParseVerbosity(s string) (Verbosity, error) {
	switch v := Verbosity(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return VerbosityNone, nil
	case VerbosityNone, VerbosityInfo, VerbosityAll:
		return v, nil
	}
	return "", errors.New("invalid tool verbosity '%s'. Must be 'none', 'info', or 'all'", s)
}

// LineReader reads one line of user input. It returns io.EOF when input
// ends.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

type Options struct {
	// In defaults to a liner prompt on the controlling terminal.
	In          LineReader
	Out         io.Writer
	HistoryFile string
	// Render formats replies as markdown with glamour.
	Render       bool
	Verbosity    Verbosity
	ConfirmTools bool
}

// Terminal handles the terminal/CLI interaction mode for the agent
type Terminal struct {
	agent  *agent.Agent
	opts   Options
	in     LineReader
	out    io.Writer
	render func(string) (string, error)
}

// New creates a new Terminal instance
func New(a *agent.Agent, opts Options) *Terminal {
	if opts.Verbosity == "" {
		opts.Verbosity = VerbosityNone
	}
	t := &Terminal{agent: a, opts: opts, in: opts.In, out: opts.Out}
	if t.out == nil {
		t.out = os.Stdout
	}
	if opts.Render {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			log.Warn().Err(err).Msg("markdown rendering disabled")
		} else {
			t.render = r.Render
		}
	}
	return t
}

// Run starts the interactive terminal session. It returns nil when input
// ends or the user types /quit or /exit.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if t.in == nil {
		lr := newLinerReader(t.opts.HistoryFile, t.Complete)
		defer lr.Close()
		t.in = lr
	}

	if initialPrompt != "" {
		if err := t.processTurn(ctx, initialPrompt); err != nil {
			fmt.Fprintf(t.out, "Error: %v\n", err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		input, err := t.in.Prompt("You: ")
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Fprintln(t.out)
				return nil
			}
			return errors.Wrapf(err, "failed to read input")
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		t.in.AppendHistory(input)

		if input == "/quit" || input == "/exit" {
			return nil
		}

		if err := t.processTurn(ctx, input); err != nil {
			fmt.Fprintf(t.out, "Error: %v\n", err)
		}
	}
}

// processTurn handles a single user input turn
func (t *Terminal) processTurn(ctx context.Context, userInput string) error {
	callbacks := agent.ProcessCallbacks{
		OnCommandResult: func(name, text string, err error) {
			fmt.Fprintln(t.out, text)
		},
		OnAssistantMessage: func(message string) {
			fmt.Fprintf(t.out, "docchat: %s\n", t.format(message))
		},
		OnToolCall: func(toolCall session.ToolCall) {
			switch t.opts.Verbosity {
			case VerbosityAll:
				fmt.Fprintf(t.out, "docchat wants to call tool `%s` with args: %v\n", toolCall.Name, toolCall.Args)
			case VerbosityInfo:
				fmt.Fprintf(t.out, "docchat wants to call tool `%s`\n", toolCall.Name)
			}
		},
		OnToolResult: func(toolCall session.ToolCall, result string) {
			if t.opts.Verbosity == VerbosityAll {
				fmt.Fprintf(t.out, "Tool `%s` output: %s\n", toolCall.Name, result)
			}
		},
		OnWarning: func(warning string) {
			fmt.Fprintf(t.out, "Warning: %s\n", warning)
		},
	}
	if t.opts.ConfirmTools {
		callbacks.ShouldExecuteTool = t.confirm
	}

	return t.agent.ProcessUserInput(ctx, userInput, callbacks)
}

func (t *Terminal) confirm(toolCall session.ToolCall) bool {
	if t.opts.Verbosity == VerbosityNone {
		fmt.Fprintf(t.out, "docchat wants to call tool `%s`\n", toolCall.Name)
	}
	answer, err := t.in.Prompt("Do you want to allow this? (y/n): ")
	if err != nil {
		return false
	}
	return strings.TrimSpace(strings.ToLower(answer)) == "y"
}

func (t *Terminal) format(message string) string {
	if t.render == nil {
		return message
	}
	out, err := t.render(message)
	if err != nil {
		log.Debug().Err(err).Msg("markdown rendering failed")
		return message
	}
	return "\n" + strings.Trim(out, "\n")
}

// Complete completes the word under the cursor: "/" at the start of the line
// completes command names, "@" completes document ids.
func (t *Terminal) Complete(line string, pos int) (head string, completions []string, tail string) {
	runes := []rune(line)
	if pos > len(runes) {
		pos = len(runes)
	}
	before, tail := string(runes[:pos]), string(runes[pos:])

	start := strings.LastIndexFunc(before, unicode.IsSpace) + 1
	head, word := before[:start], before[start:]

	switch {
	case strings.HasPrefix(word, "/") && start == 0:
		for _, name := range append(t.agent.Commands().List(), "quit", "exit") {
			if strings.HasPrefix(name, word[1:]) {
				completions = append(completions, "/"+name+" ")
			}
		}
	case strings.HasPrefix(word, "@"):
		for _, id := range t.agent.Documents().List() {
			if strings.HasPrefix(id, word[1:]) {
				completions = append(completions, "@"+id)
			}
		}
	}
	return head, completions, tail
}

type linerReader struct {
	*liner.State
	historyFile string
}

func newLinerReader(historyFile string, complete liner.WordCompleter) *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetWordCompleter(complete)

	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			if _, err := line.ReadHistory(f); err != nil {
				log.Debug().Err(err).Str("file", historyFile).Msg("could not read history")
			}
			f.Close()
		}
	}
	return &linerReader{State: line, historyFile: historyFile}
}

// Close saves history and closes the liner.
func (l *linerReader) Close() error {
	if l.historyFile != "" {
		if err := l.saveHistory(); err != nil {
			log.Debug().Err(err).Str("file", l.historyFile).Msg("could not save history")
		}
	}
	return l.State.Close()
}

func (l *linerReader) saveHistory() error {
	if err := os.MkdirAll(filepath.Dir(l.historyFile), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = l.WriteHistory(f)
	return err
}
