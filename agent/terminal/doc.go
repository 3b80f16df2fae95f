// Package terminal implements the interactive command-line mode of docchat.
//
// Lines are read with peterh/liner, which gives line editing, a persistent
// history file and tab completion: "/" at the start of a line completes
// command names and "@" completes document ids. Each line is passed to the
// agent; command output is printed as is and model replies are optionally
// rendered as markdown with glamour.
//
// # Usage
//
//	term := terminal.New(a, terminal.Options{
//	    HistoryFile: ".docchat/history",
//	    Render:      true,
//	})
//	err = term.Run(ctx, initialPrompt)
//
// /quit, /exit, Ctrl-C and end of input end the session.
//
// # Verbosity Levels
//
//   - none: tool calls are not shown
//   - info: tool names are shown when called
//   - all: tool names, arguments and results are shown
//
// With ConfirmTools set, each tool call must be approved with "y".
package terminal
