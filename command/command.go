// Package command holds the slash commands a user can invoke from the chat
// prompt.
package command

import (
	"context"
	"sort"
	"sync"

	"github.com/m4xw311/docchat/errors"
)

var ErrUnknownCommand = errors.Sentinel("unknown command")

// Handler produces the text of a command invocation. args is the part of the
// line after the command name, with document references already expanded.
type Handler interface {
	Run(ctx context.Context, args string) (string, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, args string) (string, error)

func (f HandlerFunc) Run(ctx context.Context, args string) (string, error) {
	return f(ctx, args)
}

// Command is a named operation invoked with /name.
type Command struct {
	Name        string
	Args        []string
	Description string
	Handler     Handler
}

// Usage renders the command the way it is typed, e.g. "/doc <id>".
func (c Command) Usage() string {
	u := "/" + c.Name
	for _, a := range c.Args {
		u += " <" + a + ">"
	}
	return u
}

// Registry maps command names to commands. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds c, replacing any command already registered under its name.
func (r *Registry) Register(c Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[c.Name] = c
}

// Resolve looks up a command by its name, without the leading slash.
func (r *Registry) Resolve(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	return c, ok
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []Command {
	names := r.List()
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmds := make([]Command, 0, len(names))
	for _, name := range names {
		if c, ok := r.commands[name]; ok {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// Clone returns an independent copy, so a session can add its own commands
// without affecting others.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewRegistry()
	for name, cmd := range r.commands {
		c.commands[name] = cmd
	}
	return c
}
