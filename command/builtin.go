package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/m4xw311/docchat/document"
	"github.com/m4xw311/docchat/errors"
)

// RegisterBuiltins adds /help, /docs and /doc to r.
func RegisterBuiltins(r *Registry, docs *document.Store) {
	r.Register(Command{
		Name:        "help",
		Description: "List available commands",
		Handler: HandlerFunc(func(ctx context.Context, args string) (string, error) {
			return Help(r), nil
		}),
	})
	r.Register(Command{
		Name:        "docs",
		Description: "List documents that can be referenced with @id",
		Handler: HandlerFunc(func(ctx context.Context, args string) (string, error) {
			ids := docs.List()
			if len(ids) == 0 {
				return "No documents loaded.", nil
			}
			var b strings.Builder
			for _, id := range ids {
				fmt.Fprintf(&b, "@%s\n", id)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		}),
	})
	r.Register(Command{
		Name:        "doc",
		Args:        []string{"id"},
		Description: "Print the content of a document",
		Handler: HandlerFunc(func(ctx context.Context, args string) (string, error) {
			id := strings.TrimSpace(args)
			if id == "" {
				return "", errors.New("usage: /doc <id>")
			}
			doc, err := docs.Get(id)
			if err != nil {
				return "", err
			}
			return doc.Content, nil
		}),
	})
}

// Help renders one line per registered command.
func Help(r *Registry) string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, c := range r.Commands() {
		fmt.Fprintf(&b, "\n  %-24s %s", c.Usage(), c.Description)
	}
	return b.String()
}
