package tools

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/docchat/errors"
)

// Tool defines the interface for any action the model can request.
type Tool interface {
	Name() string
	Description() string
	// InputSchema is the JSON schema of the arguments object.
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Registry holds all available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ts := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Name() < ts[j].Name() })
	return ts
}

// Active returns the tools whose names match one of patterns, e.g. "*_doc*".
// No patterns means every tool. A pattern without glob characters must name
// a registered tool.
func (r *Registry) Active(patterns []string) ([]Tool, error) {
	all := r.List()
	if len(patterns) == 0 {
		return all, nil
	}

	var active []Tool
	for _, t := range all {
		match, err := matchesAny(t.Name(), patterns)
		if err != nil {
			return nil, err
		}
		if match {
			active = append(active, t)
		}
	}

	for _, pattern := range patterns {
		if strings.ContainsAny(pattern, "*?[{\\") {
			continue
		}
		if _, ok := r.Get(pattern); !ok {
			return nil, errors.New("tool '%s' is not registered", pattern)
		}
	}
	return active, nil
}

func matchesAny(name string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, name)
		if err != nil {
			return false, errors.Wrapf(err, "invalid tool pattern '%s'", pattern)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// ObjectSchema builds the JSON schema of an object with string properties.
// props maps property names to their descriptions.
func ObjectSchema(props map[string]string, required ...string) map[string]interface{} {
	properties := make(map[string]interface{}, len(props))
	for name, desc := range props {
		properties[name] = map[string]interface{}{
			"type":        "string",
			"description": desc,
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringArg returns the string argument key, or an error naming the tool.
func StringArg(tool string, args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", errors.New("tool '%s': missing argument '%s'", tool, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.New("tool '%s': argument '%s' must be a string, got %T", tool, key, v)
	}
	return s, nil
}
