package config

import (
	"os"
	"path/filepath"

	"github.com/m4xw311/docchat/errors"
	"github.com/m4xw311/docchat/logging"
	"gopkg.in/yaml.v3"
)

// Dir is the per-user and per-project configuration directory name.
const Dir = ".docchat"

const DefaultMaxToolIterations = 5

type Documents struct {
	Root    string   `yaml:"root"`
	Include []string `yaml:"include"`
	Hidden  []string `yaml:"hidden"`
	Samples bool     `yaml:"samples"`
}

type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type Config struct {
	LLMClient         string         `yaml:"llm"`
	Model             string         `yaml:"model"`
	MaxToolIterations int            `yaml:"max_tool_iterations"`
	SystemPrompt      string         `yaml:"system_prompt"`
	RenderMarkdown    bool           `yaml:"render_markdown"`
	SessionsDir       string         `yaml:"sessions_dir"`
	HistoryFile       string         `yaml:"history_file"`
	Documents         Documents      `yaml:"documents"`
	MCPServers        []MCPServer    `yaml:"mcp_servers"`
	Tools             []string       `yaml:"tools"`
	Log               logging.Config `yaml:"log"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		MaxToolIterations: DefaultMaxToolIterations,
		RenderMarkdown:    true,
		SessionsDir:       filepath.Join(Dir, "sessions"),
		HistoryFile:       filepath.Join(Dir, "history"),
		Documents: Documents{
			Include: []string{"**/*.md", "**/*.txt"},
			Hidden:  []string{Dir, Dir + "/**"},
		},
		Log: logging.DefaultConfig,
	}
}

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence.
func LoadConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	return Load(home, wd)
}

// Load reads <home>/.docchat/config.yaml and then <project>/.docchat/config.yaml
// over the defaults. Missing files are skipped; an empty dir is ignored.
func Load(home, project string) (*Config, error) {
	cfg := Default()

	for _, dir := range []string{home, project} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, Dir, "config.yaml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := loadFromFile(path, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading config %s", path)
		}
	}

	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = DefaultMaxToolIterations
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites only the fields present in the YAML, so the project
	// file layers on top of the user file field by field.
	return yaml.Unmarshal(data, cfg)
}

// Server finds a configured MCP server by name.
func (c *Config) Server(name string) (*MCPServer, bool) {
	for i := range c.MCPServers {
		if c.MCPServers[i].Name == name {
			return &c.MCPServers[i], true
		}
	}
	return nil, false
}
