package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/m4xw311/docchat/errors"
	"github.com/spf13/viper"
)

var ErrNoAPIKey = errors.Sentinel("no model provider API key configured: set ANTHROPIC_API_KEY, GEMINI_API_KEY or OPENAI_API_KEY")

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderBedrock   = "bedrock"
	ProviderMock      = "mock"
)

// Env holds the secrets and provider settings read from the environment.
type Env struct {
	Provider        string `envconfig:"DOCCHAT_LLM"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL"`
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	GeminiModel     string `envconfig:"GEMINI_MODEL"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel     string `envconfig:"OPENAI_MODEL"`
	BedrockModelID  string `envconfig:"BEDROCK_MODEL_ID"`
	BedrockEndpoint string `envconfig:"BEDROCK_ENDPOINT_URL"`
}

// LoadEnv exports the variables of envFile (or ./.env when envFile is empty and
// the file exists) into the process environment, then decodes Env from it.
// Variables already present in the environment are never overwritten.
func LoadEnv(envFile string) (*Env, error) {
	envFile = strings.TrimSpace(envFile)
	if envFile != "" {
		if err := exportEnvironment(envFile); err != nil {
			return nil, errors.Wrapf(err, "failed to load env file %s", envFile)
		}
	} else if err := exportEnvironmentIfExists(".env"); err != nil {
		return nil, errors.Wrapf(err, "failed to load default env file")
	}

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, errors.Wrapf(err, "failed to decode environment")
	}
	return &env, nil
}

func exportEnvironmentIfExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return exportEnvironment(path)
}

func exportEnvironment(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for k, val := range v.AllSettings() {
		key := strings.ToUpper(k)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}

// SelectProvider picks the model provider. An explicit choice (flag, config
// file, then DOCCHAT_LLM) wins; otherwise the first provider whose API key is
// present is used, in the order Anthropic, Gemini, OpenAI.
func (e *Env) SelectProvider(preferred ...string) (string, error) {
	for _, p := range append(preferred, e.Provider) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		switch p {
		case ProviderAnthropic, ProviderGemini, ProviderOpenAI, ProviderBedrock, ProviderMock:
			return p, nil
		default:
			return "", errors.New("unknown model provider %q", p)
		}
	}

	switch {
	case e.AnthropicAPIKey != "":
		return ProviderAnthropic, nil
	case e.GeminiAPIKey != "":
		return ProviderGemini, nil
	case e.OpenAIAPIKey != "":
		return ProviderOpenAI, nil
	}
	return "", ErrNoAPIKey
}

// Model returns the model configured in the environment for provider.
func (e *Env) Model(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return e.AnthropicModel
	case ProviderGemini:
		return e.GeminiModel
	case ProviderOpenAI:
		return e.OpenAIModel
	case ProviderBedrock:
		return e.BedrockModelID
	}
	return ""
}
