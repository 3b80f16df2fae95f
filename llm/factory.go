package llm

import (
	"context"

	"github.com/m4xw311/docchat/config"
	"github.com/m4xw311/docchat/errors"
	"github.com/rs/zerolog/log"
)

type Options struct {
	// Provider overrides the provider chosen from the environment.
	Provider string
	// Model overrides the provider's default model.
	Model string
	Env   *config.Env
}

// New builds the Client for the selected provider. The provider is resolved
// from Options.Provider, then DOCCHAT_LLM, then the first API key present.
func New(ctx context.Context, opts Options) (Client, error) {
	env := opts.Env
	if env == nil {
		env = &config.Env{}
	}
	provider, err := env.SelectProvider(opts.Provider)
	if err != nil {
		return nil, err
	}

	model := opts.Model
	if model == "" {
		model = env.Model(provider)
	}
	log.Debug().Str("provider", provider).Str("model", model).Msg("creating model client")

	var c Client
	switch provider {
	case config.ProviderAnthropic:
		c, err = NewAnthropicClient(env.AnthropicAPIKey, model)
	case config.ProviderGemini:
		c, err = NewGeminiClient(ctx, env.GeminiAPIKey, model)
	case config.ProviderOpenAI:
		c, err = NewOpenAIClient(env.OpenAIAPIKey, env.OpenAIBaseURL, model)
	case config.ProviderBedrock:
		c, err = NewBedrockClient(ctx, model, env.BedrockEndpoint)
	case config.ProviderMock:
		c = &MockClient{}
	default:
		return nil, errors.New("unknown model provider %q", provider)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error initializing %s client", provider)
	}
	return c, nil
}
