package augment

import (
	"context"
	"fmt"
	"strings"
)

type Options struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Sampler  Sampler
}

// New builds the augmenter for opts.Provider ("gemini", "openai", "ollama",
// "fallback" or "none"). A hosted provider without an API key degrades to
// Fallback; the second return value says whether that happened.
func New(ctx context.Context, opts Options) (Augmenter, bool, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "gemini"
	}
	sampler := opts.Sampler
	if sampler == (Sampler{}) {
		sampler = DefaultSampler()
	}

	switch provider {
	case "gemini":
		if strings.TrimSpace(opts.APIKey) == "" {
			return NewFallback(), true, nil
		}
		g, err := NewGeminiAugmenter(ctx, opts.APIKey, opts.Model, sampler)
		if err != nil {
			return nil, false, err
		}
		return g, false, nil
	case "openai":
		if strings.TrimSpace(opts.APIKey) == "" {
			return NewFallback(), true, nil
		}
		return NewOpenAIAugmenter(opts.APIKey, opts.Model, opts.BaseURL, sampler), false, nil
	case "ollama":
		return NewOllamaAugmenter(opts.Model, opts.BaseURL, sampler), false, nil
	case "fallback", "none":
		return NewFallback(), false, nil
	default:
		return nil, false, fmt.Errorf("unsupported augmenter provider: %s", opts.Provider)
	}
}
