package agent

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Options selects and configures one collaborator backend.
type Options struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
	Format      string
	Policy      Policy
}

// New builds the Reasoner for opts.Provider. A missing API key is not an
// error here; it surfaces as a configuration error on the first call.
func New(opts Options) (Reasoner, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderGemini:
		return NewGeminiReasoner(GeminiOptions{
			APIKey:      opts.APIKey,
			Model:       opts.Model,
			BaseURL:     opts.BaseURL,
			Timeout:     opts.Timeout,
			Temperature: opts.Temperature,
			Policy:      opts.Policy,
		}), nil
	case ProviderOpenAI, "nim":
		return NewOpenAIReasoner(OpenAIOptions{
			APIKey:      opts.APIKey,
			BaseURL:     opts.BaseURL,
			Model:       opts.Model,
			Timeout:     opts.Timeout,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			Format:      opts.Format,
			Policy:      opts.Policy,
		}), nil
	default:
		return nil, fmt.Errorf("unknown reasoner provider %q", opts.Provider)
	}
}
