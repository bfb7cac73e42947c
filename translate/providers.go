package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/logging"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI       = "openai"
	ProviderAnthropic    = "anthropic"
	ProviderGemini       = "gemini"
	ProviderOllama       = "ollama"
	ProviderCustomOpenAI = "custom-openai"
)

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for a translation backend.
type Provider struct {
	// ID is the provider identifier (openai, anthropic, gemini, ...).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL. Empty uses the SDK default.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
	// Temperature is the sampling temperature; zero leaves the
	// provider default.
	Temperature float64
	// MaxTokens bounds the completion length where the API requires it.
	MaxTokens int64
	// PromptTemplate overrides DefaultSystemPrompt.
	PromptTemplate string
	// ChunkSize is the preferred entries per request, 0 for no preference.
	ChunkSize int
	// NeedsKey reports whether the provider requires an API key.
	NeedsKey bool
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderOpenAI: {
			ID:       ProviderOpenAI,
			Name:     "OpenAI",
			BaseURL:  "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Timeout:  120 * time.Second,
			NeedsKey: true,
		},
		ProviderAnthropic: {
			ID:        ProviderAnthropic,
			Name:      "Anthropic Claude",
			Model:     "claude-haiku-4-5",
			Timeout:   120 * time.Second,
			MaxTokens: 8192,
			NeedsKey:  true,
		},
		ProviderGemini: {
			ID:       ProviderGemini,
			Name:     "Google Gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  120 * time.Second,
			NeedsKey: true,
		},
		ProviderOllama: {
			ID:        ProviderOllama,
			Name:      "Ollama",
			BaseURL:   "http://localhost:11434/v1",
			Model:     "llama3.1",
			Timeout:   300 * time.Second,
			ChunkSize: 20,
		},
		ProviderCustomOpenAI: {
			ID:       ProviderCustomOpenAI,
			Name:     "Custom OpenAI",
			Timeout:  120 * time.Second,
			NeedsKey: false,
		},
	}
}

// ProviderIDs lists the known providers in display order.
func ProviderIDs() []string {
	return []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOllama, ProviderCustomOpenAI}
}

// NewTranslator builds the adapter for prov.
func NewTranslator(ctx context.Context, prov Provider, logger arbor.ILogger) (Translator, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if prov.NeedsKey && prov.APIKey == "" {
		return nil, fmt.Errorf("provider %s requires an API key", prov.ID)
	}
	if prov.Model == "" {
		return nil, fmt.Errorf("provider %s requires a model", prov.ID)
	}

	switch prov.ID {
	case ProviderAnthropic:
		return NewAnthropicTranslator(prov, logger), nil
	case ProviderGemini:
		return NewGeminiTranslator(ctx, prov, logger)
	case ProviderCustomOpenAI:
		if prov.BaseURL == "" {
			return nil, fmt.Errorf("provider %s requires a base URL", prov.ID)
		}
		return NewHTTPTranslator(prov, logger), nil
	default:
		// OpenAI, Ollama and unknown IDs speak chat/completions.
		return NewHTTPTranslator(prov, logger), nil
	}
}
