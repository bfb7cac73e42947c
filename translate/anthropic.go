package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
)

// AnthropicTranslator calls the Claude Messages API.
type AnthropicTranslator struct {
	prov   Provider
	client anthropic.Client
	logger arbor.ILogger
}

// NewAnthropicTranslator returns an adapter for prov. SDK-level retries
// are disabled; the Executor owns retry.
func NewAnthropicTranslator(prov Provider, logger arbor.ILogger) *AnthropicTranslator {
	opts := []option.RequestOption{
		option.WithAPIKey(prov.APIKey),
		option.WithMaxRetries(0),
	}
	if prov.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(prov.BaseURL))
	}
	if prov.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(prov.Timeout))
	}
	return &AnthropicTranslator{
		prov:   prov,
		client: anthropic.NewClient(opts...),
		logger: logger,
	}
}

// PreferredChunkSize implements ChunkSizeHinter.
func (a *AnthropicTranslator) PreferredChunkSize() int {
	return a.prov.ChunkSize
}

// Translate implements Translator.
func (a *AnthropicTranslator) Translate(ctx context.Context, req *Request) (*Response, error) {
	system, user, err := BuildPrompts(req, a.prov.PromptTemplate)
	if err != nil {
		return nil, err
	}

	maxTokens := a.prov.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.prov.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
	}
	if a.prov.Temperature > 0 {
		params.Temperature = anthropic.Float(a.prov.Temperature)
	}

	a.logger.Debug().
		Str("model", a.prov.Model).
		Int("entries", req.Content.Len()).
		Msg("Sending Claude message request")

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			rl := &RateLimitError{Body: truncate(apiErr.Error(), 500)}
			if apiErr.Response != nil {
				rl.RetryAfter = parseRetryDelay(apiErr.Response.Header, nil)
			}
			return nil, rl
		}
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return &Response{Success: false, Error: "no text in Claude response"}, nil
	}

	content, err := ParseResponse(text.String())
	if err != nil {
		return nil, err
	}
	return &Response{
		Success: true,
		Content: content,
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
