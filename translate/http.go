package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// HTTPTranslator talks to OpenAI-compatible chat/completions endpoints
// (OpenAI, Ollama, LM Studio, vLLM and similar).
type HTTPTranslator struct {
	prov   Provider
	client *http.Client
	logger arbor.ILogger
}

// NewHTTPTranslator returns an adapter for prov.
func NewHTTPTranslator(prov Provider, logger arbor.ILogger) *HTTPTranslator {
	timeout := prov.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPTranslator{
		prov:   prov,
		client: makeHTTPClient(prov.Proxy, timeout),
		logger: logger,
	}
}

// PreferredChunkSize implements ChunkSizeHinter.
func (h *HTTPTranslator) PreferredChunkSize() int {
	return h.prov.ChunkSize
}

// Translate implements Translator.
func (h *HTTPTranslator) Translate(ctx context.Context, req *Request) (*Response, error) {
	system, user, err := BuildPrompts(req, h.prov.PromptTemplate)
	if err != nil {
		return nil, err
	}
	body, err := buildChatRequest(h.prov.Model, system, user, h.prov.Temperature)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	endpoint := chatEndpoint(h.prov.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.prov.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.prov.APIKey)
	}

	h.logger.Debug().
		Str("provider", h.prov.ID).
		Str("endpoint", endpoint).
		Int("entries", req.Content.Len()).
		Msg("Sending chat completion request")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			RetryAfter: parseRetryDelay(resp.Header, respBody),
			Body:       truncate(string(respBody), 500),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 500)}
	}

	text, usage, err := extractChatResponse(respBody)
	if err != nil {
		return nil, err
	}
	content, err := ParseResponse(text)
	if err != nil {
		return nil, err
	}
	return &Response{Success: true, Content: content, Usage: usage}, nil
}

// ---------------------------------------------------------------------------
// HTTP client with proxy support
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func chatEndpoint(baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

func buildChatRequest(model, systemPrompt, userPrompt string, temperature float64) ([]byte, error) {
	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if temperature > 0 {
		req.Temperature = &temperature
	}
	return json.Marshal(req)
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// extractChatResponse returns the first choice's text and token usage.
func extractChatResponse(body []byte) (string, Usage, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", Usage{}, fmt.Errorf("invalid JSON response: %w", err)
	}
	if resp.Error != nil {
		return "", Usage{}, fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
	}

	var usage Usage
	if resp.Usage != nil {
		usage = Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// parseRetryDelay reads the Retry-After header (seconds) or Google's
// RetryInfo detail from a 429 response. Zero means unknown.
func parseRetryDelay(header http.Header, body []byte) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return 0
	}
	for _, detail := range errResp.Error.Details {
		if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
			if secs, err := strconv.ParseFloat(strings.TrimSuffix(detail.RetryDelay, "s"), 64); err == nil {
				return time.Duration(secs*1000) * time.Millisecond
			}
		}
	}
	return 0
}
