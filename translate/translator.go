// Package translate drives chunks through a translation backend.
//
// The Executor owns retry, backoff and request pacing; a Translator is a
// single-shot adapter for one provider (OpenAI-compatible HTTP, Anthropic,
// Gemini) that turns a chunk of entries into translated entries.
package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
)

// Request is one chunk sent to a Translator.
type Request struct {
	Content        *job.Entries
	TargetLanguage string
	SourceLanguage string
	// Instructions are appended to the system prompt.
	Instructions string
}

// Usage reports token consumption when the backend returns it.
type Usage struct {
	PromptTokens     int64 `json:"promptTokens"`
	CompletionTokens int64 `json:"completionTokens"`
	TotalTokens      int64 `json:"totalTokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Response is a Translator's answer. Success false with a nil error is
// a soft failure reported by the backend.
type Response struct {
	Success bool
	Content map[string]string
	Usage   Usage
	Error   string
}

// Translator translates one chunk in a single attempt.
type Translator interface {
	Translate(ctx context.Context, req *Request) (*Response, error)
}

// ChunkSizeHinter is implemented by translators that prefer a chunk size.
type ChunkSizeHinter interface {
	PreferredChunkSize() int
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// ErrUnsuccessful is returned when the backend reports Success false.
	ErrUnsuccessful = errors.New("translator reported failure")
	// ErrEmptyResponse is returned when the backend returns no response.
	ErrEmptyResponse = errors.New("translator returned no response")
	// ErrNoTranslator is returned when no adapter is configured.
	ErrNoTranslator = errors.New("no translator configured")
)

// RateLimitError signals HTTP 429. RetryAfter, when positive, replaces
// the computed backoff before the next attempt.
type RateLimitError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
	}
	return "rate limited"
}

// StatusError is a non-2xx response from an HTTP backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// ChunkError is the final failure of a chunk after all attempts.
type ChunkError struct {
	JobID    string
	Attempts int
	Err      error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk translation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
