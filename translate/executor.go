package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/logging"
)

const (
	defaultMaxRetries    = 5
	defaultBaseBackoff   = time.Second
	defaultMaxBackoff    = 30 * time.Second
	defaultMaxRetryAfter = 90 * time.Second
)

// ExecutorOptions configures retry and pacing.
type ExecutorOptions struct {
	// MaxRetries is the total number of attempts per chunk. Zero means 5;
	// values below one are treated as one.
	MaxRetries int `validate:"gte=0"`
	// BaseBackoff is the wait before the second attempt; it doubles per
	// attempt up to MaxBackoff.
	BaseBackoff time.Duration `validate:"gte=0"`
	MaxBackoff  time.Duration `validate:"gte=0"`
	// MaxRetryAfter caps a server-provided retry-after delay.
	MaxRetryAfter time.Duration `validate:"gte=0"`
	// RequestInterval is the minimum spacing between backend calls.
	RequestInterval time.Duration `validate:"gte=0"`

	SourceLanguage string
	Instructions   string
}

// Executor translates chunks with retry.
type Executor struct {
	mu         sync.RWMutex
	translator Translator

	opts    ExecutorOptions
	limiter *rate.Limiter
	logger  arbor.ILogger

	usageMu sync.Mutex
	usage   Usage
}

// NewExecutor returns an executor bound to t. t may be nil and set later
// with SetTranslator.
func NewExecutor(t Translator, opts ExecutorOptions, logger arbor.ILogger) (*Executor, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid executor options: %w", err)
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.MaxRetryAfter == 0 {
		opts.MaxRetryAfter = defaultMaxRetryAfter
	}
	if logger == nil {
		logger = logging.Discard()
	}

	e := &Executor{translator: t, opts: opts, logger: logger}
	if opts.RequestInterval > 0 {
		e.limiter = rate.NewLimiter(rate.Every(opts.RequestInterval), 1)
	}
	return e, nil
}

// SetTranslator replaces the backend adapter.
func (e *Executor) SetTranslator(t Translator) {
	e.mu.Lock()
	e.translator = t
	e.mu.Unlock()
}

// Translator returns the current adapter.
func (e *Executor) Translator() Translator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.translator
}

// Usage returns the token usage accumulated over successful attempts.
func (e *Executor) Usage() Usage {
	e.usageMu.Lock()
	defer e.usageMu.Unlock()
	return e.usage
}

func (e *Executor) attempts() int {
	if e.opts.MaxRetries < 1 {
		return 1
	}
	return e.opts.MaxRetries
}

// Backoff returns the wait before attempt n+1 after n failed attempts.
func (e *Executor) Backoff(failed int, lastErr error) time.Duration {
	var rl *RateLimitError
	if errors.As(lastErr, &rl) && rl.RetryAfter > 0 {
		return min(rl.RetryAfter, e.opts.MaxRetryAfter)
	}

	d := e.opts.BaseBackoff
	for i := 1; i < failed; i++ {
		d *= 2
		if d >= e.opts.MaxBackoff {
			return e.opts.MaxBackoff
		}
	}
	return min(d, e.opts.MaxBackoff)
}

// TranslateChunk sends content to the translator, retrying failures.
// On success the result has exactly the keys of content, in order, and
// placeholders lists the keys the backend left untranslated.
func (e *Executor) TranslateChunk(ctx context.Context, content *job.Entries, targetLanguage, jobID string) (translated *job.Entries, placeholders []string, err error) {
	tr := e.Translator()
	if tr == nil {
		return nil, nil, &ChunkError{JobID: jobID, Err: ErrNoTranslator}
	}

	req := &Request{
		Content:        content,
		TargetLanguage: targetLanguage,
		SourceLanguage: e.opts.SourceLanguage,
		Instructions:   e.opts.Instructions,
	}
	logger := e.logger.WithCorrelationId(jobID)
	maxAttempts := e.attempts()

	var (
		lastErr error
		made    int
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := e.Backoff(attempt-1, lastErr)
			logger.Debug().
				Int("attempt", attempt).
				Str("delay", delay.String()).
				Msg("Waiting before retry")
			if err := sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		made = attempt
		resp, err := tr.Translate(ctx, req)
		switch {
		case err != nil:
			lastErr = err
		case resp == nil:
			lastErr = ErrEmptyResponse
		case !resp.Success:
			if resp.Error != "" {
				lastErr = fmt.Errorf("%w: %s", ErrUnsuccessful, resp.Error)
			} else {
				lastErr = ErrUnsuccessful
			}
		default:
			e.addUsage(resp.Usage)
			translated, placeholders = Reconcile(content, resp.Content, targetLanguage, logger)
			return translated, placeholders, nil
		}

		logger.Warn().
			Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Int("entries", content.Len()).
			Msg("Chunk translation attempt failed")

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}

	return nil, nil, &ChunkError{JobID: jobID, Attempts: made, Err: lastErr}
}

func (e *Executor) addUsage(u Usage) {
	e.usageMu.Lock()
	e.usage.Add(u)
	e.usageMu.Unlock()
}

// Placeholder is the value used for a key the backend did not translate.
func Placeholder(targetLanguage, source string) string {
	return "[" + targetLanguage + "] " + source
}

// Reconcile maps a backend answer onto the requested keys. Missing or
// blank values become placeholders and their keys are returned in
// request order; keys that were not requested are dropped.
func Reconcile(src *job.Entries, got map[string]string, targetLanguage string, logger arbor.ILogger) (*job.Entries, []string) {
	out := job.NewEntries()
	var missing []string
	src.Range(func(k, v string) bool {
		if t, ok := got[k]; ok && strings.TrimSpace(t) != "" {
			out.Set(k, t)
		} else {
			missing = append(missing, k)
			out.Set(k, Placeholder(targetLanguage, v))
		}
		return true
	})

	extra := 0
	for k := range got {
		if _, ok := src.Get(k); !ok {
			extra++
		}
	}

	if (len(missing) > 0 || extra > 0) && logger != nil {
		logger.Warn().
			Int("missing_keys", len(missing)).
			Int("extra_keys", extra).
			Int("requested_keys", src.Len()).
			Msg("Translation keys did not match the request")
	}
	return out, missing
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
