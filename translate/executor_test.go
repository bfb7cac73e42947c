package translate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/logging"
)

// scripted answers each call with the next step; past the end it
// repeats the last step.
type scripted struct {
	mu    sync.Mutex
	steps []func(req *Request) (*Response, error)
	calls int
	times []time.Time
}

func (s *scripted) Translate(_ context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.times = append(s.times, time.Now())
	s.mu.Unlock()
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i](req)
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func echo(prefix string) func(req *Request) (*Response, error) {
	return func(req *Request) (*Response, error) {
		out := map[string]string{}
		req.Content.Range(func(k, v string) bool {
			out[k] = prefix + v
			return true
		})
		return &Response{Success: true, Content: out, Usage: Usage{TotalTokens: 10}}, nil
	}
}

func fail(err error) func(req *Request) (*Response, error) {
	return func(*Request) (*Response, error) { return nil, err }
}

func sample() *job.Entries {
	e := job.NewEntries()
	e.Set("item.sword", "Sword")
	e.Set("item.shield", "Shield")
	return e
}

func newTestExecutor(t *testing.T, tr Translator, opts ExecutorOptions) *Executor {
	t.Helper()
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Millisecond
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 5 * time.Millisecond
	}
	e, err := NewExecutor(tr, opts, logging.Discard())
	require.NoError(t, err)
	return e
}

func TestTranslateChunk_Success(t *testing.T) {
	tr := &scripted{steps: []func(*Request) (*Response, error){echo("JA:")}}
	e := newTestExecutor(t, tr, ExecutorOptions{MaxRetries: 3})

	out, placeholders, err := e.TranslateChunk(context.Background(), sample(), "ja_jp", "job-1")
	require.NoError(t, err)
	assert.Empty(t, placeholders)
	assert.Equal(t, []string{"item.sword", "item.shield"}, out.Keys())
	v, _ := out.Get("item.sword")
	assert.Equal(t, "JA:Sword", v)
	assert.Equal(t, 1, tr.Calls())
	assert.Equal(t, int64(10), e.Usage().TotalTokens)
}

func TestTranslateChunk_RetriesThenSucceeds(t *testing.T) {
	tr := &scripted{steps: []func(*Request) (*Response, error){
		fail(errors.New("network down")),
		func(*Request) (*Response, error) { return &Response{Success: false, Error: "overloaded"}, nil },
		echo("JA:"),
	}}
	e := newTestExecutor(t, tr, ExecutorOptions{MaxRetries: 3})

	out, _, err := e.TranslateChunk(context.Background(), sample(), "ja_jp", "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 3, tr.Calls())
}

func TestTranslateChunk_ExhaustsAttempts(t *testing.T) {
	tr := &scripted{steps: []func(*Request) (*Response, error){
		func(*Request) (*Response, error) { return nil, nil },
		func(*Request) (*Response, error) { return &Response{Success: false}, nil },
	}}
	e := newTestExecutor(t, tr, ExecutorOptions{MaxRetries: 3})

	out, _, err := e.TranslateChunk(context.Background(), sample(), "ja_jp", "job-9")
	assert.Nil(t, out)
	require.Error(t, err)

	var chunkErr *ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, "job-9", chunkErr.JobID)
	assert.Equal(t, 3, chunkErr.Attempts)
	assert.ErrorIs(t, err, ErrUnsuccessful)
	assert.Equal(t, 3, tr.Calls())
}

func TestTranslateChunk_MinimumOneAttempt(t *testing.T) {
	tr := &scripted{steps: []func(*Request) (*Response, error){fail(errors.New("nope"))}}
	e := newTestExecutor(t, tr, ExecutorOptions{MaxRetries: 0})
	e.opts.MaxRetries = -3

	_, _, err := e.TranslateChunk(context.Background(), sample(), "ja_jp", "j")
	require.Error(t, err)
	assert.Equal(t, 1, tr.Calls())
}

func TestTranslateChunk_NoTranslator(t *testing.T) {
	e := newTestExecutor(t, nil, ExecutorOptions{})
	_, _, err := e.TranslateChunk(context.Background(), sample(), "ja_jp", "j")
	assert.ErrorIs(t, err, ErrNoTranslator)

	e.SetTranslator(&scripted{steps: []func(*Request) (*Response, error){echo("")}})
	_, _, err = e.TranslateChunk(context.Background(), sample(), "ja_jp", "j")
	assert.NoError(t, err)
}

func TestTranslateChunk_ContextCancelledStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &scripted{steps: []func(*Request) (*Response, error){
		func(*Request) (*Response, error) {
			cancel()
			return nil, errors.New("boom")
		},
	}}
	e := newTestExecutor(t, tr, ExecutorOptions{MaxRetries: 5})

	_, _, err := e.TranslateChunk(ctx, sample(), "ja_jp", "j")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tr.Calls())
}

func TestTranslateChunk_RequestInterval(t *testing.T) {
	tr := &scripted{steps: []func(*Request) (*Response, error){
		fail(errors.New("first")),
		echo(""),
	}}
	e := newTestExecutor(t, tr, ExecutorOptions{MaxRetries: 2, RequestInterval: 40 * time.Millisecond})

	_, _, err := e.TranslateChunk(context.Background(), sample(), "ja_jp", "j")
	require.NoError(t, err)
	require.Len(t, tr.times, 2)
	assert.GreaterOrEqual(t, tr.times[1].Sub(tr.times[0]), 30*time.Millisecond)
}

func TestTranslateChunk_ReconcilesKeys(t *testing.T) {
	tr := &scripted{steps: []func(*Request) (*Response, error){
		func(*Request) (*Response, error) {
			return &Response{Success: true, Content: map[string]string{
				"item.shield": "盾",
				"item.bogus":  "余計",
			}}, nil
		},
	}}
	e := newTestExecutor(t, tr, ExecutorOptions{MaxRetries: 1})

	out, placeholders, err := e.TranslateChunk(context.Background(), sample(), "ja_jp", "j")
	require.NoError(t, err)
	assert.Equal(t, []string{"item.sword", "item.shield"}, out.Keys())
	assert.Equal(t, map[string]string{
		"item.sword":  "[ja_jp] Sword",
		"item.shield": "盾",
	}, out.Map())
	assert.Equal(t, []string{"item.sword"}, placeholders)
}

func TestReconcileBlankValues(t *testing.T) {
	src := job.NewEntries()
	src.Set("a", "Apple")
	src.Set("b", "Bread")
	src.Set("c", "Cheese")

	out, placeholders := Reconcile(src, map[string]string{"a": "りんご", "b": "  ", "c": "チーズ"}, "ja_jp", nil)
	assert.Equal(t, []string{"b"}, placeholders)
	v, _ := out.Get("b")
	assert.Equal(t, "[ja_jp] Bread", v)

	_, placeholders = Reconcile(src, map[string]string{"a": "1", "b": "2", "c": "3"}, "ja_jp", nil)
	assert.Empty(t, placeholders)
}

func TestBackoff(t *testing.T) {
	e, err := NewExecutor(nil, ExecutorOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, time.Second, e.Backoff(1, nil))
	assert.Equal(t, 2*time.Second, e.Backoff(2, nil))
	assert.Equal(t, 4*time.Second, e.Backoff(3, nil))
	assert.Equal(t, 30*time.Second, e.Backoff(10, nil))

	rl := &RateLimitError{RetryAfter: 7 * time.Second}
	assert.Equal(t, 7*time.Second, e.Backoff(1, rl))
	assert.Equal(t, 90*time.Second, e.Backoff(1, &RateLimitError{RetryAfter: time.Hour}))
}

func TestNewExecutorRejectsNegative(t *testing.T) {
	_, err := NewExecutor(nil, ExecutorOptions{MaxRetries: -1}, nil)
	assert.Error(t, err)
	_, err = NewExecutor(nil, ExecutorOptions{RequestInterval: -time.Second}, nil)
	assert.Error(t, err)
}
