// Package runner processes a queue of translation jobs chunk by chunk,
// reporting progress through hooks and stopping at chunk boundaries when
// the caller requests an interruption.
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/logging"
)

// ChunkTranslator is the executor contract the runner needs. On
// success placeholders names the keys of translated that hold
// placeholder values instead of translations.
type ChunkTranslator interface {
	TranslateChunk(ctx context.Context, content *job.Entries, targetLanguage, jobID string) (translated *job.Entries, placeholders []string, err error)
}

// Hooks are the runner's callbacks. Every field is optional.
type Hooks struct {
	// SetCurrentJobID marks the job being processed; "" clears it.
	SetCurrentJobID func(jobID string)
	OnJobStart      func(j *job.Job)
	// OnJobChunkComplete fires after each successful chunk.
	OnJobChunkComplete func(j *job.Job, chunk *job.Chunk)
	OnJobComplete      func(j *job.Job)
	OnJobInterrupted   func(j *job.Job)
	// IncrementChunkProgress fires after every attempted chunk,
	// successful or not.
	IncrementChunkProgress func()
	// IncrementWholeProgress fires once per job run to its end.
	IncrementWholeProgress func()
	// WriteOutput persists a job's combined translation and returns
	// where it was written.
	WriteOutput func(ctx context.Context, j *job.Job, content *job.Entries) (string, error)
	OnResult    func(r job.Result)
	// IsInterrupted is polled before every chunk.
	IsInterrupted func(jobID string) bool
}

// Options configures one Run.
type Options struct {
	// Type is copied into every Result.
	Type job.Domain
	// DisplayName names a job in results. Defaults to CurrentFileName,
	// then SourceID.
	DisplayName func(j *job.Job) string
	Hooks       Hooks
}

// Summary reports what a Run did.
type Summary struct {
	Completed int
	Failed    int
	// Skipped counts jobs that were already terminal.
	Skipped       int
	Interrupted   bool
	InterruptedID string
	Results       []job.Result
}

// OutputWriteError wraps a failure of the WriteOutput hook.
type OutputWriteError struct {
	JobID string
	Err   error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("writing output for job %s: %v", e.JobID, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

// Runner drives jobs through a ChunkTranslator.
type Runner struct {
	executor ChunkTranslator
	logger   arbor.ILogger
}

// New returns a runner.
func New(executor ChunkTranslator, logger arbor.ILogger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{executor: executor, logger: logger}
}

// Run processes jobs in order. Chunk failures are recorded on the chunk
// and never stop the run; an interruption stops it after marking the
// current job interrupted. Jobs that are already terminal are skipped
// without hooks, output or result. The error is reserved for malformed
// input.
func (r *Runner) Run(ctx context.Context, jobs []*job.Job, opts Options) (Summary, error) {
	var summary Summary
	if r.executor == nil {
		return summary, errors.New("runner has no chunk translator")
	}
	for i, j := range jobs {
		if j == nil {
			return summary, fmt.Errorf("job %d is nil", i)
		}
	}

	h := opts.Hooks
	defer func() {
		if h.SetCurrentJobID != nil {
			h.SetCurrentJobID("")
		}
	}()

	for _, j := range jobs {
		if j.IsTerminal() {
			summary.Skipped++
			r.logger.Debug().
				Str("job_id", j.ID).
				Str("status", string(j.Status)).
				Msg("Skipping finished job")
			continue
		}
		if h.SetCurrentJobID != nil {
			h.SetCurrentJobID(j.ID)
		}
		if h.OnJobStart != nil {
			h.OnJobStart(j)
		}

		if !r.processChunks(ctx, j, h) {
			summary.Interrupted = true
			summary.InterruptedID = j.ID
			r.logger.Info().Str("job_id", j.ID).Msg("Translation interrupted")
			return summary, nil
		}

		j.Finish()
		if h.OnJobComplete != nil {
			h.OnJobComplete(j)
		}
		if h.IncrementWholeProgress != nil {
			h.IncrementWholeProgress()
		}

		result := r.finishJob(ctx, j, opts)
		if result.Success {
			summary.Completed++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, result)
		if h.OnResult != nil {
			h.OnResult(result)
		}
	}
	return summary, nil
}

// processChunks runs every chunk of j in order. It returns false when an
// interruption was observed.
func (r *Runner) processChunks(ctx context.Context, j *job.Job, h Hooks) bool {
	logger := r.logger.WithCorrelationId(j.ID)

	for _, chunk := range j.Chunks {
		if h.IsInterrupted != nil && h.IsInterrupted(j.ID) {
			j.Interrupt()
			if h.OnJobInterrupted != nil {
				h.OnJobInterrupted(j)
			}
			return false
		}

		j.Start()
		chunk.Begin()

		translated, placeholders, err := r.executor.TranslateChunk(ctx, chunk.Content, j.TargetLanguage, j.ID)
		if err != nil {
			chunk.Fail(err)
			logger.Error().
				Err(err).
				Str("chunk_id", chunk.ID).
				Int("entries", chunk.Content.Len()).
				Msg("Chunk failed, continuing with next chunk")
			if h.IncrementChunkProgress != nil {
				h.IncrementChunkProgress()
			}
			continue
		}

		chunk.Complete(translated, placeholders...)
		j.UpdateProgress()
		if h.IncrementChunkProgress != nil {
			h.IncrementChunkProgress()
		}
		if h.OnJobChunkComplete != nil {
			h.OnJobChunkComplete(j, chunk)
		}
		logger.Debug().
			Str("chunk_id", chunk.ID).
			Int("progress", j.Progress).
			Msg("Chunk completed")
	}
	return true
}

func (r *Runner) finishJob(ctx context.Context, j *job.Job, opts Options) job.Result {
	content := j.CombinedTranslatedContent()
	placeholders := j.PlaceholderKeys()
	result := job.Result{
		Type:           opts.Type,
		ID:             j.SourceID,
		DisplayName:    displayName(j, opts.DisplayName),
		TargetLanguage: j.TargetLanguage,
		Content:        content,
		Success:        j.Status == job.StatusCompleted,
		TranslatedKeys: content.Len() - len(placeholders),
		TotalKeys:      j.TotalEntries(),
		Placeholders:   placeholders,
	}
	if result.ID == "" {
		result.ID = j.ID
	}

	if opts.Hooks.WriteOutput != nil {
		path, err := opts.Hooks.WriteOutput(ctx, j, content)
		if err != nil {
			werr := &OutputWriteError{JobID: j.ID, Err: err}
			r.logger.Error().Err(werr).Str("job_id", j.ID).Msg("Failed to write translation output")
			result.Success = false
		} else {
			result.OutputPath = path
		}
	}

	r.logger.Info().
		Str("job_id", j.ID).
		Str("status", string(j.Status)).
		Int("translated_keys", result.TranslatedKeys).
		Int("placeholders", len(placeholders)).
		Int("total_keys", result.TotalKeys).
		Int("failed_chunks", j.FailedChunks()).
		Msg("Job finished")
	return result
}

func displayName(j *job.Job, fn func(*job.Job) string) string {
	if fn != nil {
		if name := fn(j); name != "" {
			return name
		}
	}
	if j.CurrentFileName != "" {
		return j.CurrentFileName
	}
	if j.SourceID != "" {
		return j.SourceID
	}
	return j.ID
}
