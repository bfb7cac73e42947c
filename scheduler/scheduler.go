// Package scheduler owns the translation jobs of a session. It creates
// them through the planner, keeps them until they are cleared, and runs
// batches through the runner with shared chunk and whole-batch progress.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/logging"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/planner"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/progress"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/runner"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/translate"
)

var (
	// ErrBusy is returned when a batch is started while another runs.
	ErrBusy = errors.New("a translation batch is already running")
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")
)

// Config configures a Service.
type Config struct {
	Planner  planner.Options
	Executor translate.ExecutorOptions
	// MaxConcurrency is accepted for forward compatibility; jobs and
	// chunks always run one at a time.
	MaxConcurrency int `validate:"gte=0"`
}

// ResultRecorder persists per-job results, for example to history.
type ResultRecorder interface {
	Record(ctx context.Context, r job.Result) error
}

// ProgressFunc observes a counter: completed/total units and percentage.
type ProgressFunc func(completed, total, percent int)

// BatchOptions configures one RunBatch call.
type BatchOptions struct {
	Type job.Domain
	// TotalUnits overrides the whole-progress denominator (for example
	// the number of mods when one mod yields several jobs). Zero uses
	// the number of non-terminal jobs.
	TotalUnits int
	// WholeUnitOf maps a job to its logical unit. When set, the whole
	// counter advances once per unit, after its last job.
	WholeUnitOf func(j *job.Job) string

	DisplayName      func(j *job.Job) string
	WriteOutput      func(ctx context.Context, j *job.Job, content *job.Entries) (string, error)
	OnResult         func(r job.Result)
	OnJobStart       func(j *job.Job)
	OnJobComplete    func(j *job.Job)
	OnJobInterrupted func(j *job.Job)
	OnChunkProgress  ProgressFunc
	OnWholeProgress  ProgressFunc
}

// Service is the owning service for jobs.
type Service struct {
	mu      sync.Mutex
	jobs    map[string]*job.Job
	order   []string
	current string

	planner  *planner.Planner
	executor *translate.Executor
	runner   *runner.Runner
	recorder ResultRecorder
	logger   arbor.ILogger

	running     atomic.Bool
	interrupted atomic.Bool
}

// New builds a service around translator t, which may be nil until
// SetTranslator is called.
func New(cfg Config, t translate.Translator, logger arbor.ILogger) (*Service, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}

	p, err := planner.New(cfg.Planner, logger)
	if err != nil {
		return nil, err
	}
	exec, err := translate.NewExecutor(t, cfg.Executor, logger)
	if err != nil {
		return nil, err
	}

	s := &Service{
		jobs:     make(map[string]*job.Job),
		planner:  p,
		executor: exec,
		runner:   runner.New(exec, logger),
		logger:   logger,
	}
	s.setHinter(t)
	return s, nil
}

// SetTranslator swaps the backend adapter used for subsequent chunks.
func (s *Service) SetTranslator(t translate.Translator) {
	s.executor.SetTranslator(t)
	s.setHinter(t)
}

func (s *Service) setHinter(t translate.Translator) {
	if h, ok := t.(translate.ChunkSizeHinter); ok {
		s.planner.SetHinter(h)
	} else {
		s.planner.SetHinter(nil)
	}
}

// SetRecorder registers a result recorder. Pass nil to disable.
func (s *Service) SetRecorder(r ResultRecorder) {
	s.recorder = r
}

// Usage returns token usage accumulated by the executor.
func (s *Service) Usage() translate.Usage {
	return s.executor.Usage()
}

// ---------------------------------------------------------------------------
// Job registry
// ---------------------------------------------------------------------------

// CreateJob plans a job and registers it.
func (s *Service) CreateJob(content *job.Entries, targetLanguage, sourceID string, domain job.Domain) (*job.Job, error) {
	j, err := s.planner.CreateJob(content, targetLanguage, sourceID, domain)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	s.mu.Unlock()
	return j, nil
}

// GetJob returns a registered job.
func (s *Service) GetJob(id string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return j, nil
}

// Jobs returns registered jobs in creation order.
func (s *Service) Jobs() []*job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*job.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id])
	}
	return out
}

// ClearJob discards a job. The job being processed cannot be cleared.
func (s *Service) ClearJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if id == s.current {
		return fmt.Errorf("job %s is being processed", id)
	}
	delete(s.jobs, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ClearAll discards every job. It fails while a batch runs.
func (s *Service) ClearAll() error {
	if s.running.Load() {
		return ErrBusy
	}
	s.mu.Lock()
	s.jobs = make(map[string]*job.Job)
	s.order = nil
	s.mu.Unlock()
	return nil
}

// CurrentJobID returns the job being processed, or "".
func (s *Service) CurrentJobID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Service) setCurrent(id string) {
	s.mu.Lock()
	s.current = id
	s.mu.Unlock()
}

// ---------------------------------------------------------------------------
// Interruption
// ---------------------------------------------------------------------------

// Interrupt asks the running batch to stop before its next chunk.
// In-flight backend calls are not cancelled.
func (s *Service) Interrupt() {
	s.interrupted.Store(true)
	s.logger.Info().Str("job_id", s.CurrentJobID()).Msg("Interruption requested")
}

// IsInterrupted reports whether an interruption is pending.
func (s *Service) IsInterrupted() bool {
	return s.interrupted.Load()
}

// Running reports whether a batch is in progress.
func (s *Service) Running() bool {
	return s.running.Load()
}

// ---------------------------------------------------------------------------
// Batch execution
// ---------------------------------------------------------------------------

// RunBatch runs jobs (registered or not) in order. A pending
// interruption is cleared when the batch starts.
func (s *Service) RunBatch(ctx context.Context, jobs []*job.Job, opts BatchOptions) (runner.Summary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return runner.Summary{}, ErrBusy
	}
	defer s.running.Store(false)
	s.interrupted.Store(false)

	// Terminal jobs are skipped by the runner and count toward neither
	// progress total.
	var active []*job.Job
	totalChunks := 0
	for _, j := range jobs {
		if j != nil && !j.IsTerminal() {
			active = append(active, j)
			totalChunks += j.TotalChunks
		}
	}
	chunkCounter := progress.NewCounter(totalChunks, opts.OnChunkProgress)
	wholeCounter := progress.NewCounter(wholeTotal(active, opts), opts.OnWholeProgress)
	incrementWhole := wholeIncrementer(active, opts, wholeCounter)

	s.logger.Info().
		Int("jobs", len(jobs)).
		Int("chunks", totalChunks).
		Str("type", string(opts.Type)).
		Msg("Starting translation batch")

	hooks := runner.Hooks{
		SetCurrentJobID:        s.setCurrent,
		OnJobStart:             opts.OnJobStart,
		OnJobComplete:          opts.OnJobComplete,
		OnJobInterrupted:       opts.OnJobInterrupted,
		IncrementChunkProgress: func() { chunkCounter.Increment() },
		IncrementWholeProgress: incrementWhole,
		WriteOutput:            opts.WriteOutput,
		IsInterrupted:          func(string) bool { return s.interrupted.Load() },
		OnResult: func(r job.Result) {
			if s.recorder != nil {
				if err := s.recorder.Record(ctx, r); err != nil {
					s.logger.Warn().Err(err).Str("id", r.ID).Msg("Failed to record translation result")
				}
			}
			if opts.OnResult != nil {
				opts.OnResult(r)
			}
		},
	}

	summary, err := s.runner.Run(ctx, jobs, runner.Options{
		Type:        opts.Type,
		DisplayName: opts.DisplayName,
		Hooks:       hooks,
	})
	if err != nil {
		return summary, err
	}

	s.logger.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Bool("interrupted", summary.Interrupted).
		Msg("Translation batch finished")
	return summary, nil
}

func wholeTotal(jobs []*job.Job, opts BatchOptions) int {
	if opts.TotalUnits > 0 {
		return opts.TotalUnits
	}
	if opts.WholeUnitOf != nil {
		units := map[string]bool{}
		for _, j := range jobs {
			units[opts.WholeUnitOf(j)] = true
		}
		return len(units)
	}
	return len(jobs)
}

// wholeIncrementer returns the whole-progress hook. With WholeUnitOf set
// it only advances when the last job of a unit finishes.
func wholeIncrementer(jobs []*job.Job, opts BatchOptions, c *progress.Counter) func() {
	if opts.WholeUnitOf == nil {
		return func() { c.Increment() }
	}

	remaining := map[string]int{}
	for _, j := range jobs {
		remaining[opts.WholeUnitOf(j)]++
	}
	idx := 0
	return func() {
		if idx >= len(jobs) {
			return
		}
		unit := opts.WholeUnitOf(jobs[idx])
		idx++
		remaining[unit]--
		if remaining[unit] == 0 {
			c.Increment()
		}
	}
}
