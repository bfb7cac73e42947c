// Package job holds the translation job model: a job is a set of
// key/value entries split into ordered chunks, each translated on its own.
package job

import (
	"fmt"
	"time"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/progress"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusInterrupted
}

// ChunkStatus is the lifecycle state of a chunk.
type ChunkStatus string

const (
	ChunkPending    ChunkStatus = "pending"
	ChunkProcessing ChunkStatus = "processing"
	ChunkCompleted  ChunkStatus = "completed"
	ChunkFailed     ChunkStatus = "failed"
)

// Domain tags the kind of content a job translates. It selects the
// configured chunk size and the result type.
type Domain string

const (
	DomainMod       Domain = "mod"
	DomainQuest     Domain = "quest"
	DomainGuidebook Domain = "guidebook"
	DomainCustom    Domain = "custom"
)

// Domains lists the known domains in display order.
func Domains() []Domain {
	return []Domain{DomainMod, DomainQuest, DomainGuidebook, DomainCustom}
}

// ParseDomain converts a CLI or config value to a Domain.
func ParseDomain(s string) (Domain, error) {
	for _, d := range Domains() {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown domain %q (want mod, quest, guidebook or custom)", s)
}

// ---------------------------------------------------------------------------
// Chunk
// ---------------------------------------------------------------------------

// Chunk is a contiguous slice of a job's entries.
type Chunk struct {
	ID                string      `json:"id"`
	Content           *Entries    `json:"content"`
	Status            ChunkStatus `json:"status"`
	TranslatedContent *Entries    `json:"translatedContent,omitempty"`
	// Placeholders are keys of TranslatedContent the backend left
	// untranslated.
	Placeholders []string `json:"placeholders,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Begin moves the chunk to processing.
func (c *Chunk) Begin() {
	c.Status = ChunkProcessing
}

// Complete stores the translation and marks the chunk completed.
func (c *Chunk) Complete(translated *Entries, placeholders ...string) {
	c.Status = ChunkCompleted
	c.TranslatedContent = translated
	c.Placeholders = placeholders
	c.Error = ""
}

// Fail records the failure message.
func (c *Chunk) Fail(err error) {
	c.Status = ChunkFailed
	c.TranslatedContent = nil
	c.Placeholders = nil
	if err != nil {
		c.Error = err.Error()
	} else {
		c.Error = "unknown error"
	}
}

// ---------------------------------------------------------------------------
// Job
// ---------------------------------------------------------------------------

// Job is one translation unit: one source collection into one language.
type Job struct {
	ID              string   `json:"id"`
	Status          Status   `json:"status"`
	Progress        int      `json:"progress"`
	TotalChunks     int      `json:"totalChunks"`
	TargetLanguage  string   `json:"targetLanguage"`
	Chunks          []*Chunk `json:"chunks"`
	StartTime       int64    `json:"startTime,omitempty"`
	EndTime         int64    `json:"endTime,omitempty"`
	CurrentFileName string   `json:"currentFileName,omitempty"`
	SourceID        string   `json:"sourceId,omitempty"`
	Domain          Domain   `json:"domain,omitempty"`
}

// New builds a pending job from pre-split chunk contents. A job with
// no chunks has nothing left to do and is created completed.
func New(id, targetLanguage string, contents []*Entries) *Job {
	j := &Job{
		ID:             id,
		Status:         StatusPending,
		TargetLanguage: targetLanguage,
		Chunks:         make([]*Chunk, 0, len(contents)),
	}
	for i, c := range contents {
		j.Chunks = append(j.Chunks, &Chunk{
			ID:      fmt.Sprintf("%s_chunk_%d", id, i),
			Content: c,
			Status:  ChunkPending,
		})
	}
	j.TotalChunks = len(j.Chunks)

	if j.TotalChunks == 0 {
		now := nowMillis()
		j.Status = StatusCompleted
		j.Progress = 100
		j.StartTime = now
		j.EndTime = now
	}
	return j
}

// Start moves a pending job to processing. It is a no-op otherwise.
func (j *Job) Start() {
	if j.Status != StatusPending {
		return
	}
	j.Status = StatusProcessing
	j.StartTime = nowMillis()
}

// UpdateProgress recomputes Progress from completed chunks.
func (j *Job) UpdateProgress() {
	j.Progress = progress.Percent(j.CompletedChunks(), j.TotalChunks)
}

// Finish settles the job after every chunk was attempted: failed if any
// chunk failed, completed otherwise. Terminal jobs are left unchanged.
func (j *Job) Finish() {
	if j.Status.IsTerminal() {
		return
	}
	if j.FailedChunks() > 0 {
		j.Status = StatusFailed
	} else {
		j.Status = StatusCompleted
	}
	j.Progress = 100
	j.EndTime = nowMillis()
}

// Interrupt marks the job interrupted. Unprocessed chunks stay pending.
func (j *Job) Interrupt() {
	if j.Status.IsTerminal() {
		return
	}
	j.Status = StatusInterrupted
	j.EndTime = nowMillis()
}

// IsTerminal reports whether the job reached a final state.
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// CompletedChunks counts chunks in the completed state.
func (j *Job) CompletedChunks() int {
	return j.countChunks(ChunkCompleted)
}

// FailedChunks counts chunks in the failed state.
func (j *Job) FailedChunks() int {
	return j.countChunks(ChunkFailed)
}

func (j *Job) countChunks(s ChunkStatus) int {
	n := 0
	for _, c := range j.Chunks {
		if c.Status == s {
			n++
		}
	}
	return n
}

// TotalEntries counts source entries across all chunks.
func (j *Job) TotalEntries() int {
	n := 0
	for _, c := range j.Chunks {
		n += c.Content.Len()
	}
	return n
}

// CombinedTranslatedContent merges the translations of completed chunks
// in chunk order. Failed and pending chunks contribute nothing.
func (j *Job) CombinedTranslatedContent() *Entries {
	out := NewEntries()
	for _, c := range j.Chunks {
		if c.Status != ChunkCompleted || c.TranslatedContent == nil {
			continue
		}
		c.TranslatedContent.Range(func(k, v string) bool {
			out.Set(k, v)
			return true
		})
	}
	return out
}

// PlaceholderKeys lists the placeholder keys of completed chunks in
// chunk order.
func (j *Job) PlaceholderKeys() []string {
	var out []string
	for _, c := range j.Chunks {
		if c.Status == ChunkCompleted {
			out = append(out, c.Placeholders...)
		}
	}
	return out
}

// Duration returns the wall time between start and end, or zero.
func (j *Job) Duration() time.Duration {
	if j.StartTime == 0 || j.EndTime < j.StartTime {
		return 0
	}
	return time.Duration(j.EndTime-j.StartTime) * time.Millisecond
}

// ---------------------------------------------------------------------------
// Result
// ---------------------------------------------------------------------------

// Result is the per-job report emitted to the result sink.
type Result struct {
	Type           Domain   `json:"type"`
	ID             string   `json:"id"`
	DisplayName    string   `json:"displayName"`
	TargetLanguage string   `json:"targetLanguage"`
	Content        *Entries `json:"content"`
	OutputPath     string   `json:"outputPath,omitempty"`
	Success        bool     `json:"success"`
	// TranslatedKeys counts keys of Content the backend translated;
	// Placeholders lists the rest.
	TranslatedKeys int      `json:"translatedKeys"`
	TotalKeys      int      `json:"totalKeys"`
	Placeholders   []string `json:"placeholders,omitempty"`
}

// Translated returns Content without placeholder values.
func (r Result) Translated() *Entries {
	if len(r.Placeholders) == 0 {
		return r.Content
	}
	skip := make(map[string]bool, len(r.Placeholders))
	for _, k := range r.Placeholders {
		skip[k] = true
	}
	out := NewEntries()
	r.Content.Range(func(k, v string) bool {
		if !skip[k] {
			out.Set(k, v)
		}
		return true
	})
	return out
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
