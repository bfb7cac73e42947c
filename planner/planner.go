// Package planner splits a source collection into chunks and builds the
// translation job that carries them.
package planner

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/logging"
)

// DefaultChunkSize is used when neither the domain nor the translator
// supplies a size.
const DefaultChunkSize = 50

// Options configures chunking.
type Options struct {
	// ChunkSizes holds the per-domain entry count per chunk.
	ChunkSizes map[job.Domain]int `validate:"dive,gte=0"`

	UseTokenBasedChunking bool
	MaxTokensPerChunk     int `validate:"gte=0"`
	FallbackToEntryBased  bool

	// Estimator is consulted for token-budget chunking. Without one the
	// planner always chunks by entry count.
	Estimator TokenEstimator
}

// ChunkSizeHinter is implemented by translators with a preferred size.
type ChunkSizeHinter interface {
	PreferredChunkSize() int
}

// Planner builds jobs.
type Planner struct {
	opts   Options
	hinter ChunkSizeHinter
	logger arbor.ILogger
}

// New validates the options and returns a planner.
func New(opts Options, logger arbor.ILogger) (*Planner, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid planner options: %w", err)
	}
	if opts.UseTokenBasedChunking && opts.MaxTokensPerChunk <= 0 {
		return nil, errors.New("invalid planner options: token-based chunking requires MaxTokensPerChunk > 0")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Planner{opts: opts, logger: logger}, nil
}

// SetHinter registers the active translator's chunk-size preference.
// Pass nil to clear it.
func (p *Planner) SetHinter(h ChunkSizeHinter) {
	p.hinter = h
}

// ChunkSize returns the entry count per chunk for domain. A configured
// domain size wins, then the translator hint, then DefaultChunkSize.
func (p *Planner) ChunkSize(domain job.Domain) int {
	if n := p.opts.ChunkSizes[domain]; n > 0 {
		return n
	}
	if p.hinter != nil {
		if n := p.hinter.PreferredChunkSize(); n > 0 {
			return n
		}
	}
	return DefaultChunkSize
}

// CreateJob splits content and returns a pending job.
func (p *Planner) CreateJob(content *job.Entries, targetLanguage, sourceID string, domain job.Domain) (*job.Job, error) {
	if targetLanguage == "" {
		return nil, errors.New("target language is required")
	}
	if domain == "" {
		domain = job.DomainCustom
	}

	id := uuid.New().String()
	chunks := p.Split(content, domain)

	j := job.New(id, targetLanguage, chunks)
	j.SourceID = sourceID
	j.Domain = domain

	p.logger.Debug().
		Str("job_id", id).
		Str("source_id", sourceID).
		Str("domain", string(domain)).
		Str("target_language", targetLanguage).
		Int("entries", content.Len()).
		Int("chunks", j.TotalChunks).
		Msg("Created translation job")
	return j, nil
}

// Split partitions content using the configured strategy.
func (p *Planner) Split(content *job.Entries, domain job.Domain) []*job.Entries {
	if content.Len() == 0 {
		return nil
	}
	size := p.ChunkSize(domain)

	if !p.opts.UseTokenBasedChunking || p.opts.Estimator == nil {
		return SplitByCount(content, size)
	}

	chunks, oversized := SplitByTokens(content, p.opts.Estimator, p.opts.MaxTokensPerChunk)
	if oversized > 0 && p.opts.FallbackToEntryBased {
		p.logger.Warn().
			Int("oversized_entries", oversized).
			Int("max_tokens", p.opts.MaxTokensPerChunk).
			Msg("Entry exceeds token budget, falling back to entry-count chunking")
		return SplitByCount(content, size)
	}
	return chunks
}

// SplitByCount slices content into consecutive groups of size entries.
func SplitByCount(content *job.Entries, size int) []*job.Entries {
	n := content.Len()
	if n == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	out := make([]*job.Entries, 0, (n+size-1)/size)
	for i := 0; i < n; i += size {
		out = append(out, content.Slice(i, i+size))
	}
	return out
}

// SplitByTokens packs entries greedily so each chunk's estimated cost
// stays within maxTokens. An entry that alone exceeds the budget gets a
// chunk of its own; the number of such entries is returned.
func SplitByTokens(content *job.Entries, est TokenEstimator, maxTokens int) ([]*job.Entries, int) {
	var (
		out       []*job.Entries
		current   = job.NewEntries()
		used      int
		oversized int
	)

	flush := func() {
		if current.Len() > 0 {
			out = append(out, current)
			current = job.NewEntries()
			used = 0
		}
	}

	content.Range(func(k, v string) bool {
		cost := est.EstimateTokens(k, v)
		if cost > maxTokens {
			oversized++
			flush()
			current.Set(k, v)
			flush()
			return true
		}
		if used+cost > maxTokens {
			flush()
		}
		current.Set(k, v)
		used += cost
		return true
	})
	flush()

	return out, oversized
}
