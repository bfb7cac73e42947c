// Package history persists translation sessions and their per-job
// results in a badgerhold store under the user data directory.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/logging"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session summarises one translate run.
type Session struct {
	ID         string
	Type       string
	Languages  []string
	Provider   string
	Model      string
	StartedAt  time.Time
	FinishedAt time.Time

	Completed   int
	Failed      int
	Interrupted bool
	TotalTokens int64
}

// Finished reports whether FinishSession was called.
func (s Session) Finished() bool {
	return !s.FinishedAt.IsZero()
}

// Record is the stored form of one job result.
type Record struct {
	ID             string
	SessionID      string `badgerhold:"index"`
	Type           string
	SourceID       string
	DisplayName    string
	TargetLanguage string
	OutputPath     string
	Success        bool
	TranslatedKeys int
	TotalKeys      int
	CreatedAt      time.Time
}

// Keys renders the translated/total key count, e.g. "42/50".
func (r Record) Keys() string {
	return fmt.Sprintf("%d/%d", r.TranslatedKeys, r.TotalKeys)
}

// Store wraps the badgerhold database.
type Store struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// Open opens (or creates) the history database in dir.
func Open(dir string, logger arbor.ILogger) (*Store, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	logger.Debug().Str("path", dir).Msg("History database opened")
	return &Store{store: store, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// BeginSession stores a new session and returns it with ID and StartedAt
// set.
func (s *Store) BeginSession(_ context.Context, sess Session) (*Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if err := s.store.Upsert(sess.ID, &sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return &sess, nil
}

// FinishSession stores the final counters of a session.
func (s *Store) FinishSession(_ context.Context, sess *Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if sess.FinishedAt.IsZero() {
		sess.FinishedAt = time.Now()
	}
	if err := s.store.Upsert(sess.ID, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Sessions lists sessions newest first. A limit of zero returns all.
func (s *Store) Sessions(_ context.Context, limit int) ([]Session, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []Session
	if err := s.store.Find(&out, query); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return out, nil
}

// Session returns a session and its records in the order they were
// recorded.
func (s *Store) Session(_ context.Context, id string) (*Session, []Record, error) {
	var sess Session
	if err := s.store.Get(id, &sess); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	var records []Record
	query := badgerhold.Where("SessionID").Eq(id).Index("SessionID").SortBy("CreatedAt")
	if err := s.store.Find(&records, query); err != nil {
		return nil, nil, fmt.Errorf("failed to get session records: %w", err)
	}
	return &sess, records, nil
}

// DeleteSession removes a session and its records.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	if err := s.store.DeleteMatching(&Record{}, badgerhold.Where("SessionID").Eq(id).Index("SessionID")); err != nil {
		return fmt.Errorf("failed to delete session records: %w", err)
	}
	if err := s.store.Delete(id, &Session{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Recording
// ---------------------------------------------------------------------------

// Recorder appends job results to one session. It satisfies the
// scheduler's result recorder.
type Recorder struct {
	store     *Store
	sessionID string
}

// Recorder returns a recorder bound to sessionID.
func (s *Store) Recorder(sessionID string) *Recorder {
	return &Recorder{store: s, sessionID: sessionID}
}

// Record stores r.
func (r *Recorder) Record(_ context.Context, res job.Result) error {
	rec := Record{
		ID:             uuid.New().String(),
		SessionID:      r.sessionID,
		Type:           string(res.Type),
		SourceID:       res.ID,
		DisplayName:    res.DisplayName,
		TargetLanguage: res.TargetLanguage,
		OutputPath:     res.OutputPath,
		Success:        res.Success,
		TranslatedKeys: res.TranslatedKeys,
		TotalKeys:      res.TotalKeys,
		CreatedAt:      time.Now(),
	}
	if err := r.store.store.Insert(rec.ID, &rec); err != nil {
		return fmt.Errorf("failed to save history record: %w", err)
	}
	r.store.logger.Debug().
		Str("session_id", r.sessionID).
		Str("id", res.ID).
		Bool("success", res.Success).
		Msg("Recorded translation result")
	return nil
}
