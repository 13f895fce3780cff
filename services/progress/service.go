// Package progress persists where each profile left off and keeps a bounded
// most-recently-watched ledger used for "continue watching" rails.
package progress

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"couchsync/internal/storage"
	"couchsync/models"
)

var (
	ErrStoreRequired  = errors.New("blob store not provided")
	ErrUserIDRequired = errors.New("user id is required")
	ErrTitleRequired  = errors.New("title is required")
)

const (
	// DefaultMaxEntries caps the per-user ledger; the least recently
	// watched record past the cap is evicted on insert.
	DefaultMaxEntries = 50

	// Resume is only offered for meaningfully in-progress content: at
	// least 30 seconds in, and between 5% and 90% of the runtime. Below
	// the band the user barely sampled the title, above it they have
	// effectively finished.
	DefaultMinSeconds = 30
	DefaultMinPercent = 5
	DefaultMaxPercent = 90
)

const blobKey = "progress"

// Thresholds tunes the resume policy. Zero values fall back to the defaults.
type Thresholds struct {
	MinSeconds float64
	MinPercent float64
	MaxPercent float64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.MinSeconds <= 0 {
		t.MinSeconds = DefaultMinSeconds
	}
	if t.MinPercent <= 0 {
		t.MinPercent = DefaultMinPercent
	}
	if t.MaxPercent <= 0 {
		t.MaxPercent = DefaultMaxPercent
	}
	return t
}

// Service keeps per-user progress records ordered most recent first. Records
// are never expired automatically; they only leave through explicit removal
// or cap eviction.
type Service struct {
	mu         sync.RWMutex
	store      storage.BlobStore
	records    map[string][]models.ProgressRecord // userID -> recency-ordered records
	maxEntries int
	thresholds Thresholds
	now        func() time.Time
}

// NewService loads existing records from the blob store. Corrupt persisted
// data is treated as an empty ledger rather than an error.
func NewService(store storage.BlobStore, maxEntries int, thresholds Thresholds) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	svc := &Service{
		store:      store,
		records:    make(map[string][]models.ProgressRecord),
		maxEntries: maxEntries,
		thresholds: thresholds.withDefaults(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	svc.load()
	return svc, nil
}

// SetClock overrides the time source, used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// RecordProgress upserts the record for the update's content key, refreshes
// its timestamp and moves it to the front of the recency order. Storage
// failures are logged and swallowed; only validation errors surface.
func (s *Service) RecordProgress(userID string, update models.ProgressUpdate) (models.ProgressRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.ProgressRecord{}, ErrUserIDRequired
	}
	if err := update.Ref.Validate(); err != nil {
		return models.ProgressRecord{}, err
	}
	if strings.TrimSpace(update.Title) == "" {
		return models.ProgressRecord{}, ErrTitleRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := models.ProgressRecord{
		Ref:             update.Ref,
		Title:           strings.TrimSpace(update.Title),
		PosterPath:      strings.TrimSpace(update.PosterPath),
		BackdropPath:    strings.TrimSpace(update.BackdropPath),
		PositionSeconds: update.PositionSeconds,
		DurationSeconds: update.DurationSeconds,
		SourceLabel:     strings.TrimSpace(update.SourceLabel),
		LastWatchedAt:   s.now(),
	}
	if record.PositionSeconds < 0 {
		record.PositionSeconds = 0
	}
	if record.DurationSeconds < 0 {
		record.DurationSeconds = 0
	}

	key := update.Ref.Key()
	existing := s.records[userID]
	next := make([]models.ProgressRecord, 0, len(existing)+1)
	next = append(next, record)
	for _, r := range existing {
		if r.Ref.Key() == key {
			continue
		}
		next = append(next, r)
	}
	if len(next) > s.maxEntries {
		next = next[:s.maxEntries]
	}
	s.records[userID] = next

	s.saveLocked()
	return record, nil
}

// GetResumeInfo computes the resume decision for the content key. Absent
// records and positions outside the resume band yield ShouldResume false;
// neither case is an error.
func (s *Service) GetResumeInfo(userID string, ref models.ContentRef) (models.ResumeDecision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.ResumeDecision{}, ErrUserIDRequired
	}
	if err := ref.Validate(); err != nil {
		return models.ResumeDecision{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := ref.Key()
	for _, r := range s.records[userID] {
		if r.Ref.Key() != key {
			continue
		}

		decision := models.ResumeDecision{PositionSeconds: r.PositionSeconds}
		if r.DurationSeconds > 0 {
			decision.Percentage = r.PositionSeconds / r.DurationSeconds * 100
		}
		if r.PositionSeconds < s.thresholds.MinSeconds {
			return decision, nil
		}
		if decision.Percentage < s.thresholds.MinPercent || decision.Percentage > s.thresholds.MaxPercent {
			return decision, nil
		}
		decision.ShouldResume = true
		return decision, nil
	}

	return models.ResumeDecision{}, nil
}

// ListRecent returns the most recently watched records, newest first.
func (s *Service) ListRecent(userID string, limit int) ([]models.ProgressRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.records[userID]
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}

	out := make([]models.ProgressRecord, limit)
	copy(out, records[:limit])
	return out, nil
}

// RemoveProgress deletes the record for the content key, if present.
func (s *Service) RemoveProgress(userID string, ref models.ContentRef) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	if err := ref.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ref.Key()
	existing := s.records[userID]
	next := existing[:0]
	for _, r := range existing {
		if r.Ref.Key() != key {
			next = append(next, r)
		}
	}
	if len(next) == len(existing) {
		return nil
	}
	s.records[userID] = next

	s.saveLocked()
	return nil
}

// ClearAll wipes the user's whole ledger.
func (s *Service) ClearAll(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, userID)
	s.saveLocked()
	return nil
}

// ListAll returns every user's records, used by the diagnostics surface.
func (s *Service) ListAll() map[string][]models.ProgressRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]models.ProgressRecord, len(s.records))
	for userID, records := range s.records {
		copied := make([]models.ProgressRecord, len(records))
		copy(copied, records)
		out[userID] = copied
	}
	return out
}

func (s *Service) load() {
	blob, ok, err := s.store.Get(blobKey)
	if err != nil {
		log.Printf("[progress] storage unavailable on load, starting empty: %v", err)
		return
	}
	if !ok || blob == "" {
		return
	}

	var decoded map[string][]models.ProgressRecord
	if err := json.Unmarshal([]byte(blob), &decoded); err != nil {
		log.Printf("[progress] discarding corrupt progress data: %v", err)
		return
	}

	for userID, records := range decoded {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		if len(records) > s.maxEntries {
			records = records[:s.maxEntries]
		}
		s.records[userID] = records
	}
}

func (s *Service) saveLocked() {
	data, err := json.Marshal(s.records)
	if err != nil {
		log.Printf("[progress] encode progress: %v", err)
		return
	}
	if err := s.store.Set(blobKey, string(data)); err != nil {
		log.Printf("[progress] save skipped, storage unavailable: %v", err)
	}
}
