// Package offline lets a profile pin content metadata and artwork locally so
// "downloaded" rails render without a live network fetch. The whole layer is
// best effort: a failed cache write must never block playback.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"couchsync/internal/imagecache"
	"couchsync/internal/storage"
	"couchsync/models"
)

var (
	ErrStoreRequired  = errors.New("blob store not provided")
	ErrUserIDRequired = errors.New("user id is required")
	ErrTitleRequired  = errors.New("title is required")
)

const (
	// DefaultMaxItems caps the per-user collection; the tail is truncated
	// after every insert (pure recency, not LRU-on-access).
	DefaultMaxItems = 20

	// DefaultMaxAge expires entries lazily at read time.
	DefaultMaxAge = 7 * 24 * time.Hour

	imageFetchTimeout = 30 * time.Second
)

const blobKey = "offline_content"

// Service keeps per-user cached content entries, newest first.
type Service struct {
	mu       sync.RWMutex
	store    storage.BlobStore
	images   *imagecache.Cache
	entries  map[string][]models.CachedContentEntry
	maxItems int
	maxAge   time.Duration
	now      func() time.Time

	background conc.WaitGroup
}

// NewService loads existing entries from the blob store. The image cache is
// optional; without one only metadata is kept.
func NewService(store storage.BlobStore, images *imagecache.Cache, maxItems int, maxAge time.Duration) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	svc := &Service{
		store:    store,
		images:   images,
		entries:  make(map[string][]models.CachedContentEntry),
		maxItems: maxItems,
		maxAge:   maxAge,
		now:      func() time.Time { return time.Now().UTC() },
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

// Close waits for in-flight background image fetches. Shutdown only; normal
// callers never block on image work.
func (s *Service) Close() {
	s.background.WaitAndRecover()
}

// CacheContent records the summary at the front of the user's collection and
// kicks off a background fetch of its artwork. The metadata insert is
// synchronous; the image bytes arrive best-effort and their failure is only
// logged.
func (s *Service) CacheContent(userID string, summary models.ContentSummary) (models.CachedContentEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return models.CachedContentEntry{}, ErrUserIDRequired
	}
	if err := summary.Ref.Validate(); err != nil {
		return models.CachedContentEntry{}, err
	}
	if strings.TrimSpace(summary.Title) == "" {
		return models.CachedContentEntry{}, ErrTitleRequired
	}

	s.mu.Lock()

	entry := models.CachedContentEntry{
		Ref:          summary.Ref,
		Title:        strings.TrimSpace(summary.Title),
		PosterPath:   strings.TrimSpace(summary.PosterPath),
		BackdropPath: strings.TrimSpace(summary.BackdropPath),
		Overview:     summary.Overview,
		CachedAt:     s.now(),
	}

	key := summary.Ref.Key()
	existing := s.entries[userID]
	next := make([]models.CachedContentEntry, 0, len(existing)+1)
	next = append(next, entry)
	for _, e := range existing {
		if e.Ref.Key() == key {
			continue
		}
		next = append(next, e)
	}
	if len(next) > s.maxItems {
		next = next[:s.maxItems]
	}
	s.entries[userID] = next

	s.saveLocked()
	s.mu.Unlock()

	s.fetchImages(userID, entry)
	return entry, nil
}

// fetchImages stores poster and backdrop bytes without blocking the caller.
func (s *Service) fetchImages(userID string, entry models.CachedContentEntry) {
	if s.images == nil {
		return
	}

	urls := make([]string, 0, 2)
	if entry.PosterPath != "" {
		urls = append(urls, entry.PosterPath)
	}
	if entry.BackdropPath != "" {
		urls = append(urls, entry.BackdropPath)
	}
	if len(urls) == 0 {
		return
	}

	s.background.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), imageFetchTimeout)
		defer cancel()

		for _, url := range urls {
			if err := s.images.Store(ctx, userID, url); err != nil {
				log.Printf("[offline] image cache skipped for %s: %v", entry.Ref.Key(), err)
			}
		}
	})
}

// ListEntries returns the user's cached entries, newest first, silently
// dropping anything past the max age. Expired entries stay in the backing
// store; only reads hide them.
func (s *Service) ListEntries(userID string) ([]models.CachedContentEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.maxAge)
	out := make([]models.CachedContentEntry, 0, len(s.entries[userID]))
	for _, e := range s.entries[userID] {
		if e.CachedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetEntry returns the cached entry for a content key, or nil when absent
// or expired.
func (s *Service) GetEntry(userID string, ref models.ContentRef) (*models.CachedContentEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.maxAge)
	key := ref.Key()
	for _, e := range s.entries[userID] {
		if e.Ref.Key() == key {
			if !e.CachedAt.After(cutoff) {
				return nil, nil
			}
			copied := e
			return &copied, nil
		}
	}
	return nil, nil
}

// RemoveEntry deletes a single entry and its cached artwork bytes.
func (s *Service) RemoveEntry(userID string, ref models.ContentRef) error {
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
	existing := s.entries[userID]
	next := existing[:0]
	for _, e := range existing {
		if e.Ref.Key() != key {
			next = append(next, e)
		}
	}
	if len(next) == len(existing) {
		return nil
	}
	s.entries[userID] = next

	s.saveLocked()
	return nil
}

// ClearAll wipes the user's entries and purges their image namespace.
func (s *Service) ClearAll(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}

	s.mu.Lock()
	delete(s.entries, userID)
	s.saveLocked()
	s.mu.Unlock()

	if s.images != nil {
		if err := s.images.PurgeNamespace(userID); err != nil {
			log.Printf("[offline] image namespace purge failed for %s: %v", userID, err)
		}
	}
	return nil
}

// Stats summarises the user's live entries. The byte count approximates the
// serialised metadata size; image bytes are not included.
func (s *Service) Stats(userID string) (models.CacheStats, error) {
	entries, err := s.ListEntries(userID)
	if err != nil {
		return models.CacheStats{}, err
	}

	stats := models.CacheStats{TotalItems: len(entries)}
	if data, err := json.Marshal(entries); err == nil {
		stats.TotalSizeBytes = int64(len(data))
	}
	for _, e := range entries {
		if e.CachedAt.After(stats.LastUpdated) {
			stats.LastUpdated = e.CachedAt
		}
	}
	return stats, nil
}

func (s *Service) load() {
	blob, ok, err := s.store.Get(blobKey)
	if err != nil {
		log.Printf("[offline] storage unavailable on load, starting empty: %v", err)
		return
	}
	if !ok || blob == "" {
		return
	}

	var decoded map[string][]models.CachedContentEntry
	if err := json.Unmarshal([]byte(blob), &decoded); err != nil {
		log.Printf("[offline] discarding corrupt cache data: %v", err)
		return
	}

	for userID, entries := range decoded {
		userID = strings.TrimSpace(userID)
		if userID == "" {
			continue
		}
		if len(entries) > s.maxItems {
			entries = entries[:s.maxItems]
		}
		s.entries[userID] = entries
	}
}

func (s *Service) saveLocked() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		log.Printf("[offline] encode cache: %v", err)
		return
	}
	if err := s.store.Set(blobKey, string(data)); err != nil {
		log.Printf("[offline] save skipped, storage unavailable: %v", err)
	}
}
