package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"couchsync/handlers"
	"couchsync/models"
)

type fakeOfflineService struct {
	entry   models.CachedContentEntry
	entries []models.CachedContentEntry
	stats   models.CacheStats
	missing bool
	err     error
}

func (f *fakeOfflineService) CacheContent(userID string, summary models.ContentSummary) (models.CachedContentEntry, error) {
	return f.entry, f.err
}

func (f *fakeOfflineService) ListEntries(userID string) ([]models.CachedContentEntry, error) {
	return f.entries, f.err
}

func (f *fakeOfflineService) GetEntry(userID string, ref models.ContentRef) (*models.CachedContentEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.missing {
		return nil, nil
	}
	return &f.entry, nil
}

func (f *fakeOfflineService) RemoveEntry(userID string, ref models.ContentRef) error {
	return f.err
}

func (f *fakeOfflineService) ClearAll(userID string) error { return f.err }

func (f *fakeOfflineService) Stats(userID string) (models.CacheStats, error) {
	return f.stats, f.err
}

func TestOfflineHandler_Cache(t *testing.T) {
	svc := &fakeOfflineService{
		entry: models.CachedContentEntry{
			Ref:      models.ContentRef{Kind: models.KindSeries, ID: 1396, Season: 2, Episode: 7},
			Title:    "Breaking Bad",
			CachedAt: time.Now().UTC(),
		},
	}
	handler := handlers.NewOfflineHandler(svc, fakeUserService{})

	summary := models.ContentSummary{
		Ref:        models.ContentRef{Kind: models.KindSeries, ID: 1396, Season: 2, Episode: 7},
		Title:      "Breaking Bad",
		PosterPath: "https://images.example/poster.jpg",
		Overview:   "A chemistry teacher turns to crime.",
	}
	body, _ := json.Marshal(summary)
	req := httptest.NewRequest(http.MethodPost, "/users/user/offline", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"userID": "user"})
	rec := httptest.NewRecorder()

	handler.Cache(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var entry models.CachedContentEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if entry.Ref.Key() != "series-1396-s2e7" {
		t.Fatalf("unexpected content key %q", entry.Ref.Key())
	}
}

func TestOfflineHandler_CacheRejectsUnknownUser(t *testing.T) {
	handler := handlers.NewOfflineHandler(&fakeOfflineService{}, fakeUserService{missing: true})

	req := httptest.NewRequest(http.MethodPost, "/users/ghost/offline", bytes.NewReader([]byte(`{}`)))
	req = mux.SetURLVars(req, map[string]string{"userID": "ghost"})
	rec := httptest.NewRecorder()

	handler.Cache(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestOfflineHandler_GetMissingEntry(t *testing.T) {
	handler := handlers.NewOfflineHandler(&fakeOfflineService{missing: true}, fakeUserService{})

	req := httptest.NewRequest(http.MethodGet, "/users/user/offline/movie-603", nil)
	req = mux.SetURLVars(req, map[string]string{"userID": "user", "contentKey": "movie-603"})
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for uncached content, got %d", rec.Code)
	}
}

func TestOfflineHandler_List(t *testing.T) {
	svc := &fakeOfflineService{
		entries: []models.CachedContentEntry{
			{Ref: models.ContentRef{Kind: models.KindMovie, ID: 603}, Title: "The Matrix"},
		},
	}
	handler := handlers.NewOfflineHandler(svc, fakeUserService{})

	req := httptest.NewRequest(http.MethodGet, "/users/user/offline", nil)
	req = mux.SetURLVars(req, map[string]string{"userID": "user"})
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var entries []models.CachedContentEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(entries) != 1 || entries[0].Title != "The Matrix" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestOfflineHandler_Stats(t *testing.T) {
	svc := &fakeOfflineService{
		stats: models.CacheStats{TotalItems: 3, TotalSizeBytes: 2048, LastUpdated: time.Now().UTC()},
	}
	handler := handlers.NewOfflineHandler(svc, fakeUserService{})

	req := httptest.NewRequest(http.MethodGet, "/users/user/offline/stats", nil)
	req = mux.SetURLVars(req, map[string]string{"userID": "user"})
	rec := httptest.NewRecorder()

	handler.Stats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var stats models.CacheStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stats.TotalItems != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestOfflineHandler_RemoveMalformedKey(t *testing.T) {
	handler := handlers.NewOfflineHandler(&fakeOfflineService{}, fakeUserService{})

	req := httptest.NewRequest(http.MethodDelete, "/users/user/offline/not-a-key", nil)
	req = mux.SetURLVars(req, map[string]string{"userID": "user", "contentKey": "not-a-key"})
	rec := httptest.NewRecorder()

	handler.Remove(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed key, got %d", rec.Code)
	}
}
