package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"couchsync/models"
	"couchsync/services/offline"

	"github.com/gorilla/mux"
)

type offlineService interface {
	CacheContent(userID string, summary models.ContentSummary) (models.CachedContentEntry, error)
	ListEntries(userID string) ([]models.CachedContentEntry, error)
	GetEntry(userID string, ref models.ContentRef) (*models.CachedContentEntry, error)
	RemoveEntry(userID string, ref models.ContentRef) error
	ClearAll(userID string) error
	Stats(userID string) (models.CacheStats, error)
}

var _ offlineService = (*offline.Service)(nil)

type OfflineHandler struct {
	Service offlineService
	Users   userService
}

func NewOfflineHandler(service offlineService, users userService) *OfflineHandler {
	return &OfflineHandler{Service: service, Users: users}
}

// Cache pins a piece of content for offline viewing. Image downloads happen
// in the background; the metadata entry is returned immediately.
func (h *OfflineHandler) Cache(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var summary models.ContentSummary
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&summary); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.Service.CacheContent(userID, summary)
	if err != nil {
		http.Error(w, err.Error(), offlineErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

// List returns the user's offline library, newest first, expired entries
// filtered out.
func (h *OfflineHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	entries, err := h.Service.ListEntries(userID)
	if err != nil {
		http.Error(w, err.Error(), offlineErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *OfflineHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ref, ok := h.requireContentRef(w, r)
	if !ok {
		return
	}

	entry, err := h.Service.GetEntry(userID, ref)
	if err != nil {
		http.Error(w, err.Error(), offlineErrStatus(err))
		return
	}
	if entry == nil {
		http.Error(w, "not cached", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *OfflineHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ref, ok := h.requireContentRef(w, r)
	if !ok {
		return
	}

	if err := h.Service.RemoveEntry(userID, ref); err != nil {
		http.Error(w, err.Error(), offlineErrStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OfflineHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.Service.ClearAll(userID); err != nil {
		http.Error(w, err.Error(), offlineErrStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats summarises the user's offline cache for the storage settings page.
func (h *OfflineHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.Service.Stats(userID)
	if err != nil {
		http.Error(w, err.Error(), offlineErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *OfflineHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *OfflineHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	vars := mux.Vars(r)
	userID := strings.TrimSpace(vars["userID"])
	if userID == "" {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return "", false
	}

	if h.Users != nil && !h.Users.Exists(userID) {
		http.Error(w, "user not found", http.StatusNotFound)
		return "", false
	}

	return userID, true
}

func (h *OfflineHandler) requireContentRef(w http.ResponseWriter, r *http.Request) (models.ContentRef, bool) {
	key := strings.TrimSpace(mux.Vars(r)["contentKey"])
	if key == "" {
		http.Error(w, "content key is required", http.StatusBadRequest)
		return models.ContentRef{}, false
	}

	ref, err := models.ParseContentKey(key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return models.ContentRef{}, false
	}

	return ref, true
}

func offlineErrStatus(err error) int {
	switch {
	case errors.Is(err, offline.ErrUserIDRequired),
		errors.Is(err, offline.ErrTitleRequired),
		errors.Is(err, models.ErrInvalidKind),
		errors.Is(err, models.ErrInvalidContentID),
		errors.Is(err, models.ErrEpisodeOnMovie),
		errors.Is(err, models.ErrInvalidContentKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
