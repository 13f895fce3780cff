package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"couchsync/models"
	"couchsync/services/progress"

	"github.com/gorilla/mux"
)

type progressService interface {
	RecordProgress(userID string, update models.ProgressUpdate) (models.ProgressRecord, error)
	GetResumeInfo(userID string, ref models.ContentRef) (models.ResumeDecision, error)
	ListRecent(userID string, limit int) ([]models.ProgressRecord, error)
	RemoveProgress(userID string, ref models.ContentRef) error
	ClearAll(userID string) error
	ListAll() map[string][]models.ProgressRecord
}

var _ progressService = (*progress.Service)(nil)

type ProgressHandler struct {
	Service progressService
	Users   userService
}

func NewProgressHandler(service progressService, users userService) *ProgressHandler {
	return &ProgressHandler{Service: service, Users: users}
}

// Record stores a playback tick for the user.
func (h *ProgressHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var update models.ProgressUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.Service.RecordProgress(userID, update)
	if err != nil {
		http.Error(w, err.Error(), progressErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// ListRecent returns the user's continue-watching list, most recent first.
// An optional ?limit= query caps the result.
func (h *ProgressHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := h.Service.ListRecent(userID, limit)
	if err != nil {
		http.Error(w, err.Error(), progressErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// GetResume returns the resume decision for one piece of content. Unknown
// content yields shouldResume=false, not a 404.
func (h *ProgressHandler) GetResume(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ref, ok := h.requireContentRef(w, r)
	if !ok {
		return
	}

	decision, err := h.Service.GetResumeInfo(userID, ref)
	if err != nil {
		http.Error(w, err.Error(), progressErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decision)
}

// Remove deletes tracking for one piece of content. Removing content that
// was never tracked still succeeds.
func (h *ProgressHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ref, ok := h.requireContentRef(w, r)
	if !ok {
		return
	}

	if err := h.Service.RemoveProgress(userID, ref); err != nil {
		http.Error(w, err.Error(), progressErrStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearAll wipes the user's entire watch history.
func (h *ProgressHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.Service.ClearAll(userID); err != nil {
		http.Error(w, err.Error(), progressErrStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Dump returns every user's ledger. Mounted on the localhost-only debug
// router, not the public API.
func (h *ProgressHandler) Dump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.ListAll())
}

func (h *ProgressHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *ProgressHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
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

func (h *ProgressHandler) requireContentRef(w http.ResponseWriter, r *http.Request) (models.ContentRef, bool) {
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

func progressErrStatus(err error) int {
	switch {
	case errors.Is(err, progress.ErrUserIDRequired),
		errors.Is(err, progress.ErrTitleRequired),
		errors.Is(err, models.ErrInvalidKind),
		errors.Is(err, models.ErrInvalidContentID),
		errors.Is(err, models.ErrEpisodeOnMovie),
		errors.Is(err, models.ErrInvalidContentKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
