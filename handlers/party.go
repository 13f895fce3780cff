package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"couchsync/models"
	"couchsync/services/party"

	"github.com/gorilla/mux"
)

type partyService interface {
	CreateSession(ref models.ContentRef, title, hostID string) (models.PartySession, error)
	JoinSession(code, participantID string) (*models.PartySession, error)
	LeaveSession(code, participantID string) bool
	GetSession(code string) *models.PartySession
	SessionExists(code string) bool
	ListSessions() []models.PartySession
}

var _ partyService = (*party.Service)(nil)

type PartyHandler struct {
	Service partyService
	Users   userService
}

func NewPartyHandler(service partyService, users userService) *PartyHandler {
	return &PartyHandler{Service: service, Users: users}
}

// Create opens a new watch party hosted by the caller.
func (h *PartyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Ref    models.ContentRef `json:"ref"`
		Title  string            `json:"title"`
		HostID string            `json:"hostId"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.Users != nil && !h.Users.Exists(strings.TrimSpace(body.HostID)) {
		http.Error(w, "host not found", http.StatusNotFound)
		return
	}

	session, err := h.Service.CreateSession(body.Ref, body.Title, body.HostID)
	if err != nil {
		http.Error(w, err.Error(), partyErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(session)
}

// Join adds a participant to the session behind a code. Unknown or expired
// codes come back 404.
func (h *PartyHandler) Join(w http.ResponseWriter, r *http.Request) {
	code, ok := h.requireCode(w, r)
	if !ok {
		return
	}

	var body struct {
		ParticipantID string `json:"participantId"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.Service.JoinSession(code, body.ParticipantID)
	if err != nil {
		http.Error(w, err.Error(), partyErrStatus(err))
		return
	}
	if session == nil {
		http.Error(w, "party not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// Leave removes a participant. When the host leaves the whole party ends.
func (h *PartyHandler) Leave(w http.ResponseWriter, r *http.Request) {
	code, ok := h.requireCode(w, r)
	if !ok {
		return
	}

	var body struct {
		ParticipantID string `json:"participantId"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.Service.LeaveSession(code, body.ParticipantID) {
		http.Error(w, "party not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get returns the active session behind a code.
func (h *PartyHandler) Get(w http.ResponseWriter, r *http.Request) {
	code, ok := h.requireCode(w, r)
	if !ok {
		return
	}

	session := h.Service.GetSession(code)
	if session == nil {
		http.Error(w, "party not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// Exists reports whether a live, active session answers to the code. The
// join form uses it to validate a typed code before attempting a join.
func (h *PartyHandler) Exists(w http.ResponseWriter, r *http.Request) {
	code, ok := h.requireCode(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"exists": h.Service.SessionExists(code)})
}

// List returns every known session, active or not. Diagnostic surface.
func (h *PartyHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.ListSessions())
}

func (h *PartyHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *PartyHandler) requireCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	code := strings.TrimSpace(mux.Vars(r)["code"])
	if code == "" {
		http.Error(w, "party code is required", http.StatusBadRequest)
		return "", false
	}
	return code, true
}

func partyErrStatus(err error) int {
	switch {
	case errors.Is(err, party.ErrHostIDRequired),
		errors.Is(err, party.ErrParticipantRequired),
		errors.Is(err, party.ErrTitleRequired),
		errors.Is(err, models.ErrInvalidKind),
		errors.Is(err, models.ErrInvalidContentID),
		errors.Is(err, models.ErrEpisodeOnMovie),
		errors.Is(err, models.ErrInvalidContentKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
