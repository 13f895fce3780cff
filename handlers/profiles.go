package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"couchsync/models"
	"couchsync/services/profiles"

	"github.com/gorilla/mux"
)

// userService is the narrow view the per-user handlers need for ownership
// checks on the {userID} path segment.
type userService interface {
	Exists(id string) bool
}

type profilesService interface {
	List() []models.Profile
	Get(id string) (models.Profile, bool)
	Create(name string) (models.Profile, error)
	Rename(id, name string) (models.Profile, error)
	SetColor(id, color string) (models.Profile, error)
	Delete(id string) error
	Exists(id string) bool
	SetPIN(id, pin string) error
	ClearPIN(id string) error
	VerifyPIN(id, pin string) error
}

var _ profilesService = (*profiles.Service)(nil)
var _ userService = (*profiles.Service)(nil)

type ProfilesHandler struct {
	Service profilesService
}

func NewProfilesHandler(service profilesService) *ProfilesHandler {
	return &ProfilesHandler{Service: service}
}

func (h *ProfilesHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.List())
}

func (h *ProfilesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["userID"])
	if id == "" {
		http.Error(w, "profile id is required", http.StatusBadRequest)
		return
	}

	profile, ok := h.Service.Get(id)
	if !ok {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

func (h *ProfilesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.Service.Create(body.Name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, profiles.ErrNameRequired) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(profile)
}

func (h *ProfilesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["userID"])
	if id == "" {
		http.Error(w, "profile id is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.Service.Rename(id, body.Name)
	if err != nil {
		http.Error(w, err.Error(), profileErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

func (h *ProfilesHandler) SetColor(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["userID"])
	if id == "" {
		http.Error(w, "profile id is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Color string `json:"color"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile, err := h.Service.SetColor(id, body.Color)
	if err != nil {
		http.Error(w, err.Error(), profileErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}

func (h *ProfilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["userID"])
	if id == "" {
		http.Error(w, "profile id is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.Delete(id); err != nil {
		http.Error(w, err.Error(), profileErrStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfilesHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["userID"])
	if id == "" {
		http.Error(w, "profile id is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Pin string `json:"pin"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.SetPIN(id, body.Pin); err != nil {
		http.Error(w, err.Error(), profileErrStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfilesHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["userID"])
	if id == "" {
		http.Error(w, "profile id is required", http.StatusBadRequest)
		return
	}

	if err := h.Service.ClearPIN(id); err != nil {
		http.Error(w, err.Error(), profileErrStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfilesHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["userID"])
	if id == "" {
		http.Error(w, "profile id is required", http.StatusBadRequest)
		return
	}

	var body struct {
		Pin string `json:"pin"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.VerifyPIN(id, body.Pin); err != nil {
		status := profileErrStatus(err)
		if errors.Is(err, profiles.ErrPinInvalid) {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfilesHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func profileErrStatus(err error) int {
	switch {
	case errors.Is(err, profiles.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, profiles.ErrNameRequired),
		errors.Is(err, profiles.ErrPinRequired),
		errors.Is(err, profiles.ErrPinTooShort):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
