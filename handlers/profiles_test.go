package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"couchsync/handlers"
	"couchsync/internal/storage"
	"couchsync/services/profiles"
)

func newProfilesHandler(t *testing.T) (*handlers.ProfilesHandler, *profiles.Service) {
	t.Helper()
	svc, err := profiles.NewService(storage.NewMemStore())
	if err != nil {
		t.Fatalf("profiles.NewService: %v", err)
	}
	return handlers.NewProfilesHandler(svc), svc
}

func TestProfilesHandler_CreateAndList(t *testing.T) {
	handler, _ := newProfilesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(`{"name":"Kids"}`)))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	rec = httptest.NewRecorder()
	handler.List(rec, req)

	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// Default profile plus the one just created.
	if len(list) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(list))
	}
}

func TestProfilesHandler_CreateRequiresName(t *testing.T) {
	handler, _ := newProfilesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader([]byte(`{"name":"  "}`)))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank name, got %d", rec.Code)
	}
}

func TestProfilesHandler_RenameUnknownProfile(t *testing.T) {
	handler, _ := newProfilesHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/users/nope", bytes.NewReader([]byte(`{"name":"New"}`)))
	req = mux.SetURLVars(req, map[string]string{"userID": "nope"})
	rec := httptest.NewRecorder()
	handler.Rename(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown profile, got %d", rec.Code)
	}
}

func TestProfilesHandler_PinVerify(t *testing.T) {
	handler, svc := newProfilesHandler(t)

	created, err := svc.Create("Locked")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/users/"+created.ID+"/pin", bytes.NewReader([]byte(`{"pin":"2468"}`)))
	req = mux.SetURLVars(req, map[string]string{"userID": created.ID})
	rec := httptest.NewRecorder()
	handler.SetPIN(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("SetPIN status %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/users/"+created.ID+"/pin/verify", bytes.NewReader([]byte(`{"pin":"2468"}`)))
	req = mux.SetURLVars(req, map[string]string{"userID": created.ID})
	rec = httptest.NewRecorder()
	handler.VerifyPIN(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected verify success, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/users/"+created.ID+"/pin/verify", bytes.NewReader([]byte(`{"pin":"0000"}`)))
	req = mux.SetURLVars(req, map[string]string{"userID": created.ID})
	rec = httptest.NewRecorder()
	handler.VerifyPIN(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong PIN, got %d", rec.Code)
	}
}

func TestProfilesHandler_Delete(t *testing.T) {
	handler, svc := newProfilesHandler(t)

	created, err := svc.Create("Short Lived")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/users/"+created.ID, nil)
	req = mux.SetURLVars(req, map[string]string{"userID": created.ID})
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if svc.Exists(created.ID) {
		t.Fatal("profile should be gone")
	}
}
