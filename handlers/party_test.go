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
	"couchsync/services/party"
)

type fakePartyService struct {
	session models.PartySession
	missing bool
	err     error

	leftCode string
}

func (f *fakePartyService) CreateSession(ref models.ContentRef, title, hostID string) (models.PartySession, error) {
	return f.session, f.err
}

func (f *fakePartyService) JoinSession(code, participantID string) (*models.PartySession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.missing {
		return nil, nil
	}
	return &f.session, nil
}

func (f *fakePartyService) LeaveSession(code, participantID string) bool {
	f.leftCode = code
	return !f.missing
}

func (f *fakePartyService) GetSession(code string) *models.PartySession {
	if f.missing {
		return nil
	}
	return &f.session
}

func (f *fakePartyService) SessionExists(code string) bool { return !f.missing }

func (f *fakePartyService) ListSessions() []models.PartySession {
	return []models.PartySession{f.session}
}

func demoSession() models.PartySession {
	return models.PartySession{
		Code:           "XK4T9P",
		ContentRef:     models.ContentRef{Kind: models.KindMovie, ID: 27205},
		ContentTitle:   "Inception",
		HostID:         "host",
		ParticipantIDs: []string{"host"},
		CreatedAt:      time.Now().UTC(),
		IsActive:       true,
	}
}

func TestPartyHandler_Create(t *testing.T) {
	svc := &fakePartyService{session: demoSession()}
	handler := handlers.NewPartyHandler(svc, fakeUserService{})

	body, _ := json.Marshal(map[string]any{
		"ref":    models.ContentRef{Kind: models.KindMovie, ID: 27205},
		"title":  "Inception",
		"hostId": "host",
	})
	req := httptest.NewRequest(http.MethodPost, "/party", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var session models.PartySession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if session.Code != "XK4T9P" {
		t.Fatalf("unexpected party code %q", session.Code)
	}
}

func TestPartyHandler_CreateRejectsUnknownHost(t *testing.T) {
	handler := handlers.NewPartyHandler(&fakePartyService{}, fakeUserService{missing: true})

	req := httptest.NewRequest(http.MethodPost, "/party",
		bytes.NewReader([]byte(`{"ref":{"kind":"movie","id":1},"title":"x","hostId":"ghost"}`)))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown host, got %d", rec.Code)
	}
}

func TestPartyHandler_CreateValidationError(t *testing.T) {
	handler := handlers.NewPartyHandler(&fakePartyService{err: party.ErrTitleRequired}, fakeUserService{})

	req := httptest.NewRequest(http.MethodPost, "/party",
		bytes.NewReader([]byte(`{"ref":{"kind":"movie","id":1},"hostId":"host"}`)))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", rec.Code)
	}
}

func TestPartyHandler_Join(t *testing.T) {
	svc := &fakePartyService{session: demoSession()}
	handler := handlers.NewPartyHandler(svc, fakeUserService{})

	req := httptest.NewRequest(http.MethodPost, "/party/XK4T9P/join",
		bytes.NewReader([]byte(`{"participantId":"guest"}`)))
	req = mux.SetURLVars(req, map[string]string{"code": "XK4T9P"})
	rec := httptest.NewRecorder()

	handler.Join(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPartyHandler_JoinUnknownCode(t *testing.T) {
	handler := handlers.NewPartyHandler(&fakePartyService{missing: true}, fakeUserService{})

	req := httptest.NewRequest(http.MethodPost, "/party/NOPE99/join",
		bytes.NewReader([]byte(`{"participantId":"guest"}`)))
	req = mux.SetURLVars(req, map[string]string{"code": "NOPE99"})
	rec := httptest.NewRecorder()

	handler.Join(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown code, got %d", rec.Code)
	}
}

func TestPartyHandler_Leave(t *testing.T) {
	svc := &fakePartyService{session: demoSession()}
	handler := handlers.NewPartyHandler(svc, fakeUserService{})

	req := httptest.NewRequest(http.MethodPost, "/party/XK4T9P/leave",
		bytes.NewReader([]byte(`{"participantId":"host"}`)))
	req = mux.SetURLVars(req, map[string]string{"code": "XK4T9P"})
	rec := httptest.NewRecorder()

	handler.Leave(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if svc.leftCode != "XK4T9P" {
		t.Fatalf("expected leave for XK4T9P, got %q", svc.leftCode)
	}
}

func TestPartyHandler_Exists(t *testing.T) {
	for _, tc := range []struct {
		name    string
		missing bool
		want    bool
	}{
		{name: "active session", missing: false, want: true},
		{name: "unknown code", missing: true, want: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakePartyService{session: demoSession(), missing: tc.missing}
			handler := handlers.NewPartyHandler(svc, fakeUserService{})

			req := httptest.NewRequest(http.MethodGet, "/party/XK4T9P/exists", nil)
			req = mux.SetURLVars(req, map[string]string{"code": "XK4T9P"})
			rec := httptest.NewRecorder()

			handler.Exists(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("unexpected status %d", rec.Code)
			}

			var body map[string]bool
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["exists"] != tc.want {
				t.Fatalf("expected exists=%v, got %v", tc.want, body["exists"])
			}
		})
	}
}

func TestPartyHandler_Get(t *testing.T) {
	svc := &fakePartyService{session: demoSession()}
	handler := handlers.NewPartyHandler(svc, fakeUserService{})

	req := httptest.NewRequest(http.MethodGet, "/party/XK4T9P", nil)
	req = mux.SetURLVars(req, map[string]string{"code": "XK4T9P"})
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	var session models.PartySession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if session.ContentTitle != "Inception" {
		t.Fatalf("unexpected title %q", session.ContentTitle)
	}
}
