package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"couchsync/config"
)

func TestLoadCreatesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	mgr := config.NewManager(path)

	settings, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if settings.Server.Port != 7410 {
		t.Fatalf("expected default port 7410, got %d", settings.Server.Port)
	}
	if settings.Progress.MaxEntries != 50 {
		t.Fatalf("expected default history cap 50, got %d", settings.Progress.MaxEntries)
	}
	if settings.Offline.MaxItems != 20 || settings.Offline.MaxAgeDays != 7 {
		t.Fatalf("unexpected offline defaults: %+v", settings.Offline)
	}
	if settings.Party.CodeLength != 6 || settings.Party.TTLHours != 24 {
		t.Fatalf("unexpected party defaults: %+v", settings.Party)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected settings file created on first load: %v", err)
	}
}

func TestLoadFillsZeroFieldsFromDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"server":{"host":"127.0.0.1"},"storage":{"directory":"/var/lib/couchsync"}}`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	settings, err := config.NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if settings.Server.Host != "127.0.0.1" {
		t.Fatalf("explicit host clobbered, got %q", settings.Server.Host)
	}
	if settings.Server.Port != 7410 {
		t.Fatalf("expected default port fill-in, got %d", settings.Server.Port)
	}
	if settings.Storage.ImageDirectory != filepath.Join("/var/lib/couchsync", "images") {
		t.Fatalf("expected image dir derived from storage dir, got %q", settings.Storage.ImageDirectory)
	}
	if settings.Progress.ResumeMinPercent != 5 || settings.Progress.ResumeMaxPercent != 90 {
		t.Fatalf("unexpected resume band defaults: %+v", settings.Progress)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	mgr := config.NewManager(path)

	settings := config.DefaultSettings()
	settings.Server.Port = 9000
	settings.Party.TTLHours = 48

	if err := mgr.Save(settings); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Server.Port != 9000 {
		t.Fatalf("expected saved port 9000, got %d", loaded.Server.Port)
	}
	if loaded.Party.TTLHours != 48 {
		t.Fatalf("expected saved party TTL 48h, got %d", loaded.Party.TTLHours)
	}
}
