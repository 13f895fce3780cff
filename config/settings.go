package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Storage  StorageSettings  `json:"storage"`
	Progress ProgressSettings `json:"progress"`
	Party    PartySettings    `json:"party"`
	Offline  OfflineSettings  `json:"offline"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type StorageSettings struct {
	Directory      string `json:"directory"`
	ImageDirectory string `json:"imageDirectory"`
}

// ProgressSettings tunes the continue-watching behaviour. Zero values fall
// back to the built-in defaults on load.
type ProgressSettings struct {
	MaxEntries       int     `json:"maxEntries"`
	ResumeMinSeconds float64 `json:"resumeMinSeconds"`
	ResumeMinPercent float64 `json:"resumeMinPercent"`
	ResumeMaxPercent float64 `json:"resumeMaxPercent"`
}

type PartySettings struct {
	CodeLength int `json:"codeLength"`
	TTLHours   int `json:"ttlHours"`
}

type OfflineSettings struct {
	MaxItems   int `json:"maxItems"`
	MaxAgeDays int `json:"maxAgeDays"`
}

// LogConfig configures file logging and rotation.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

func DefaultSettings() Settings {
	return Settings{
		Server:  ServerSettings{Host: "0.0.0.0", Port: 7410},
		Storage: StorageSettings{Directory: "data", ImageDirectory: "data/images"},
		Progress: ProgressSettings{
			MaxEntries:       50,
			ResumeMinSeconds: 30,
			ResumeMinPercent: 5,
			ResumeMaxPercent: 90,
		},
		Party:   PartySettings{CodeLength: 6, TTLHours: 24},
		Offline: OfflineSettings{MaxItems: 20, MaxAgeDays: 7},
		Log: LogConfig{
			File:       "data/logs/backend.log",
			MaxSize:    50, // MB per file
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings from disk or creates the file with defaults if
// missing. Fields left zero in an existing file fall back to defaults so
// old config files keep working after new knobs are added.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	return normalize(s), nil
}

func normalize(s Settings) Settings {
	defaults := DefaultSettings()

	if s.Server.Port == 0 {
		s.Server.Port = defaults.Server.Port
	}
	if s.Server.Host == "" {
		s.Server.Host = defaults.Server.Host
	}
	if s.Storage.Directory == "" {
		s.Storage.Directory = defaults.Storage.Directory
	}
	if s.Storage.ImageDirectory == "" {
		s.Storage.ImageDirectory = filepath.Join(s.Storage.Directory, "images")
	}
	if s.Progress.MaxEntries <= 0 {
		s.Progress.MaxEntries = defaults.Progress.MaxEntries
	}
	if s.Progress.ResumeMinSeconds <= 0 {
		s.Progress.ResumeMinSeconds = defaults.Progress.ResumeMinSeconds
	}
	if s.Progress.ResumeMinPercent <= 0 {
		s.Progress.ResumeMinPercent = defaults.Progress.ResumeMinPercent
	}
	if s.Progress.ResumeMaxPercent <= 0 {
		s.Progress.ResumeMaxPercent = defaults.Progress.ResumeMaxPercent
	}
	if s.Party.CodeLength <= 0 {
		s.Party.CodeLength = defaults.Party.CodeLength
	}
	if s.Party.TTLHours <= 0 {
		s.Party.TTLHours = defaults.Party.TTLHours
	}
	if s.Offline.MaxItems <= 0 {
		s.Offline.MaxItems = defaults.Offline.MaxItems
	}
	if s.Offline.MaxAgeDays <= 0 {
		s.Offline.MaxAgeDays = defaults.Offline.MaxAgeDays
	}
	if s.Log.File == "" {
		s.Log.File = defaults.Log.File
	}
	if s.Log.MaxSize <= 0 {
		s.Log.MaxSize = defaults.Log.MaxSize
	}

	return s
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
