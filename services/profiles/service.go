// Package profiles manages the viewer identities consumed as opaque IDs by
// the progress, offline and party services.
package profiles

import (
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"couchsync/internal/storage"
	"couchsync/models"
)

var (
	ErrStoreRequired   = errors.New("blob store not provided")
	ErrNameRequired    = errors.New("name is required")
	ErrProfileNotFound = errors.New("profile not found")
	ErrPinRequired     = errors.New("PIN is required")
	ErrPinInvalid      = errors.New("invalid PIN")
	ErrPinTooShort     = errors.New("PIN must be at least 4 characters")
)

const blobKey = "profiles"

// storedProfile is the persisted shape; unlike models.Profile it keeps the
// PIN hash, which the public JSON marshalling deliberately hides.
type storedProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	PinHash   string    `json:"pinHash,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p storedProfile) toModel() models.Profile {
	return models.Profile(p)
}

// Service persists profiles through the shared blob store. A default
// profile is created on first run so the frontend always has someone to
// attribute progress to.
type Service struct {
	mu       sync.RWMutex
	store    storage.BlobStore
	profiles map[string]storedProfile
}

func NewService(store storage.BlobStore) (*Service, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	svc := &Service{
		store:    store,
		profiles: make(map[string]storedProfile),
	}
	svc.load()

	if len(svc.profiles) == 0 {
		if _, err := svc.Create(models.DefaultProfileName); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// List returns all profiles sorted by creation time, then name.
func (s *Service) List() []models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p.toModel())
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].Name < profiles[j].Name
		}
		return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
	})

	return profiles
}

// Exists reports whether a profile with the provided ID is registered.
func (s *Service) Exists(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.profiles[id]
	return ok
}

// Get returns the profile with the given ID if present.
func (s *Service) Get(id string) (models.Profile, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.Profile{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	return p.toModel(), ok
}

// Create registers a new profile with the given display name.
func (s *Service) Create(name string) (models.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Profile{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	profile := storedProfile{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.profiles[profile.ID] = profile

	s.saveLocked()
	return profile.toModel(), nil
}

// Rename updates the display name.
func (s *Service) Rename(id, name string) (models.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Profile{}, ErrNameRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[strings.TrimSpace(id)]
	if !ok {
		return models.Profile{}, ErrProfileNotFound
	}

	profile.Name = name
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[profile.ID] = profile

	s.saveLocked()
	return profile.toModel(), nil
}

// SetColor sets the avatar accent colour shown in the profile picker.
func (s *Service) SetColor(id, color string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[strings.TrimSpace(id)]
	if !ok {
		return models.Profile{}, ErrProfileNotFound
	}

	profile.Color = strings.TrimSpace(color)
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[profile.ID] = profile

	s.saveLocked()
	return profile.toModel(), nil
}

// Delete removes a profile.
func (s *Service) Delete(id string) error {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return ErrProfileNotFound
	}
	delete(s.profiles, id)

	s.saveLocked()
	return nil
}

// SetPIN protects the profile with a bcrypt-hashed PIN.
func (s *Service) SetPIN(id, pin string) error {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return ErrPinRequired
	}
	if len(pin) < 4 {
		return ErrPinTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[strings.TrimSpace(id)]
	if !ok {
		return ErrProfileNotFound
	}

	profile.PinHash = string(hash)
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[profile.ID] = profile

	s.saveLocked()
	return nil
}

// ClearPIN removes PIN protection.
func (s *Service) ClearPIN(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[strings.TrimSpace(id)]
	if !ok {
		return ErrProfileNotFound
	}

	profile.PinHash = ""
	profile.UpdatedAt = time.Now().UTC()
	s.profiles[profile.ID] = profile

	s.saveLocked()
	return nil
}

// VerifyPIN checks a PIN attempt. Profiles without a PIN accept anything.
func (s *Service) VerifyPIN(id, pin string) error {
	s.mu.RLock()
	profile, ok := s.profiles[strings.TrimSpace(id)]
	s.mu.RUnlock()

	if !ok {
		return ErrProfileNotFound
	}
	if profile.PinHash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PinHash), []byte(pin)); err != nil {
		return ErrPinInvalid
	}
	return nil
}

func (s *Service) load() {
	blob, ok, err := s.store.Get(blobKey)
	if err != nil {
		log.Printf("[profiles] storage unavailable on load, starting empty: %v", err)
		return
	}
	if !ok || blob == "" {
		return
	}

	var stored []storedProfile
	if err := json.Unmarshal([]byte(blob), &stored); err != nil {
		log.Printf("[profiles] discarding corrupt profile data: %v", err)
		return
	}

	for _, p := range stored {
		if strings.TrimSpace(p.ID) == "" {
			continue
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = p.CreatedAt
		}
		s.profiles[p.ID] = p
	}
}

func (s *Service) saveLocked() {
	stored := make([]storedProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		stored = append(stored, p)
	}
	sort.Slice(stored, func(i, j int) bool {
		if stored[i].CreatedAt.Equal(stored[j].CreatedAt) {
			return stored[i].Name < stored[j].Name
		}
		return stored[i].CreatedAt.Before(stored[j].CreatedAt)
	})

	data, err := json.Marshal(stored)
	if err != nil {
		log.Printf("[profiles] encode profiles: %v", err)
		return
	}
	if err := s.store.Set(blobKey, string(data)); err != nil {
		log.Printf("[profiles] save skipped, storage unavailable: %v", err)
	}
}
