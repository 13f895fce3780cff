package models

import (
	"encoding/json"
	"time"
)

// DefaultProfileName is used when creating the initial profile on first run.
const DefaultProfileName = "Primary Profile"

// Profile is a viewer identity. The progress, offline and party services
// treat profile IDs as opaque strings.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	PinHash   string    `json:"-"` // bcrypt hash, excluded from JSON
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasPin returns true if the profile is PIN-protected.
func (p Profile) HasPin() bool {
	return p.PinHash != ""
}

// MarshalJSON includes the computed hasPin field without leaking the hash.
func (p Profile) MarshalJSON() ([]byte, error) {
	type ProfileAlias Profile // prevent recursion
	return json.Marshal(&struct {
		ProfileAlias
		HasPin bool `json:"hasPin"`
	}{
		ProfileAlias: ProfileAlias(p),
		HasPin:       p.HasPin(),
	})
}
