package models

import "time"

// PartySession binds a set of participants to a single piece of content via
// a short shareable code. Sessions live in memory only and expire 24 hours
// after creation regardless of activity.
type PartySession struct {
	Code           string     `json:"code"`
	ContentRef     ContentRef `json:"contentRef"`
	ContentTitle   string     `json:"contentTitle"`
	HostID         string     `json:"hostId"`
	ParticipantIDs []string   `json:"participantIds"`
	CreatedAt      time.Time  `json:"createdAt"`
	IsActive       bool       `json:"isActive"`
}

// HasParticipant reports whether the given participant already joined.
func (s PartySession) HasParticipant(id string) bool {
	for _, p := range s.ParticipantIDs {
		if p == id {
			return true
		}
	}
	return false
}
