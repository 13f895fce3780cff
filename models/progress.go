package models

import "time"

// ProgressRecord stores where a user left off in a piece of content. One
// record exists per distinct ContentRef key; records stay ordered by
// LastWatchedAt, most recent first.
type ProgressRecord struct {
	Ref             ContentRef `json:"ref"`
	Title           string     `json:"title"`
	PosterPath      string     `json:"posterPath,omitempty"`
	BackdropPath    string     `json:"backdropPath,omitempty"`
	PositionSeconds float64    `json:"positionSeconds"`
	DurationSeconds float64    `json:"durationSeconds,omitempty"`
	LastWatchedAt   time.Time  `json:"lastWatchedAt"`
	SourceLabel     string     `json:"sourceLabel,omitempty"`
}

// ProgressUpdate is a playback tick reported by the player.
type ProgressUpdate struct {
	Ref             ContentRef `json:"ref"`
	Title           string     `json:"title"`
	PosterPath      string     `json:"posterPath,omitempty"`
	BackdropPath    string     `json:"backdropPath,omitempty"`
	PositionSeconds float64    `json:"positionSeconds"`
	DurationSeconds float64    `json:"durationSeconds,omitempty"`
	SourceLabel     string     `json:"sourceLabel,omitempty"`
}

// ResumeDecision is derived from a ProgressRecord on demand and never
// persisted. Percentage is zero when the duration is unknown.
type ResumeDecision struct {
	ShouldResume    bool    `json:"shouldResume"`
	PositionSeconds float64 `json:"positionSeconds"`
	Percentage      float64 `json:"percentage"`
}
