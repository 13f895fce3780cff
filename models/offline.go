package models

import "time"

// ContentSummary carries the metadata the frontend already holds when the
// user presses "download". Fields are stored opaquely; this service never
// refreshes or validates them.
type ContentSummary struct {
	Ref          ContentRef `json:"ref"`
	Title        string     `json:"title"`
	PosterPath   string     `json:"posterPath"`
	BackdropPath string     `json:"backdropPath,omitempty"`
	Overview     string     `json:"overview"`
}

// CachedContentEntry is one item in the offline content cache.
type CachedContentEntry struct {
	Ref          ContentRef `json:"ref"`
	Title        string     `json:"title"`
	PosterPath   string     `json:"posterPath"`
	BackdropPath string     `json:"backdropPath,omitempty"`
	Overview     string     `json:"overview"`
	CachedAt     time.Time  `json:"cachedAt"`
}

// CacheStats summarises the offline cache for a user. TotalSizeBytes counts
// the serialised metadata only, not the image bytes.
type CacheStats struct {
	TotalItems     int       `json:"totalItems"`
	TotalSizeBytes int64     `json:"totalSizeBytes"`
	LastUpdated    time.Time `json:"lastUpdated,omitempty"`
}
