package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MediaKind distinguishes the two content families the coordinator tracks.
type MediaKind string

const (
	KindMovie  MediaKind = "movie"
	KindSeries MediaKind = "series"
)

var (
	ErrInvalidKind       = errors.New("kind must be movie or series")
	ErrInvalidContentID  = errors.New("content id must be positive")
	ErrEpisodeOnMovie    = errors.New("movies cannot carry season or episode numbers")
	ErrInvalidContentKey = errors.New("malformed content key")
)

// ContentRef identifies a piece of content. For series the season/episode
// pair narrows the reference down to a single episode; movies never carry
// either field.
type ContentRef struct {
	Kind    MediaKind `json:"kind"`
	ID      int       `json:"id"`
	Season  int       `json:"season,omitempty"`
	Episode int       `json:"episode,omitempty"`
}

// Validate rejects combinations that do not describe real content, such as
// episode numbers on a movie.
func (r ContentRef) Validate() error {
	switch r.Kind {
	case KindMovie:
		if r.Season != 0 || r.Episode != 0 {
			return ErrEpisodeOnMovie
		}
	case KindSeries:
	default:
		return ErrInvalidKind
	}
	if r.ID <= 0 {
		return ErrInvalidContentID
	}
	if r.Season < 0 || r.Episode < 0 {
		return ErrInvalidContentKey
	}
	return nil
}

// Key serialises the reference into the composite key used by every store:
// "movie-603" or "series-1396-s2e7".
func (r ContentRef) Key() string {
	if r.Kind == KindSeries && (r.Season > 0 || r.Episode > 0) {
		return fmt.Sprintf("%s-%d-s%de%d", r.Kind, r.ID, r.Season, r.Episode)
	}
	return fmt.Sprintf("%s-%d", r.Kind, r.ID)
}

// IsEpisode reports whether the reference points at a single episode rather
// than a whole title.
func (r ContentRef) IsEpisode() bool {
	return r.Kind == KindSeries && (r.Season > 0 || r.Episode > 0)
}

// ParseContentKey inverts ContentRef.Key.
func ParseContentKey(key string) (ContentRef, error) {
	parts := strings.Split(strings.TrimSpace(key), "-")
	if len(parts) < 2 || len(parts) > 3 {
		return ContentRef{}, ErrInvalidContentKey
	}

	ref := ContentRef{Kind: MediaKind(parts[0])}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return ContentRef{}, ErrInvalidContentKey
	}
	ref.ID = id

	if len(parts) == 3 {
		var season, episode int
		if _, err := fmt.Sscanf(parts[2], "s%de%d", &season, &episode); err != nil {
			return ContentRef{}, ErrInvalidContentKey
		}
		ref.Season = season
		ref.Episode = episode
	}

	if err := ref.Validate(); err != nil {
		return ContentRef{}, err
	}
	return ref, nil
}
