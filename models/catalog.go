package models

import "time"

// CatalogItem is one entry of the upstream catalog feed after normalization.
// Items are immutable; the whole catalog is replaced on every sync.
type CatalogItem struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	OriginalTitle string `json:"originalTitle"`
	Status        string `json:"status"`
	Year          string `json:"year"`
	Season        string `json:"season"`
	SearchKey     string `json:"-"`
}

// PlaybackState is the playback position mirrored into metadata records and
// list responses.
type PlaybackState struct {
	EpisodeTitle string    `json:"episodeTitle"`
	Position     float64   `json:"position"`
	LastPlayed   time.Time `json:"lastPlayed"`
}

// PlaybackRecord is the persisted form of a playback position, keyed by
// catalog id in the playback store. Last write wins.
type PlaybackRecord struct {
	EpisodeTitle string    `json:"episodeTitle"`
	Position     float64   `json:"position"`
	Timestamp    time.Time `json:"timestamp"`
}

// State returns the record as a mirror-ready playback state.
func (r PlaybackRecord) State() *PlaybackState {
	return &PlaybackState{
		EpisodeTitle: r.EpisodeTitle,
		Position:     r.Position,
		LastPlayed:   r.Timestamp,
	}
}

// MetadataRecord is the denormalized, display-ready join of a catalog item
// with asset tables and user state. The projection holds one per catalog id.
type MetadataRecord struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Status      string         `json:"status"`
	Year        string         `json:"year"`
	Season      string         `json:"season"`
	Poster      string         `json:"poster"`
	Description string         `json:"description,omitempty"`
	IsFavorite  bool           `json:"isFavorite"`
	Playback    *PlaybackState `json:"playback"`
}

// ScheduleEntry is a lightweight anime reference inside a weekly schedule
// grid. Status, favorite and playback fields are filled in at serve time from
// the live projection.
type ScheduleEntry struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Poster     string         `json:"poster"`
	Year       string         `json:"year"`
	Season     string         `json:"season"`
	Status     string         `json:"status,omitempty"`
	IsFavorite bool           `json:"isFavorite"`
	Playback   *PlaybackState `json:"playback"`
}
