package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"anibridge/models"
	playbacksvc "anibridge/services/playback"
)

type playbackStore interface {
	Save(id, episodeTitle string, position float64) (models.PlaybackRecord, error)
	Get(id string) (models.PlaybackRecord, bool)
	Clear(id string) error
	All() map[string]models.PlaybackRecord
}

var _ playbackStore = (*playbacksvc.Service)(nil)

// PlaybackHandler manages per-series playback positions.
type PlaybackHandler struct {
	Playback   playbackStore
	Projection recordSource
}

func NewPlaybackHandler(playback playbackStore, projection recordSource) *PlaybackHandler {
	return &PlaybackHandler{Playback: playback, Projection: projection}
}

// Save records the current playback position for a series.
func (h *PlaybackHandler) Save(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ID           string  `json:"id"`
		EpisodeTitle string  `json:"episodeTitle"`
		Position     float64 `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.Playback.Save(request.ID, request.EpisodeTitle, request.Position)
	if err != nil {
		switch {
		case errors.Is(err, playbacksvc.ErrIDRequired):
			writeJSONError(w, "id is required", http.StatusBadRequest)
		case errors.Is(err, playbacksvc.ErrEpisodeRequired):
			writeJSONError(w, "episode title is required", http.StatusBadRequest)
		default:
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Get returns the stored position for one series, or 404 if none.
func (h *PlaybackHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, ok := h.Playback.Get(id)
	if !ok {
		writeJSONError(w, "no playback record", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Clear removes the stored position for a series.
func (h *PlaybackHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Playback.Clear(request.ID); err != nil {
		if errors.Is(err, playbacksvc.ErrIDRequired) {
			writeJSONError(w, "id is required", http.StatusBadRequest)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type historyEntry struct {
	*models.MetadataRecord
	Record models.PlaybackRecord `json:"record"`
}

// List returns every series with a playback record, newest first, joined
// with its display record. Records for ids that left the catalog are
// skipped.
func (h *PlaybackHandler) List(w http.ResponseWriter, r *http.Request) {
	all := h.Playback.All()

	items := make([]historyEntry, 0, len(all))
	for id, record := range all {
		rec, ok := h.Projection.Get(id)
		if !ok {
			continue
		}
		items = append(items, historyEntry{MetadataRecord: rec, Record: record})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Record.Timestamp.After(items[j].Record.Timestamp)
	})

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
