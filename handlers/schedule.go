package handlers

import (
	"errors"
	"net/http"

	schedulesvc "anibridge/services/schedule"
)

type scheduleSource interface {
	Get(year, season string) (schedulesvc.Grid, error)
}

var _ scheduleSource = (*schedulesvc.Service)(nil)

// ScheduleHandler serves the weekly broadcast grid for a season, enriched at
// serve time with live status, favorite and playback state.
type ScheduleHandler struct {
	Schedule   scheduleSource
	Projection recordSource
}

func NewScheduleHandler(schedule scheduleSource, projection recordSource) *ScheduleHandler {
	return &ScheduleHandler{Schedule: schedule, Projection: projection}
}

// Get returns the grid for ?year=&season=. The schedule file stores static
// entries; everything user-specific is joined in here so the grid stays
// fresh between scrapes.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	year := r.URL.Query().Get("year")
	season := r.URL.Query().Get("season")
	if year == "" || season == "" {
		writeJSONError(w, "year and season are required", http.StatusBadRequest)
		return
	}

	grid, err := h.Schedule.Get(year, season)
	if err != nil {
		if errors.Is(err, schedulesvc.ErrSeasonNotFound) {
			writeJSONError(w, "season not available", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	for day := range grid {
		for i := range grid[day] {
			entry := &grid[day][i]
			rec, ok := h.Projection.Get(entry.ID)
			if !ok {
				continue
			}
			entry.Status = rec.Status
			entry.IsFavorite = rec.IsFavorite
			entry.Playback = rec.Playback
			if entry.Poster == "" {
				entry.Poster = rec.Poster
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"schedule": grid})
}
