package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"anibridge/models"
	episodessvc "anibridge/services/episodes"
)

type episodeLister interface {
	List(ctx context.Context, id string) ([]models.EpisodeRef, error)
}

var _ episodeLister = (*episodessvc.Service)(nil)

// EpisodesHandler serves the on-demand episode listing for one series.
type EpisodesHandler struct {
	Service episodeLister
}

func NewEpisodesHandler(s episodeLister) *EpisodesHandler {
	return &EpisodesHandler{Service: s}
}

// List scrapes the series page and returns its playable episodes in page
// order. Nothing is cached; tokens expire too quickly to be worth keeping.
func (h *EpisodesHandler) List(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeJSONError(w, "series id is required", http.StatusBadRequest)
		return
	}

	episodes, err := h.Service.List(r.Context(), id)
	if err != nil {
		if errors.Is(err, episodessvc.ErrPageNotFound) {
			writeJSONError(w, "series not found", http.StatusNotFound)
			return
		}
		log.Printf("[episodes-handler] listing %s failed: %v", id, err)
		writeJSONError(w, "upstream listing failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"episodes": episodes})
}
