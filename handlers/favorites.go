package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"anibridge/models"
	favoritessvc "anibridge/services/favorites"
)

type favoritesStore interface {
	Add(id string) error
	Remove(id string) error
	IDs() []string
}

var _ favoritesStore = (*favoritessvc.Service)(nil)

// FavoritesHandler manages the favorites list.
type FavoritesHandler struct {
	Favorites  favoritesStore
	Projection recordSource
}

func NewFavoritesHandler(favorites favoritesStore, projection recordSource) *FavoritesHandler {
	return &FavoritesHandler{Favorites: favorites, Projection: projection}
}

type favoriteRequest struct {
	ID string `json:"id"`
}

// Add marks a series as favorited. Adding twice is a no-op.
func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Favorites.Add)
}

// Remove unmarks a favorited series. Removing an absent id is a no-op.
func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Favorites.Remove)
}

func (h *FavoritesHandler) mutate(w http.ResponseWriter, r *http.Request, op func(string) error) {
	var request favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := op(request.ID); err != nil {
		if errors.Is(err, favoritessvc.ErrIDRequired) {
			writeJSONError(w, "id is required", http.StatusBadRequest)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// List returns the favorited ids in insertion order.
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ids": h.Favorites.IDs()})
}

// Details returns full records for every favorite, most recently added
// first. Favorites pointing at ids that left the catalog are skipped.
func (h *FavoritesHandler) Details(w http.ResponseWriter, r *http.Request) {
	ids := h.Favorites.IDs()

	items := make([]*models.MetadataRecord, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if rec, ok := h.Projection.Get(ids[i]); ok {
			items = append(items, rec)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
