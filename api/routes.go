package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"anibridge/handlers"
)

// StreamPath is the mount point of the media relay endpoint. Play responses
// embed it in the handles they return.
const StreamPath = "/stream"

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// immutableCacheMiddleware marks cover files as permanently cacheable; names
// are content-addressed so a file never changes under its name.
func immutableCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		next.ServeHTTP(w, r)
	})
}

// Register mounts every endpoint onto the provided router.
func Register(
	r *mux.Router,
	catalogHandler *handlers.CatalogHandler,
	episodesHandler *handlers.EpisodesHandler,
	playHandler *handlers.PlayHandler,
	streamHandler *handlers.StreamHandler,
	favoritesHandler *handlers.FavoritesHandler,
	playbackHandler *handlers.PlaybackHandler,
	scheduleHandler *handlers.ScheduleHandler,
	coverDir string,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	api.HandleFunc("/catalog", catalogHandler.List).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/catalog/{id}/episodes", episodesHandler.List).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/covers/lookup", catalogHandler.CoverLookup).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/play", playHandler.Resolve).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/favorites", favoritesHandler.List).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/favorites/details", favoritesHandler.Details).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/favorites/add", favoritesHandler.Add).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/favorites/remove", favoritesHandler.Remove).Methods(http.MethodPost, http.MethodOptions)

	api.HandleFunc("/playback", playbackHandler.List).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/playback/save", playbackHandler.Save).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/playback/clear", playbackHandler.Clear).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/playback/{id}", playbackHandler.Get).Methods(http.MethodGet, http.MethodOptions)

	api.HandleFunc("/schedule", scheduleHandler.Get).Methods(http.MethodGet, http.MethodOptions)

	// The relay sits outside /api so handles stay short.
	r.HandleFunc(StreamPath, streamHandler.Stream).Methods(http.MethodGet)

	covers := http.StripPrefix("/covers/", http.FileServer(http.Dir(coverDir)))
	r.PathPrefix("/covers/").Handler(immutableCacheMiddleware(covers)).Methods(http.MethodGet)
}
