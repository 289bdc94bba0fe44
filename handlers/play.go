package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"anibridge/internal/proxytoken"
	"anibridge/models"
	resolversvc "anibridge/services/resolver"
)

type tokenResolver interface {
	Resolve(ctx context.Context, token string) (*models.ResolvedMedia, error)
}

var _ tokenResolver = (*resolversvc.Service)(nil)

// PlayHandler exchanges an episode token for a proxy handle. The real media
// URL and session cookies never leave the server; clients only ever see the
// opaque handle.
type PlayHandler struct {
	Resolver   tokenResolver
	StreamPath string
}

func NewPlayHandler(resolver tokenResolver, streamPath string) *PlayHandler {
	return &PlayHandler{Resolver: resolver, StreamPath: streamPath}
}

// Resolve performs the token exchange and responds with the streaming handle.
func (h *PlayHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	media, err := h.Resolver.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, resolversvc.ErrMissingToken) {
			writeJSONError(w, "token is required", http.StatusBadRequest)
			return
		}
		log.Printf("[play-handler] token exchange failed: %v", err)
		writeJSONError(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	handle, err := proxytoken.Handle(h.StreamPath, media.URL, media.Cookies)
	if err != nil {
		log.Printf("[play-handler] building handle failed: %v", err)
		writeJSONError(w, "token exchange failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": handle})
}
