package handlers

import (
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"anibridge/internal/proxytoken"
)

const streamChunkSize = 64 * 1024

// hop-by-hop and encoding headers that must not be forwarded: the proxy
// serves an identity-encoded body whose length it states itself.
var strippedHeaders = map[string]struct{}{
	"Content-Encoding":  {},
	"Content-Length":    {},
	"Transfer-Encoding": {},
	"Connection":        {},
}

// StreamHandler relays media bytes from the origin CDN to the client. It
// reattaches the session cookies hidden inside the proxy handle and forwards
// the client's Range header, so seeking works end to end while the cookies
// never reach the client.
type StreamHandler struct {
	UserAgent string
	Referer   string
	client    *http.Client
}

// NewStreamHandler creates the relay. timeout bounds one whole media request
// and must be generous enough for a full episode download.
func NewStreamHandler(userAgent, referer string, timeout time.Duration) *StreamHandler {
	return &StreamHandler{
		UserAgent: userAgent,
		Referer:   referer,
		client:    &http.Client{Timeout: timeout},
	}
}

// Stream decodes the proxy handle and relays the upstream response verbatim,
// status code included.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	mediaURL, cookies, err := proxytoken.Decode(r.URL.Query())
	if err != nil {
		writeJSONError(w, "invalid stream handle", http.StatusBadRequest)
		return
	}

	streamID := uuid.New().String()[:8]

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, mediaURL, nil)
	if err != nil {
		writeJSONError(w, "invalid stream handle", http.StatusBadRequest)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		rangeHeader = "bytes=0-"
	}
	req.Header.Set("Range", rangeHeader)
	req.Header.Set("User-Agent", h.UserAgent)
	if h.Referer != "" {
		req.Header.Set("Referer", h.Referer)
	}
	if len(cookies) > 0 {
		req.Header.Set("Cookie", cookieHeader(cookies))
	}

	log.Printf("[stream %s] relaying range %q", streamID, rangeHeader)

	resp, err := h.client.Do(req)
	if err != nil {
		log.Printf("[stream %s] upstream request failed: %v", streamID, err)
		writeJSONError(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if _, skip := strippedHeaders[http.CanonicalHeaderKey(name)]; skip {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if resp.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	w.WriteHeader(resp.StatusCode)

	written, err := h.copyBody(w, resp.Body, r)
	if err != nil {
		// Client disconnects mid-stream are routine during seeking.
		log.Printf("[stream %s] relay ended after %d bytes: %v", streamID, written, err)
		return
	}
	log.Printf("[stream %s] relay complete, %d bytes", streamID, written)
}

// copyBody moves bytes in fixed chunks, flushing as it goes and honoring
// client cancellation between chunks.
func (h *StreamHandler) copyBody(w http.ResponseWriter, body io.Reader, r *http.Request) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, streamChunkSize)
	var written int64

	for {
		select {
		case <-r.Context().Done():
			return written, r.Context().Err()
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// cookieHeader renders the cookie map in deterministic order.
func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}
