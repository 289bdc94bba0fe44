package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anibridge/internal/proxytoken"
)

func streamRequest(t *testing.T, mediaURL string, cookies map[string]string) *http.Request {
	t.Helper()
	handle, err := proxytoken.Handle("/stream", mediaURL, cookies)
	if err != nil {
		t.Fatalf("failed to build handle: %v", err)
	}
	return httptest.NewRequest(http.MethodGet, handle, nil)
}

func TestStreamRelaysRangeAndCookies(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	var gotRange, gotCookie, gotUA string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		gotCookie = r.Header.Get("Cookie")
		gotUA = r.Header.Get("User-Agent")

		// Serve the requested suffix like a CDN would.
		w.Header().Set("Content-Range", "bytes 100-999/1000")
		w.Header().Set("Content-Encoding", "identity")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(payload[100:])
	}))
	defer origin.Close()

	h := NewStreamHandler("agent-x", "https://anime1.me/", time.Second)
	req := streamRequest(t, origin.URL+"/v.mp4", map[string]string{"e": "expiry", "p": "policy"})
	req.Header.Set("Range", "bytes=100-")
	w := httptest.NewRecorder()

	h.Stream(w, req)

	if w.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", w.Code)
	}
	if gotRange != "bytes=100-" {
		t.Fatalf("range not forwarded verbatim: %q", gotRange)
	}
	if gotCookie != "e=expiry; p=policy" {
		t.Fatalf("unexpected cookie header: %q", gotCookie)
	}
	if gotUA != "agent-x" {
		t.Fatalf("unexpected user agent: %q", gotUA)
	}
	if !bytes.Equal(w.Body.Bytes(), payload[100:]) {
		t.Fatalf("body mismatch: got %d bytes", w.Body.Len())
	}

	// Encoding headers are stripped, the proxy states its own length.
	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Fatalf("content-encoding leaked: %q", enc)
	}
	if got := w.Header().Get("Content-Length"); got != "900" {
		t.Fatalf("unexpected content length: %q", got)
	}
	if got := w.Header().Get("Content-Range"); got != "bytes 100-999/1000" {
		t.Fatalf("content-range not forwarded: %q", got)
	}
}

func TestStreamDefaultsToFullRange(t *testing.T) {
	var gotRange string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Write([]byte("data"))
	}))
	defer origin.Close()

	h := NewStreamHandler("agent", "", time.Second)
	w := httptest.NewRecorder()
	h.Stream(w, streamRequest(t, origin.URL, nil))

	if gotRange != "bytes=0-" {
		t.Fatalf("expected default range, got %q", gotRange)
	}
	if w.Body.String() != "data" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestStreamRejectsBadHandle(t *testing.T) {
	h := NewStreamHandler("agent", "", time.Second)

	for _, query := range []string{"", "u=!!!not-base64", "u="} {
		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		req.URL.RawQuery = query
		w := httptest.NewRecorder()
		h.Stream(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", query, w.Code)
		}
	}
}

func TestStreamUpstreamFailure(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	origin.Close() // connection refused

	h := NewStreamHandler("agent", "", time.Second)
	w := httptest.NewRecorder()
	h.Stream(w, streamRequest(t, origin.URL, nil))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}
