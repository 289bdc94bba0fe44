package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"anibridge/models"
	playbacksvc "anibridge/services/playback"
)

func newPlaybackFixture(t *testing.T, records stubRecords) (*PlaybackHandler, *playbacksvc.Service) {
	t.Helper()
	svc, err := playbacksvc.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create playback service: %v", err)
	}
	return NewPlaybackHandler(svc, records), svc
}

func TestPlaybackSaveAndGet(t *testing.T) {
	h, _ := newPlaybackFixture(t, stubRecords{})

	w := postJSON(t, h.Save, `{"id":"5","episodeTitle":"03","position":712.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("save failed with %d: %s", w.Code, w.Body.String())
	}

	var saved models.PlaybackRecord
	if err := json.Unmarshal(w.Body.Bytes(), &saved); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if saved.EpisodeTitle != "03" || saved.Position != 712.5 || saved.Timestamp.IsZero() {
		t.Fatalf("unexpected saved record: %+v", saved)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/playback/5", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "5"})
	w = httptest.NewRecorder()
	h.Get(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get failed with %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/playback/404", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "404"})
	w = httptest.NewRecorder()
	h.Get(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestPlaybackValidation(t *testing.T) {
	h, _ := newPlaybackFixture(t, stubRecords{})

	cases := []string{
		`not json`,
		`{"id":"","episodeTitle":"01","position":1}`,
		`{"id":"5","episodeTitle":"","position":1}`,
	}
	for _, body := range cases {
		if w := postJSON(t, h.Save, body); w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestPlaybackClear(t *testing.T) {
	h, svc := newPlaybackFixture(t, stubRecords{})

	if _, err := svc.Save("5", "01", 10); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}

	if w := postJSON(t, h.Clear, `{"id":"5"}`); w.Code != http.StatusOK {
		t.Fatalf("clear failed with %d", w.Code)
	}
	if _, ok := svc.Get("5"); ok {
		t.Fatal("record survived clear")
	}

	// Clearing an absent id is a no-op, not an error.
	if w := postJSON(t, h.Clear, `{"id":"5"}`); w.Code != http.StatusOK {
		t.Fatalf("repeat clear failed with %d", w.Code)
	}
}

func TestPlaybackHistoryNewestFirst(t *testing.T) {
	records := stubRecords{
		"1": &models.MetadataRecord{ID: "1", Title: "一"},
		"2": &models.MetadataRecord{ID: "2", Title: "二"},
	}
	h, svc := newPlaybackFixture(t, records)

	for _, id := range []string{"1", "2", "gone"} {
		if _, err := svc.Save(id, "01", 5); err != nil {
			t.Fatalf("failed to seed %s: %v", id, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/playback", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	var body struct {
		Items []struct {
			ID     string                `json:"id"`
			Record models.PlaybackRecord `json:"record"`
		} `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(body.Items) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(body.Items))
	}
	// Saved later, listed first; the orphan record is skipped.
	if !body.Items[0].Record.Timestamp.After(body.Items[1].Record.Timestamp) &&
		body.Items[0].Record.Timestamp != body.Items[1].Record.Timestamp {
		t.Fatalf("entries not newest-first: %+v", body.Items)
	}
}
