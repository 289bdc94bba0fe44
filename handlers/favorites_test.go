package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"anibridge/models"
	favoritessvc "anibridge/services/favorites"
)

func newFavoritesFixture(t *testing.T, records stubRecords) (*FavoritesHandler, *favoritessvc.Service) {
	t.Helper()
	svc, err := favoritessvc.NewService(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create favorites service: %v", err)
	}
	return NewFavoritesHandler(svc, records), svc
}

func postJSON(t *testing.T, fn http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()
	fn(w, req)
	return w
}

func TestFavoritesAddRemove(t *testing.T) {
	h, svc := newFavoritesFixture(t, stubRecords{})

	if w := postJSON(t, h.Add, `{"id":"7"}`); w.Code != http.StatusOK {
		t.Fatalf("add failed with %d: %s", w.Code, w.Body.String())
	}
	if ids := svc.IDs(); len(ids) != 1 || ids[0] != "7" {
		t.Fatalf("unexpected ids after add: %v", ids)
	}

	if w := postJSON(t, h.Remove, `{"id":"7"}`); w.Code != http.StatusOK {
		t.Fatalf("remove failed with %d", w.Code)
	}
	if ids := svc.IDs(); len(ids) != 0 {
		t.Fatalf("unexpected ids after remove: %v", ids)
	}
}

func TestFavoritesValidation(t *testing.T) {
	h, _ := newFavoritesFixture(t, stubRecords{})

	if w := postJSON(t, h.Add, `not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", w.Code)
	}
	if w := postJSON(t, h.Add, `{"id":""}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty id, got %d", w.Code)
	}
}

func TestFavoritesDetailsNewestFirst(t *testing.T) {
	records := stubRecords{
		"1": &models.MetadataRecord{ID: "1", Title: "一"},
		"2": &models.MetadataRecord{ID: "2", Title: "二"},
	}
	h, svc := newFavoritesFixture(t, records)

	for _, id := range []string{"1", "2", "gone"} {
		if err := svc.Add(id); err != nil {
			t.Fatalf("failed to add %s: %v", id, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/favorites/details", nil)
	w := httptest.NewRecorder()
	h.Details(w, req)

	var body struct {
		Items []models.MetadataRecord `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// Most recently added first, ids without a record skipped.
	if len(body.Items) != 2 || body.Items[0].ID != "2" || body.Items[1].ID != "1" {
		t.Fatalf("unexpected details order: %+v", body.Items)
	}
}
