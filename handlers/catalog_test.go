package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"anibridge/models"
	catalogsvc "anibridge/services/catalog"
)

type stubCatalog struct {
	snap *catalogsvc.Snapshot
}

func (s *stubCatalog) Current() *catalogsvc.Snapshot { return s.snap }

type stubRecords map[string]*models.MetadataRecord

func (s stubRecords) Get(id string) (*models.MetadataRecord, bool) {
	rec, ok := s[id]
	return rec, ok
}

type stubCovers map[string]string

func (s stubCovers) CoverURL(title string) string { return s[title] }

type catalogPage struct {
	Items []models.MetadataRecord `json:"items"`
	Total int                     `json:"total"`
}

func newCatalogFixture(n int) *CatalogHandler {
	items := make([]models.CatalogItem, 0, n)
	records := stubRecords{}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("%d", i)
		items = append(items, models.CatalogItem{ID: id, Title: "番剧 " + id, SearchKey: "番剧 " + id})
		records[id] = &models.MetadataRecord{ID: id, Title: "番剧 " + id}
	}
	return NewCatalogHandler(&stubCatalog{snap: catalogsvc.NewSnapshot(items)}, records, stubCovers{})
}

func listPage(t *testing.T, h *CatalogHandler, query string) (catalogPage, int) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/catalog"+query, nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	var page catalogPage
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return page, w.Code
}

func TestCatalogPagination(t *testing.T) {
	h := newCatalogFixture(30)

	page, code := listPage(t, h, "")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(page.Items) != 24 || page.Total != 30 {
		t.Fatalf("page 1: got %d items, total %d", len(page.Items), page.Total)
	}
	// Newest (highest id) first.
	if page.Items[0].ID != "30" {
		t.Fatalf("expected id 30 first, got %s", page.Items[0].ID)
	}

	page, _ = listPage(t, h, "?page=2")
	if len(page.Items) != 6 || page.Total != 30 {
		t.Fatalf("page 2: got %d items, total %d", len(page.Items), page.Total)
	}

	// Past the end: empty list, true total.
	page, _ = listPage(t, h, "?page=3")
	if len(page.Items) != 0 || page.Total != 30 {
		t.Fatalf("page 3: got %d items, total %d", len(page.Items), page.Total)
	}
}

func TestCatalogInvalidPage(t *testing.T) {
	h := newCatalogFixture(1)
	for _, query := range []string{"?page=0", "?page=-1", "?page=abc"} {
		if _, code := listPage(t, h, query); code != http.StatusBadRequest {
			t.Errorf("query %q: expected 400, got %d", query, code)
		}
	}
}

func TestCatalogSearchFoldsKeyword(t *testing.T) {
	items := []models.CatalogItem{
		{ID: "1", Title: "测试番", SearchKey: "测试番|測試番|csf"},
		{ID: "2", Title: "其他", SearchKey: "其他|qt"},
	}
	records := stubRecords{
		"1": {ID: "1", Title: "测试番"},
		"2": {ID: "2", Title: "其他"},
	}
	h := NewCatalogHandler(&stubCatalog{snap: catalogsvc.NewSnapshot(items)}, records, stubCovers{})

	// Uppercase and full-width input match the folded search key.
	for _, query := range []string{"?q=CSF", "?q=ｃｓｆ"} {
		page, code := listPage(t, h, query)
		if code != http.StatusOK {
			t.Fatalf("query %q: unexpected status %d", query, code)
		}
		if len(page.Items) != 1 || page.Items[0].ID != "1" {
			t.Fatalf("query %q: unexpected result %+v", query, page.Items)
		}
	}
}

func TestCatalogFallsBackWithoutProjection(t *testing.T) {
	items := []models.CatalogItem{{ID: "9", Title: "新番", Status: "连载", SearchKey: "新番"}}
	h := NewCatalogHandler(&stubCatalog{snap: catalogsvc.NewSnapshot(items)}, stubRecords{}, stubCovers{})

	page, code := listPage(t, h, "")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "9" || page.Items[0].Status != "连载" {
		t.Fatalf("unexpected fallback record: %+v", page.Items)
	}
}

func TestCoverLookup(t *testing.T) {
	h := NewCatalogHandler(&stubCatalog{snap: catalogsvc.NewSnapshot(nil)}, stubRecords{}, stubCovers{"测试番": "/covers/abc.jpg"})

	req := httptest.NewRequest(http.MethodGet, "/api/covers/lookup?title=测试番", nil)
	w := httptest.NewRecorder()
	h.CoverLookup(w, req)

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["url"] != "/covers/abc.jpg" {
		t.Fatalf("unexpected url %q", body["url"])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/covers/lookup", nil)
	w = httptest.NewRecorder()
	h.CoverLookup(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", w.Code)
	}
}
