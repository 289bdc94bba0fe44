package handlers

import (
	"net/http"
	"strconv"

	"anibridge/models"
	assetssvc "anibridge/services/assets"
	catalogsvc "anibridge/services/catalog"
	projectionsvc "anibridge/services/projection"
	"anibridge/utils/zhtext"
)

// pageSize is the fixed catalog page length.
const pageSize = 24

type catalogSource interface {
	Current() *catalogsvc.Snapshot
}

type recordSource interface {
	Get(id string) (*models.MetadataRecord, bool)
}

type coverSource interface {
	CoverURL(title string) string
}

var (
	_ catalogSource = (*catalogsvc.Service)(nil)
	_ recordSource  = (*projectionsvc.Service)(nil)
	_ coverSource   = (*assetssvc.Service)(nil)
)

// CatalogHandler serves the paginated, searchable catalog listing.
type CatalogHandler struct {
	Catalog    catalogSource
	Projection recordSource
	Covers     coverSource
}

func NewCatalogHandler(catalog catalogSource, projection recordSource, covers coverSource) *CatalogHandler {
	return &CatalogHandler{Catalog: catalog, Projection: projection, Covers: covers}
}

// List returns one page of catalog records, optionally filtered by a search
// keyword. Pages are 1-indexed; a page past the end yields an empty list with
// the true total so clients can stop paging.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = n
	}

	keyword := zhtext.FoldQuery(r.URL.Query().Get("q"))
	matched := h.Catalog.Current().Search(keyword)
	total := len(matched)

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]*models.MetadataRecord, 0, end-start)
	for _, item := range matched[start:end] {
		if rec, ok := h.Projection.Get(item.ID); ok {
			items = append(items, rec)
			continue
		}
		// Projection not rebuilt for this id yet; serve the bare catalog row.
		items = append(items, &models.MetadataRecord{
			ID:     item.ID,
			Title:  item.Title,
			Status: item.Status,
			Year:   item.Year,
			Season: item.Season,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
	})
}

// CoverLookup resolves a title to its cover serving path, empty when the
// title has no verified cover.
func (h *CatalogHandler) CoverLookup(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		writeJSONError(w, "title is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": h.Covers.CoverURL(title)})
}
