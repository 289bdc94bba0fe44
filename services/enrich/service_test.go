package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"anibridge/internal/upstream"
	"anibridge/services/assets"
	"anibridge/services/catalog"
	"anibridge/utils/zhtext"

	"github.com/stretchr/testify/require"
)

// Minimal PNG: magic plus a truncated IHDR, enough for sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func newCatalog(t *testing.T, feed string) *catalog.Service {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feed))
	}))
	t.Cleanup(server.Close)

	norm, err := zhtext.NewNormalizer()
	require.NoError(t, err)

	svc := catalog.NewService(upstream.New("test-agent", "", 0), server.URL, norm)
	_, err = svc.Sync(context.Background())
	require.NoError(t, err)
	return svc
}

func TestRunFillsDescriptionsAndParksMisses(t *testing.T) {
	dataDir := t.TempDir()
	coverDir := t.TempDir()

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "测试番") {
			w.Write([]byte(`{"list":[{"summary":"一部测试动画","images":{"large":""}}]}`))
			return
		}
		w.Write([]byte(`{"list":[]}`))
	}))
	defer search.Close()

	cat := newCatalog(t, `[[100,"測試番","連載","2024","春"],[101,"無人認識","完結","2024","春"]]`)

	assetSvc, err := assets.NewService(dataDir, coverDir)
	require.NoError(t, err)

	svc := NewService(upstream.New("test-agent", "", time.Second), cat, assetSvc, search.URL, dataDir, coverDir, 2)
	require.NoError(t, svc.Run(context.Background()))

	descs, err := loadMap(filepath.Join(dataDir, descMapFile))
	require.NoError(t, err)
	require.Equal(t, "一部测试动画", descs["测试番"])

	// The unmatched title is parked for a manual query override.
	manual, err := loadMap(filepath.Join(dataDir, manualFixesFile))
	require.NoError(t, err)
	override, ok := manual["无人认识"]
	require.True(t, ok)
	require.Empty(t, override)
}

func TestManualOverrideReplacesQuery(t *testing.T) {
	dataDir := t.TempDir()
	coverDir := t.TempDir()

	var queries []string
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Path)
		w.Write([]byte(`{"list":[{"summary":"改名命中"}]}`))
	}))
	defer search.Close()

	manual := map[string]string{"测试番": "別名"}
	data, err := json.Marshal(manual)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, manualFixesFile), data, 0o644))

	cat := newCatalog(t, `[[100,"測試番","連載","2024","春"]]`)
	assetSvc, err := assets.NewService(dataDir, coverDir)
	require.NoError(t, err)

	svc := NewService(upstream.New("test-agent", "", time.Second), cat, assetSvc, search.URL, dataDir, coverDir, 1)
	require.NoError(t, svc.Run(context.Background()))

	require.Len(t, queries, 1)
	require.Contains(t, queries[0], "別名")
}

func TestDownloadCoverSniffsExtension(t *testing.T) {
	coverDir := t.TempDir()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	}))
	defer server.Close()

	svc := NewService(upstream.New("test-agent", "", time.Second), nil, nil, "", t.TempDir(), coverDir, 1)
	name, err := svc.downloadCover(context.Background(), "测试番", server.URL+"/cover")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(name, ".png"), "sniffed extension, got %q", name)

	data, err := os.ReadFile(filepath.Join(coverDir, name))
	require.NoError(t, err)
	require.Equal(t, pngBytes, data)

	// A second call reuses the file already on disk.
	again, err := svc.downloadCover(context.Background(), "测试番", server.URL+"/other")
	require.NoError(t, err)
	require.Equal(t, name, again)
}

func TestTitlesWithBothAssetsAreSkipped(t *testing.T) {
	dataDir := t.TempDir()
	coverDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(coverDir, "x.png"), pngBytes, 0o644))
	writeJSON := func(name string, m map[string]string) {
		data, err := json.Marshal(m)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), data, 0o644))
	}
	writeJSON(coverMapFile, map[string]string{"测试番": "x.png"})
	writeJSON(descMapFile, map[string]string{"测试番": "既有简介"})

	var hits int
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"list":[]}`))
	}))
	defer search.Close()

	cat := newCatalog(t, `[[100,"測試番","連載","2024","春"]]`)
	assetSvc, err := assets.NewService(dataDir, coverDir)
	require.NoError(t, err)

	svc := NewService(upstream.New("test-agent", "", time.Second), cat, assetSvc, search.URL, dataDir, coverDir, 1)
	require.NoError(t, svc.Run(context.Background()))
	require.Zero(t, hits, "fully enriched titles must not hit the search API")
}
