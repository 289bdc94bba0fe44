package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"anibridge/internal/upstream"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Upstream UpstreamSettings `json:"upstream"`
	Data     DataSettings     `json:"data"`
	Sync     SyncSettings     `json:"sync"`
	Enrich   EnrichSettings   `json:"enrich"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// UpstreamSettings identifies the origin site and how we talk to it.
type UpstreamSettings struct {
	BaseURL               string `json:"baseUrl"`
	FeedURL               string `json:"feedUrl"`
	ResolveURL            string `json:"resolveUrl"`
	UserAgent             string `json:"userAgent"`
	Referer               string `json:"referer"`
	RequestTimeoutSeconds int    `json:"requestTimeoutSeconds"`
	StreamTimeoutMinutes  int    `json:"streamTimeoutMinutes"`
}

// DataSettings locates the JSON documents shared with the enrichment jobs and
// the downloaded cover images.
type DataSettings struct {
	Directory      string `json:"directory"`
	CoverDirectory string `json:"coverDirectory"`
}

type SyncSettings struct {
	IntervalHours int `json:"intervalHours"`
}

// EnrichSettings controls the in-process cover/synopsis enrichment job.
type EnrichSettings struct {
	Enabled          bool   `json:"enabled"`
	SubjectSearchURL string `json:"subjectSearchUrl"`
	MaxWorkers       int    `json:"maxWorkers"`
}

// LogConfig represents file logging with rotation.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// RequestTimeout returns the bound for catalog/episode/resolution calls.
func (u UpstreamSettings) RequestTimeout() time.Duration {
	if u.RequestTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(u.RequestTimeoutSeconds) * time.Second
}

// StreamTimeout returns the longer bound used by the media byte proxy.
func (u UpstreamSettings) StreamTimeout() time.Duration {
	if u.StreamTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(u.StreamTimeoutMinutes) * time.Minute
}

// Interval returns the background sync period.
func (s SyncSettings) Interval() time.Duration {
	if s.IntervalHours <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(s.IntervalHours) * time.Hour
}

// DefaultSettings returns the configuration written on first start.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Upstream: UpstreamSettings{
			BaseURL:               "https://anime1.me",
			FeedURL:               "https://anime1.me/animelist.json",
			ResolveURL:            "https://v.anime1.me/api",
			UserAgent:             upstream.DefaultUserAgent,
			Referer:               "https://anime1.me/",
			RequestTimeoutSeconds: 15,
			StreamTimeoutMinutes:  30,
		},
		Data: DataSettings{
			Directory:      filepath.Join("data", "json"),
			CoverDirectory: filepath.Join("data", "covers"),
		},
		Sync: SyncSettings{
			IntervalHours: 2,
		},
		Enrich: EnrichSettings{
			Enabled:          false,
			SubjectSearchURL: "https://api.bgm.tv/search/subject",
			MaxWorkers:       4,
		},
		Log: LogConfig{
			File:       "",
			MaxSize:    20,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// Manager loads and persists the settings file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir creates the directory for the config file if needed.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads the settings file from disk, creating defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}

	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	settings := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Save writes the settings file atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
