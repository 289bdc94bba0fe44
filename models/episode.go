package models

// EpisodeRef is one playable entry discovered on a series page. It lives for
// the duration of a single listing call and is never persisted.
type EpisodeRef struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	FullTitle string `json:"fullTitle"`
	Token     string `json:"token"`
}

// ResolvedMedia is the outcome of exchanging an episode token: the real media
// URL and the session cookies the origin requires to serve its bytes. It is
// encoded into a proxy handle and discarded.
type ResolvedMedia struct {
	URL     string
	Cookies map[string]string
}
