// Package resolver exchanges an opaque per-episode token for a real media
// URL and the session cookies that authorize fetching it. Every exchange
// happens on a fresh, single-use upstream session so cookies never leak
// between unrelated resolutions.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"anibridge/models"
)

var (
	// ErrMissingToken is returned before any network call is made.
	ErrMissingToken = errors.New("missing playback token")
	// ErrResolveFailed covers upstream non-200s and responses without a
	// usable media source.
	ErrResolveFailed = errors.New("token exchange failed")
)

// Service performs token exchanges against the upstream resolution API.
type Service struct {
	apiURL    string
	userAgent string
	referer   string
	timeout   time.Duration
}

// NewService creates a resolver for the given API endpoint.
func NewService(apiURL, userAgent, referer string, timeout time.Duration) *Service {
	return &Service{apiURL: apiURL, userAgent: userAgent, referer: referer, timeout: timeout}
}

// apiResponse mirrors the resolution API payload: a list of media sources.
type apiResponse struct {
	Sources []struct {
		Src string `json:"src"`
	} `json:"s"`
}

// Resolve exchanges a token for the media URL and session cookies.
func (s *Service) Resolve(ctx context.Context, token string) (*models.ResolvedMedia, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}

	payload := token
	if decoded, err := url.QueryUnescape(token); err == nil {
		payload = decoded
	}

	// Single-use session: a fresh jar per exchange.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client := &http.Client{Timeout: s.timeout, Jar: jar}

	form := url.Values{"d": {payload}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Referer", s.referer)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		log.Printf("[resolver] exchange returned status %d", resp.StatusCode)
		return nil, fmt.Errorf("%w: upstream status %d", ErrResolveFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read resolve response: %w", err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: unparsable response", ErrResolveFailed)
	}
	if len(decoded.Sources) == 0 || decoded.Sources[0].Src == "" {
		return nil, fmt.Errorf("%w: no media source in response", ErrResolveFailed)
	}

	mediaURL := decoded.Sources[0].Src
	if strings.HasPrefix(mediaURL, "//") {
		mediaURL = "https:" + mediaURL
	}

	return &models.ResolvedMedia{
		URL:     mediaURL,
		Cookies: s.sessionCookies(jar, resp),
	}, nil
}

// sessionCookies collects every cookie the exchange accumulated: the jar's
// view of the API origin plus the Set-Cookie headers of the final response,
// which may target the media host rather than the API host.
func (s *Service) sessionCookies(jar http.CookieJar, resp *http.Response) map[string]string {
	cookies := map[string]string{}
	if u, err := url.Parse(s.apiURL); err == nil {
		for _, c := range jar.Cookies(u) {
			cookies[c.Name] = c.Value
		}
	}
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c.Value
	}
	return cookies
}
