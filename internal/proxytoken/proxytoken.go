// Package proxytoken encodes a resolved media URL plus its authorizing
// cookies into an opaque, reversible proxy handle. The encoding is URL-safe
// base64 over the raw URL and a JSON cookie map; it is deliberately neither
// encrypted nor integrity-protected (see DESIGN.md: anyone holding a handle
// can replay the upstream session until the origin expires it).
package proxytoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// Query parameter names on the streaming endpoint.
const (
	ParamURL     = "u"
	ParamCookies = "c"
)

// ErrMissingURL is returned when a handle carries no media URL.
var ErrMissingURL = errors.New("proxy handle missing media url")

// Encode packs a media URL and cookie set into streaming-endpoint query
// values.
func Encode(mediaURL string, cookies map[string]string) (url.Values, error) {
	if mediaURL == "" {
		return nil, ErrMissingURL
	}

	values := url.Values{}
	values.Set(ParamURL, base64.URLEncoding.EncodeToString([]byte(mediaURL)))

	if len(cookies) > 0 {
		raw, err := json.Marshal(cookies)
		if err != nil {
			return nil, fmt.Errorf("encode cookies: %w", err)
		}
		values.Set(ParamCookies, base64.URLEncoding.EncodeToString(raw))
	}

	return values, nil
}

// Handle builds the full proxy handle URL for the given streaming path.
func Handle(streamPath, mediaURL string, cookies map[string]string) (string, error) {
	values, err := Encode(mediaURL, cookies)
	if err != nil {
		return "", err
	}
	return streamPath + "?" + values.Encode(), nil
}

// Decode unpacks the media URL and cookie set from streaming-endpoint query
// values. An absent cookie parameter yields an empty cookie set.
func Decode(values url.Values) (string, map[string]string, error) {
	encoded := values.Get(ParamURL)
	if encoded == "" {
		return "", nil, ErrMissingURL
	}

	rawURL, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decode media url: %w", err)
	}

	cookies := map[string]string{}
	if c := values.Get(ParamCookies); c != "" {
		raw, err := base64.URLEncoding.DecodeString(c)
		if err != nil {
			return "", nil, fmt.Errorf("decode cookies: %w", err)
		}
		if err := json.Unmarshal(raw, &cookies); err != nil {
			return "", nil, fmt.Errorf("parse cookies: %w", err)
		}
	}

	return string(rawURL), cookies, nil
}
