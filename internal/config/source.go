package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// videoExtensions are container and image extensions that carry a picture.
// Anything else is treated as audio.
var videoExtensions = []string{
	".mp4", ".mkv", ".mov", ".avi", ".flv", ".webm", ".wmv",
	".mpeg", ".mpg", ".m2ts", ".png", ".jpeg", ".jpg",
}

// IsURL reports whether location is an http(s) URL.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// DetectMode derives the media mode from the source: URLs and files with a video
// or image extension play audio and video, everything else is audio-only.
func DetectMode(location string) MediaMode {
	if IsURL(location) {
		return AudioAndVideo
	}
	ext := strings.ToLower(filepath.Ext(location))
	for _, v := range videoExtensions {
		if ext == v {
			return AudioAndVideo
		}
	}
	return AudioOnly
}

// ResolveSource converts a source location into a backend URI. URLs are returned
// unchanged; local paths must exist and become absolute file:// URIs.
func ResolveSource(location string) (string, error) {
	if location == "" {
		return "", ErrNoSource
	}
	if IsURL(location) {
		return location, nil
	}

	if _, err := os.Stat(location); err != nil {
		return "", &MissingSourceError{Path: location, Err: err}
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", location, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}
