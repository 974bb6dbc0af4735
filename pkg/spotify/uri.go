package spotify

import (
	"fmt"
	"strings"
)

// splitURI splits "spotify:<kind>:<id>" into kind and id.
func splitURI(uri string) (kind, id string, err error) {
	parts := strings.Split(uri, ":")
	if len(parts) != 3 || parts[0] != "spotify" || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return parts[1], parts[2], nil
}

// TrackID extracts the track ID from a "spotify:track:<id>" URI.
func TrackID(uri string) (string, error) {
	kind, id, err := splitURI(uri)
	if err != nil {
		return "", err
	}
	if kind != "track" {
		return "", fmt.Errorf("%w: %q is not a track", ErrInvalidURI, uri)
	}
	return id, nil
}

// URIToURL converts a Spotify URI into its open.spotify.com URL.
// Unparseable URIs are returned unchanged.
func URIToURL(uri string) string {
	kind, id, err := splitURI(uri)
	if err != nil {
		return uri
	}
	return fmt.Sprintf("https://open.spotify.com/%s/%s", kind, id)
}
