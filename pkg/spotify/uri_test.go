package spotify

import (
	"errors"
	"testing"
)

func TestTrackID(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		want    string
		wantErr bool
	}{
		{name: "track uri", uri: "spotify:track:4uLU6hMCjMI75M1A2tKUQC", want: "4uLU6hMCjMI75M1A2tKUQC"},
		{name: "episode uri", uri: "spotify:episode:abc", wantErr: true},
		{name: "missing id", uri: "spotify:track:", wantErr: true},
		{name: "not a uri", uri: "https://open.spotify.com/track/abc", wantErr: true},
		{name: "empty", uri: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TrackID(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURI) {
					t.Errorf("TrackID(%q) error = %v, want ErrInvalidURI", tt.uri, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("TrackID(%q) unexpected error: %v", tt.uri, err)
			}
			if got != tt.want {
				t.Errorf("TrackID(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}

func TestURIToURL(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{uri: "spotify:user:alice", want: "https://open.spotify.com/user/alice"},
		{uri: "spotify:track:abc", want: "https://open.spotify.com/track/abc"},
		{uri: "garbage", want: "garbage"},
	}

	for _, tt := range tests {
		if got := URIToURL(tt.uri); got != tt.want {
			t.Errorf("URIToURL(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
