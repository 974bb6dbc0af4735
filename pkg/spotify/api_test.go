package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient creates a client pointed at server with fast retries.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	return NewClient(Config{
		HTTPClient:   server.Client(),
		APIBaseURL:   server.URL + "/v1",
		PresenceURL:  server.URL + "/presence-view/v1/buddylist",
		RateLimit:    -1,
		RetryBackoff: time.Millisecond,
	})
}

func TestClient_FriendActivity(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		statusCode  int
		wantCount   int
		wantErr     bool
		errContains string
	}{
		{
			name: "success",
			response: `{"friends":[
				{"timestamp":1700000000000,"user":{"uri":"spotify:user:alice","name":"Alice"},
				 "track":{"uri":"spotify:track:abc","name":"Song","artist":{"uri":"spotify:artist:x","name":"Band"}}},
				{"timestamp":1700000005000,"user":{"uri":"spotify:user:bob","name":"Bob"},
				 "track":{"uri":"spotify:track:def","name":"Other","artist":{"uri":"spotify:artist:y","name":"Solo"}}}
			]}`,
			statusCode: http.StatusOK,
			wantCount:  2,
		},
		{
			name:       "empty feed",
			response:   `{"friends":[]}`,
			statusCode: http.StatusOK,
			wantCount:  0,
		},
		{
			name:        "unauthorized",
			response:    `{"error":{"status":401,"message":"The access token expired"}}`,
			statusCode:  http.StatusUnauthorized,
			wantErr:     true,
			errContains: "status 401",
		},
		{
			name:        "malformed json",
			response:    `{"friends":`,
			statusCode:  http.StatusOK,
			wantErr:     true,
			errContains: "failed to decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET request, got %s", r.Method)
				}
				if r.URL.Path != "/presence-view/v1/buddylist" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
					t.Errorf("expected browser user agent, got %q", ua)
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := newTestClient(t, server)
			friends, err := client.FriendActivity(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error to contain %q, got %q", tt.errContains, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(friends) != tt.wantCount {
				t.Fatalf("expected %d friends, got %d", tt.wantCount, len(friends))
			}
			if tt.wantCount > 0 {
				f := friends[0]
				if f.User.URI != "spotify:user:alice" {
					t.Errorf("expected user uri spotify:user:alice, got %s", f.User.URI)
				}
				if f.Track.URI != "spotify:track:abc" || f.Track.Name != "Song" {
					t.Errorf("unexpected track %+v", f.Track)
				}
				if f.Track.Artist.Name != "Band" {
					t.Errorf("expected artist Band, got %s", f.Track.Artist.Name)
				}
				if f.Timestamp != 1700000000000 {
					t.Errorf("expected timestamp 1700000000000, got %d", f.Timestamp)
				}
			}
		})
	}
}

func TestClient_Track(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tracks/abc123" {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"abc123","name":"Song","uri":"spotify:track:abc123","duration_ms":215000}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	t.Run("by uri", func(t *testing.T) {
		track, err := client.Track(context.Background(), "spotify:track:abc123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if track.DurationMS != 215000 {
			t.Errorf("expected duration 215000, got %d", track.DurationMS)
		}
	})

	t.Run("by id", func(t *testing.T) {
		track, err := client.Track(context.Background(), "abc123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if track.Name != "Song" {
			t.Errorf("expected name Song, got %s", track.Name)
		}
	})

	t.Run("invalid uri", func(t *testing.T) {
		_, err := client.Track(context.Background(), "spotify:episode:abc123")
		if !errors.Is(err, ErrInvalidURI) {
			t.Errorf("expected ErrInvalidURI, got %v", err)
		}
	})
}

func TestClient_StartPlayback(t *testing.T) {
	t.Run("sends uri, position and device", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("expected PUT request, got %s", r.Method)
			}
			if r.URL.Path != "/v1/me/player/play" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("device_id"); got != "dev1" {
				t.Errorf("expected device_id dev1, got %q", got)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}

			body, _ := io.ReadAll(r.Body)
			var req PlayRequest
			if err := json.Unmarshal(body, &req); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if len(req.URIs) != 1 || req.URIs[0] != "spotify:track:abc" {
				t.Errorf("unexpected uris %v", req.URIs)
			}
			if req.PositionMS != 42000 {
				t.Errorf("expected position 42000, got %d", req.PositionMS)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := newTestClient(t, server)
		if err := client.StartPlayback(context.Background(), "dev1", "spotify:track:abc", 42000); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejection is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"status":403,"message":"Player command failed: Premium required"}}`))
		}))
		defer server.Close()

		client := newTestClient(t, server)
		err := client.StartPlayback(context.Background(), "", "spotify:track:abc", 0)

		if StatusOf(err) != http.StatusForbidden {
			t.Fatalf("expected status 403, got %v", err)
		}
		if !errors.Is(err, &Error{Status: http.StatusForbidden}) {
			t.Error("expected errors.Is to match *Error by status")
		}
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Errorf("expected 1 call, got %d", got)
		}
	})
}

func TestClient_RetriesServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		wantErr   bool
		wantCalls int32
	}{
		{name: "recovers after one failure", failures: 1, wantErr: false, wantCalls: 2},
		{name: "recovers after two failures", failures: 2, wantErr: false, wantCalls: 3},
		{name: "gives up after max retries", failures: 10, wantErr: true, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				if n <= tt.failures {
					w.WriteHeader(http.StatusBadGateway)
					return
				}
				_, _ = w.Write([]byte(`{"id":"me","display_name":"Me","product":"premium"}`))
			}))
			defer server.Close()

			client := newTestClient(t, server)
			user, err := client.Me(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if StatusOf(err) != http.StatusBadGateway {
					t.Errorf("expected last error to carry status 502, got %v", err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if user.Product != "premium" {
					t.Errorf("expected product premium, got %s", user.Product)
				}
			}

			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestClient_FriendActivitySingleAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FriendActivity(context.Background())

	if StatusOf(err) != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestClient_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, server)
	if _, err := client.FriendActivity(ctx); err == nil {
		t.Error("expected error for canceled context")
	}
}

// failingTransport fails before any request is sent, like a token source error.
type failingTransport struct {
	calls int32
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, errors.New("no access token available")
}

func TestClient_DoesNotRetryTransportSetupErrors(t *testing.T) {
	transport := &failingTransport{}
	client := NewClient(Config{
		HTTPClient:   &http.Client{Transport: transport},
		RateLimit:    -1,
		RetryBackoff: time.Millisecond,
	})

	_, err := client.Me(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no access token available") {
		t.Fatalf("expected token error, got %v", err)
	}
	if got := atomic.LoadInt32(&transport.calls); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}
}
