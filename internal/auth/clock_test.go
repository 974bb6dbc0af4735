package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServerClock_Fetch(t *testing.T) {
	tests := []struct {
		name       string
		date       string
		omitDate   bool
		statusCode int
		want       int64
		wantErr    bool
	}{
		{
			name:       "valid date",
			date:       "Tue, 14 Nov 2023 22:13:20 GMT",
			statusCode: http.StatusOK,
			want:       1700000000,
		},
		{
			name:       "redirect still carries date",
			date:       "Tue, 14 Nov 2023 22:13:20 GMT",
			statusCode: http.StatusFound,
			want:       1700000000,
		},
		{
			name:       "missing date",
			omitDate:   true,
			statusCode: http.StatusOK,
			wantErr:    true,
		},
		{
			name:       "unparseable date",
			date:       "yesterday",
			statusCode: http.StatusOK,
			wantErr:    true,
		},
		{
			name:       "server error",
			date:       "Tue, 14 Nov 2023 22:13:20 GMT",
			statusCode: http.StatusServiceUnavailable,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("expected HEAD request, got %s", r.Method)
				}
				if tt.omitDate {
					w.Header()["Date"] = nil
				} else {
					w.Header().Set("Date", tt.date)
				}
				if tt.statusCode == http.StatusFound {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := server.Client()
			client.CheckRedirect = func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			}

			clock := NewServerClock(server.URL, client)
			got, err := clock.Fetch(context.Background())

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrClockFetch) {
					t.Errorf("expected ErrClockFetch, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Fetch() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestServerClock_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewServerClock(url, nil).Fetch(context.Background())
	if !errors.Is(err, ErrClockFetch) {
		t.Errorf("expected ErrClockFetch, got %v", err)
	}
}
