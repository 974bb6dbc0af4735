package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func TestSecretStore_Refresh(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		statusCode   int
		wantVersions []int
		wantErr      bool
	}{
		{
			name:         "multiple versions",
			response:     `{"59":[1,2,3],"61":[4,5,6],"60":[7,8]}`,
			statusCode:   http.StatusOK,
			wantVersions: []int{59, 60, 61},
		},
		{
			name:       "empty object",
			response:   `{}`,
			statusCode: http.StatusOK,
			wantErr:    true,
		},
		{
			name:       "non-numeric version",
			response:   `{"latest":[1,2,3]}`,
			statusCode: http.StatusOK,
			wantErr:    true,
		},
		{
			name:       "malformed json",
			response:   `{"61":[`,
			statusCode: http.StatusOK,
			wantErr:    true,
		},
		{
			name:       "not found",
			response:   `404: Not Found`,
			statusCode: http.StatusNotFound,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			store := NewSecretStore(server.URL, server.Client(), zerolog.Nop())
			err := store.Refresh(context.Background())

			if tt.wantErr {
				if !errors.Is(err, ErrSecretFetch) {
					t.Errorf("expected ErrSecretFetch, got %v", err)
				}
				if store.Set() != nil {
					t.Error("expected set to remain empty after failure")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := store.Set().Versions(); !reflect.DeepEqual(got, tt.wantVersions) {
				t.Errorf("versions = %v, want %v", got, tt.wantVersions)
			}
		})
	}
}

func TestSecretStore_FailedRefreshKeepsPreviousSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := NewSecretStore(server.URL, server.Client(), zerolog.Nop())
	store.Load(SecretSet{7: {1, 2, 3}})

	if err := store.Refresh(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}

	version, err := store.CurrentVersion()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 7 {
		t.Errorf("CurrentVersion() = %d, want 7", version)
	}
}

func TestSecretStore_CurrentVersionEmpty(t *testing.T) {
	store := NewSecretStore("", nil, zerolog.Nop())
	if _, err := store.CurrentVersion(); !errors.Is(err, ErrNoSecrets) {
		t.Errorf("expected ErrNoSecrets, got %v", err)
	}
}
