package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultSecretsURL publishes the web player's current TOTP cipher bytes.
const DefaultSecretsURL = "https://raw.githubusercontent.com/xyloflake/spot-secrets-go/refs/heads/main/secrets/secretDict.json"

// SecretSet maps a secret version to its cipher bytes.
// A set is never mutated once published by a SecretStore.
type SecretSet map[int][]int

// MaxVersion returns the highest version in the set.
func (s SecretSet) MaxVersion() (int, bool) {
	found := false
	highest := 0
	for v := range s {
		if !found || v > highest {
			highest = v
			found = true
		}
	}
	return highest, found
}

// Versions returns the versions in ascending order.
func (s SecretSet) Versions() []int {
	versions := make([]int, 0, len(s))
	for v := range s {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}

// SecretStore holds the current SecretSet and reloads it from a remote source.
type SecretStore struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger

	mu  sync.RWMutex
	set SecretSet
}

// NewSecretStore creates an empty store backed by url.
func NewSecretStore(url string, client *http.Client, logger zerolog.Logger) *SecretStore {
	if url == "" {
		url = DefaultSecretsURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SecretStore{
		url:        url,
		httpClient: client,
		logger:     logger.With().Str("component", "secrets").Logger(),
	}
}

// Refresh fetches the remote secret set and replaces the current one.
// On failure the previous set is kept.
func (s *SecretStore) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSecretFetch, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSecretFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrSecretFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSecretFetch, err)
	}

	set, err := parseSecretSet(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSecretFetch, err)
	}

	s.Load(set)

	s.logger.Info().
		Ints("versions", set.Versions()).
		Msg("Loaded TOTP secrets")

	return nil
}

// Load replaces the current set.
func (s *SecretStore) Load(set SecretSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = set
}

// Set returns the current secret set, which may be nil.
func (s *SecretStore) Set() SecretSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set
}

// CurrentVersion returns the highest loaded version.
func (s *SecretStore) CurrentVersion() (int, error) {
	v, ok := s.Set().MaxVersion()
	if !ok {
		return 0, ErrNoSecrets
	}
	return v, nil
}

// parseSecretSet decodes {"<version>": [ints...]}.
func parseSecretSet(data []byte) (SecretSet, error) {
	var raw map[string][]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid secrets json: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("secrets json is empty")
	}

	set := make(SecretSet, len(raw))
	for key, cipher := range raw {
		version, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid secret version %q", key)
		}
		set[version] = cipher
	}

	return set, nil
}
