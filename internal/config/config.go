package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jfmyers9/tagalong/internal/auth"
	"github.com/jfmyers9/tagalong/pkg/spotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds application configuration
type Config struct {
	// sp_dc cookie from a logged-in open.spotify.com session
	Cookie string

	// Output format template for the friends command
	// Default: "" (aligned columns)
	FriendsFormat string

	Auth   AuthConfig
	URLs   URLConfig
	Listen ListenConfig
	Player PlayerConfig
	API    APIConfig
}

// AuthConfig controls token refresh
type AuthConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration // Per-request HTTP timeout
}

// URLConfig holds remote endpoints
type URLConfig struct {
	Token      string
	ServerTime string
	Secrets    string
	Presence   string
	API        string
}

// ListenConfig controls the synchronizer loop
type ListenConfig struct {
	TickInterval  time.Duration
	ErrorBackoff  time.Duration
	IdleThreshold int
}

// PlayerConfig controls where playback happens
type PlayerConfig struct {
	DeviceID  string // Empty targets the active device
	CachePath string // Track metadata cache database
}

// APIConfig controls Web API client behaviour
type APIConfig struct {
	RateLimit float64 // Requests per second
}

// Load reads configuration from .env, the config file, and the environment
func Load() (*Config, error) {
	configDir := getConfigDir()

	// .env files only fill variables that are not already set
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		_ = godotenv.Load(path)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	// Read config file (optional - don't fail if missing)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables, e.g. TAGALONG_LISTEN_IDLE_THRESHOLD
	v.SetEnvPrefix("TAGALONG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("sp_dc", "TAGALONG_SP_DC", "SP_DC_COOKIE")

	cfg := &Config{
		Cookie:        strings.TrimSpace(v.GetString("sp_dc")),
		FriendsFormat: v.GetString("friends.format"),
		Auth: AuthConfig{
			MaxAttempts: v.GetInt("auth.max_attempts"),
			RetryDelay:  v.GetDuration("auth.retry_delay"),
			Timeout:     v.GetDuration("auth.timeout"),
		},
		URLs: URLConfig{
			Token:      v.GetString("urls.token"),
			ServerTime: v.GetString("urls.server_time"),
			Secrets:    v.GetString("urls.secrets"),
			Presence:   v.GetString("urls.presence"),
			API:        v.GetString("urls.api"),
		},
		Listen: ListenConfig{
			TickInterval:  v.GetDuration("listen.tick_interval"),
			ErrorBackoff:  v.GetDuration("listen.error_backoff"),
			IdleThreshold: v.GetInt("listen.idle_threshold"),
		},
		Player: PlayerConfig{
			DeviceID:  v.GetString("player.device_id"),
			CachePath: v.GetString("player.cache_path"),
		},
		API: APIConfig{
			RateLimit: v.GetFloat64("api.rate_limit"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sp_dc", "")
	v.SetDefault("friends.format", "")

	v.SetDefault("auth.max_attempts", 3)
	v.SetDefault("auth.retry_delay", 500*time.Millisecond)
	v.SetDefault("auth.timeout", 15*time.Second)

	v.SetDefault("urls.token", auth.DefaultTokenURL)
	v.SetDefault("urls.server_time", auth.DefaultServerTimeURL)
	v.SetDefault("urls.secrets", auth.DefaultSecretsURL)
	v.SetDefault("urls.presence", spotify.DefaultPresenceURL)
	v.SetDefault("urls.api", spotify.DefaultAPIBaseURL)

	v.SetDefault("listen.tick_interval", time.Second)
	v.SetDefault("listen.error_backoff", 5*time.Second)
	v.SetDefault("listen.idle_threshold", 30)

	v.SetDefault("player.device_id", "")
	v.SetDefault("player.cache_path", filepath.Join(getDataDir(), "tracks.db"))

	v.SetDefault("api.rate_limit", 10)
}

// Validate checks the settings every command depends on
func (c *Config) Validate() error {
	if c.Cookie == "" {
		return fmt.Errorf("%w: sp_dc cookie not configured. Run 'tagalong auth' or set SP_DC_COOKIE", ErrInvalid)
	}
	if c.Auth.MaxAttempts <= 0 {
		return fmt.Errorf("%w: auth.max_attempts must be positive", ErrInvalid)
	}
	if c.Listen.TickInterval <= 0 || c.Listen.ErrorBackoff <= 0 {
		return fmt.Errorf("%w: listen intervals must be positive", ErrInvalid)
	}
	if c.Listen.IdleThreshold <= 0 {
		return fmt.Errorf("%w: listen.idle_threshold must be positive", ErrInvalid)
	}
	return nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "tagalong")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// getDataDir returns the directory for the track cache
func getDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "tagalong")
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes the user-editable settings to the config file
func (c *Config) Save() error {
	v := viper.New()

	configFile := filepath.Join(getConfigDir(), "config.yaml")

	// Keep whatever else is already in the file
	v.SetConfigFile(configFile)
	_ = v.ReadInConfig()

	v.Set("sp_dc", c.Cookie)
	if c.Player.DeviceID != "" {
		v.Set("player.device_id", c.Player.DeviceID)
	}

	return v.WriteConfigAs(configFile)
}
