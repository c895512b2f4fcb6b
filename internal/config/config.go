package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mitchellh/go-homedir"

	"github.com/abelbrown/moodlog/internal/analytics"
)

// DefaultDataDir holds the config file, cache, session, logs and events.
const DefaultDataDir = "~/.moodlog"

// Config is the persistent application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Analytics AnalyticsConfig `json:"analytics"`
	Tiles     TilesConfig     `json:"tiles"`
	Push      PushConfig      `json:"push"`
	UI        UIConfig        `json:"ui"`

	// DataDir may start with "~".
	DataDir     string `json:"data_dir"`
	MetricsAddr string `json:"metrics_addr,omitempty"`
}

// ServerConfig is the backend connection.
type ServerConfig struct {
	URL        string  `json:"url"`
	TimeoutMs  int     `json:"timeout_ms"`
	RatePerSec float64 `json:"rate_per_sec"` // 0 = unlimited
	StreamPath string  `json:"stream_path"`
	TokenParam string  `json:"token_param"` // query parameter carrying the push token
}

// AnalyticsConfig holds the empirical constants of the derived views.
type AnalyticsConfig struct {
	WindowDays        int          `json:"window_days"`
	PositiveThreshold float64      `json:"positive_threshold"`
	NegativeThreshold float64      `json:"negative_threshold"`
	Stress            StressConfig `json:"stress"`
	RefreshOnStart    bool         `json:"refresh_on_start"`
}

// StressConfig is the sentiment to stress estimate (0-10).
type StressConfig struct {
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Positive float64 `json:"positive"`
}

// TilesConfig controls the recent analysis tiles.
type TilesConfig struct {
	CooldownMs       int     `json:"cooldown_ms"`
	PollIntervalMs   int     `json:"poll_interval_ms"`
	Retries          int     `json:"retries"`
	BackoffMs        int     `json:"backoff_ms"`
	BackoffFactor    float64 `json:"backoff_factor"`
	MidnightOffsetMs int     `json:"midnight_offset_ms"`
}

// PushConfig controls the server-push subscription.
type PushConfig struct {
	Enabled          bool `json:"enabled"`
	ReconnectDelayMs int  `json:"reconnect_delay_ms"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	EntryLimit int  `json:"entry_limit"`
	ShowDebug  bool `json:"show_debug"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:        "http://localhost:5000/api",
			TimeoutMs:  30000,
			StreamPath: "/events/stream",
			TokenParam: "token",
		},
		Analytics: AnalyticsConfig{
			WindowDays:        analytics.DefaultWindowDays,
			PositiveThreshold: 0.6,
			NegativeThreshold: 0.4,
			Stress:            StressConfig{Negative: 8, Neutral: 5, Positive: 3},
			RefreshOnStart:    true,
		},
		Tiles: TilesConfig{
			CooldownMs:       8000,
			PollIntervalMs:   5 * 60 * 1000,
			Retries:          2,
			BackoffMs:        400,
			BackoffFactor:    1.5,
			MidnightOffsetMs: 5000,
		},
		Push: PushConfig{
			Enabled:          true,
			ReconnectDelayMs: 3000,
		},
		UI: UIConfig{
			EntryLimit: 50,
		},
		DataDir: DefaultDataDir,
	}
}

// DefaultPath returns ~/.moodlog/config.json.
func DefaultPath() string {
	return filepath.Join(expand(DefaultDataDir), "config.json")
}

// Load reads config from path (DefaultPath when empty), or returns
// defaults when there is no file. Fields missing from the file keep their
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to path (DefaultPath when empty).
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600) // may hold the server URL with credentials
}

// env is read from MOODLOG_* variables, after an optional .env file.
type env struct {
	ServerURL      string        `envconfig:"SERVER_URL"`
	DataDir        string        `envconfig:"DATA_DIR"`
	MetricsAddr    string        `envconfig:"METRICS_ADDR"`
	RatePerSec     float64       `envconfig:"RATE_PER_SEC"`
	TileCooldown   time.Duration `envconfig:"TILE_COOLDOWN"`
	ReconnectDelay time.Duration `envconfig:"RECONNECT_DELAY"`
	NoPush         bool          `envconfig:"NO_PUSH"`
}

// ApplyEnv overrides fields from the environment. Unset variables leave
// the file values alone.
func (c *Config) ApplyEnv() error {
	_ = godotenv.Load()

	var e env
	if err := envconfig.Process("moodlog", &e); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if e.ServerURL != "" {
		c.Server.URL = e.ServerURL
	}
	if e.DataDir != "" {
		c.DataDir = e.DataDir
	}
	if e.MetricsAddr != "" {
		c.MetricsAddr = e.MetricsAddr
	}
	if e.RatePerSec > 0 {
		c.Server.RatePerSec = e.RatePerSec
	}
	if e.TileCooldown > 0 {
		c.Tiles.CooldownMs = int(e.TileCooldown.Milliseconds())
	}
	if e.ReconnectDelay > 0 {
		c.Push.ReconnectDelayMs = int(e.ReconnectDelay.Milliseconds())
	}
	if e.NoPush {
		c.Push.Enabled = false
	}
	return nil
}

// Validate rejects settings the analytics cannot work with.
func (c *Config) Validate() error {
	a := c.Analytics
	if a.NegativeThreshold < 0 || a.PositiveThreshold > 1 || a.NegativeThreshold >= a.PositiveThreshold {
		return fmt.Errorf("config: thresholds must satisfy 0 <= negative < positive <= 1, got %.2f/%.2f",
			a.NegativeThreshold, a.PositiveThreshold)
	}
	if a.WindowDays < 1 {
		return fmt.Errorf("config: window_days must be positive, got %d", a.WindowDays)
	}
	if c.Server.URL == "" {
		return fmt.Errorf("config: server url is empty")
	}
	return nil
}

// Thresholds returns the tie-break thresholds.
func (c *Config) Thresholds() analytics.Thresholds {
	return analytics.Thresholds{Positive: c.Analytics.PositiveThreshold, Negative: c.Analytics.NegativeThreshold}
}

// StressMapping returns the sentiment to stress estimate.
func (c *Config) StressMapping() analytics.StressMapping {
	s := c.Analytics.Stress
	return analytics.StressMapping{Negative: s.Negative, Neutral: s.Neutral, Positive: s.Positive}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c *Config) Timeout() time.Duration        { return ms(c.Server.TimeoutMs) }
func (c *Config) TileCooldown() time.Duration   { return ms(c.Tiles.CooldownMs) }
func (c *Config) TilePoll() time.Duration       { return ms(c.Tiles.PollIntervalMs) }
func (c *Config) TileBackoff() time.Duration    { return ms(c.Tiles.BackoffMs) }
func (c *Config) MidnightOffset() time.Duration { return ms(c.Tiles.MidnightOffsetMs) }
func (c *Config) ReconnectDelay() time.Duration { return ms(c.Push.ReconnectDelayMs) }

// Dir returns the expanded data directory.
func (c *Config) Dir() string { return expand(c.DataDir) }

// DBPath is the entry cache.
func (c *Config) DBPath() string { return filepath.Join(c.Dir(), "cache.db") }

// SessionDir holds the persisted login.
func (c *Config) SessionDir() string { return filepath.Join(c.Dir(), "session") }

// LogDir holds the daily text logs.
func (c *Config) LogDir() string { return filepath.Join(c.Dir(), "logs") }

// EventsPath is the JSONL event log.
func (c *Config) EventsPath() string { return filepath.Join(c.Dir(), "events.jsonl") }

func expand(path string) string {
	p, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return p
}
