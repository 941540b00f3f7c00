package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Queue contains durable queue behavior settings.
type Queue struct {
	MaxRetries         int `toml:"max_retries"`
	RetentionDays      int `toml:"retention_days"`
	ExpiryDays         int `toml:"expiry_days"`
	DedupWindowSeconds int `toml:"dedup_window_seconds"`
	DebounceMillis     int `toml:"debounce_millis"`
}

// Transcription contains settings for the speech-to-text collaborator.
type Transcription struct {
	BaseURL              string `toml:"base_url"`
	APIKey               string `toml:"api_key"`
	Language             string `toml:"language"`
	PollIntervalSeconds  int    `toml:"poll_interval_seconds"`
	PollBudgetSeconds    int    `toml:"poll_budget_seconds"`
	SafetyTimeoutSeconds int    `toml:"safety_timeout_seconds"`
	MinPayloadBytes      int64  `toml:"min_payload_bytes"`
}

// Notes contains settings for the note-creation collaborator.
type Notes struct {
	BaseURL                string `toml:"base_url"`
	APIKey                 string `toml:"api_key"`
	RecentPageSize         int    `toml:"recent_page_size"`
	ReconcileWindowSeconds int    `toml:"reconcile_window_seconds"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root scribeq configuration.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Transcription Transcription `toml:"transcription"`
	Notes         Notes         `toml:"notes"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "scribeq", "config.toml")
	}
	return filepath.Join(home, ".config", "scribeq", "config.toml")
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. The returned path is the file actually consulted.
func Load(path string) (*Config, string, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	resolved = expandHome(resolved)

	cfg := Default()
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return &cfg, resolved, nil
		}
		return nil, resolved, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, resolved, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	path = expandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the data and log directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.BlobDir()} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// BlobDir returns the directory holding queued audio payloads.
func (c *Config) BlobDir() string {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.DataDir, "blobs")
}

// DatabasePath returns the queue database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// SnapshotPath returns the pending-recording snapshot file location.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Paths.DataDir, "pending.json")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "scribeq.lock")
}

func (c *Config) normalize() {
	c.Paths.DataDir = expandHome(strings.TrimSpace(c.Paths.DataDir))
	c.Paths.LogDir = expandHome(strings.TrimSpace(c.Paths.LogDir))
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	c.Notes.BaseURL = strings.TrimRight(strings.TrimSpace(c.Notes.BaseURL), "/")
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	d := Default()
	if c.Queue.MaxRetries <= 0 {
		c.Queue.MaxRetries = d.Queue.MaxRetries
	}
	if c.Queue.RetentionDays <= 0 {
		c.Queue.RetentionDays = d.Queue.RetentionDays
	}
	if c.Queue.ExpiryDays <= 0 {
		c.Queue.ExpiryDays = d.Queue.ExpiryDays
	}
	if c.Queue.DedupWindowSeconds <= 0 {
		c.Queue.DedupWindowSeconds = d.Queue.DedupWindowSeconds
	}
	if c.Queue.DebounceMillis <= 0 {
		c.Queue.DebounceMillis = d.Queue.DebounceMillis
	}
	if c.Transcription.PollIntervalSeconds <= 0 {
		c.Transcription.PollIntervalSeconds = d.Transcription.PollIntervalSeconds
	}
	if c.Transcription.PollBudgetSeconds <= 0 {
		c.Transcription.PollBudgetSeconds = d.Transcription.PollBudgetSeconds
	}
	if c.Transcription.SafetyTimeoutSeconds <= 0 {
		c.Transcription.SafetyTimeoutSeconds = d.Transcription.SafetyTimeoutSeconds
	}
	if c.Transcription.MinPayloadBytes <= 0 {
		c.Transcription.MinPayloadBytes = d.Transcription.MinPayloadBytes
	}
	if c.Notes.RecentPageSize <= 0 {
		c.Notes.RecentPageSize = d.Notes.RecentPageSize
	}
	if c.Notes.ReconcileWindowSeconds <= 0 {
		c.Notes.ReconcileWindowSeconds = d.Notes.ReconcileWindowSeconds
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
