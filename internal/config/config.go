package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/viper"
)

// AppName names the per-user data directory
const AppName = "RemakeSoF"

// Config represents the entire launcher configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Launcher    LauncherConfig    `mapstructure:"launcher"`
	Download    DownloadConfig    `mapstructure:"download"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`

	v    *viper.Viper
	path string
}

// ServerConfig contains launcher backend settings
type ServerConfig struct {
	URL               string  `mapstructure:"url"`
	Timeout           string  `mapstructure:"timeout"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	UserAgent         string  `mapstructure:"user_agent"`
}

// LauncherConfig contains the user-facing launcher settings
type LauncherConfig struct {
	InstallPath string `mapstructure:"install_path"`
	DataDir     string `mapstructure:"data_dir"`
	AutoUpdate  bool   `mapstructure:"auto_update"`
	RememberMe  bool   `mapstructure:"remember_me"`
	Language    string `mapstructure:"language"`
}

// DownloadConfig contains transfer and installer settings
type DownloadConfig struct {
	ChunkSizeKB         int    `mapstructure:"chunk_size_kb"`
	RateLimitKBps       int    `mapstructure:"rate_limit_kbps"` // 0 = unlimited
	RateWindow          string `mapstructure:"rate_window"`
	MaxAttempts         int    `mapstructure:"max_attempts"`
	ProgressInterval    string `mapstructure:"progress_interval"`
	ClaimTimeout        string `mapstructure:"claim_timeout"`
	ReserveMB           int    `mapstructure:"reserve_mb"`
	MaxDiskUsagePercent int    `mapstructure:"max_disk_usage_percent"` // 0 = no ceiling
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MaintenanceConfig contains sweep settings
type MaintenanceConfig struct {
	Interval        string `mapstructure:"interval"`
	StaleJobTimeout string `mapstructure:"stale_job_timeout"`
	FailedJobMaxAge string `mapstructure:"failed_job_max_age"`
	PartFileMaxAge  string `mapstructure:"part_file_max_age"`
}

// settableKeys are the keys `settings set` may change
var settableKeys = map[string]bool{
	"server.url":                      true,
	"launcher.install_path":           true,
	"launcher.auto_update":            true,
	"launcher.remember_me":            true,
	"launcher.language":               true,
	"download.rate_limit_kbps":        true,
	"download.max_attempts":           true,
	"download.max_disk_usage_percent": true,
	"logging.level":                   true,
}

// SettableKeys returns the keys accepted by Set, sorted
func SettableKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultPath returns the default config file location
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "launcher.yaml")
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, AppName)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server.url", "http://localhost:8000")
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("server.requests_per_second", 5)
	v.SetDefault("server.user_agent", "RemakeSoF-Launcher")
	v.SetDefault("launcher.install_path", "")
	v.SetDefault("launcher.data_dir", "")
	v.SetDefault("launcher.auto_update", true)
	v.SetDefault("launcher.remember_me", false)
	v.SetDefault("launcher.language", "en")
	v.SetDefault("download.chunk_size_kb", 32)
	v.SetDefault("download.rate_limit_kbps", 0)
	v.SetDefault("download.rate_window", "500ms")
	v.SetDefault("download.max_attempts", 5)
	v.SetDefault("download.progress_interval", "2s")
	v.SetDefault("download.claim_timeout", "2m")
	v.SetDefault("download.reserve_mb", 512)
	v.SetDefault("download.max_disk_usage_percent", 0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.path", "")
	v.SetDefault("maintenance.interval", "10m")
	v.SetDefault("maintenance.stale_job_timeout", "30m")
	v.SetDefault("maintenance.failed_job_max_age", "168h")
	v.SetDefault("maintenance.part_file_max_age", "168h")
	return v
}

// Load loads configuration from the specified file path. A missing file is
// not an error: the defaults are used and Save creates it.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath()
	}

	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{v: v, path: configPath}
	if err := config.decode(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) decode() error {
	if err := c.v.Unmarshal(c); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Path returns the file the configuration was loaded from
func (c *Config) Path() string {
	return c.path
}

// Set changes one settable key. The new value is validated before it is
// applied; an invalid value leaves the configuration unchanged.
func (c *Config) Set(key, value string) error {
	if !settableKeys[key] {
		return fmt.Errorf("unknown setting %q", key)
	}

	prev := c.v.Get(key)
	c.v.Set(key, value)
	if err := c.decode(); err != nil {
		c.v.Set(key, prev)
		if rerr := c.decode(); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// Get returns the current value of a key
func (c *Config) Get(key string) any {
	return c.v.Get(key)
}

// Save writes the configuration to its file, creating the directory
func (c *Config) Save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := c.v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.url must be an absolute http(s) url: %q", c.Server.URL)
	}
	if c.Server.RequestsPerSecond < 0 {
		return fmt.Errorf("server.requests_per_second must not be negative")
	}

	if c.Download.ChunkSizeKB < 1 || c.Download.ChunkSizeKB > 4096 {
		return fmt.Errorf("download.chunk_size_kb must be between 1 and 4096")
	}
	if c.Download.RateLimitKBps < 0 {
		return fmt.Errorf("download.rate_limit_kbps must not be negative")
	}
	if c.Download.MaxAttempts < 1 || c.Download.MaxAttempts > 20 {
		return fmt.Errorf("download.max_attempts must be between 1 and 20")
	}
	if c.Download.MaxDiskUsagePercent < 0 || c.Download.MaxDiskUsagePercent > 100 {
		return fmt.Errorf("download.max_disk_usage_percent must be between 0 and 100")
	}

	durations := map[string]string{
		"server.timeout":                 c.Server.Timeout,
		"download.rate_window":           c.Download.RateWindow,
		"download.progress_interval":     c.Download.ProgressInterval,
		"download.claim_timeout":         c.Download.ClaimTimeout,
		"maintenance.interval":           c.Maintenance.Interval,
		"maintenance.stale_job_timeout":  c.Maintenance.StaleJobTimeout,
		"maintenance.failed_job_max_age": c.Maintenance.FailedJobMaxAge,
		"maintenance.part_file_max_age":  c.Maintenance.PartFileMaxAge,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	switch c.Launcher.Language {
	case "en", "es", "fr", "de", "pt", "ru":
		// Supported languages
	default:
		return fmt.Errorf("unsupported launcher.language: %s", c.Launcher.Language)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetDataDir returns the directory holding the token, database and logs
func (c *LauncherConfig) GetDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return defaultDataDir()
}

// GetInstallPath returns the game install directory
func (c *LauncherConfig) GetInstallPath() string {
	if c.InstallPath != "" {
		return c.InstallPath
	}
	return filepath.Join(c.GetDataDir(), "game")
}

// GetDatabasePath returns the journal database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Launcher.GetDataDir(), "launcher.db")
}

// GetTimeout returns the request timeout as time.Duration
func (c *ServerConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetChunkSize returns the transfer chunk size in bytes
func (c *DownloadConfig) GetChunkSize() int {
	if c.ChunkSizeKB <= 0 {
		return 32 * 1024
	}
	return c.ChunkSizeKB * 1024
}

// GetRateLimit returns the bandwidth cap in bytes per second, 0 if unlimited
func (c *DownloadConfig) GetRateLimit() int64 {
	if c.RateLimitKBps <= 0 {
		return 0
	}
	return int64(c.RateLimitKBps) * 1024
}

// GetRateWindow returns the throughput window as time.Duration
func (c *DownloadConfig) GetRateWindow() time.Duration {
	d, _ := time.ParseDuration(c.RateWindow)
	if d == 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetProgressInterval returns the journal progress interval as time.Duration
func (c *DownloadConfig) GetProgressInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressInterval)
	if d == 0 {
		return 2 * time.Second
	}
	return d
}

// GetClaimTimeout returns how long a download claim survives without
// progress before another launcher may take it over
func (c *DownloadConfig) GetClaimTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ClaimTimeout)
	if d == 0 {
		return 2 * time.Minute
	}
	return d
}

// GetReserveBytes returns the free space to keep after a download
func (c *DownloadConfig) GetReserveBytes() int64 {
	return int64(c.ReserveMB) * 1024 * 1024
}

// GetInterval returns the sweep interval as time.Duration
func (c *MaintenanceConfig) GetInterval() time.Duration {
	d, _ := time.ParseDuration(c.Interval)
	if d == 0 {
		return 10 * time.Minute
	}
	return d
}

// GetStaleJobTimeout returns the stale job timeout as time.Duration
func (c *MaintenanceConfig) GetStaleJobTimeout() time.Duration {
	d, _ := time.ParseDuration(c.StaleJobTimeout)
	if d == 0 {
		return 30 * time.Minute
	}
	return d
}

// GetFailedJobMaxAge returns how long failed jobs are kept
func (c *MaintenanceConfig) GetFailedJobMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.FailedJobMaxAge)
	if d == 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// GetPartFileMaxAge returns how long orphaned partial files are kept
func (c *MaintenanceConfig) GetPartFileMaxAge() time.Duration {
	d, _ := time.ParseDuration(c.PartFileMaxAge)
	if d == 0 {
		return 7 * 24 * time.Hour
	}
	return d
}
