package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/Drop-OSS/droplet/pkg/droplet/units"
)

// EnvPrefix prefixes environment overrides, e.g. DROPLET_CHUNK_SIZE.
const EnvPrefix = "DROPLET"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// OutputConfig selects how manifests are written.
type OutputConfig struct {
	Format      string `mapstructure:"format"`
	Compression string `mapstructure:"compression"`
}

// SevenZipConfig locates the archive tool.
type SevenZipConfig struct {
	Binary string `mapstructure:"binary"`
}

// CacheConfig configures the archive listing cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// HistoryConfig configures generation history.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	ChunkSize  string         `mapstructure:"chunk_size"`
	Tolerance  string         `mapstructure:"tolerance"`
	ReadBuffer string         `mapstructure:"read_buffer"`
	Digest     string         `mapstructure:"digest"`
	Output     OutputConfig   `mapstructure:"output"`
	SevenZip   SevenZipConfig `mapstructure:"seven_zip"`
	Cache      CacheConfig    `mapstructure:"cache"`
	History    HistoryConfig  `mapstructure:"history"`
	Logging    LoggingConfig  `mapstructure:"logging"`
}

// Sizes holds the parsed byte sizes of a Config.
type Sizes struct {
	ChunkSize  uint64
	Tolerance  uint64
	ReadBuffer uint64
}

// Sizes parses the size strings of the configuration.
func (c *Config) Sizes() (Sizes, error) {
	var s Sizes
	var err error

	if s.ChunkSize, err = units.ParseSize(c.ChunkSize); err != nil {
		return Sizes{}, fmt.Errorf("chunk_size: %w", err)
	}
	if s.Tolerance, err = units.ParseSize(c.Tolerance); err != nil {
		return Sizes{}, fmt.Errorf("tolerance: %w", err)
	}
	if s.ReadBuffer, err = units.ParseSize(c.ReadBuffer); err != nil {
		return Sizes{}, fmt.Errorf("read_buffer: %w", err)
	}
	return s, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("tolerance", DefaultTolerance)
	v.SetDefault("read_buffer", DefaultReadBuffer)
	v.SetDefault("digest", DefaultDigest)
	v.SetDefault("output.format", DefaultFormat)
	v.SetDefault("output.compression", DefaultCompression)
	v.SetDefault("seven_zip.binary", DefaultSevenZip)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "") // Empty means CacheDir()
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means HistoryDir()
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means logging.DefaultLogPath()
	v.SetDefault("logging.rotation.max_size", "10MiB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponentLevels)
}

// Configure points v at the config file and environment. An empty
// cfgFile searches $XDG_CONFIG_HOME/droplet and ~/.config/droplet.
func Configure(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "droplet"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "droplet"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
}

// Read loads the config file into v. A missing file is not an error.
func Read(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// FromViper unmarshals v and expands ~ in paths.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Cache.Path, &cfg.History.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	return &cfg, nil
}

// Load reads configuration from cfgFile (or the default locations) and
// the environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	Configure(v, cfgFile)
	if err := Read(v); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "droplet"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "droplet"), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DataDir returns $XDG_DATA_HOME/droplet.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "droplet")
}

// StateDir returns $XDG_STATE_HOME/droplet for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "droplet")
}

// CacheDir returns $XDG_CACHE_HOME/droplet, home of the listing cache.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "droplet")
}

// HistoryDir returns the default generation history directory.
func HistoryDir() string {
	return filepath.Join(DataDir(), "history")
}

// CachePath returns the configured cache directory or the default.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return CacheDir()
}

// HistoryPath returns the configured history directory or the default.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return HistoryDir()
}

// WriteDefault writes a default config file if none exists and returns
// its path.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# droplet configuration

# Target chunk payload and how far a chunk may overshoot to keep a file whole
chunk_size: %s
tolerance: %s

# Buffer used for each read while hashing
read_buffer: %s

# Chunk digest: sha256 or blake3
digest: %s

output:
  # json, yaml, cbor or pretty
  format: %s
  # none, zstd or lz4
  compression: %s

seven_zip:
  binary: %s

# Cache of archive listings (empty path means $XDG_CACHE_HOME/droplet)
cache:
  enabled: true
  path: ""

# Record of generated manifests (empty path means $XDG_DATA_HOME/droplet/history)
history:
  enabled: true
  path: ""
  retention_days: %d

logging:
  # debug, info, warn, error
  level: info
  # Empty means $XDG_STATE_HOME/droplet/droplet.log
  path: ""
  rotation:
    max_size: 10MiB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    generator: info
    source: info
    cache: warn
    history: info
    cli: info
`, DefaultChunkSize, DefaultTolerance, DefaultReadBuffer, DefaultDigest,
		DefaultFormat, DefaultCompression, DefaultSevenZip, DefaultRetentionDays)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}
	return configPath, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}
