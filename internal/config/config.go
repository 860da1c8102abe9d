package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7410"
	DefaultDBFileName = ".fstash.db"
	DefaultLogLevel   = "info"

	// Matches the shipped defaults: 999 GiB per account, 29 GiB per file.
	DefaultMaxTotalBytes int64 = 999 << 30
	DefaultMaxFileBytes  int64 = 29 << 30

	configFileName  = ".fstash.toml"
	configDirEnvKey = "FSTASH_CONFIG_DIR"
)

// StorageConfig holds the quota bounds enforced on ingest.
type StorageConfig struct {
	MaxTotalBytes int64 `toml:"max_total_bytes"`
	MaxFileBytes  int64 `toml:"max_file_bytes"`
}

// Config defines runtime configuration for fstash.
type Config struct {
	APIURL   string        `toml:"api_url"`
	DBPath   string        `toml:"db_path"`
	BlobDir  string        `toml:"blob_dir"`
	LogLevel string        `toml:"log_level"`
	Storage  StorageConfig `toml:"storage"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		BlobDir:  "",
		LogLevel: DefaultLogLevel,
		Storage: StorageConfig{
			MaxTotalBytes: DefaultMaxTotalBytes,
			MaxFileBytes:  DefaultMaxFileBytes,
		},
	}
}

// Load reads config from the global file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := GlobalPath()
	if err == nil {
		if loadErr := loadFileIfExists(path, &cfg); loadErr != nil {
			return nil, loadErr
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	if apiURL := os.Getenv("FSTASH_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv("FSTASH_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if blobDir := os.Getenv("FSTASH_BLOB_DIR"); blobDir != "" {
		cfg.BlobDir = blobDir
	}
	if raw := strings.TrimSpace(os.Getenv("FSTASH_MAX_TOTAL_BYTES")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("FSTASH_MAX_TOTAL_BYTES must be a positive integer")
		}
		cfg.Storage.MaxTotalBytes = parsed
	}
	if raw := strings.TrimSpace(os.Getenv("FSTASH_MAX_FILE_BYTES")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("FSTASH_MAX_FILE_BYTES must be a positive integer")
		}
		cfg.Storage.MaxFileBytes = parsed
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// BlobRoot resolves the blob directory, defaulting next to the database.
func (c *Config) BlobRoot() string {
	if strings.TrimSpace(c.BlobDir) != "" {
		return c.BlobDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), ".fstash", "blobs")
}

func loadFileIfExists(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalizeDefaults() {
	if c.Storage.MaxTotalBytes <= 0 {
		c.Storage.MaxTotalBytes = DefaultMaxTotalBytes
	}
	if c.Storage.MaxFileBytes <= 0 {
		c.Storage.MaxFileBytes = DefaultMaxFileBytes
	}
	if c.Storage.MaxFileBytes > c.Storage.MaxTotalBytes {
		c.Storage.MaxFileBytes = c.Storage.MaxTotalBytes
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
}
