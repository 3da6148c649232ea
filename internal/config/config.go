package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Failure policies for media downloads.
const (
	PolicyFailFast   = "fail-fast"
	PolicyBestEffort = "best-effort"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "BLOGMIRROR_"

// Config holds all blogmirror configuration.
type Config struct {
	Crawl    CrawlConfig    `yaml:"crawl"`
	Download DownloadConfig `yaml:"download"`
	Video    VideoConfig    `yaml:"video"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type CrawlConfig struct {
	MaxPathLength  int           `yaml:"max_path_length"`
	PageRetryDelay time.Duration `yaml:"page_retry_delay"`
	RequestDelay   time.Duration `yaml:"request_delay"`
	MediaTimeout   time.Duration `yaml:"media_timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

type DownloadConfig struct {
	Policy string `yaml:"policy"`
}

type VideoConfig struct {
	Binary        string        `yaml:"binary"`
	Format        string        `yaml:"format"`
	MergeFormat   string        `yaml:"merge_format"`
	SocketTimeout time.Duration `yaml:"socket_timeout"`
}

type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file at path and merges it over the defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Resolve builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then a .env file in the working
// directory, then BLOGMIRROR_* environment variables. The result is validated.
func Resolve(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		if cfg, err = Load(expanded); err != nil {
			return nil, err
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv exports the variables of a dotenv file. Variables already set in
// the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// ApplyEnv overrides cfg fields from BLOGMIRROR_* variables. Values that do
// not parse leave the field untouched.
func ApplyEnv(cfg *Config) {
	cfg.Crawl.MaxPathLength = getEnvInt("MAX_PATH_LENGTH", cfg.Crawl.MaxPathLength)
	cfg.Crawl.PageRetryDelay = getEnvDuration("PAGE_RETRY_DELAY", cfg.Crawl.PageRetryDelay)
	cfg.Crawl.RequestDelay = getEnvDuration("REQUEST_DELAY", cfg.Crawl.RequestDelay)
	cfg.Crawl.MediaTimeout = getEnvDuration("MEDIA_TIMEOUT", cfg.Crawl.MediaTimeout)
	cfg.Crawl.UserAgent = getEnvString("USER_AGENT", cfg.Crawl.UserAgent)
	cfg.Download.Policy = getEnvString("POLICY", cfg.Download.Policy)
	cfg.Video.Binary = getEnvString("YTDLP", cfg.Video.Binary)
	cfg.Video.Format = getEnvString("VIDEO_FORMAT", cfg.Video.Format)
	cfg.Video.MergeFormat = getEnvString("MERGE_FORMAT", cfg.Video.MergeFormat)
	cfg.Video.SocketTimeout = getEnvDuration("SOCKET_TIMEOUT", cfg.Video.SocketTimeout)
	cfg.Ledger.Enabled = getEnvBool("LEDGER", cfg.Ledger.Enabled)
	cfg.Ledger.File = getEnvString("LEDGER_FILE", cfg.Ledger.File)
	cfg.Logging.Level = getEnvString("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnvString("LOG_FORMAT", cfg.Logging.Format)
}

// Validate rejects settings the crawler cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Download.Policy {
	case PolicyFailFast, PolicyBestEffort:
	default:
		errs = append(errs, fmt.Errorf("download.policy: unknown policy %q (use %s or %s)",
			c.Download.Policy, PolicyFailFast, PolicyBestEffort))
	}
	if c.Crawl.MaxPathLength <= 0 {
		errs = append(errs, fmt.Errorf("crawl.max_path_length must be positive, got %d", c.Crawl.MaxPathLength))
	}
	if c.Crawl.PageRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("crawl.page_retry_delay must not be negative"))
	}
	if c.Crawl.RequestDelay < 0 {
		errs = append(errs, fmt.Errorf("crawl.request_delay must not be negative"))
	}
	if c.Crawl.MediaTimeout <= 0 {
		errs = append(errs, fmt.Errorf("crawl.media_timeout must be positive"))
	}
	if strings.TrimSpace(c.Video.Binary) == "" {
		errs = append(errs, fmt.Errorf("video.binary must be set"))
	}
	if c.Ledger.Enabled && strings.TrimSpace(c.Ledger.File) == "" {
		errs = append(errs, fmt.Errorf("ledger.file must be set when the ledger is enabled"))
	}

	return errors.Join(errs...)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
