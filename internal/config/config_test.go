package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/blogmirror/internal/fetch"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 200, cfg.Crawl.MaxPathLength)
	assert.Equal(t, 5*time.Second, cfg.Crawl.PageRetryDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Crawl.RequestDelay)
	assert.Equal(t, 10*time.Second, cfg.Crawl.MediaTimeout)
	assert.Equal(t, fetch.DefaultUserAgent, cfg.Crawl.UserAgent)
	assert.Equal(t, PolicyFailFast, cfg.Download.Policy)
	assert.Equal(t, "yt-dlp", cfg.Video.Binary)
	assert.Equal(t, "bestvideo+bestaudio/best", cfg.Video.Format)
	assert.Equal(t, "mp4", cfg.Video.MergeFormat)
	assert.Equal(t, 10*time.Second, cfg.Video.SocketTimeout)
	assert.True(t, cfg.Ledger.Enabled)
	assert.Equal(t, ".blogmirror.db", cfg.Ledger.File)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
crawl:
  max_path_length: 120
  request_delay: 250ms
download:
  policy: best-effort
ledger:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Crawl.MaxPathLength)
	assert.Equal(t, 250*time.Millisecond, cfg.Crawl.RequestDelay)
	assert.Equal(t, PolicyBestEffort, cfg.Download.Policy)
	assert.False(t, cfg.Ledger.Enabled)

	// untouched keys keep defaults
	assert.Equal(t, 5*time.Second, cfg.Crawl.PageRetryDelay)
	assert.Equal(t, "yt-dlp", cfg.Video.Binary)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("BLOGMIRROR_MAX_PATH_LENGTH", "80")
	t.Setenv("BLOGMIRROR_POLICY", PolicyBestEffort)
	t.Setenv("BLOGMIRROR_MEDIA_TIMEOUT", "3s")
	t.Setenv("BLOGMIRROR_LEDGER", "false")
	t.Setenv("BLOGMIRROR_USER_AGENT", "random")
	t.Setenv("BLOGMIRROR_REQUEST_DELAY", "not-a-duration")

	cfg := DefaultConfig()
	ApplyEnv(cfg)

	assert.Equal(t, 80, cfg.Crawl.MaxPathLength)
	assert.Equal(t, PolicyBestEffort, cfg.Download.Policy)
	assert.Equal(t, 3*time.Second, cfg.Crawl.MediaTimeout)
	assert.False(t, cfg.Ledger.Enabled)
	assert.Equal(t, "random", cfg.Crawl.UserAgent)
	assert.Equal(t, 100*time.Millisecond, cfg.Crawl.RequestDelay, "unparsable value keeps the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown policy", func(c *Config) { c.Download.Policy = "yolo" }},
		{"zero path length", func(c *Config) { c.Crawl.MaxPathLength = 0 }},
		{"negative retry delay", func(c *Config) { c.Crawl.PageRetryDelay = -time.Second }},
		{"zero media timeout", func(c *Config) { c.Crawl.MediaTimeout = 0 }},
		{"empty video binary", func(c *Config) { c.Video.Binary = " " }},
		{"ledger without file", func(c *Config) { c.Ledger.File = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Ledger.Enabled = false
	cfg.Ledger.File = ""
	assert.NoError(t, cfg.Validate(), "file is irrelevant when the ledger is off")
}

func TestResolve_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BLOGMIRROR_LOG_LEVEL=debug\n"), 0644))
	t.Setenv("BLOGMIRROR_LOG_LEVEL", "")
	os.Unsetenv("BLOGMIRROR_LOG_LEVEL")

	cfg, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestResolve_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  policy: best-effort\n"), 0644))
	t.Setenv("BLOGMIRROR_POLICY", PolicyFailFast)

	cfg, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyFailFast, cfg.Download.Policy)
}

func TestResolve_Invalid(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("BLOGMIRROR_POLICY", "sometimes")

	_, err := Resolve("")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test,
// restoring the previous one on cleanup (equivalent of testing.T.Chdir).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
