// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pms/internal/secrets"
	"github.com/pdiddy/pms/pkg/types"
)

func load(t *testing.T, opts Options) *Manager {
	t.Helper()
	if opts.Home == "" {
		opts.Home = t.TempDir()
	}
	m, err := Load(opts)
	require.NoError(t, err)
	return m
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	m := load(t, Options{Home: home})

	cfg, err := m.Config()
	require.NoError(t, err)

	assert.Equal(t, "pms", cfg.API.Tool)
	assert.Empty(t, cfg.API.Email)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.API.RetryDelay)
	assert.Equal(t, 3.0, cfg.API.RequestsPerSecond)
	assert.Equal(t, 10.0, cfg.API.RequestsPerSecondWithKey)
	assert.Equal(t, types.ResponseJSON, cfg.API.ResponseMode)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, filepath.Join(home, ".local", "share", "pms", "pms.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, filepath.Join(home, ".local", "share", "pms", "data"), cfg.Storage.DataDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, DefaultPath(home), m.Path())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "custom.yaml")
	content := `api:
  email: me@example.org
  retry_delay: 2
  response_mode: xml
storage:
  data_dir: ~/pubmed
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := load(t, Options{Home: home, File: path}).Config()
	require.NoError(t, err)
	assert.Equal(t, "me@example.org", cfg.API.Email)
	assert.Equal(t, 2*time.Second, cfg.API.RetryDelay)
	assert.Equal(t, types.ResponseXML, cfg.API.ResponseMode)
	assert.Equal(t, filepath.Join(home, "pubmed"), cfg.Storage.DataDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  tool: from-file\n"), 0o644))
	t.Setenv("PMS_API_TOOL", "from-env")
	t.Setenv("PMS_API_RETRY_DELAY", "1500ms")

	cfg, err := load(t, Options{Home: home, File: path}).Config()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.API.Tool)
	assert.Equal(t, 1500*time.Millisecond, cfg.API.RetryDelay)
}

func TestLoad_DotEnv(t *testing.T) {
	home := t.TempDir()
	envFile := filepath.Join(home, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PMS_API_EMAIL=dotenv@example.org\n"), 0o644))
	// t.Setenv restores the variable godotenv sets.
	t.Setenv("PMS_API_EMAIL", "")
	require.NoError(t, os.Unsetenv("PMS_API_EMAIL"))

	cfg, err := load(t, Options{Home: home, EnvFile: envFile}).Config()
	require.NoError(t, err)
	assert.Equal(t, "dotenv@example.org", cfg.API.Email)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	home := t.TempDir()
	_, err := Load(Options{Home: home, EnvFile: filepath.Join(home, ".env")})
	assert.NoError(t, err)
}

func TestLoad_SecretsAreFallbacks(t *testing.T) {
	home := t.TempDir()
	set := secrets.Set{secrets.KeyAPIKey: "secret-key", secrets.KeyEmail: "secret@example.org"}

	cfg, err := load(t, Options{Home: home, Secrets: set}).Config()
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.API.APIKey)
	assert.Equal(t, "secret@example.org", cfg.API.Email)
	assert.Equal(t, 10.0, cfg.API.EffectiveRate())

	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  email: file@example.org\n"), 0o644))
	cfg, err = load(t, Options{Home: home, File: path, Secrets: set}).Config()
	require.NoError(t, err)
	assert.Equal(t, "file@example.org", cfg.API.Email)
}

func TestLoad_MalformedFile(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unclosed"), 0o644))

	_, err := Load(Options{Home: home, File: path})
	assert.Error(t, err)
}

func TestConfig_Invalid(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  response_mode: csv\n  max_retries: -1\n"), 0o644))

	_, err := load(t, Options{Home: home, File: path}).Config()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.response_mode")
	assert.Contains(t, err.Error(), "api.max_retries")
}

func TestConfig_ZeroRetriesRejected(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  max_retries: 0\n"), 0o644))

	_, err := load(t, Options{Home: home, File: path}).Config()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.max_retries must be at least 1")
}

func TestGet(t *testing.T) {
	m := load(t, Options{})

	v, err := m.Get("api", "tool")
	require.NoError(t, err)
	assert.Equal(t, "pms", v)

	v, err = m.Get("API", "max_retries")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = m.Get("api", "nonsense")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestSet_WritesOnlyFileValues(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "nested", "config.yaml")
	m := load(t, Options{Home: home, File: path, Secrets: secrets.Set{secrets.KeyAPIKey: "hidden"}})

	require.NoError(t, m.Set("api", "email", "me@example.org"))
	require.NoError(t, m.Set("api", "max_retries", "5"))
	require.NoError(t, m.Set("api", "retry_delay", "2"))
	require.NoError(t, m.Set("api", "requests_per_second", "2.5"))

	v, err := m.Get("api", "email")
	require.NoError(t, err)
	assert.Equal(t, "me@example.org", v)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, "me@example.org", written["api"]["email"])
	assert.Equal(t, 5, written["api"]["max_retries"])
	assert.Equal(t, "2s", written["api"]["retry_delay"])
	assert.NotContains(t, written["api"], "api_key")
	assert.NotContains(t, written, "storage")

	// A fresh load sees the saved values.
	cfg, err := load(t, Options{Home: home, File: path}).Config()
	require.NoError(t, err)
	assert.Equal(t, "me@example.org", cfg.API.Email)
	assert.Equal(t, 5, cfg.API.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.API.RetryDelay)
	assert.Equal(t, 2.5, cfg.API.RequestsPerSecond)
}

func TestSet_Errors(t *testing.T) {
	m := load(t, Options{})

	assert.ErrorIs(t, m.Set("api", "bogus", "1"), ErrUnknownKey)
	assert.Error(t, m.Set("api", "max_retries", "many"))
	assert.Error(t, m.Set("api", "requests_per_second", "fast"))
	assert.Error(t, m.Set("api", "retry_delay", "soon"))
}

func TestList(t *testing.T) {
	m := load(t, Options{})
	all := m.List()

	require.Contains(t, all, "api")
	require.Contains(t, all, "storage")
	require.Contains(t, all, "logging")
	assert.Equal(t, "pms", all["api"]["tool"])
	assert.Len(t, m.Keys(), 15)
}
