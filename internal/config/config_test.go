package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// unsetAll clears the config variables for the test and restores them after.
func unsetAll(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvRemoteURL, EnvTimeout, EnvPollInterval, EnvDB, EnvPushgateway} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, Config{
		RemoteURL:    DefaultRemoteURL,
		PollInterval: DefaultPollInterval,
		DB:           DefaultDB,
	}, cfg)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		EnvRemoteURL:    "https://viewser.example.org",
		EnvTimeout:      "90s",
		EnvPollInterval: "500ms",
		EnvDB:           "/var/lib/bench.db",
		EnvPushgateway:  "http://pushgateway:9091",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://viewser.example.org", cfg.RemoteURL)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "/var/lib/bench.db", cfg.DB)
	assert.Equal(t, "http://pushgateway:9091", cfg.Pushgateway)
}

func TestFromEnv_BadDuration(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unparseable timeout", EnvTimeout, "soon"},
		{"negative poll interval", EnvPollInterval, "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(env(map[string]string{tt.key: tt.value}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	unsetAll(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VIEWSER_REMOTE_URL=http://from-file:4000\nBENCHMARK_DB=file.db\n"), 0o644))
	t.Setenv(EnvDB, "env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:4000", cfg.RemoteURL)
	assert.Equal(t, "env.db", cfg.DB, "environment wins over the file")
}

func TestLoad_MissingFile(t *testing.T) {
	unsetAll(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRemoteURL, cfg.RemoteURL)
}
