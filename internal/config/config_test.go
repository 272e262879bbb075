package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

const baseYAML = `
repository:
  owner: alice
  name: notes
api:
  access_token: ${NOTESYNC_TEST_TOKEN}
commit:
  user_name: Alice
  user_email: alice@example.com
`

const minimalYAML = baseYAML + `watcher:
  local_dirs: [/tmp/notes]
`

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv("NOTESYNC_TEST_TOKEN", "tok-123")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	require.Equal(t, "tok-123", cfg.API.AccessToken)
	require.Equal(t, "main", cfg.Repository.Branch)
	require.Equal(t, defaultAPIURL, cfg.API.URL)
	require.Equal(t, 30*time.Second, cfg.APITimeout())
	require.Equal(t, "updated notes", cfg.Commit.Message)
	require.Equal(t, 4, cfg.Sync.Workers)
	require.Equal(t, 5, cfg.Sync.MaxAttempts)
	require.Equal(t, RetryBackoffExponential, cfg.Sync.RetryBackoff)
	require.Equal(t, "1h", cfg.Sync.RateLimitMaxWait)
	require.Equal(t, 500*time.Millisecond, cfg.DebounceWindow())
	require.Zero(t, cfg.ResyncEvery())
	require.True(t, cfg.WatcherEnabled())
	require.Equal(t, LogLevelInfo, cfg.Logging.Level)
	require.Equal(t, LogFormatText, cfg.Logging.Format)
	require.Equal(t, "notesync.publish", cfg.Notify.Subject)
}

func TestParseNormalizesEnums(t *testing.T) {
	t.Setenv("NOTESYNC_TEST_TOKEN", "tok")
	data := minimalYAML + `
sync:
  retry_backoff: LINEAR
logging:
  level: WARNING
  format: Json
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)
	require.Equal(t, RetryBackoffLinear, cfg.Sync.RetryBackoff)
	require.Equal(t, LogLevelWarn, cfg.Logging.Level)
	require.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestParseValidationErrors(t *testing.T) {
	t.Setenv("NOTESYNC_TEST_TOKEN", "tok")

	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown backoff", minimalYAML + "sync:\n  retry_backoff: random\n", "sync.retry_backoff"},
		{"bad debounce", baseYAML + "watcher:\n  local_dirs: [/x]\n  debounce: soon\n", "watcher.debounce"},
		{"max below initial", minimalYAML + "sync:\n  retry_initial_delay: 10s\n  retry_max_delay: 1s\n", "sync.retry_max_delay"},
		{"bad rate limit wait", minimalYAML + "sync:\n  rate_limit_max_wait: -5m\n", "sync.rate_limit_max_wait"},
		{"bad ignore glob", baseYAML + "watcher:\n  local_dirs: [/x]\n  ignore: ['[']\n", "watcher.ignore"},
		{"missing local dirs", baseYAML, "watcher.local_dirs"},
		{"owner in name", strings.Replace(minimalYAML, "name: notes", "name: alice/notes", 1), "repository.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
			ce, ok := ferrors.AsClassified(err)
			require.True(t, ok)
			field, _ := ce.Context().GetString("field")
			require.Equal(t, tt.field, field)
		})
	}
}

func TestParseRequiresToken(t *testing.T) {
	t.Setenv("NOTESYNC_TEST_TOKEN", "")
	_, err := Parse([]byte(minimalYAML))
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestInitWritesLoadableConfig(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "notesync.yaml")

	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.API.AccessToken)
	require.True(t, cfg.Watcher.EnumerateOnStartup)

	err = Init(path, false)
	require.Error(t, err)
	require.NoError(t, Init(path, true))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
