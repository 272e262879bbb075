package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/notesync/internal/config"
	"git.home.luguber.info/inful/notesync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/testutil"
)

func testConfig(t *testing.T, apiURL, notesDir string, extra string) *config.Config {
	t.Helper()
	yaml := fmt.Sprintf(`
repository:
  owner: alice
  name: notes
  base_dir: vault
api:
  url: %s
  access_token: tok
  requests_per_second: 0
commit:
  user_name: Alice
  user_email: alice@example.com
watcher:
  local_dirs: [%s]
  debounce: 50ms
  ignore: [".git", "*.swp"]
sync:
  workers: 2
  max_attempts: 3
  retry_initial_delay: 10ms
  retry_max_delay: 50ms
state:
  path: %s
%s`, apiURL, notesDir, filepath.Join(t.TempDir(), "events.db"), extra)
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func TestDaemonPushPublishesAndRecordsHistory(t *testing.T) {
	gh := testutil.NewFakeRemote(t, "alice", "notes")
	notes := t.TempDir()
	cfg := testConfig(t, gh.URL, notes, "")

	d, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	note := testutil.WriteNote(t, notes, "daily/today.md", "# today\n")

	res, err := d.Push(t.Context(), note, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.CommitSHA)
	assert.Equal(t, 1, res.Attempts)
	assert.True(t, gh.Published("vault/daily/today.md"))

	events, err := d.History(t.Context(), "vault/daily/today.md", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventstore.TypePublishSucceeded, events[0].Type())
	assert.Equal(t, res.BlobSHA, events[0].BlobSHA())
}

func TestDaemonPushExplicitRemotePath(t *testing.T) {
	gh := testutil.NewFakeRemote(t, "alice", "notes")
	cfg := testConfig(t, gh.URL, t.TempDir(), "")

	d, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	outside := testutil.WriteNote(t, t.TempDir(), "loose.md", "x")

	_, err = d.Push(t.Context(), outside, "")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = d.Push(t.Context(), outside, "inbox/loose.md")
	require.NoError(t, err)
	assert.True(t, gh.Published("inbox/loose.md"))
}

func TestDaemonPushRecordsFailure(t *testing.T) {
	gh := testutil.NewFakeRemote(t, "alice", "notes")
	gh.DenyAuth(true)
	notes := t.TempDir()
	cfg := testConfig(t, gh.URL, notes, "")

	d, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	note := testutil.WriteNote(t, notes, "a.md", "a")

	_, err = d.Push(t.Context(), note, "")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryAuth))

	events, err := d.History(t.Context(), "vault/a.md", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventstore.TypePublishFailed, events[0].Type())
}

func TestDaemonStartEnumeratesAndWatches(t *testing.T) {
	gh := testutil.NewFakeRemote(t, "alice", "notes")
	notes := testutil.SetupNotesVault(t)
	testutil.WriteNote(t, notes, "existing.md", "old")

	cfg := testConfig(t, gh.URL, notes, `metrics:
  listen_addr: 127.0.0.1:0
`)
	cfg.Watcher.EnumerateOnStartup = true

	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start(t.Context()))
	assert.Equal(t, StatusRunning, d.GetStatus())

	require.Eventually(t, func() bool { return gh.Published("vault/existing.md") },
		5*time.Second, 20*time.Millisecond)

	testutil.WriteNote(t, notes, "sub/new.md", "fresh")
	require.Eventually(t, func() bool { return gh.Published("vault/sub/new.md") },
		5*time.Second, 20*time.Millisecond)
	assert.False(t, gh.Published("vault/.git/HEAD"))

	resp, err := http.Get("http://" + d.httpServer.Addr() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "notesync_")

	resp, err = http.Get("http://" + d.httpServer.Addr() + "/healthz")
	require.NoError(t, err)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Equal(t, HealthStatusHealthy, health.Status)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(stopCtx))
	assert.Equal(t, StatusStopped, d.GetStatus())

	snap := d.StatusSnapshot()
	assert.Equal(t, StatusStopped, snap.Status)
	require.NoError(t, d.Stop(stopCtx), "stopping twice is a no-op")
}

func TestDaemonStartTwiceFails(t *testing.T) {
	gh := testutil.NewFakeRemote(t, "alice", "notes")
	cfg := testConfig(t, gh.URL, t.TempDir(), "")
	disabled := false
	cfg.Watcher.Enabled = &disabled

	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start(t.Context()))
	err = d.Start(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryDaemon))

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(stopCtx))
}
