package publish

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/gitdata"
	"git.home.luguber.info/inful/notesync/internal/metrics"
	"git.home.luguber.info/inful/notesync/internal/preprocess"
	"git.home.luguber.info/inful/notesync/internal/retry"
)

type call struct {
	Op   string
	Args []string
}

// fakeRemote is an in-memory branch with content-addressed blobs. Errors can
// be scripted per operation and are consumed in order.
type fakeRemote struct {
	mu      sync.Mutex
	head    string
	commits map[string]string // commit -> tree
	calls   []call
	errs    map[string][]error
	nextID  int

	// beforeUpdate runs inside UpdateRef before the compare, simulating a concurrent writer.
	beforeUpdate func(f *fakeRemote)
	// afterUpdate runs after a successful swap; a non-nil return replaces the reply.
	afterUpdate func() error
}

func newFakeRemote(head string) *fakeRemote {
	return &fakeRemote{
		head:    head,
		commits: map[string]string{head: "T-" + head},
		errs:    map[string][]error{},
	}
}

func (f *fakeRemote) fail(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], errs...)
}

func (f *fakeRemote) record(op string, args ...string) error {
	f.calls = append(f.calls, call{Op: op, Args: args})
	if q := f.errs[op]; len(q) > 0 {
		f.errs[op] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeRemote) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Op
	}
	return out
}

func (f *fakeRemote) count(op string) int {
	n := 0
	for _, o := range f.ops() {
		if o == op {
			n++
		}
	}
	return n
}

func (f *fakeRemote) callsOf(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRemote) ReadRef(_ context.Context, owner, repo, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(StepReadRef, owner, repo, branch); err != nil {
		return "", err
	}
	return f.head, nil
}

func (f *fakeRemote) ReadCommit(_ context.Context, _, _, sha string) (gitdata.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(StepReadCommit, sha); err != nil {
		return gitdata.CommitInfo{}, err
	}
	tree, ok := f.commits[sha]
	if !ok {
		return gitdata.CommitInfo{}, ferrors.NotFoundError("no such commit").Build()
	}
	return gitdata.CommitInfo{SHA: sha, TreeSHA: tree}, nil
}

func (f *fakeRemote) CreateBlob(_ context.Context, _, _, content string, encoding gitdata.Encoding) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(StepCreateBlob, string(encoding)); err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", err
	}
	return plumbing.ComputeHash(plumbing.BlobObject, raw).String(), nil
}

func (f *fakeRemote) CreateTree(_ context.Context, _, _, base string, entries []gitdata.TreeEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(StepCreateTree, base, entries[0].Path, entries[0].SHA, entries[0].Mode, entries[0].Type); err != nil {
		return "", err
	}
	f.nextID++
	return fmt.Sprintf("T%d", f.nextID), nil
}

func (f *fakeRemote) CreateCommit(_ context.Context, _, _, message string, author gitdata.Author, parents []string, tree string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	args := append([]string{message, author.Name, author.Email, tree}, parents...)
	if err := f.record(StepCreateCommit, args...); err != nil {
		return "", err
	}
	f.nextID++
	sha := fmt.Sprintf("C%d", f.nextID)
	f.commits[sha] = tree
	return sha, nil
}

func (f *fakeRemote) UpdateRef(_ context.Context, _, _, _, newSHA, expected string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(StepUpdateRef, newSHA, expected); err != nil {
		return err
	}
	if f.beforeUpdate != nil {
		hook := f.beforeUpdate
		f.beforeUpdate = nil
		hook(f)
	}
	if f.head != expected {
		return ferrors.ConflictError("branch moved since it was read").
			WithContext("expected_sha", expected).
			WithContext("actual_sha", f.head).
			Build()
	}
	f.head = newSHA
	if f.afterUpdate != nil {
		hook := f.afterUpdate
		f.afterUpdate = nil
		return hook()
	}
	return nil
}

// moveHead simulates another client committing to the branch.
func (f *fakeRemote) moveHead(sha string) {
	f.head = sha
	f.commits[sha] = "T-" + sha
}

type fixedIdentity struct {
	err   error
	calls int
}

func (f *fixedIdentity) Get(context.Context) (gitdata.Identity, error) {
	f.calls++
	if f.err != nil {
		return gitdata.Identity{}, f.err
	}
	return gitdata.Identity{Login: "alice"}, nil
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu        sync.Mutex
	conflicts int
	retries   int
	outcomes  map[metrics.OutcomeLabel]int
}

func (r *countingRecorder) IncConflict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts++
}

func (r *countingRecorder) IncRetry(string, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func (r *countingRecorder) IncPublishOutcome(o metrics.OutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[metrics.OutcomeLabel]int{}
	}
	r.outcomes[o]++
}

type mapHistory map[string]string

func (h mapHistory) LastPublishedBlob(_ context.Context, remotePath string) (string, bool, error) {
	sha, ok := h[remotePath]
	return sha, ok, nil
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	remote   *fakeRemote
	ids      *fixedIdentity
	sleeper  *recordingSleeper
	recorder *countingRecorder
	pipeline *Pipeline
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		remote:   newFakeRemote("H1"),
		ids:      &fixedIdentity{},
		sleeper:  &recordingSleeper{},
		recorder: &countingRecorder{},
	}
	opts := Options{
		Repository: Repository{Name: "notes", Branch: "main"},
		Committer:  Committer{Name: "Alice", Email: "alice@example.com"},
		Message:    "updated notes",
		Policy:     retry.NewPolicy("exponential", 10*time.Millisecond, time.Minute, 5),
		Recorder:   h.recorder,
		Clock:      func() time.Time { return fixedNow },
		Sleep:      h.sleeper.Sleep,
	}
	for _, m := range mutate {
		m(&opts)
	}
	p, err := NewPipeline(h.remote, h.ids, preprocess.Base64{}, opts)
	require.NoError(t, err)
	h.pipeline = p
	return h
}

func writeNote(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func gitBlobSHA(content string) string {
	return plumbing.ComputeHash(plumbing.BlobObject, []byte(content)).String()
}
