// Package testutil holds helpers shared by notesync tests: an in-memory Git
// Data API remote and local note trees.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeRemote is an in-memory Git Data API serving one repository and branch.
type FakeRemote struct {
	Owner  string
	Repo   string
	Branch string
	URL    string

	mu       sync.Mutex
	head     string
	trees    map[string]string // commit -> tree
	files    map[string]string // remote path -> blob sha
	next     int
	patches  int
	denyAuth bool
}

// NewFakeRemote starts a server for owner/repo on branch "main". It is closed
// when the test ends.
func NewFakeRemote(t *testing.T, owner, repo string) *FakeRemote {
	t.Helper()
	f := &FakeRemote{
		Owner:  owner,
		Repo:   repo,
		Branch: "main",
		head:   "c0",
		trees:  map[string]string{"c0": "t0"},
		files:  map[string]string{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	f.URL = srv.URL
	return f
}

// DenyAuth makes every request fail with 401 until called with false.
func (f *FakeRemote) DenyAuth(deny bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denyAuth = deny
}

// Published reports whether any tree written so far contained remotePath.
func (f *FakeRemote) Published(remotePath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[remotePath]
	return ok
}

// RefUpdates returns how many times the branch was moved.
func (f *FakeRemote) RefUpdates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches
}

// Head returns the current branch head.
func (f *FakeRemote) Head() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head
}

func (f *FakeRemote) id(prefix string) string {
	f.next++
	return fmt.Sprintf("%s%d", prefix, f.next)
}

func (f *FakeRemote) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.denyAuth {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Bad credentials"}`)
		return
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	reply := func(v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	prefix := "/repos/" + f.Owner + "/" + f.Repo + "/git/"
	p := strings.TrimPrefix(r.URL.Path, prefix)

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/user":
		reply(map[string]string{"login": f.Owner, "name": f.Owner})
	case r.Method == http.MethodGet && p == "ref/heads/"+f.Branch:
		reply(map[string]any{"ref": "refs/heads/" + f.Branch, "object": map[string]string{"sha": f.head, "type": "commit"}})
	case r.Method == http.MethodGet && strings.HasPrefix(p, "commits/"):
		sha := strings.TrimPrefix(p, "commits/")
		tree, ok := f.trees[sha]
		if !ok {
			notFound(w)
			return
		}
		reply(map[string]any{"sha": sha, "tree": map[string]string{"sha": tree}})
	case r.Method == http.MethodPost && p == "blobs":
		reply(map[string]string{"sha": f.id("b")})
	case r.Method == http.MethodPost && p == "trees":
		entries, _ := body["tree"].([]any)
		for _, e := range entries {
			entry, _ := e.(map[string]any)
			path, _ := entry["path"].(string)
			sha, _ := entry["sha"].(string)
			f.files[path] = sha
		}
		reply(map[string]string{"sha": f.id("t")})
	case r.Method == http.MethodPost && p == "commits":
		sha := f.id("c")
		f.trees[sha], _ = body["tree"].(string)
		reply(map[string]string{"sha": sha})
	case r.Method == http.MethodPatch && p == "refs/heads/"+f.Branch:
		f.patches++
		f.head, _ = body["sha"].(string)
		reply(map[string]any{"object": map[string]string{"sha": f.head}})
	default:
		notFound(w)
	}
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, `{"message":"Not Found"}`)
}
