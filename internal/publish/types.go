package publish

import (
	"context"
	"time"

	"git.home.luguber.info/inful/notesync/internal/gitdata"
)

// Task is one request to land the current content of a local file at a remote path.
type Task struct {
	ID              string
	RemotePath      string
	SourceLocalPath string
	EnqueuedAt      time.Time
	Attempt         int // number of times the queue has handed this path to a worker
}

// Result describes a successful publish.
type Result struct {
	CommitSHA string
	BlobSHA   string
	Attempts  int
	Skipped   bool // content matched the last published blob; no remote calls were made
}

// ObjectClient is the subset of the Git Data API the pipeline sequences.
type ObjectClient interface {
	ReadRef(ctx context.Context, owner, repo, branch string) (string, error)
	ReadCommit(ctx context.Context, owner, repo, sha string) (gitdata.CommitInfo, error)
	CreateBlob(ctx context.Context, owner, repo, content string, encoding gitdata.Encoding) (string, error)
	CreateTree(ctx context.Context, owner, repo, baseTreeSHA string, entries []gitdata.TreeEntry) (string, error)
	CreateCommit(ctx context.Context, owner, repo, message string, author gitdata.Author, parents []string, treeSHA string) (string, error)
	UpdateRef(ctx context.Context, owner, repo, branch, newSHA, expectedSHA string) error
}

// IdentitySource yields the authenticated actor.
type IdentitySource interface {
	Get(ctx context.Context) (gitdata.Identity, error)
}

// History reports the blob most recently published to a remote path.
type History interface {
	LastPublishedBlob(ctx context.Context, remotePath string) (string, bool, error)
}

// Repository addresses the branch being written.
type Repository struct {
	Owner  string // empty means the authenticated login
	Name   string
	Branch string
}

// Committer is the author recorded on every commit.
type Committer struct {
	Name  string
	Email string
}
