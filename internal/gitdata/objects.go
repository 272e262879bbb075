package gitdata

import (
	"context"
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

// ResolveIdentity returns the login behind the access token.
func (c *Client) ResolveIdentity(ctx context.Context) (Identity, error) {
	var id Identity
	if err := c.call(ctx, "resolve_identity", http.MethodGet, "user", nil, &id); err != nil {
		return Identity{}, err
	}
	if id.Login == "" {
		return Identity{}, ferrors.AuthError("identity response carried no login").Build()
	}
	return id, nil
}

// ReadRef returns the commit SHA a branch currently points at.
func (c *Client) ReadRef(ctx context.Context, owner, repo, branch string) (string, error) {
	var ref refResponse
	if err := c.call(ctx, "read_ref", http.MethodGet, repoPath(owner, repo, "ref", "heads", branch), nil, &ref); err != nil {
		return "", err
	}
	return ref.Object.SHA, nil
}

// ReadCommit returns the tree and parents of a commit.
func (c *Client) ReadCommit(ctx context.Context, owner, repo, sha string) (CommitInfo, error) {
	var commit commitResponse
	if err := c.call(ctx, "read_commit", http.MethodGet, repoPath(owner, repo, "commits", sha), nil, &commit); err != nil {
		return CommitInfo{}, err
	}
	info := CommitInfo{SHA: commit.SHA, TreeSHA: commit.Tree.SHA, Message: commit.Message}
	for _, p := range commit.Parents {
		info.ParentSHAs = append(info.ParentSHAs, p.SHA)
	}
	return info, nil
}

// CreateBlob stores content and returns its SHA. Identical content yields the same SHA.
func (c *Client) CreateBlob(ctx context.Context, owner, repo, content string, encoding Encoding) (string, error) {
	var out shaResponse
	req := createBlobRequest{Content: content, Encoding: encoding}
	if err := c.call(ctx, "create_blob", http.MethodPost, repoPath(owner, repo, "blobs"), req, &out); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// CreateTree creates a tree layered on baseTreeSHA with entries added or replaced.
func (c *Client) CreateTree(ctx context.Context, owner, repo, baseTreeSHA string, entries []TreeEntry) (string, error) {
	var out shaResponse
	req := createTreeRequest{BaseTree: baseTreeSHA, Tree: entries}
	if err := c.call(ctx, "create_tree", http.MethodPost, repoPath(owner, repo, "trees"), req, &out); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// CreateCommit creates a commit object; it does not move any branch.
func (c *Client) CreateCommit(ctx context.Context, owner, repo, message string, author Author, parents []string, treeSHA string) (string, error) {
	if parents == nil {
		parents = []string{}
	}
	var out shaResponse
	req := createCommitRequest{
		Message: message,
		Author: commitAuthor{
			Name:  author.Name,
			Email: author.Email,
			Date:  author.Date.UTC().Format(time.RFC3339),
		},
		Parents: parents,
		Tree:    treeSHA,
	}
	if err := c.call(ctx, "create_commit", http.MethodPost, repoPath(owner, repo, "commits"), req, &out); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// UpdateRef moves branch to newSHA only if it still points at expectedSHA.
// The ref is re-read immediately before the update because the API's
// non-forced update only guards fast-forward, not the exact previous value.
// The update is never forced.
func (c *Client) UpdateRef(ctx context.Context, owner, repo, branch, newSHA, expectedSHA string) error {
	current, err := c.ReadRef(ctx, owner, repo, branch)
	if err != nil {
		return err
	}
	if current != expectedSHA {
		return ferrors.ConflictError("branch moved since it was read").
			WithContext("branch", branch).
			WithContext("expected_sha", expectedSHA).
			WithContext("actual_sha", current).
			Build()
	}

	req := updateRefRequest{SHA: newSHA, Force: false}
	err = c.call(ctx, "update_ref", http.MethodPatch, repoPath(owner, repo, "refs", "heads", branch), req, nil)
	if err == nil {
		return nil
	}
	if ce, ok := ferrors.AsClassified(err); ok && ce.IsCategory(ferrors.CategoryValidation) {
		status, _ := ce.Context().Get("status")
		if status == http.StatusConflict || status == http.StatusUnprocessableEntity {
			return ferrors.WrapError(err, ferrors.CategoryConflict, "branch update rejected as non-fast-forward").
				Warning().
				WithRetry(ferrors.RetryFreshRead).
				WithContext("branch", branch).
				WithContext("expected_sha", expectedSHA).
				Build()
		}
	}
	return err
}
