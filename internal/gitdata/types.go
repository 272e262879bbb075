package gitdata

import "time"

// Encoding is the transfer encoding of blob content on the wire.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingBase64 Encoding = "base64"
)

// Tree entry constants; notesync only ever writes regular files.
const (
	ModeFile = "100644"
	TypeBlob = "blob"
)

// Identity is the authenticated actor behind the access token.
type Identity struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Author identifies who wrote a commit and when.
type Author struct {
	Name  string
	Email string
	Date  time.Time
}

// TreeEntry is one path placed into a new tree.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// FileEntry returns a regular-file blob entry for path.
func FileEntry(path, blobSHA string) TreeEntry {
	return TreeEntry{Path: path, Mode: ModeFile, Type: TypeBlob, SHA: blobSHA}
}

// CommitInfo is the subset of a commit object the publish pipeline reads.
type CommitInfo struct {
	SHA        string
	TreeSHA    string
	Message    string
	ParentSHAs []string
}

// Wire payloads.

type shaResponse struct {
	SHA string `json:"sha"`
}

type refResponse struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA  string `json:"sha"`
		Type string `json:"type"`
	} `json:"object"`
}

type commitResponse struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	Tree    struct {
		SHA string `json:"sha"`
	} `json:"tree"`
	Parents []struct {
		SHA string `json:"sha"`
	} `json:"parents"`
}

type createBlobRequest struct {
	Content  string   `json:"content"`
	Encoding Encoding `json:"encoding"`
}

type createTreeRequest struct {
	BaseTree string      `json:"base_tree,omitempty"`
	Tree     []TreeEntry `json:"tree"`
}

type commitAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Date  string `json:"date"`
}

type createCommitRequest struct {
	Message string       `json:"message"`
	Author  commitAuthor `json:"author"`
	Parents []string     `json:"parents"`
	Tree    string       `json:"tree"`
}

type updateRefRequest struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

type apiErrorBody struct {
	Message string `json:"message"`
}
