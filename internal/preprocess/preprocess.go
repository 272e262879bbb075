// Package preprocess turns a local file into blob content ready for upload.
package preprocess

import (
	"context"
	"encoding/base64"
	"os"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/gitdata"
)

// Content is the upload payload for one file.
type Content struct {
	Data     string
	Encoding gitdata.Encoding
	Raw      []byte // original bytes, used for local blob hashing
}

// Preprocessor prepares the content of a local file for publishing.
type Preprocessor interface {
	Prepare(ctx context.Context, localPath string) (Content, error)
}

// Base64 reads the file verbatim and base64-encodes it, so binary files survive
// the JSON transport unchanged.
type Base64 struct{}

// Prepare implements Preprocessor.
func (Base64) Prepare(ctx context.Context, localPath string) (Content, error) {
	if err := ctx.Err(); err != nil {
		return Content{}, err
	}
	raw, err := os.ReadFile(localPath)
	if err != nil {
		b := ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read local file").
			WithContext("path", localPath)
		if os.IsNotExist(err) {
			b = b.Warning()
		}
		return Content{}, b.Build()
	}
	return Content{
		Data:     base64.StdEncoding.EncodeToString(raw),
		Encoding: gitdata.EncodingBase64,
		Raw:      raw,
	}, nil
}
