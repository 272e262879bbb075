package watcher

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

// Mapper turns local file paths under the watched roots into remote paths:
// base_dir joined with the path relative to its root, slash separated,
// without leading or trailing slashes.
type Mapper struct {
	roots   []string
	baseDir string
}

// NewMapper resolves roots to absolute paths. A leading "~/" expands to the home directory.
func NewMapper(roots []string, baseDir string) (*Mapper, error) {
	m := &Mapper{baseDir: strings.Trim(filepath.ToSlash(baseDir), "/")}
	for _, r := range roots {
		abs, err := ResolveRoot(r)
		if err != nil {
			return nil, err
		}
		m.roots = append(m.roots, abs)
	}
	return m, nil
}

// ResolveRoot expands "~" and makes root absolute and clean.
func ResolveRoot(root string) (string, error) {
	if root == "~" || strings.HasPrefix(root, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryConfig, "cannot expand home directory").
				WithContext("path", root).Build()
		}
		root = filepath.Join(home, strings.TrimPrefix(root, "~"))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "cannot resolve local directory").
			WithContext("path", root).Build()
	}
	return abs, nil
}

// Roots returns the absolute watched roots.
func (m *Mapper) Roots() []string {
	return append([]string(nil), m.roots...)
}

// RemotePath implements syncqueue.PathMapper.
func (m *Mapper) RemotePath(localPath string) (string, error) {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryValidation, "cannot resolve local path").
			WithContext("path", localPath).Build()
	}
	for _, root := range m.roots {
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return strings.Trim(path.Join(m.baseDir, filepath.ToSlash(rel)), "/"), nil
	}
	return "", ferrors.ValidationError("path is outside every watched directory").
		WithContext("path", localPath).Build()
}
