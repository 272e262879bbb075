package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/notesync/internal/syncqueue"
)

// Enumerate walks every root and emits a Created event for each regular,
// non-ignored file. It returns the number of events emitted.
func Enumerate(ctx context.Context, roots []string, ig Ignorer, emit func(syncqueue.ChangeEvent)) (int, error) {
	count := 0
	for _, root := range roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Warn("Skipping unreadable path during enumeration", "path", p, "error", err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			rel, _ := filepath.Rel(root, p)
			if ig.Match(rel) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			emit(syncqueue.ChangeEvent{Kind: syncqueue.EventCreated, LocalPath: p, DetectedAt: time.Now()})
			count++
			return nil
		})
		if err != nil {
			return count, err
		}
	}
	return count, nil
}
