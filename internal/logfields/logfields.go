package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTaskID      = "task_id"
	KeyRemotePath  = "remote_path"
	KeyLocalPath   = "local_path"
	KeyEventKind   = "event_kind"
	KeyAttempt     = "attempt"
	KeyMaxAttempts = "max_attempts"
	KeyStep        = "step"
	KeyHeadSHA     = "head_sha"
	KeyCommitSHA   = "commit_sha"
	KeyBlobSHA     = "blob_sha"
	KeyRepo        = "repository"
	KeyBranch      = "branch"
	KeyWorker      = "worker"
	KeyDurationMS  = "duration_ms"
	KeyDelay       = "delay"
	KeyCategory    = "category"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func TaskID(id string) slog.Attr         { return slog.String(KeyTaskID, id) }
func RemotePath(p string) slog.Attr      { return slog.String(KeyRemotePath, p) }
func LocalPath(p string) slog.Attr       { return slog.String(KeyLocalPath, p) }
func EventKind(k string) slog.Attr       { return slog.String(KeyEventKind, k) }
func Attempt(n int) slog.Attr            { return slog.Int(KeyAttempt, n) }
func MaxAttempts(n int) slog.Attr        { return slog.Int(KeyMaxAttempts, n) }
func Step(s string) slog.Attr            { return slog.String(KeyStep, s) }
func HeadSHA(sha string) slog.Attr       { return slog.String(KeyHeadSHA, sha) }
func CommitSHA(sha string) slog.Attr     { return slog.String(KeyCommitSHA, sha) }
func BlobSHA(sha string) slog.Attr       { return slog.String(KeyBlobSHA, sha) }
func Repository(r string) slog.Attr      { return slog.String(KeyRepo, r) }
func Branch(b string) slog.Attr          { return slog.String(KeyBranch, b) }
func Worker(id string) slog.Attr         { return slog.String(KeyWorker, id) }
func Delay(d time.Duration) slog.Attr    { return slog.Duration(KeyDelay, d) }
func Category(c string) slog.Attr        { return slog.String(KeyCategory, c) }
func DurationMS(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
