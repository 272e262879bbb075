// Package publish lands one local file change as one commit on a remote branch
// using compare-and-swap reference updates.
package publish

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	lru "github.com/hashicorp/golang-lru/v2"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/gitdata"
	"git.home.luguber.info/inful/notesync/internal/logfields"
	"git.home.luguber.info/inful/notesync/internal/metrics"
	"git.home.luguber.info/inful/notesync/internal/observability"
	"git.home.luguber.info/inful/notesync/internal/preprocess"
	"git.home.luguber.info/inful/notesync/internal/retry"
)

// Step names used in logs, metrics and error context.
const (
	StepReadRef      = "read_ref"
	StepReadCommit   = "read_commit"
	StepCreateBlob   = "create_blob"
	StepCreateTree   = "create_tree"
	StepCreateCommit = "create_commit"
	StepUpdateRef    = "update_ref"
)

const defaultTreeCacheSize = 256

// Options configures a Pipeline.
type Options struct {
	Repository    Repository
	Committer     Committer
	Message       string
	Policy        retry.Policy
	Recorder      metrics.Recorder
	History       History // consulted only when SkipUnchanged is set
	SkipUnchanged bool
	TreeCacheSize int
	Clock         func() time.Time
	Sleep         func(ctx context.Context, d time.Duration) error
}

// Pipeline sequences Git Data API calls for one publish and owns the retry loop.
// It is safe for concurrent use by multiple workers.
type Pipeline struct {
	client   ObjectClient
	ids      IdentitySource
	prep     preprocess.Preprocessor
	opts     Options
	recorder metrics.Recorder
	trees    *lru.Cache[string, string] // commit SHA -> tree SHA
}

// NewPipeline wires a pipeline; zero-valued options fall back to defaults.
func NewPipeline(client ObjectClient, ids IdentitySource, prep preprocess.Preprocessor, opts Options) (*Pipeline, error) {
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}
	if opts.TreeCacheSize <= 0 {
		opts.TreeCacheSize = defaultTreeCacheSize
	}
	if opts.Message == "" {
		opts.Message = "updated notes"
	}
	trees, err := lru.New[string, string](opts.TreeCacheSize)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "failed to create tree cache").Build()
	}
	return &Pipeline{
		client:   client,
		ids:      ids,
		prep:     prep,
		opts:     opts,
		recorder: opts.Recorder,
		trees:    trees,
	}, nil
}

// run tracks the attempt budget of one publish.
type run struct {
	task     Task
	owner    string
	attempts int
}

// Publish lands the current content of task.SourceLocalPath at task.RemotePath.
// Transient and rate-limited failures retry the failing step; a conflicting
// reference update restarts from a fresh read of the branch. Every retry
// consumes one attempt. The branch is never force-updated.
func (p *Pipeline) Publish(ctx context.Context, task Task) (Result, error) {
	ctx = observability.WithRemotePath(observability.WithTaskID(ctx, task.ID), task.RemotePath)
	start := p.opts.Clock()

	res, err := p.publish(ctx, task)

	p.recorder.ObservePublishDuration(p.opts.Clock().Sub(start))
	if res.Attempts > 0 {
		p.recorder.ObservePublishAttempts(res.Attempts)
	}
	p.logOutcome(ctx, task, res, err, start)
	return res, err
}

func (p *Pipeline) publish(ctx context.Context, task Task) (Result, error) {
	id, err := p.ids.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	r := &run{task: task, owner: p.opts.Repository.Owner}
	if r.owner == "" {
		r.owner = id.Login
	}

	content, err := p.prep.Prepare(ctx, task.SourceLocalPath)
	if err != nil {
		return Result{}, err
	}

	localSHA := ""
	if content.Raw != nil {
		localSHA = plumbing.ComputeHash(plumbing.BlobObject, content.Raw).String()
	}
	if p.opts.SkipUnchanged && p.opts.History != nil && localSHA != "" {
		if last, ok, herr := p.opts.History.LastPublishedBlob(ctx, task.RemotePath); herr != nil {
			slog.Warn("Publish history lookup failed; publishing anyway",
				logfields.RemotePath(task.RemotePath), logfields.Error(herr))
		} else if ok && last == localSHA {
			return Result{BlobSHA: localSHA, Skipped: true}, nil
		}
	}

	r.attempts = 1
	for {
		res, err := p.pass(ctx, r, content, localSHA)
		if err == nil {
			res.Attempts = r.attempts
			return res, nil
		}
		if !ferrors.HasCategory(err, ferrors.CategoryConflict) {
			return Result{Attempts: r.attempts}, err
		}
		p.recorder.IncConflict()
		if r.attempts >= p.opts.Policy.MaxAttempts {
			return Result{Attempts: r.attempts}, p.exhausted(r, err)
		}
		r.attempts++
		slog.Debug("Branch moved; restarting publish from a fresh read",
			logfields.TaskID(task.ID), logfields.Attempt(r.attempts))
	}
}

// pass performs one full read-build-swap sequence against the current branch head.
func (p *Pipeline) pass(ctx context.Context, r *run, content preprocess.Content, localSHA string) (Result, error) {
	repo := p.opts.Repository

	var head string
	if err := p.step(ctx, r, StepReadRef, func(ctx context.Context) (err error) {
		head, err = p.client.ReadRef(ctx, r.owner, repo.Name, repo.Branch)
		return err
	}); err != nil {
		return Result{}, err
	}

	baseTree, cached := p.trees.Get(head)
	if !cached {
		if err := p.step(ctx, r, StepReadCommit, func(ctx context.Context) error {
			info, err := p.client.ReadCommit(ctx, r.owner, repo.Name, head)
			if err != nil {
				return err
			}
			baseTree = info.TreeSHA
			return nil
		}); err != nil {
			return Result{}, err
		}
		p.trees.Add(head, baseTree)
	}

	var blob string
	if err := p.step(ctx, r, StepCreateBlob, func(ctx context.Context) (err error) {
		blob, err = p.client.CreateBlob(ctx, r.owner, repo.Name, content.Data, content.Encoding)
		return err
	}); err != nil {
		return Result{}, err
	}
	if localSHA != "" && blob != localSHA {
		slog.Warn("Remote blob hash differs from local content hash",
			logfields.RemotePath(r.task.RemotePath), logfields.BlobSHA(blob), slog.String("local_sha", localSHA))
	}

	var tree string
	if err := p.step(ctx, r, StepCreateTree, func(ctx context.Context) (err error) {
		tree, err = p.client.CreateTree(ctx, r.owner, repo.Name, baseTree, []gitdata.TreeEntry{gitdata.FileEntry(r.task.RemotePath, blob)})
		return err
	}); err != nil {
		return Result{}, err
	}

	author := gitdata.Author{Name: p.opts.Committer.Name, Email: p.opts.Committer.Email, Date: p.opts.Clock()}
	var commit string
	if err := p.step(ctx, r, StepCreateCommit, func(ctx context.Context) (err error) {
		commit, err = p.client.CreateCommit(ctx, r.owner, repo.Name, p.opts.Message, author, []string{head}, tree)
		return err
	}); err != nil {
		return Result{}, err
	}
	p.trees.Add(commit, tree)

	err := p.step(ctx, r, StepUpdateRef, func(ctx context.Context) error {
		return p.client.UpdateRef(ctx, r.owner, repo.Name, repo.Branch, commit, head)
	})
	if err != nil && !landed(err, commit) {
		return Result{}, err
	}
	return Result{CommitSHA: commit, BlobSHA: blob}, nil
}

// landed reports whether a conflict was caused by our own commit already being
// the branch head, which happens when an update succeeded but its reply was lost
// and the retry observed the moved branch.
func landed(err error, commit string) bool {
	ce, ok := ferrors.AsClassified(err)
	if !ok || !ce.IsCategory(ferrors.CategoryConflict) {
		return false
	}
	actual, _ := ce.Context().GetString("actual_sha")
	return actual != "" && actual == commit
}

// step runs fn, retrying in place on transient failures until the attempt
// budget is spent.
func (p *Pipeline) step(ctx context.Context, r *run, name string, fn func(context.Context) error) error {
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		ce, ok := ferrors.AsClassified(err)
		if !ok || !ce.IsTransient() {
			return err
		}
		if r.attempts >= p.opts.Policy.MaxAttempts {
			return p.exhausted(r, err)
		}

		delay := p.opts.Policy.DelayFor(r.attempts, err)
		p.recorder.IncRetry(name, string(ce.Category()))
		slog.Debug("Retrying publish step",
			logfields.TaskID(r.task.ID),
			logfields.Step(name),
			logfields.Attempt(r.attempts),
			logfields.Category(string(ce.Category())),
			logfields.Delay(delay),
			logfields.Error(err))

		if err := p.opts.Sleep(ctx, delay); err != nil {
			return err
		}
		r.attempts++
	}
}

func (p *Pipeline) exhausted(r *run, last error) error {
	return ferrors.WrapError(last, ferrors.CategoryExhausted, "publish retries exhausted").
		WithContext("attempts", r.attempts).
		WithContext("remote_path", r.task.RemotePath).
		Build()
}

func (p *Pipeline) logOutcome(ctx context.Context, task Task, res Result, err error, start time.Time) {
	elapsed := p.opts.Clock().Sub(start)
	switch {
	case err == nil && res.Skipped:
		p.recorder.IncPublishOutcome(metrics.OutcomeSkipped)
		observability.InfoContext(ctx, "Publish skipped; content unchanged",
			logfields.BlobSHA(res.BlobSHA), logfields.DurationMS(elapsed))
	case err == nil:
		p.recorder.IncPublishOutcome(metrics.OutcomePublished)
		observability.InfoContext(ctx, "Published note",
			logfields.CommitSHA(res.CommitSHA),
			logfields.BlobSHA(res.BlobSHA),
			logfields.Attempt(res.Attempts),
			logfields.DurationMS(elapsed))
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		p.recorder.IncPublishOutcome(metrics.OutcomeCanceled)
		observability.WarnContext(ctx, "Publish canceled", logfields.Attempt(res.Attempts), logfields.Error(err))
	default:
		p.recorder.IncPublishOutcome(metrics.OutcomeFailed)
		observability.ErrorContext(ctx, "Publish failed",
			logfields.Category(string(ferrors.GetCategory(err))),
			logfields.Attempt(res.Attempts),
			logfields.MaxAttempts(p.opts.Policy.MaxAttempts),
			logfields.DurationMS(elapsed),
			logfields.Error(err))
	}
}
