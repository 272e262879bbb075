package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// PathSummary is the projected publish state of one remote path.
type PathSummary struct {
	RemotePath    string
	LastType      string
	LastAt        time.Time
	LastCommitSHA string
	LastBlobSHA   string
	LastError     string
	Published     int
	Failed        int
	Skipped       int
}

// PathSummaryProjection folds publish events into one summary per remote path.
type PathSummaryProjection struct {
	mu      sync.RWMutex
	store   Store
	summary map[string]*PathSummary
	lastID  int64
}

// NewPathSummaryProjection creates an empty projection over store.
func NewPathSummaryProjection(store Store) *PathSummaryProjection {
	return &PathSummaryProjection{
		store:   store,
		summary: make(map[string]*PathSummary),
	}
}

// Rebuild replays every event recorded up to now.
func (p *PathSummaryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Unix(0, 0), time.Now().Add(time.Minute))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.summary = make(map[string]*PathSummary)
	p.lastID = 0
	for _, e := range events {
		p.applyLocked(e)
	}
	return nil
}

// Apply folds a single event in. Events already seen are ignored.
func (p *PathSummaryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *PathSummaryProjection) applyLocked(e Event) {
	if e.ID() != 0 {
		if e.ID() <= p.lastID {
			return
		}
		p.lastID = e.ID()
	}

	s, ok := p.summary[e.RemotePath()]
	if !ok {
		s = &PathSummary{RemotePath: e.RemotePath()}
		p.summary[e.RemotePath()] = s
	}
	s.LastType = e.Type()
	s.LastAt = e.Timestamp()

	switch e.Type() {
	case TypePublishSucceeded:
		var data PublishSucceededData
		if json.Unmarshal(e.Payload(), &data) == nil {
			s.LastCommitSHA = data.CommitSHA
		}
		s.LastBlobSHA = e.BlobSHA()
		s.LastError = ""
		s.Published++
	case TypePublishSkipped:
		s.LastBlobSHA = e.BlobSHA()
		s.LastError = ""
		s.Skipped++
	case TypePublishFailed:
		var data PublishFailedData
		if json.Unmarshal(e.Payload(), &data) == nil {
			s.LastError = data.Error
		}
		s.Failed++
	}
}

// Get returns a copy of the summary for remotePath.
func (p *PathSummaryProjection) Get(remotePath string) (PathSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.summary[remotePath]
	if !ok {
		return PathSummary{}, false
	}
	return *s, true
}

// All returns every summary ordered by remote path.
func (p *PathSummaryProjection) All() []PathSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PathSummary, 0, len(p.summary))
	for _, s := range p.summary {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemotePath < out[j].RemotePath })
	return out
}
