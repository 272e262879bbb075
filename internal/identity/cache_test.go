package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/gitdata"
)

type stubResolver struct {
	calls atomic.Int32
	errs  []error
}

func (s *stubResolver) ResolveIdentity(context.Context) (gitdata.Identity, error) {
	n := int(s.calls.Add(1))
	if n <= len(s.errs) && s.errs[n-1] != nil {
		return gitdata.Identity{}, s.errs[n-1]
	}
	return gitdata.Identity{Login: "alice"}, nil
}

func TestGetResolvesOnce(t *testing.T) {
	r := &stubResolver{}
	c := NewCache(r)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := c.Get(t.Context())
			assert.NoError(t, err)
			assert.Equal(t, "alice", id.Login)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), r.calls.Load())
}

func TestAuthFailureIsSticky(t *testing.T) {
	authErr := ferrors.AuthError("bad token").Build()
	r := &stubResolver{errs: []error{authErr}}
	c := NewCache(r)

	_, err := c.Get(t.Context())
	require.ErrorIs(t, err, authErr)
	_, err = c.Get(t.Context())
	require.ErrorIs(t, err, authErr)
	require.Equal(t, int32(1), r.calls.Load())

	c.Reset()
	id, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, "alice", id.Login)
	require.Equal(t, int32(2), r.calls.Load())
}

func TestTransientFailureIsNotCached(t *testing.T) {
	r := &stubResolver{errs: []error{ferrors.NetworkError("timeout").Build()}}
	c := NewCache(r)

	_, err := c.Get(t.Context())
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))

	id, err := c.Get(t.Context())
	require.NoError(t, err)
	require.Equal(t, "alice", id.Login)
	require.Equal(t, int32(2), r.calls.Load())
}
