// Package identity caches the authenticated remote actor for the life of the process.
package identity

import (
	"context"
	"log/slog"
	"sync"

	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
	"git.home.luguber.info/inful/notesync/internal/gitdata"
)

// Resolver fetches the identity behind the configured credentials.
type Resolver interface {
	ResolveIdentity(ctx context.Context) (gitdata.Identity, error)
}

// Cache resolves the identity lazily on first use. A successful result is kept
// until Reset. An auth failure is sticky: later calls return it without
// contacting the remote until Reset is called. Other failures are not cached.
type Cache struct {
	resolver Resolver

	mu       sync.Mutex
	identity *gitdata.Identity
	authErr  error
}

// NewCache creates an empty cache backed by resolver.
func NewCache(resolver Resolver) *Cache {
	return &Cache{resolver: resolver}
}

// Get returns the cached identity, resolving it on first call. Concurrent
// callers are serialized so the remote is asked at most once.
func (c *Cache) Get(ctx context.Context) (gitdata.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity != nil {
		return *c.identity, nil
	}
	if c.authErr != nil {
		return gitdata.Identity{}, c.authErr
	}

	id, err := c.resolver.ResolveIdentity(ctx)
	if err != nil {
		if ferrors.HasCategory(err, ferrors.CategoryAuth) {
			c.authErr = err
		}
		return gitdata.Identity{}, err
	}

	slog.Info("Resolved remote identity", slog.String("login", id.Login))
	c.identity = &id
	return id, nil
}

// Reset forgets the cached identity and any sticky auth failure, e.g. after
// credentials were refreshed.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = nil
	c.authErr = nil
}
