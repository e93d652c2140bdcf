package library

import (
	"context"
	"strings"
	"sync"
)

// UserCache resolves user references (ids or names) through a directory and
// remembers the answers until Invalidate is called. It is owned by the
// refresh orchestrator and invalidated on UserChanged events.
type UserCache struct {
	dir   UserDirectory
	mu    sync.RWMutex
	byRef map[string]User
}

// NewUserCache creates an empty cache in front of dir.
func NewUserCache(dir UserDirectory) *UserCache {
	return &UserCache{dir: dir, byRef: make(map[string]User)}
}

// Directory returns the directory behind the cache.
func (c *UserCache) Directory() UserDirectory {
	return c.dir
}

// Resolve returns the user identified by ref. Misses are not cached.
func (c *UserCache) Resolve(ctx context.Context, ref string) (User, error) {
	key := strings.ToLower(strings.TrimSpace(ref))
	if key == "" {
		return User{}, ErrNotFound
	}

	c.mu.RLock()
	u, ok := c.byRef[key]
	c.mu.RUnlock()
	if ok {
		return u, nil
	}

	u, err := c.dir.User(ctx, ref)
	if err != nil {
		return User{}, err
	}

	c.mu.Lock()
	c.byRef[key] = u
	c.byRef[strings.ToLower(u.ID)] = u
	if u.Name != "" {
		c.byRef[strings.ToLower(u.Name)] = u
	}
	c.mu.Unlock()
	return u, nil
}

// Invalidate drops every cached entry.
func (c *UserCache) Invalidate() {
	c.mu.Lock()
	c.byRef = make(map[string]User)
	c.mu.Unlock()
}

// Len returns the number of cached references.
func (c *UserCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byRef)
}
