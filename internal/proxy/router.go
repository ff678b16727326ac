package proxy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bulkgofer/internal/upstream"
)

// Router maps destinations to upstream pools. It implements batcher.Transport.
//
// A destination has the form /{groupName}/{path}: the first segment picks the
// pool, the rest is the path requested on the selected upstream.
type Router struct {
	mu     sync.RWMutex
	groups map[string]*upstream.Pool
}

// NewRouter creates an empty Router
func NewRouter() *Router {
	return &Router{groups: make(map[string]*upstream.Pool)}
}

// AddPool registers pool under its group name, replacing any previous one
func (r *Router) AddPool(pool *upstream.Pool) {
	r.mu.Lock()
	r.groups[pool.Name()] = pool
	r.mu.Unlock()
}

// Pool returns the pool registered for group
func (r *Router) Pool(group string) (*upstream.Pool, error) {
	if group == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrUnknownGroup)
	}

	r.mu.RLock()
	pool, ok := r.groups[group]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownGroup, group)
	}
	return pool, nil
}

// PoolFor returns the pool that serves destination
func (r *Router) PoolFor(destination string) (*upstream.Pool, error) {
	group, _ := splitDestination(destination)
	return r.Pool(group)
}

// Groups returns the registered group names in sorted order
func (r *Router) Groups() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// SendSingle forwards one payload to an upstream of the destination's group
func (r *Router) SendSingle(ctx context.Context, destination string, body []byte) ([]byte, error) {
	return r.send(destination, func(u *upstream.Upstream, path string) ([]byte, error) {
		return u.SendSingle(ctx, path, body)
	})
}

// SendCombined forwards a combined payload array to an upstream of the destination's group
func (r *Router) SendCombined(ctx context.Context, destination string, body []byte, items int) ([]byte, error) {
	return r.send(destination, func(u *upstream.Upstream, path string) ([]byte, error) {
		return u.SendCombined(ctx, path, body, items)
	})
}

// send selects one upstream for the whole dispatch and runs do against it
func (r *Router) send(destination string, do func(u *upstream.Upstream, path string) ([]byte, error)) ([]byte, error) {
	group, path := splitDestination(destination)
	pool, err := r.Pool(group)
	if err != nil {
		return nil, err
	}

	u, err := pool.Select()
	if err != nil {
		return nil, fmt.Errorf("group '%s': %w", group, err)
	}

	resp, err := do(u, path)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", u.Name(), err)
	}
	return resp, nil
}

// splitDestination splits a destination into its group name and upstream path.
//
//	/meshes              -> meshes, ""
//	/meshes/sphere       -> meshes, /sphere
//	/meshes/sphere?lod=2 -> meshes, /sphere?lod=2
func splitDestination(destination string) (group, path string) {
	destination = strings.TrimPrefix(destination, "/")
	if i := strings.IndexAny(destination, "/?"); i >= 0 {
		return destination[:i], destination[i:]
	}
	return destination, ""
}

// StartAll starts health checking in every pool
func (r *Router) StartAll() {
	r.each((*upstream.Pool).Start)
}

// StopAll stops every pool
func (r *Router) StopAll() {
	r.each((*upstream.Pool).Stop)
}

func (r *Router) each(fn func(*upstream.Pool)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, pool := range r.groups {
		fn(pool)
	}
}
