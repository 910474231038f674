// Package query is a keyed, stale-aware cache in front of the request
// gateway. Entries are scoped by session identity and base URL, concurrent
// reads of one key share a single request, and only the most recently
// issued request for a key may write its data.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize bounds the number of cached entries.
const DefaultSize = 512

// Fetcher loads the value of one key.
type Fetcher func(ctx context.Context) (any, error)

// Options control a single Fetch.
type Options struct {
	// StaleTime is how long a value is reused without a new request.
	StaleTime time.Duration
	// Force issues a new request even when a fresh value or an in-flight
	// request exists. The new request supersedes the older one.
	Force bool
}

// Snapshot is the current state of one entry.
type Snapshot struct {
	Data      any
	HasData   bool
	Fresh     bool
	Fetching  bool
	FetchedAt time.Time
	// Invalidations counts Invalidate calls that selected this entry.
	Invalidations uint64
}

// Cache holds query results keyed by Key. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
	now     func() time.Time
}

type entry struct {
	key       Key
	data      any
	hasData   bool
	fetchedAt time.Time
	staleTime time.Duration

	// generation counts issued requests; only the latest may write.
	generation uint64
	dataGen    uint64
	// staleBelow marks data written by generations <= staleBelow as stale.
	staleBelow    uint64
	invalidations uint64
	call          *call
}

type call struct {
	gen     uint64
	done    chan struct{}
	data    any
	err     error
	cancel  context.CancelFunc
	waiters int
}

// CacheOption configures a Cache.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	size int
	now  func() time.Time
}

// WithSize bounds the cache to size entries, evicting the least recently used.
func WithSize(size int) CacheOption {
	return func(o *cacheOptions) {
		o.size = size
	}
}

// WithClock overrides the time source used for staleness.
func WithClock(now func() time.Time) CacheOption {
	return func(o *cacheOptions) {
		o.now = now
	}
}

// New creates an empty cache.
func New(optFns ...CacheOption) *Cache {
	opts := cacheOptions{size: DefaultSize, now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.size <= 0 {
		opts.size = DefaultSize
	}
	entries, err := lru.New[string, *entry](opts.size)
	if err != nil {
		// Only returned for a non-positive size, which is excluded above.
		panic(fmt.Sprintf("create query cache: %v", err))
	}
	return &Cache{entries: entries, now: opts.now}
}

// Fetch returns the value of key, reusing a fresh cached value or joining
// an in-flight request when possible. A canceled ctx returns sdk.ErrAborted;
// the shared request is canceled once no caller is waiting for it.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch Fetcher, opts Options) (any, error) {
	id := key.String()

	c.mu.Lock()
	e, ok := c.entries.Get(id)
	if !ok {
		e = &entry{key: key}
		c.entries.Add(id, e)
	}
	e.staleTime = opts.StaleTime

	if !opts.Force {
		if e.freshLocked(c.now()) {
			data := e.data
			c.mu.Unlock()
			return data, nil
		}
		// A request issued before the last invalidation may return data
		// the invalidation was meant to discard; supersede it instead.
		if e.call != nil && e.call.gen > e.staleBelow {
			cl := e.call
			cl.waiters++
			c.mu.Unlock()
			return c.wait(ctx, cl)
		}
	}

	cl := c.startLocked(ctx, e, fetch)
	cl.waiters++
	c.mu.Unlock()
	return c.wait(ctx, cl)
}

// Get is the typed form of Cache.Fetch.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error), opts Options) (T, error) {
	var zero T
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		data, err := fetch(ctx)
		return data, err
	}, opts)
	if err != nil {
		return zero, err
	}
	data, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache entry %q holds %T", key.Resource, v)
	}
	return data, nil
}

// Peek reports the state of key without fetching.
func (c *Cache) Peek(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(key.String())
	if !ok {
		return Snapshot{}
	}
	return Snapshot{
		Data:          e.data,
		HasData:       e.hasData,
		Fresh:         e.freshLocked(c.now()),
		Fetching:      e.call != nil,
		FetchedAt:     e.fetchedAt,
		Invalidations: e.invalidations,
	}
}

// Invalidate marks every entry selected by match as stale. Data stays
// readable; the next Fetch issues a new request and does not join one
// issued before the invalidation. It returns the number of entries marked.
func (c *Cache) Invalidate(match func(Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, id := range c.entries.Keys() {
		e, ok := c.entries.Peek(id)
		if !ok || !match(e.key) {
			continue
		}
		e.staleBelow = e.generation
		e.invalidations++
		n++
	}
	return n
}

// Purge removes every entry selected by match and cancels its in-flight
// request so that no late response can write into a removed scope.
func (c *Cache) Purge(match func(Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, id := range c.entries.Keys() {
		e, ok := c.entries.Peek(id)
		if !ok || !match(e.key) {
			continue
		}
		if e.call != nil {
			e.call.cancel()
			e.call = nil
		}
		e.generation++
		c.entries.Remove(id)
		n++
	}
	return n
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) startLocked(ctx context.Context, e *entry, fetch Fetcher) *call {
	e.generation++
	// The request outlives the caller that started it while others wait on it.
	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cl := &call{gen: e.generation, done: make(chan struct{}), cancel: cancel}
	e.call = cl
	go c.run(callCtx, e, cl, fetch)
	return cl
}

func (c *Cache) run(ctx context.Context, e *entry, cl *call, fetch Fetcher) {
	data, err := fetch(ctx)
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%s: %w", e.key.Resource, sdk.ErrAborted)
	}

	c.mu.Lock()
	cl.data, cl.err = data, err
	if e.call == cl {
		e.call = nil
	}
	if err == nil && cl.gen == e.generation {
		e.data = data
		e.hasData = true
		e.fetchedAt = c.now()
		e.dataGen = cl.gen
	}
	c.mu.Unlock()

	cl.cancel()
	close(cl.done)
}

func (c *Cache) wait(ctx context.Context, cl *call) (any, error) {
	select {
	case <-cl.done:
		return cl.data, cl.err
	case <-ctx.Done():
		c.mu.Lock()
		cl.waiters--
		last := cl.waiters == 0
		c.mu.Unlock()
		if last {
			cl.cancel()
		}
		return nil, fmt.Errorf("%w: %v", sdk.ErrAborted, ctx.Err())
	}
}

func (e *entry) freshLocked(now time.Time) bool {
	if !e.hasData || e.dataGen <= e.staleBelow {
		return false
	}
	return now.Sub(e.fetchedAt) < e.staleTime
}
