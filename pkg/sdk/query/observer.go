package query

import (
	"context"
	"sync"
	"time"

	"github.com/ShakedSchnarch/spearhead/pkg/sdk"
)

// Query is one read an Observer is asked to show.
type Query[T any] struct {
	Key   Key
	Fetch func(ctx context.Context) (T, error)
	// Enabled=false suppresses fetching and keeps the data already shown,
	// e.g. while a required parameter is not chosen yet.
	Enabled bool
}

// ObserverOptions configure an Observer.
type ObserverOptions struct {
	StaleTime time.Duration
	// KeepPreviousData keeps the previous key's data visible while a new
	// key loads, and after the new key fails.
	KeepPreviousData bool
	// RefetchInterval refreshes the current key in the background. Zero disables it.
	RefetchInterval time.Duration
}

// Result is what an Observer currently shows.
type Result[T any] struct {
	Data           T
	HasData        bool
	IsPreviousData bool
	IsFetching     bool
	Err            error
}

// Observer follows one logical read whose key changes over time. Changing
// the key cancels the request issued for the previous key.
type Observer[T any] struct {
	cache *Cache
	opts  ObserverOptions
	ctx   context.Context
	stop  context.CancelFunc

	mu      sync.Mutex
	hasKey  bool
	key     Key
	fetch   func(ctx context.Context) (T, error)
	prev    T
	hasPrev bool
	err     error
	// errInvalidations is the key's invalidation count when err was issued.
	errInvalidations uint64
	run              *observerRun
	listeners        map[int]func(Result[T])
	nextID           int
}

type observerRun struct {
	key    Key
	cancel context.CancelFunc
	done   chan struct{}
}

// NewObserver creates an observer over cache. It stops when ctx is done or
// Close is called.
func NewObserver[T any](ctx context.Context, cache *Cache, opts ObserverOptions) *Observer[T] {
	ctx, stop := context.WithCancel(ctx)
	o := &Observer[T]{
		cache:     cache,
		opts:      opts,
		ctx:       ctx,
		stop:      stop,
		listeners: make(map[int]func(Result[T])),
	}
	if opts.RefetchInterval > 0 {
		go o.refetchLoop(opts.RefetchInterval)
	}
	return o
}

// Use points the observer at q and returns what it shows now. It never
// blocks on the network; a missing or stale value is fetched in the background.
func (o *Observer[T]) Use(q Query[T]) Result[T] {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !q.Enabled {
		return o.resultLocked()
	}

	if !o.hasKey || o.key.String() != q.Key.String() {
		if o.hasKey {
			if data, ok := o.dataLocked(); ok {
				o.prev, o.hasPrev = data, true
			}
		}
		if o.run != nil {
			o.run.cancel()
			o.run = nil
		}
		o.key, o.hasKey = q.Key, true
		o.err = nil
	}
	o.fetch = q.Fetch

	// After a failure only an invalidation of the key retries it.
	snap := o.cache.Peek(o.key)
	retry := o.err == nil || snap.Invalidations != o.errInvalidations
	if o.run == nil && retry && !snap.Fresh {
		o.startLocked(false)
	}
	return o.resultLocked()
}

// Refetch issues a new request for the current key, superseding any
// request in flight, and waits for it.
func (o *Observer[T]) Refetch(ctx context.Context) Result[T] {
	o.mu.Lock()
	if !o.hasKey || o.fetch == nil {
		res := o.resultLocked()
		o.mu.Unlock()
		return res
	}
	if o.run != nil {
		o.run.cancel()
	}
	o.err = nil
	run := o.startLocked(true)
	o.mu.Unlock()

	return o.waitRun(ctx, run)
}

// Wait blocks until the request in flight for the current key settles.
func (o *Observer[T]) Wait(ctx context.Context) Result[T] {
	o.mu.Lock()
	run := o.run
	if run == nil {
		res := o.resultLocked()
		o.mu.Unlock()
		return res
	}
	o.mu.Unlock()

	return o.waitRun(ctx, run)
}

// Current returns what the observer shows without starting a request.
func (o *Observer[T]) Current() Result[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resultLocked()
}

// Subscribe calls fn after every settled request until the returned func is called.
func (o *Observer[T]) Subscribe(fn func(Result[T])) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, id)
		o.mu.Unlock()
	}
}

// Close cancels background refreshes and the request in flight.
func (o *Observer[T]) Close() {
	o.stop()
}

func (o *Observer[T]) waitRun(ctx context.Context, run *observerRun) Result[T] {
	select {
	case <-run.done:
	case <-ctx.Done():
	}
	return o.Current()
}

func (o *Observer[T]) startLocked(force bool) *observerRun {
	ctx, cancel := context.WithCancel(o.ctx)
	run := &observerRun{key: o.key, cancel: cancel, done: make(chan struct{})}
	o.run = run
	fetch := o.fetch
	invalidations := o.cache.Peek(o.key).Invalidations

	go func() {
		defer close(run.done)
		defer cancel()

		_, err := o.cache.Fetch(ctx, run.key, func(ctx context.Context) (any, error) {
			data, err := fetch(ctx)
			return data, err
		}, Options{StaleTime: o.opts.StaleTime, Force: force})

		o.mu.Lock()
		if o.run != run {
			o.mu.Unlock()
			return
		}
		o.run = nil
		switch {
		case err == nil:
			o.err = nil
			o.hasPrev = false
		case !sdk.IsAborted(err):
			o.err = err
			o.errInvalidations = invalidations
		}
		res := o.resultLocked()
		listeners := make([]func(Result[T]), 0, len(o.listeners))
		for _, fn := range o.listeners {
			listeners = append(listeners, fn)
		}
		o.mu.Unlock()

		for _, fn := range listeners {
			fn(res)
		}
	}()
	return run
}

func (o *Observer[T]) refetchLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.mu.Lock()
			if o.hasKey && o.fetch != nil && o.run == nil {
				o.startLocked(true)
			}
			o.mu.Unlock()
		}
	}
}

func (o *Observer[T]) dataLocked() (T, bool) {
	var zero T
	if !o.hasKey {
		return zero, false
	}
	snap := o.cache.Peek(o.key)
	if !snap.HasData {
		return zero, false
	}
	data, ok := snap.Data.(T)
	return data, ok
}

func (o *Observer[T]) resultLocked() Result[T] {
	res := Result[T]{IsFetching: o.run != nil, Err: o.err}
	if data, ok := o.dataLocked(); ok {
		res.Data, res.HasData = data, true
		return res
	}
	if o.opts.KeepPreviousData && o.hasPrev {
		res.Data, res.HasData, res.IsPreviousData = o.prev, true, true
	}
	return res
}
