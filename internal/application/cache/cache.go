package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/taskmaster/client/internal/infrastructure/logger"
	"github.com/taskmaster/client/internal/infrastructure/metrics"
)

// QueryFunc loads the value of a cache entry from the server
type QueryFunc func(ctx context.Context) (interface{}, error)

// Updater derives a new cache value from the current one. It must not
// modify old in place; snapshots share values with the live cache.
type Updater func(old interface{}) interface{}

type entry struct {
	key         Key
	data        interface{}
	hasData     bool
	updatedAt   time.Time
	invalidated bool
	err         error
	fetch       QueryFunc

	// gen is bumped whenever in-flight results must be discarded
	gen         uint64
	fetching    bool
	fetchingGen uint64
}

// State describes a cache entry for views
type State struct {
	Data       interface{}
	HasData    bool
	IsStale    bool
	IsFetching bool
	Err        error
	UpdatedAt  time.Time
}

// Cache is a keyed read cache with stale-while-revalidate semantics. Every
// operation is atomic: readers never observe a half-applied patch.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	staleTime time.Duration
	now       func() time.Time

	group singleflight.Group
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	metrics *metrics.Client
	logger  *logger.Logger
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics records hits, misses, invalidations and rollbacks
func WithMetrics(m *metrics.Client) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates an empty cache. Entries older than staleTime are served but
// refetched in the background.
func New(staleTime time.Duration, log *logger.Logger, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries:   make(map[string]*entry),
		staleTime: staleTime,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		logger:    log.WithComponent("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) isStale(e *entry) bool {
	return e.invalidated || !c.now().Before(e.updatedAt.Add(c.staleTime))
}

// Fetch returns the value for key. A fresh entry is returned as is; a stale
// one is returned while a background refetch runs; a missing one is loaded
// synchronously with fn.
func (c *Cache) Fetch(ctx context.Context, key Key, fn QueryFunc) (interface{}, error) {
	k := key.String()

	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[k] = e
	}
	e.fetch = fn

	if e.hasData {
		data := e.data
		if c.isStale(e) {
			c.refetchLocked(e)
		}
		c.mu.Unlock()
		c.metrics.CacheHit()
		return data, nil
	}

	gen := e.gen
	e.fetching = true
	e.fetchingGen = gen
	c.mu.Unlock()

	c.metrics.CacheMiss()
	return c.load(ctx, k, e, gen, fn)
}

// load runs fn once per key and generation and stores the result unless
// the entry was removed or its generation moved on in the meantime.
func (c *Cache) load(ctx context.Context, k string, e *entry, gen uint64, fn QueryFunc) (interface{}, error) {
	v, err, _ := c.group.Do(k+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return fn(ctx)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if e.fetchingGen == gen {
		e.fetching = false
	}
	if cur := c.entries[k]; cur != e || e.gen != gen {
		c.logger.Debugw("Discarding superseded fetch", "key", e.key)
		return v, err
	}
	if err != nil {
		e.err = err
		return nil, err
	}
	e.data = v
	e.hasData = true
	e.updatedAt = c.now()
	e.invalidated = false
	e.err = nil
	return v, nil
}

// refetchLocked starts a background load of e unless one is already
// running for its current generation. c.mu must be held.
func (c *Cache) refetchLocked(e *entry) {
	if e.fetch == nil {
		return
	}
	if e.fetching && e.fetchingGen == e.gen {
		return
	}
	gen, fn, k := e.gen, e.fetch, e.key.String()
	e.fetching = true
	e.fetchingGen = gen

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.load(c.ctx, k, e, gen, fn); err != nil {
			c.logger.WithError(err).Warnw("Background refetch failed", "key", e.key)
		}
	}()
}

func (c *Cache) matchLocked(prefix Key) []*entry {
	var out []*entry
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Peek returns the cached value without fetching
func (c *Cache) Peek(key Key) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// State reports the status of the entry at key
func (c *Cache) State(key Key) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return State{IsStale: true}
	}
	return State{
		Data:       e.data,
		HasData:    e.hasData,
		IsStale:    !e.hasData || c.isStale(e),
		IsFetching: e.fetching,
		Err:        e.err,
		UpdatedAt:  e.updatedAt,
	}
}

// Keys lists the keys cached under prefix
func (c *Cache) Keys(prefix Key) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []Key
	for _, e := range c.matchLocked(prefix) {
		keys = append(keys, append(Key(nil), e.key...))
	}
	return keys
}

// CancelQueries makes in-flight fetches under prefix discard their results
func (c *Cache) CancelQueries(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked(prefix)
}

func (c *Cache) cancelLocked(prefix Key) {
	for _, e := range c.matchLocked(prefix) {
		e.gen++
	}
}

// MarkStale flags every entry under prefix for refetch on next read
func (c *Cache) MarkStale(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	matched := c.matchLocked(prefix)
	for _, e := range matched {
		e.invalidated = true
		e.gen++
	}
	c.metrics.CacheInvalidated(len(matched))
	return len(matched)
}

// Invalidate marks every entry under prefix stale and refetches those that
// have been queried before. In-flight fetches are superseded, so the last
// invalidation wins.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	matched := c.matchLocked(prefix)
	for _, e := range matched {
		e.invalidated = true
		e.gen++
		c.refetchLocked(e)
	}
	c.metrics.CacheInvalidated(len(matched))
	c.logger.Debugw("Invalidated queries", "prefix", prefix, "count", len(matched))
	return len(matched)
}

// Refetch reloads every queried entry under prefix regardless of staleness
func (c *Cache) Refetch(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.matchLocked(prefix) {
		e.gen++
		c.refetchLocked(e)
	}
}

// SetData writes value at key as a fresh server response
func (c *Cache) SetData(key Key, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[k] = e
	}
	e.data = value
	e.hasData = true
	e.updatedAt = c.now()
	e.invalidated = false
	e.err = nil
}

// SetQueriesData rewrites every entry under prefix that holds data
func (c *Cache) SetQueriesData(prefix Key, update Updater) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.patchLocked(prefix, update)
}

func (c *Cache) patchLocked(prefix Key, update Updater) int {
	n := 0
	for _, e := range c.matchLocked(prefix) {
		if !e.hasData {
			continue
		}
		e.data = update(e.data)
		n++
	}
	return n
}

// Remove drops the entry at key. In-flight fetches for it are discarded.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Wait blocks until background refetches have finished
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close cancels background refetches and waits for them
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}
