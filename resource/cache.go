package resource

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/metrics"
)

// DefaultTTL is how long a fetched entry set is served without a refresh.
const DefaultTTL = 60 * time.Second

// Options configures a Cache. Zero values select defaults.
type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	// FailureCooldown is how long a failed fetch suppresses new fetches for
	// the same key. Zero disables the cooldown.
	FailureCooldown time.Duration
	Logger          *zap.SugaredLogger
	Metrics         *metrics.Metrics
	// Clock returns the current time; tests substitute a fake.
	Clock func() time.Time
}

// Status describes one cache key, for diagnostics.
type Status struct {
	Cached    bool
	Entries   int
	FetchedAt time.Time
	Stale     bool
	LastError error
}

type key struct {
	project string
	kind    Kind
}

func (k key) String() string {
	return k.project + "|" + k.kind.String()
}

// flight names the singleflight call for k at generation gen, so a fetch
// started before Invalidate is never joined by one started after it.
func (k key) flight(gen uint64) string {
	return k.String() + "#" + strconv.FormatUint(gen, 10)
}

// entrySet is never mutated after it is stored; refreshes swap the pointer.
type entrySet struct {
	entries   []Entry
	fetchedAt time.Time
}

// Cache holds fetched resources per (project, kind).
//
// A cold key is fetched synchronously. Once populated, a stale key is served
// as-is while one background refresh runs. Concurrent fetches for the same
// key collapse into one call to the Fetcher. Fetches run on the cache's own
// context, so a cancelled completion request never aborts a fetch other
// callers are waiting on.
type Cache struct {
	fetcher      Fetcher
	fetchTimeout time.Duration
	ttl          atomic.Int64
	logger       *zap.SugaredLogger
	metrics      *metrics.Metrics
	clock        func() time.Time

	group    singleflight.Group
	failures *ttlcache.Cache[key, error]
	cooldown time.Duration

	mu         sync.RWMutex
	sets       map[key]*entrySet
	lastErr    map[key]error
	refreshing map[key]bool
	// gen is bumped by Invalidate; fetches only store results of the current generation.
	gen    map[key]uint64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCache creates a cache backed by fetcher.
func NewCache(fetcher Fetcher, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		fetcher:      fetcher,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		clock:        opts.Clock,
		cooldown:     opts.FailureCooldown,
		failures: ttlcache.New[key, error](
			ttlcache.WithDisableTouchOnHit[key, error](),
		),
		sets:       make(map[key]*entrySet),
		lastErr:    make(map[key]error),
		refreshing: make(map[key]bool),
		gen:        make(map[key]uint64),
		ctx:        ctx,
		cancel:     cancel,
	}
	c.ttl.Store(int64(opts.TTL))
	return c
}

// SetTTL changes the freshness window for all keys.
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.ttl.Store(int64(ttl))
}

// TTL returns the current freshness window.
func (c *Cache) TTL() time.Duration {
	return time.Duration(c.ttl.Load())
}

// Get returns the entries for project and kind. The returned slice is shared
// and must not be modified.
func (c *Cache) Get(ctx context.Context, project string, kind Kind) ([]Entry, error) {
	if kind == KindQuickAction || kind == KindNone {
		return nil, errUnfetchable(kind)
	}
	k := key{project: project, kind: kind}

	c.mu.RLock()
	set, lastErr, gen, closed := c.sets[k], c.lastErr[k], c.gen[k], c.closed
	c.mu.RUnlock()
	if closed {
		return nil, errors.Wrap(errors.ErrNotReady, "resource cache closed")
	}

	if set != nil {
		if c.clock().Sub(set.fetchedAt) <= c.TTL() {
			c.metrics.CacheRequest(kind.String(), metrics.ResultHit)
			return set.entries, nil
		}
		c.metrics.CacheRequest(kind.String(), metrics.ResultStale)
		if lastErr != nil {
			c.metrics.DegradedServe(kind.String())
		}
		c.refreshAsync(k)
		return set.entries, nil
	}

	c.metrics.CacheRequest(kind.String(), metrics.ResultMiss)
	if item := c.failures.Get(k); item != nil {
		return nil, item.Value()
	}

	ch := c.group.DoChan(k.flight(gen), func() (interface{}, error) {
		return c.fetch(k, gen)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]Entry), nil
	case <-ctx.Done():
		// the fetch keeps running and fills the cache for later requests
		return nil, errors.Wrapf(ctx.Err(), "waiting for %s", k)
	}
}

// Prefetch populates every kind for project concurrently.
func (c *Cache) Prefetch(ctx context.Context, project string, kinds ...Kind) error {
	if len(kinds) == 0 {
		kinds = FetchedKinds
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		kind := kind
		g.Go(func() error {
			_, err := c.Get(gctx, project, kind)
			return err
		})
	}
	return g.Wait()
}

// Invalidate drops the entry set for project and kind. The next Get fetches
// synchronously; results of fetches already in flight are discarded.
func (c *Cache) Invalidate(project string, kind Kind) {
	k := key{project: project, kind: kind}
	c.mu.Lock()
	c.gen[k]++
	delete(c.sets, k)
	delete(c.lastErr, k)
	c.mu.Unlock()
	c.failures.Delete(k)
}

// Status reports what the cache holds for project and kind.
func (c *Cache) Status(project string, kind Kind) Status {
	k := key{project: project, kind: kind}
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Status{LastError: c.lastErr[k]}
	if set := c.sets[k]; set != nil {
		st.Cached = true
		st.Entries = len(set.entries)
		st.FetchedAt = set.fetchedAt
		st.Stale = c.clock().Sub(set.fetchedAt) > c.TTL()
	}
	return st
}

// Close cancels in-flight fetches, waits for background refreshes and drops
// all entries. Get fails with ErrNotReady afterwards.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	c.sets = make(map[key]*entrySet)
	c.lastErr = make(map[key]error)
	c.mu.Unlock()
	c.failures.DeleteAll()
}

// refreshAsync starts a background refresh unless one is running or the key
// is cooling down after a failure.
func (c *Cache) refreshAsync(k key) {
	if c.failures.Get(k) != nil {
		return
	}

	c.mu.Lock()
	if c.closed || c.refreshing[k] {
		c.mu.Unlock()
		return
	}
	c.refreshing[k] = true
	gen := c.gen[k]
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, k)
			c.mu.Unlock()
		}()
		_, _, _ = c.group.Do(k.flight(gen), func() (interface{}, error) {
			return c.fetch(k, gen)
		})
	}()
}

// fetch runs inside the singleflight group, at most once per key and
// generation at a time.
func (c *Cache) fetch(k key, gen uint64) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.fetchTimeout)
	defer cancel()

	start := c.clock()
	entries, err := FetchKind(ctx, c.fetcher, k.project, k.kind)
	elapsed := c.clock().Sub(start)
	c.metrics.Fetch(k.kind.String(), elapsed, err)

	if err != nil {
		if !errors.IsFetchError(err) {
			err = errors.WrapFetch(err, "%s for %s", k.kind, k.project)
		}
		c.mu.Lock()
		current := c.gen[k] == gen
		if current {
			c.lastErr[k] = err
		}
		stale := c.sets[k] != nil
		c.mu.Unlock()
		if current && c.cooldown > 0 {
			c.failures.Set(k, err, c.cooldown)
		}
		c.logger.Warnw("Resource fetch failed",
			"project", k.project,
			"kind", k.kind.String(),
			"serving_stale", stale,
			"error", err)
		return nil, err
	}

	if entries == nil {
		entries = []Entry{}
	}
	c.mu.Lock()
	current := c.gen[k] == gen
	if current && !c.closed {
		c.sets[k] = &entrySet{entries: entries, fetchedAt: c.clock()}
		delete(c.lastErr, k)
	}
	c.mu.Unlock()
	if !current {
		c.logger.Debugw("Discarding fetch superseded by invalidation",
			"project", k.project,
			"kind", k.kind.String())
		return entries, nil
	}
	c.failures.Delete(k)

	c.logger.Debugw("Resource fetched",
		"project", k.project,
		"kind", k.kind.String(),
		"count", len(entries),
		"duration_ms", elapsed.Milliseconds())
	return entries, nil
}

func errUnfetchable(kind Kind) error {
	return errors.Wrapf(errors.ErrInvalidRequest, "%s resources are not fetched", kind)
}
