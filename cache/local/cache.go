package local

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("cache: key not found")

type Config struct {
	GCInterval time.Duration
}

// LocalCache is an in-process stand-in for Redis covering strings, hashes and
// lists. Every key lives in exactly one of the three maps; TTLs apply to any key.
type LocalCache struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	lists   map[string][]string
	expires map[string]time.Time

	gcInterval time.Duration
	stopGC     chan struct{}
	closeOnce  sync.Once
}

// NewCache creates a LocalCache and starts the background expiry sweep.
func NewCache(cfg Config) (*LocalCache, error) {
	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &LocalCache{
		strings:    make(map[string]string),
		hashes:     make(map[string]map[string]string),
		lists:      make(map[string][]string),
		expires:    make(map[string]time.Time),
		gcInterval: interval,
		stopGC:     make(chan struct{}),
	}
	go c.runGC()
	return c, nil
}

func (c *LocalCache) Close() error {
	c.closeOnce.Do(func() { close(c.stopGC) })
	return nil
}

func (c *LocalCache) runGC() {
	ticker := time.NewTicker(c.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, at := range c.expires {
				if now.After(at) {
					c.deleteLocked(k)
				}
			}
			c.mu.Unlock()
		case <-c.stopGC:
			return
		}
	}
}

// liveLocked drops key if it has expired and reports whether it still exists.
func (c *LocalCache) liveLocked(key string) bool {
	if at, ok := c.expires[key]; ok && time.Now().After(at) {
		c.deleteLocked(key)
		return false
	}
	_, s := c.strings[key]
	_, h := c.hashes[key]
	_, l := c.lists[key]
	return s || h || l
}

func (c *LocalCache) deleteLocked(key string) {
	delete(c.strings, key)
	delete(c.hashes, key)
	delete(c.lists, key)
	delete(c.expires, key)
}

// ---- KV ----

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(key) {
		return "", ErrNotFound
	}
	v, ok := c.strings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteLocked(key)
	c.strings[key] = value
	if ttl > 0 {
		c.expires[key] = time.Now().Add(ttl)
	}
	return nil
}

func (c *LocalCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.deleteLocked(k)
	}
	return nil
}

func (c *LocalCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key), nil
}

func (c *LocalCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(key) {
		return ErrNotFound
	}
	c.expires[key] = time.Now().Add(ttl)
	return nil
}

// ---- Hash ----

func (c *LocalCache) HSet(_ context.Context, key string, values map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveLocked(key)
	h, ok := c.hashes[key]
	if !ok {
		delete(c.strings, key)
		delete(c.lists, key)
		h = make(map[string]string, len(values))
		c.hashes[key] = h
	}
	for f, v := range values {
		h[f] = v
	}
	return nil
}

func (c *LocalCache) HGetAll(_ context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string)
	if !c.liveLocked(key) {
		return out, nil
	}
	for f, v := range c.hashes[key] {
		out[f] = v
	}
	return out, nil
}

// ---- List ----

// LPush prepends values one at a time, so the last value ends up at index 0.
func (c *LocalCache) LPush(_ context.Context, key string, values ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liveLocked(key)
	if _, ok := c.lists[key]; !ok {
		delete(c.strings, key)
		delete(c.hashes, key)
	}
	l := c.lists[key]
	grown := make([]string, 0, len(l)+len(values))
	for i := len(values) - 1; i >= 0; i-- {
		grown = append(grown, values[i])
	}
	c.lists[key] = append(grown, l...)
	return nil
}

func (c *LocalCache) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(key) {
		return nil, nil
	}
	l := c.lists[key]
	lo, hi, ok := span(int64(len(l)), start, stop)
	if !ok {
		return nil, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, l[lo:hi+1])
	return out, nil
}

func (c *LocalCache) LTrim(_ context.Context, key string, start, stop int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(key) {
		return nil
	}
	l := c.lists[key]
	lo, hi, ok := span(int64(len(l)), start, stop)
	if !ok {
		c.deleteLocked(key)
		return nil
	}
	c.lists[key] = append([]string(nil), l[lo:hi+1]...)
	return nil
}

// span resolves Redis-style inclusive indexes (negative counts from the end).
func span(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return 0, 0, false
	}
	return start, stop, true
}
