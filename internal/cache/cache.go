// Package cache memoizes processed proxy responses under a per-entry TTL.
//
// Keys are the raw request URLs: two syntactically different spellings of
// the same resource produce distinct entries, and there is no capacity bound
// beyond expiry — operators control growth via the TTL and Clear.
package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Entry is a processed (content, media type) pair.
type Entry struct {
	Content     []byte
	ContentType string
}

type Stats struct {
	Entries int `json:"entries"`
}

// Cache is safe for concurrent use. The backing store is created without its
// own janitor so the sweep goroutine has an explicit stop, tied to Stop.
type Cache struct {
	store    *gocache.Cache
	log      *zap.Logger
	done     chan struct{}
	stopOnce sync.Once
}

func New(log *zap.Logger, sweepInterval time.Duration) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	c := &Cache{
		store: gocache.New(gocache.NoExpiration, 0),
		log:   log,
		done:  make(chan struct{}),
	}
	go c.sweep(sweepInterval)
	return c
}

// Get returns the entry under key if it has not outlived its TTL. A miss
// also deletes whatever may still be stored under the key, so an expired
// entry is removed the moment it is observed rather than lingering until
// the next sweep.
func (c *Cache) Get(key string) (Entry, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		c.store.Delete(key)
		return Entry{}, false
	}
	return v.(Entry), true
}

func (c *Cache) Set(key string, content []byte, contentType string, ttl time.Duration) {
	c.store.Set(key, Entry{Content: content, ContentType: contentType}, ttl)
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.store.Flush()
}

// Stats counts live entries only; expired-but-unswept ones are excluded.
func (c *Cache) Stats() Stats {
	return Stats{Entries: len(c.store.Items())}
}

// Stop halts the sweep goroutine and clears all entries. Safe to call more
// than once; must be called at shutdown to release the ticker.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.store.Flush()
	})
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			before := c.store.ItemCount()
			c.store.DeleteExpired()
			if removed := before - c.store.ItemCount(); removed > 0 {
				c.log.Debug("cache sweep", zap.Int("removed", removed))
			}
		}
	}
}
