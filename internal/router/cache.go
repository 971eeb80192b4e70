package router

import (
	"time"

	"github.com/quanvu/dipbot/internal/types"
)

// cachedResult pairs a result with its insertion time so expired entries can
// be garbage collected.
type cachedResult struct {
	result   types.OrderResult
	cachedAt time.Time
}

// resultCache is the intent-id keyed outcome store. It is not safe for
// concurrent use on its own; the router's lock guards all access.
type resultCache struct {
	entries     map[string]cachedResult
	ttl         time.Duration
	interval    time.Duration
	lastCleanup time.Time
}

func newResultCache(ttl, interval time.Duration) *resultCache {
	return &resultCache{
		entries:     make(map[string]cachedResult),
		ttl:         ttl,
		interval:    interval,
		lastCleanup: time.Now(),
	}
}

func (c *resultCache) get(intentID string) (types.OrderResult, bool) {
	entry, ok := c.entries[intentID]
	if !ok {
		return types.OrderResult{}, false
	}
	if time.Since(entry.cachedAt) > c.ttl {
		delete(c.entries, intentID)
		return types.OrderResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) put(intentID string, result types.OrderResult) {
	c.entries[intentID] = cachedResult{result: result, cachedAt: time.Now()}
}

// maybeCleanup drops expired entries, at most once per cleanup interval so a
// busy submit path is not charged a full map sweep on every call.
func (c *resultCache) maybeCleanup() {
	now := time.Now()
	if now.Sub(c.lastCleanup) < c.interval {
		return
	}
	c.lastCleanup = now
	for id, entry := range c.entries {
		if now.Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, id)
		}
	}
}

func (c *resultCache) size() int {
	return len(c.entries)
}
