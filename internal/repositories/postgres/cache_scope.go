package postgres

import (
	"context"
	"sync"

	"github.com/SAP-F-2025/challenge-service/internal/cache"
)

// bypassCache always misses, so reads fall through to the database
var bypassCache = cache.NewCacheManager(nil)

// cacheScope is how a repository sees the cache. Outside a transaction reads
// go through Redis and invalidations run at once. Inside one, reads skip the
// cache and invalidations are queued until the transaction commits.
type cacheScope struct {
	reads *cache.CacheManager
	live  *cache.CacheManager
	inTx  bool

	mu      sync.Mutex
	pending []func(context.Context, *cache.CacheManager)
}

func newLiveScope(cm *cache.CacheManager) *cacheScope {
	return &cacheScope{reads: cm, live: cm}
}

func newTxScope(cm *cache.CacheManager) *cacheScope {
	return &cacheScope{reads: bypassCache, live: cm, inTx: true}
}

// invalidate runs fn against the live cache, or queues it while in a transaction
func (s *cacheScope) invalidate(ctx context.Context, fn func(context.Context, *cache.CacheManager)) {
	if !s.inTx {
		fn(ctx, s.live)
		return
	}

	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
}

// flush runs the queued invalidations once the transaction has committed
func (s *cacheScope) flush(ctx context.Context) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	for _, fn := range pending {
		fn(ctx, s.live)
	}
}

// discard drops the queued invalidations of a rolled back transaction
func (s *cacheScope) discard() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}
