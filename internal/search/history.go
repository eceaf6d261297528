package search

import (
	"context"
	"fmt"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/cache"
	"github.com/BENZOOgataga/DeepSearch/internal/platform"
)

// HistoryCache caches a channel's newest history page so repeated commands
// within a short window do not refetch it. Keys are (channel, page size);
// deep and scheduled scans pass force to see the latest state.
type HistoryCache struct {
	client platform.Client
	pages  *cache.Cache[string, []platform.Message]
}

// NewHistoryCache wraps client with a bounded page cache.
// Production sizing follows the live-watch caches: 1000 entries, 5 min TTL.
func NewHistoryCache(client platform.Client, capacity int, ttl time.Duration) *HistoryCache {
	return &HistoryCache{
		client: client,
		pages:  cache.New[string, []platform.Message](capacity, ttl),
	}
}

// Page returns up to limit newest messages of the channel, from cache when
// possible. force bypasses and overwrites the cached entry.
func (h *HistoryCache) Page(ctx context.Context, channelID string, limit int, force bool) ([]platform.Message, error) {
	key := fmt.Sprintf("%s:%d", channelID, limit)
	if !force {
		if msgs, ok := h.pages.Get(key); ok {
			return msgs, nil
		}
	}

	msgs, err := h.client.History(ctx, channelID, limit, 0)
	if err != nil {
		return nil, err
	}
	h.pages.Set(key, msgs)
	return msgs, nil
}

// Clear drops every cached page.
func (h *HistoryCache) Clear() {
	h.pages.Clear()
}

// Stats exposes the underlying cache statistics.
func (h *HistoryCache) Stats() cache.Stats {
	return h.pages.Stats()
}
