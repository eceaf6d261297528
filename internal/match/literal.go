// Package match implements the predicate strategies applied to message
// content: plain substring, compiled regular expression, and lexicon-based
// term detection with three strictness levels.
package match

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/cache"
)

// Literal reports whether keyword appears in text, case-insensitively.
func Literal(text, keyword string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
}

// KeywordMatcher answers "does this text contain any configured keyword".
// It runs on every inbound message and every scanned historical message,
// so results are memoized in a bounded TTL cache keyed by a truncated
// hash of the text. Hash collisions trade a rare wrong answer for not
// holding full message bodies in memory. The keyword set can be swapped
// live on config reload; swapping invalidates the memo.
type KeywordMatcher struct {
	mu       sync.RWMutex
	keywords []string
	memo     *cache.Cache[uint64, bool]
}

const memoKeySpace = 10_000_000

// NewKeywordMatcher builds a matcher over the given keywords.
// memoSize bounds the result cache (10000 entries, 1h in production).
func NewKeywordMatcher(keywords []string, memoSize int, memoTTL time.Duration) *KeywordMatcher {
	m := &KeywordMatcher{
		memo: cache.New[uint64, bool](memoSize, memoTTL),
	}
	m.SetKeywords(keywords)
	return m
}

// SetKeywords replaces the keyword set and invalidates the memo.
func (m *KeywordMatcher) SetKeywords(keywords []string) {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	m.mu.Lock()
	m.keywords = lowered
	m.mu.Unlock()
	m.memo.Clear()
}

// Keywords returns a copy of the active lowercase keyword set.
func (m *KeywordMatcher) Keywords() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.keywords))
	copy(out, m.keywords)
	return out
}

// Match reports whether text contains any configured keyword.
func (m *KeywordMatcher) Match(text string) bool {
	m.mu.RLock()
	keywords := m.keywords
	m.mu.RUnlock()
	if len(keywords) == 0 {
		return false
	}

	key := textKey(text)
	if cached, ok := m.memo.Get(key); ok {
		return cached
	}

	lower := strings.ToLower(text)
	result := false
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			result = true
			break
		}
	}

	m.memo.Set(key, result)
	return result
}

// MemoStats exposes the memo cache statistics.
func (m *KeywordMatcher) MemoStats() cache.Stats {
	return m.memo.Stats()
}

func textKey(text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return h.Sum64() % memoKeySpace
}
