package external

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/trialmatch-engine/internal/domain"
)

// LiteratureCache is an in-process TTL cache for article lookups. Articles
// are auxiliary context, so a small bounded LRU is enough; losing entries
// only costs a re-fetch.
type LiteratureCache struct {
	lru *expirable.LRU[string, []domain.Article]
}

// NewLiteratureCache creates a cache holding up to size conditions, each
// expiring after ttl.
func NewLiteratureCache(size int, ttl time.Duration) *LiteratureCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LiteratureCache{
		lru: expirable.NewLRU[string, []domain.Article](size, nil, ttl),
	}
}

// Get returns the cached articles for a condition, with a hit flag.
func (c *LiteratureCache) Get(condition string) ([]domain.Article, bool) {
	return c.lru.Get(condition)
}

// Set stores articles for a condition.
func (c *LiteratureCache) Set(condition string, articles []domain.Article) {
	c.lru.Add(condition, articles)
}

// Len reports the number of live entries.
func (c *LiteratureCache) Len() int {
	return c.lru.Len()
}
