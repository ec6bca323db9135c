// Package dedup provides a fixed-capacity set of recently seen keys.
package dedup

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the set when no capacity is configured.
const DefaultCapacity = 10000

// Seen remembers the most recently observed keys; the least recently observed
// key is evicted once capacity is reached. Safe for concurrent use.
type Seen struct {
	cache *lru.Cache[string, struct{}]
}

// NewSeen builds a set holding at most capacity keys.
func NewSeen(capacity int) (*Seen, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("seen set: %w", err)
	}
	return &Seen{cache: cache}, nil
}

// Observe records key and reports whether it was already present.
func (s *Seen) Observe(key string) bool {
	found, _ := s.cache.ContainsOrAdd(key, struct{}{})
	if found {
		// refresh recency
		s.cache.Get(key)
	}
	return found
}

// Contains reports whether key is present without touching recency.
func (s *Seen) Contains(key string) bool {
	return s.cache.Contains(key)
}

// Len returns the number of keys held.
func (s *Seen) Len() int {
	return s.cache.Len()
}
