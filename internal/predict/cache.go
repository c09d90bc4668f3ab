package predict

import (
	"container/list"
	"sync"

	"github.com/hyperjump/henkan/internal/models"
)

// AnswerCache is an LRU cache for predicted answers keyed by question text.
type AnswerCache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value models.TextResponse
}

// NewAnswerCache creates a new cache with the given capacity. A capacity below 1 disables caching.
func NewAnswerCache(capacity int) *AnswerCache {
	return &AnswerCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached answer for key if present and marks it recently used.
func (c *AnswerCache) Get(key string) (models.TextResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return copyResponse(elem.Value.(*cacheEntry).value), true
	}
	return models.TextResponse{}, false
}

// Set stores the answer for key, evicting the least recently used entry if at capacity.
func (c *AnswerCache) Set(key string, value models.TextResponse) {
	if c.capacity < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	value = copyResponse(value)
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.entries[key] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Purge drops every entry.
func (c *AnswerCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

// Len returns the number of cached answers.
func (c *AnswerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func copyResponse(r models.TextResponse) models.TextResponse {
	if r.Lost != nil {
		r.Lost = append([]string(nil), r.Lost...)
	}
	return r
}
