package records

import (
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/queenofscience/export-module/internal/domain/model"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ex_record_cache_hits_total",
		Help: "Количество попаданий в кэш коллекций.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ex_record_cache_misses_total",
		Help: "Количество промахов кэша коллекций.",
	})
)

// cacheEntry - разобранная коллекция и отпечаток файла, из которого она прочитана.
type cacheEntry struct {
	modTime time.Time
	size    int64
	docs    []json.RawMessage
}

// collectionCache - LRU-кэш разобранных коллекций с TTL.
// Запись действительна, пока совпадают mtime и размер файла.
type collectionCache struct {
	lru *expirable.LRU[model.Collection, *cacheEntry]
}

// newCollectionCache создаёт кэш. size <= 0 отключает кэширование (nil).
func newCollectionCache(size int, ttl time.Duration) *collectionCache {
	if size <= 0 {
		return nil
	}
	return &collectionCache{
		lru: expirable.NewLRU[model.Collection, *cacheEntry](size, nil, ttl),
	}
}

// get возвращает документы, если файл не менялся с момента кэширования.
func (c *collectionCache) get(col model.Collection, modTime time.Time, size int64) ([]json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.lru.Get(col)
	if !ok || !e.modTime.Equal(modTime) || e.size != size {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return e.docs, true
}

func (c *collectionCache) put(col model.Collection, modTime time.Time, size int64, docs []json.RawMessage) {
	if c == nil {
		return
	}
	c.lru.Add(col, &cacheEntry{modTime: modTime, size: size, docs: docs})
}

func (c *collectionCache) invalidate(col model.Collection) {
	if c == nil {
		return
	}
	c.lru.Remove(col)
}
