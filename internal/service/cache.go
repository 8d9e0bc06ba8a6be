// Пакет service — бизнес-логика TK Labels Module.
// CacheService — in-memory LRU-кэш проектов с TTL и тегами.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/tklabels-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lc_cache_hits_total",
		Help: "Общее количество попаданий в кэш проектов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lc_cache_misses_total",
		Help: "Общее количество промахов кэша проектов.",
	})
)

// ProjectCache — бэкенд кэша проектов.
// Реализуется CacheService (in-memory) и repository.CacheRepository (PostgreSQL).
type ProjectCache interface {
	// Get возвращает запись и true при hit; (nil, false, nil) при miss.
	Get(ctx context.Context, key string) (*model.ProjectRecord, bool, error)
	// Set сохраняет запись с TTL и тегами для массовой инвалидации.
	Set(ctx context.Context, key string, record *model.ProjectRecord, ttl time.Duration, tags []string) error
	// Delete удаляет запись.
	Delete(ctx context.Context, key string) error
	// Invalidate помечает запись недействительной (последующий Get — miss).
	Invalidate(ctx context.Context, key string) error
	// InvalidateTags инвалидирует все записи с любым из указанных тегов.
	InvalidateTags(ctx context.Context, tags ...string) error
}

// cacheEntry — запись in-memory кэша.
type cacheEntry struct {
	record    *model.ProjectRecord
	expiresAt time.Time
	tags      []string
}

// CacheService — in-memory LRU-кэш проектов.
// LRU ограничивает количество записей и время жизни сверху (maxTTL);
// TTL конкретной записи хранится в самой записи.
type CacheService struct {
	cache *expirable.LRU[string, cacheEntry]

	// writeMu упорядочивает Set и InvalidateTags: запись и её индексация
	// происходят целиком до или целиком после массовой инвалидации.
	// mu нельзя держать во время Add/Remove — onEvict берёт его сам.
	writeMu sync.Mutex

	// Индекс тег → ключи (для InvalidateTags)
	mu      sync.Mutex
	tagKeys map[string]map[string]struct{}

	now func() time.Time
}

// NewCacheService создаёт LRU-кэш.
// maxSize — максимальное количество записей.
// maxTTL — верхняя граница времени жизни записи (обычно LC_CACHE_TTL).
func NewCacheService(maxSize int, maxTTL time.Duration) *CacheService {
	c := &CacheService{
		tagKeys: make(map[string]map[string]struct{}),
		now:     time.Now,
	}
	c.cache = expirable.NewLRU[string, cacheEntry](maxSize, c.onEvict, maxTTL)
	return c
}

// Get возвращает запись из кэша.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(_ context.Context, key string) (*model.ProjectRecord, bool, error) {
	entry, ok := c.cache.Get(key)
	if !ok || !c.now().Before(entry.expiresAt) {
		cacheMissesTotal.Inc()
		return nil, false, nil
	}
	cacheHitsTotal.Inc()
	return entry.record, true, nil
}

// Set добавляет или обновляет запись в кэше.
// Set, завершившийся после InvalidateTags, переживает её: это последняя запись.
func (c *CacheService) Set(_ context.Context, key string, record *model.ProjectRecord, ttl time.Duration, tags []string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.cache.Add(key, cacheEntry{
		record:    record,
		expiresAt: c.now().Add(ttl),
		tags:      tags,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		keys, ok := c.tagKeys[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tagKeys[tag] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// Delete удаляет запись из кэша.
func (c *CacheService) Delete(_ context.Context, key string) error {
	c.cache.Remove(key)
	return nil
}

// Invalidate инвалидирует запись. Для in-memory кэша эквивалентно Delete.
func (c *CacheService) Invalidate(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// InvalidateTags удаляет все записи с указанными тегами.
func (c *CacheService) InvalidateTags(_ context.Context, tags ...string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	var keys []string
	for _, tag := range tags {
		for key := range c.tagKeys[tag] {
			keys = append(keys, key)
		}
		delete(c.tagKeys, tag)
	}
	c.mu.Unlock()

	// Remove вызывает onEvict, который берёт c.mu — поэтому вне блокировки
	for _, key := range keys {
		c.cache.Remove(key)
	}
	return nil
}

// Len возвращает количество записей в кэше (включая ещё не вычищенные просроченные).
func (c *CacheService) Len() int {
	return c.cache.Len()
}

// onEvict поддерживает индекс тегов при вытеснении и удалении записей.
func (c *CacheService) onEvict(key string, entry cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range entry.tags {
		if keys, ok := c.tagKeys[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.tagKeys, tag)
			}
		}
	}
}
