package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/patrickmn/go-cache"
)

// Cache 全局缓存实例
var Cache *cache.Cache

func init() {
	InitCache()
}

// InitCache 初始化缓存
func InitCache() {
	// 默认过期时间5分钟，清理间隔10分钟
	Cache = cache.New(5*time.Minute, 10*time.Minute)
}

// CacheGet 获取缓存值
func CacheGet(key string) (interface{}, bool) {
	return Cache.Get(key)
}

// CacheSet 设置缓存值
func CacheSet(key string, value interface{}, duration time.Duration) {
	Cache.Set(key, value, duration)
}

// CacheDelete 删除缓存
func CacheDelete(key string) {
	Cache.Delete(key)
}

// CacheItem 包装实际的数据，增加过期时间
type CacheItem[T any] struct {
	Value     T
	ExpiredAt time.Time
}

// TTLCache 带过期时间的 LRU 缓存
type TTLCache[K comparable, T any] struct {
	storage *lru.Cache[K, CacheItem[T]]
	ttl     time.Duration
}

// NewTTLCache size 是最大缓存条数，ttl 是数据有效期
func NewTTLCache[K comparable, T any](size int, ttl time.Duration) *TTLCache[K, T] {
	// lru.New 是线程安全的，size <= 0 时才会返回错误
	if size <= 0 {
		size = 1
	}
	c, _ := lru.New[K, CacheItem[T]](size)
	return &TTLCache[K, T]{
		storage: c,
		ttl:     ttl,
	}
}

// Set 写入（LRU 中 Add 会自动处理 Update）
func (c *TTLCache[K, T]) Set(key K, value T) {
	c.storage.Add(key, CacheItem[T]{
		Value:     value,
		ExpiredAt: time.Now().Add(c.ttl),
	})
}

// Get 读取（带过期检查）
func (c *TTLCache[K, T]) Get(key K) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}

	if time.Now().After(item.ExpiredAt) {
		c.storage.Remove(key)
		return zero, false
	}

	return item.Value, true
}
