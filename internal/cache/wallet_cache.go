package cache

import (
	"encoding/json"
	"time"

	"github.com/utrading/utrading-wallet-sync/internal/monitor"
	"github.com/utrading/utrading-wallet-sync/internal/storage"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

// Entry 存储中的序列化格式，时间单位为毫秒
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl"`
}

// Expired timestamp + ttl < now 时视为不存在
func (e Entry) Expired(now time.Time) bool {
	return e.Timestamp+e.TTL < now.UnixMilli()
}

// WalletCache 带 TTL 的持久化缓存
// 存储和序列化错误只记录日志，调用方看到的永远是未命中
type WalletCache struct {
	store   storage.Store
	now     func() time.Time
	metrics *monitor.Metrics
}

func New(store storage.Store) *WalletCache {
	return &WalletCache{
		store:   store,
		now:     time.Now,
		metrics: monitor.GetMetrics(),
	}
}

// SetMetrics 替换指标收集器，测试使用
func (c *WalletCache) SetMetrics(m *monitor.Metrics) {
	c.metrics = m
}

// SetClock 替换时钟，测试使用
func (c *WalletCache) SetClock(now func() time.Time) {
	c.now = now
}

func (c *WalletCache) Now() time.Time {
	return c.now()
}

// Store 底层存储
func (c *WalletCache) Store() storage.Store {
	return c.store
}

// Set 写入 {data, timestamp, ttl}，ttl <= 0 时使用 DefaultTTL
func (c *WalletCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.metrics.IncCacheWriteError(metricKey(key))
		logger.Warn().Err(err).Str("key", key).Msg("failed to cache data")
		return
	}

	raw, err := json.Marshal(Entry{
		Data:      data,
		Timestamp: c.now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	})
	if err != nil {
		c.metrics.IncCacheWriteError(metricKey(key))
		logger.Warn().Err(err).Str("key", key).Msg("failed to cache data")
		return
	}

	if err = c.store.SetItem(key, string(raw)); err != nil {
		c.metrics.IncCacheWriteError(metricKey(key))
		logger.Warn().Err(err).Str("key", key).Msg("failed to cache data")
	}
}

// 读取结果，用作指标标签
const (
	lookupHit       = "hit"
	lookupMiss      = "miss"
	lookupExpired   = "expired"
	lookupMalformed = "malformed"
)

// read 读取并解析原始条目，不检查过期；未读到时返回 miss 或 malformed
func (c *WalletCache) read(key string) (Entry, string) {
	raw, found, err := c.store.GetItem(key)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to retrieve cached data")
		return Entry{}, lookupMiss
	}
	if !found {
		return Entry{}, lookupMiss
	}

	var entry Entry
	if err = json.Unmarshal([]byte(raw), &entry); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("malformed cache entry")
		return Entry{}, lookupMalformed
	}
	return entry, lookupHit
}

// Lookup 返回未过期的条目；过期条目会被删除
func (c *WalletCache) Lookup(key string) (Entry, bool) {
	entry, result := c.read(key)
	if result == lookupHit && entry.Expired(c.now()) {
		result = lookupExpired
		c.Remove(key)
	}

	c.metrics.IncCacheLookup(metricKey(key), result)
	if result != lookupHit {
		return Entry{}, false
	}
	return entry, true
}

// Get 读取并反序列化为 T
func Get[T any](c *WalletCache, key string) (T, bool) {
	var value T

	entry, ok := c.Lookup(key)
	if !ok {
		return value, false
	}

	if err := json.Unmarshal(entry.Data, &value); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to decode cached data")
		var zero T
		return zero, false
	}
	return value, true
}

// Remove 删除键，不存在时忽略
func (c *WalletCache) Remove(key string) {
	if err := c.store.RemoveItem(key); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to remove cached data")
	}
}

// Clear 删除固定的几个键
func (c *WalletCache) Clear() {
	for _, key := range wellKnownKeys {
		c.Remove(key)
	}
}

// IsStale 与 TTL 无关：缺失、损坏或 now - timestamp > maxAge 时返回 true
func (c *WalletCache) IsStale(key string, maxAge time.Duration) bool {
	entry, result := c.read(key)
	if result != lookupHit {
		return true
	}
	return c.now().UnixMilli()-entry.Timestamp > maxAge.Milliseconds()
}
