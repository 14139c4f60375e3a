package cache

import (
	"github.com/utrading/utrading-wallet-sync/pkg/concurrent"
)

// PriceCache 价格流的内存视图（价格 + 24h 涨跌幅）
type PriceCache struct {
	prices concurrent.Map[string, float64] // coin_id -> price
	p24h   concurrent.Map[string, float64] // coin_id -> 24h change %
}

// NewPriceCache 创建价格缓存
func NewPriceCache() *PriceCache {
	return &PriceCache{}
}

// Seed 用持久化数据覆盖内存视图（冷启动）
func (c *PriceCache) Seed(prices, p24h map[string]float64) {
	if prices != nil {
		c.prices.Clear()
		for k, v := range prices {
			c.prices.Store(k, v)
		}
	}
	if p24h != nil {
		c.p24h.Clear()
		for k, v := range p24h {
			c.p24h.Store(k, v)
		}
	}
}

func (c *PriceCache) GetPrice(coinID string) (float64, bool) {
	return c.prices.Load(coinID)
}

func (c *PriceCache) SetPrice(coinID string, price float64) {
	c.prices.Store(coinID, price)
}

func (c *PriceCache) GetP24h(coinID string) (float64, bool) {
	return c.p24h.Load(coinID)
}

func (c *PriceCache) SetP24h(coinID string, change float64) {
	c.p24h.Store(coinID, change)
}

// Prices 当前价格表的副本
func (c *PriceCache) Prices() map[string]float64 {
	return c.prices.Snapshot()
}

// P24h 当前涨跌幅表的副本
func (c *PriceCache) P24h() map[string]float64 {
	return c.p24h.Snapshot()
}

// Stats 获取统计信息
func (c *PriceCache) Stats() map[string]any {
	return map[string]any{
		"price_count": c.prices.Len(),
		"p24h_count":  c.p24h.Len(),
	}
}
