package cache

import (
	"strings"
	"time"
)

// 持久化存储中的固定键
const (
	KeyCoins      = "wallet_coins_cache"
	KeyCurrency   = "wallet_currency_setting"
	KeyBalance    = "wallet_balance_cache"
	KeyPrices     = "wallet_prices_cache"
	KeyP24h       = "wallet_p24h_cache"
	KeyLastUpdate = "wallet_last_update"
	KeyQRCodes    = "wallet_qr_cache"
)

// 各数据集的有效期
const (
	DurationCoins   = 30 * time.Minute
	DurationBalance = 5 * time.Minute
	DurationPrices  = 30 * time.Second
	DurationP24h    = 5 * time.Minute

	DefaultTTL = DurationPrices
)

// wellKnownKeys Clear 只删除这些键，不清空整个存储
var wellKnownKeys = []string{
	KeyCoins,
	KeyCurrency,
	KeyBalance,
	KeyPrices,
	KeyP24h,
	KeyLastUpdate,
}

// BalanceKey 余额按地址分键
func BalanceKey(address string) string {
	if address == "" {
		return KeyBalance
	}
	return KeyBalance + "_" + address
}

// metricKey 去掉地址后缀，避免指标标签基数过高
func metricKey(key string) string {
	if strings.HasPrefix(key, KeyBalance+"_") {
		return KeyBalance
	}
	return key
}
