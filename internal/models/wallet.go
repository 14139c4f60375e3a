package models

// Coin 币种目录项，coin_id 为唯一标识
type Coin struct {
	CoinID string `json:"coin_id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Icon   string `json:"icon"`
}

// BalanceData symbol -> 余额（整币单位）
type BalanceData map[string]float64

// PriceData coin_id -> 当前价格
type PriceData map[string]float64

// P24hData coin_id -> 24h 涨跌幅（百分比）
type P24hData map[string]float64

// WalletAddresses 会话期间不变的三条链地址
type WalletAddresses struct {
	ETH  string `json:"eth"`
	Tron string `json:"tron"`
	BTC  string `json:"btc"`
}

// QRCodeData 某个槽位已预加载的二维码
type QRCodeData struct {
	Address   string `json:"address"`
	QRCodeURL string `json:"qrCodeUrl"`
	Timestamp int64  `json:"timestamp"`
}
