package portfolio

import (
	"strings"

	"github.com/utrading/utrading-wallet-sync/internal/models"
)

// ReceiveAsset 可收款币种；USDT 支持两个网络
type ReceiveAsset struct {
	models.Coin
	Networks []string `json:"networks,omitempty"`
}

var receiveSymbols = []string{"USDT", "BTC", "ETH"}

var fallbackNames = map[string]string{
	"USDT": "Tether USD",
	"BTC":  "Bitcoin",
	"ETH":  "Ethereum",
}

// ReceiveAssets 固定顺序 USDT / BTC / ETH；目录里没有的币种用默认信息补齐
func ReceiveAssets(coins []models.Coin) []ReceiveAsset {
	bySymbol := make(map[string]models.Coin, len(coins))
	for _, coin := range coins {
		if _, exists := bySymbol[coin.Symbol]; !exists {
			bySymbol[coin.Symbol] = coin
		}
	}

	out := make([]ReceiveAsset, 0, len(receiveSymbols))
	for _, symbol := range receiveSymbols {
		coin, ok := bySymbol[symbol]
		if !ok {
			coin = models.Coin{
				CoinID: strings.ToLower(symbol),
				Symbol: symbol,
				Name:   fallbackNames[symbol],
				Icon:   "https://via.placeholder.com/48/3B82F6/FFFFFF?text=" + symbol,
			}
		}

		asset := ReceiveAsset{Coin: coin}
		if symbol == "USDT" {
			asset.Networks = []string{"ERC20", "TRC20"}
		}
		out = append(out, asset)
	}
	return out
}
