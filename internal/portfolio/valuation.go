package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/utrading/utrading-wallet-sync/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PNL 今日盈亏百分比（取绝对值）和方向
type PNL struct {
	Percentage decimal.Decimal `json:"percentage"`
	IsPositive bool            `json:"is_positive"`
}

// Holding 单个币种的持仓估值
type Holding struct {
	CoinID  string          `json:"coin_id"`
	Symbol  string          `json:"symbol"`
	Name    string          `json:"name"`
	Icon    string          `json:"icon"`
	Balance decimal.Decimal `json:"balance"`
	Price   decimal.Decimal `json:"price"`
	Value   decimal.Decimal `json:"value"`
	P24h    decimal.Decimal `json:"p24h"`
}

// value balance[symbol] * price[coin_id]，缺失按 0
func value(coin models.Coin, balance models.BalanceData, prices models.PriceData) decimal.Decimal {
	b := decimal.NewFromFloat(balance[coin.Symbol])
	p := decimal.NewFromFloat(prices[coin.CoinID])
	return b.Mul(p)
}

// TotalAssets 所有币种估值之和
func TotalAssets(coins []models.Coin, balance models.BalanceData, prices models.PriceData) decimal.Decimal {
	total := decimal.Zero
	for _, coin := range coins {
		total = total.Add(value(coin, balance, prices))
	}
	return total
}

// PNLToday 前值按 price / (1 + p24h/100) 反推；前值总和为 0 时返回 0%
func PNLToday(coins []models.Coin, balance models.BalanceData, prices models.PriceData, p24h models.P24hData) PNL {
	current := decimal.Zero
	previous := decimal.Zero

	for _, coin := range coins {
		b := decimal.NewFromFloat(balance[coin.Symbol])
		price := decimal.NewFromFloat(prices[coin.CoinID])
		factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(p24h[coin.CoinID]).Div(hundred))

		prevPrice := price
		// -100% 及以下无法反推
		if factor.IsPositive() {
			prevPrice = price.Div(factor)
		}

		current = current.Add(b.Mul(price))
		previous = previous.Add(b.Mul(prevPrice))
	}

	if previous.IsZero() {
		return PNL{Percentage: decimal.Zero, IsPositive: true}
	}

	pct := current.Sub(previous).Div(previous).Mul(hundred)
	return PNL{Percentage: pct.Abs(), IsPositive: !pct.IsNegative()}
}

// SortCoins 按估值降序，估值相同保持原顺序
func SortCoins(coins []models.Coin, balance models.BalanceData, prices models.PriceData) []models.Coin {
	sorted := make([]models.Coin, len(coins))
	copy(sorted, coins)

	sort.SliceStable(sorted, func(i, j int) bool {
		return value(sorted[i], balance, prices).GreaterThan(value(sorted[j], balance, prices))
	})
	return sorted
}

// Holdings 排序后的持仓明细
func Holdings(coins []models.Coin, balance models.BalanceData, prices models.PriceData, p24h models.P24hData) []Holding {
	sorted := SortCoins(coins, balance, prices)
	out := make([]Holding, 0, len(sorted))
	for _, coin := range sorted {
		out = append(out, Holding{
			CoinID:  coin.CoinID,
			Symbol:  coin.Symbol,
			Name:    coin.Name,
			Icon:    coin.Icon,
			Balance: decimal.NewFromFloat(balance[coin.Symbol]),
			Price:   decimal.NewFromFloat(prices[coin.CoinID]),
			Value:   value(coin, balance, prices),
			P24h:    decimal.NewFromFloat(p24h[coin.CoinID]),
		})
	}
	return out
}

// Summary 钱包页面需要的汇总数据
type Summary struct {
	Currency       Currency  `json:"currency"`
	TotalAssets    string    `json:"total_assets"`
	TotalFormatted string    `json:"total_formatted"`
	PNLToday       PNL       `json:"pnl_today"`
	Holdings       []Holding `json:"holdings"`
}

func Summarize(coins []models.Coin, balance models.BalanceData, prices models.PriceData, p24h models.P24hData, cur Currency) Summary {
	total := TotalAssets(coins, balance, prices)
	return Summary{
		Currency:       cur,
		TotalAssets:    total.StringFixed(2),
		TotalFormatted: FormatCurrency(total, cur),
		PNLToday:       PNLToday(coins, balance, prices, p24h),
		Holdings:       Holdings(coins, balance, prices, p24h),
	}
}
