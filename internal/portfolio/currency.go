package portfolio

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/utrading/utrading-wallet-sync/internal/cache"
)

type Currency string

const (
	USD Currency = "USD"
	IDR Currency = "IDR"
)

// IDRRate 1 USD 折合的印尼盾
var IDRRate = decimal.NewFromInt(15000)

// currencyTTL 偏好设置长期有效
const currencyTTL = 365 * 24 * time.Hour

func ParseCurrency(s string) (Currency, bool) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case USD:
		return USD, true
	case IDR:
		return IDR, true
	default:
		return "", false
	}
}

func (c Currency) Symbol() string {
	if c == IDR {
		return "Rp"
	}
	return "$"
}

// Preferences 货币偏好，存放在 wallet_currency_setting
type Preferences struct {
	cache *cache.WalletCache
}

func NewPreferences(c *cache.WalletCache) *Preferences {
	return &Preferences{cache: c}
}

// Currency 未设置或值非法时为 USD
func (p *Preferences) Currency() Currency {
	saved, ok := cache.Get[string](p.cache, cache.KeyCurrency)
	if !ok {
		return USD
	}
	if cur, ok := ParseCurrency(saved); ok {
		return cur
	}
	return USD
}

func (p *Preferences) SetCurrency(cur Currency) error {
	if _, ok := ParseCurrency(string(cur)); !ok {
		return fmt.Errorf("unsupported currency %q", cur)
	}
	p.cache.Set(cache.KeyCurrency, string(cur), currencyTTL)
	return nil
}

// FormatCurrency USD: $1,234.56；IDR: 折算后按 id-ID 习惯分组，最多 3 位小数
func FormatCurrency(amount decimal.Decimal, cur Currency) string {
	if cur == IDR {
		return cur.Symbol() + group(amount.Mul(IDRRate).Round(3).String(), ".", ",")
	}
	return cur.Symbol() + group(amount.StringFixed(2), ",", ".")
}

// FormatPrice 与 FormatCurrency 规则一致
func FormatPrice(price decimal.Decimal, cur Currency) string {
	return FormatCurrency(price, cur)
}

// FormatP24h 保留两位小数，正数带 +
func FormatP24h(p24h float64) string {
	d := decimal.NewFromFloat(p24h).Round(2)
	if d.IsZero() {
		return "0.00%"
	}
	if d.IsPositive() {
		return "+" + d.StringFixed(2) + "%"
	}
	return d.StringFixed(2) + "%"
}

// group 对 "-1234567.89" 形式的数字串做千分位分组
func group(s, thousands, decimalSep string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(r)
	}

	if hasFrac {
		b.WriteString(decimalSep)
		b.WriteString(frac)
	}
	return sign + b.String()
}
