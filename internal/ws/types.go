package ws

import (
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

const TypePriceUpdate = "price_update"

// PriceUpdate {type:"price_update", coinId, price, p24h?}
type PriceUpdate struct {
	CoinID  string  `json:"coinId"`
	Price   float64 `json:"price"`
	P24h    float64 `json:"p24h,omitempty"`
	HasP24h bool    `json:"-"`
}

// ParsePriceUpdate 识别价格更新消息；其他结构返回 false
// 调用方需先确认 data 是合法 JSON
func ParsePriceUpdate(data []byte) (PriceUpdate, bool) {
	msg := gjson.ParseBytes(data)
	if !msg.IsObject() || msg.Get("type").String() != TypePriceUpdate {
		return PriceUpdate{}, false
	}

	coinID := msg.Get("coinId").String()
	if coinID == "" {
		return PriceUpdate{}, false
	}

	priceField := msg.Get("price")
	if !priceField.Exists() || priceField.Type == gjson.Null {
		return PriceUpdate{}, false
	}
	price, err := cast.ToFloat64E(priceField.Value())
	if err != nil {
		return PriceUpdate{}, false
	}

	update := PriceUpdate{CoinID: coinID, Price: price}

	if p24h := msg.Get("p24h"); p24h.Exists() && p24h.Type != gjson.Null {
		if v, err := cast.ToFloat64E(p24h.Value()); err == nil {
			update.P24h = v
			update.HasP24h = true
		}
	}
	return update, true
}
