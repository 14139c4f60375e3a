package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePriceUpdate(t *testing.T) {
	tests := []struct {
		name string
		data string
		want PriceUpdate
		ok   bool
	}{
		{"with p24h", `{"type":"price_update","coinId":"bitcoin","price":65000,"p24h":-1.25}`,
			PriceUpdate{CoinID: "bitcoin", Price: 65000, P24h: -1.25, HasP24h: true}, true},
		{"without p24h", `{"type":"price_update","coinId":"ethereum","price":3000}`,
			PriceUpdate{CoinID: "ethereum", Price: 3000}, true},
		{"null p24h", `{"type":"price_update","coinId":"ethereum","price":3000,"p24h":null}`,
			PriceUpdate{CoinID: "ethereum", Price: 3000}, true},
		{"string price", `{"type":"price_update","coinId":"tether","price":"0.9998"}`,
			PriceUpdate{CoinID: "tether", Price: 0.9998}, true},
		{"other type", `{"type":"snapshot","coinId":"bitcoin","price":1}`, PriceUpdate{}, false},
		{"missing coin", `{"type":"price_update","price":1}`, PriceUpdate{}, false},
		{"missing price", `{"type":"price_update","coinId":"bitcoin"}`, PriceUpdate{}, false},
		{"bad price", `{"type":"price_update","coinId":"bitcoin","price":"abc"}`, PriceUpdate{}, false},
		{"array", `[1,2,3]`, PriceUpdate{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePriceUpdate([]byte(tt.data))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
