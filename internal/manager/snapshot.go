package manager

import (
	"github.com/utrading/utrading-wallet-sync/internal/cache"
	"github.com/utrading/utrading-wallet-sync/internal/models"
)

// Snapshot 某一时刻的钱包数据和加载状态
type Snapshot struct {
	Address string `json:"address"`
	Demo    bool   `json:"demo"`

	Coins   []models.Coin      `json:"coins"`
	Balance models.BalanceData `json:"balance"`
	Prices  models.PriceData   `json:"prices"`
	P24h    models.P24hData    `json:"p24h"`

	IsLoading      bool `json:"is_loading"`
	CoinsLoading   bool `json:"coins_loading"`
	BalanceLoading bool `json:"balance_loading"`

	// Error 币种错误优先
	Error        error  `json:"-"`
	CoinsError   error  `json:"-"`
	BalanceError error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`

	WSConnected bool  `json:"ws_connected"`
	LastUpdate  int64 `json:"last_update,omitempty"`
}

func (m *WalletManager) Snapshot() Snapshot {
	m.mu.RLock()
	s := Snapshot{
		Coins:          append([]models.Coin(nil), m.coins...),
		Balance:        make(models.BalanceData, len(m.balance)),
		CoinsLoading:   m.coinsDS.loading,
		BalanceLoading: m.balDS.loading,
		CoinsError:     m.coinsDS.err,
		BalanceError:   m.balDS.err,
	}
	for k, v := range m.balance {
		s.Balance[k] = v
	}
	if m.sess != nil {
		s.Address = m.sess.Address
		s.Demo = m.sess.Demo
	}
	m.mu.RUnlock()

	s.Prices = m.stream.Prices()
	s.P24h = m.stream.P24h()
	s.WSConnected = m.stream.Connected()
	s.IsLoading = s.CoinsLoading || s.BalanceLoading

	s.Error = s.CoinsError
	if s.Error == nil {
		s.Error = s.BalanceError
	}
	if s.Error != nil {
		s.ErrorMessage = s.Error.Error()
	}

	if ts, ok := cache.Get[int64](m.cache, cache.KeyLastUpdate); ok {
		s.LastUpdate = ts
	}
	return s
}
