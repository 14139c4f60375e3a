package manager

import (
	"fmt"
	"strings"

	"github.com/utrading/utrading-wallet-sync/internal/models"
	"github.com/utrading/utrading-wallet-sync/internal/portfolio"
	"github.com/utrading/utrading-wallet-sync/internal/qrcode"
)

// Status /status 返回的内容
type Status struct {
	Wallet     Snapshot                 `json:"wallet"`
	Addresses  models.WalletAddresses   `json:"addresses"`
	Summary    portfolio.Summary        `json:"summary"`
	Receivable []portfolio.ReceiveAsset `json:"receivable"`
}

// ReceiveInfo 收款页面某个币种/网络的地址和二维码
type ReceiveInfo struct {
	Asset     string `json:"asset"`
	Network   string `json:"network,omitempty"`
	Address   string `json:"address"`
	QRCodeURL string `json:"qr_code_url"`
}

// StatusView 给状态服务器用的只读视图
type StatusView struct {
	wallet *WalletManager
	qr     *qrcode.Manager
	prefs  *portfolio.Preferences
}

func NewStatusView(wallet *WalletManager, qr *qrcode.Manager, prefs *portfolio.Preferences) *StatusView {
	return &StatusView{wallet: wallet, qr: qr, prefs: prefs}
}

func (v *StatusView) Status() any {
	snap := v.wallet.Snapshot()

	var addrs models.WalletAddresses
	if sess := v.wallet.Session(); sess != nil {
		addrs = sess.Addresses
	}

	return Status{
		Wallet:     snap,
		Addresses:  addrs,
		Summary:    portfolio.Summarize(snap.Coins, snap.Balance, snap.Prices, snap.P24h, v.prefs.Currency()),
		Receivable: portfolio.ReceiveAssets(snap.Coins),
	}
}

// Receive 未知币种或会话未就绪时返回 false
func (v *StatusView) Receive(asset, network string) (any, bool) {
	sess := v.wallet.Session()
	if sess == nil {
		return nil, false
	}

	asset = strings.ToUpper(strings.TrimSpace(asset))
	network = strings.ToUpper(strings.TrimSpace(network))

	_, address, ok := qrcode.SlotForAsset(asset, network, sess.Addresses)
	if !ok {
		return nil, false
	}
	if asset == "USDT" && network != "ERC20" {
		network = "TRC20"
	}

	return ReceiveInfo{
		Asset:     asset,
		Network:   network,
		Address:   address,
		QRCodeURL: v.qr.GetQRCodeForAsset(asset, network, sess.Addresses),
	}, true
}

// SetCurrency 切换展示货币
func (v *StatusView) SetCurrency(currency string) error {
	cur, ok := portfolio.ParseCurrency(currency)
	if !ok {
		return fmt.Errorf("unsupported currency %q", currency)
	}
	return v.prefs.SetCurrency(cur)
}

// Retry 对应页面上的重试按钮
func (v *StatusView) Retry(target string) error {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "stream":
		v.wallet.RetryConnection()
	case "data":
		v.wallet.RetryDataFetch()
	case "coins":
		v.wallet.RefetchCoins()
	case "balance":
		v.wallet.RefetchBalance()
	default:
		return fmt.Errorf("unknown retry target %q", target)
	}
	return nil
}
