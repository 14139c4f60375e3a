package qrcode

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/utrading/utrading-wallet-sync/internal/cache"
	"github.com/utrading/utrading-wallet-sync/internal/models"
	"github.com/utrading/utrading-wallet-sync/internal/monitor"
	"github.com/utrading/utrading-wallet-sync/internal/storage"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

// 固定的五个槽位
const (
	SlotETH       = "eth"
	SlotTron      = "tron"
	SlotBTC       = "btc"
	SlotUSDTERC20 = "usdt_erc20"
	SlotUSDTTRC20 = "usdt_trc20"
)

const (
	DefaultEndpoint = "https://api.qrserver.com/v1/create-qr-code/"
	ImageSize       = "180x180"
	FreshnessWindow = 24 * time.Hour
)

type Options struct {
	Endpoint  string
	PoolSize  int
	Preloader Preloader
}

// Manager 槽位 -> 已预加载二维码的缓存，整体持久化在 wallet_qr_cache
type Manager struct {
	store     storage.Store
	preloader Preloader
	endpoint  string
	poolSize  int
	now       func() time.Time
	metrics   *monitor.Metrics

	mu      sync.RWMutex
	entries map[string]models.QRCodeData

	initMu      sync.Mutex
	initialized bool
}

func NewManager(store storage.Store, opts Options) *Manager {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 5
	}
	if opts.Preloader == nil {
		opts.Preloader = NewHTTPPreloader(0)
	}
	return &Manager{
		store:     store,
		preloader: opts.Preloader,
		endpoint:  opts.Endpoint,
		poolSize:  opts.PoolSize,
		now:       time.Now,
		metrics:   monitor.GetMetrics(),
		entries:   make(map[string]models.QRCodeData),
	}
}

// SetClock 替换时钟，测试使用
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// BuildURL 拼接二维码地址，address 按百分号编码，空格为 %20
func (m *Manager) BuildURL(address string) string {
	if address == "" {
		return ""
	}
	return m.endpoint + "?size=" + ImageSize + "&data=" + strings.ReplaceAll(url.QueryEscape(address), "+", "%20")
}

// Initialize 进程内只执行一次：加载持久化缓存，并发生成五个槽位，再整体保存
func (m *Manager) Initialize(ctx context.Context, addrs models.WalletAddresses) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	if m.initialized {
		return nil
	}

	m.loadCache()

	jobs := []struct {
		slot    string
		address string
	}{
		{SlotETH, addrs.ETH},
		{SlotTron, addrs.Tron},
		{SlotBTC, addrs.BTC},
		{SlotUSDTERC20, addrs.ETH},
		{SlotUSDTTRC20, addrs.Tron},
	}

	pool, err := ants.NewPool(m.poolSize)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			m.GenerateQRCode(ctx, job.slot, job.address)
		}
		if err = pool.Submit(task); err != nil {
			// 降级：同步执行
			logger.Warn().Err(err).Str("slot", job.slot).Msg("qr pool submit failed, running synchronously")
			task()
		}
	}
	wg.Wait()

	m.saveCache()
	m.initialized = true

	logger.Info().Int("slots", m.Len()).Msg("qr cache initialized")
	return nil
}

// Initialized 是否已完成初始化
func (m *Manager) Initialized() bool {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	return m.initialized
}

// Reset 清空内存状态和初始化标记，不动持久化数据
func (m *Manager) Reset() {
	m.initMu.Lock()
	m.initialized = false
	m.initMu.Unlock()

	m.mu.Lock()
	m.entries = make(map[string]models.QRCodeData)
	m.mu.Unlock()
}

// GenerateQRCode 命中且地址一致、未超过 24h 时直接返回；否则重新生成并预加载
// 预加载失败仍返回新地址，但不缓存
func (m *Manager) GenerateQRCode(ctx context.Context, slot, address string) string {
	if address == "" {
		return ""
	}

	m.mu.RLock()
	cached, ok := m.entries[slot]
	m.mu.RUnlock()

	if ok && cached.Address == address && m.now().UnixMilli()-cached.Timestamp < FreshnessWindow.Milliseconds() {
		m.metrics.IncQRPreload("cached")
		return cached.QRCodeURL
	}

	qrURL := m.BuildURL(address)
	if err := m.preloader.Preload(ctx, qrURL); err != nil {
		m.metrics.IncQRPreload("failure")
		logger.Warn().Err(err).Str("slot", slot).Msg("failed to preload qr code")
		return qrURL
	}

	m.mu.Lock()
	m.entries[slot] = models.QRCodeData{
		Address:   address,
		QRCodeURL: qrURL,
		Timestamp: m.now().UnixMilli(),
	}
	m.mu.Unlock()

	m.metrics.IncQRPreload("success")
	return qrURL
}

// GetQRCode 只读查询，地址不一致时现场拼接，不写缓存
func (m *Manager) GetQRCode(slot, address string) string {
	m.mu.RLock()
	cached, ok := m.entries[slot]
	m.mu.RUnlock()

	if ok && cached.Address == address {
		return cached.QRCodeURL
	}
	return m.BuildURL(address)
}

// SlotForAsset (币种, 网络) -> (槽位, 地址)；USDT 非 ERC20 一律按 TRC20
func SlotForAsset(asset, network string, addrs models.WalletAddresses) (string, string, bool) {
	switch asset {
	case "USDT":
		if network == "ERC20" {
			return SlotUSDTERC20, addrs.ETH, true
		}
		return SlotUSDTTRC20, addrs.Tron, true
	case "ETH":
		return SlotETH, addrs.ETH, true
	case "BTC":
		return SlotBTC, addrs.BTC, true
	default:
		return "", "", false
	}
}

// GetQRCodeForAsset 未知币种返回空串
func (m *Manager) GetQRCodeForAsset(asset, network string, addrs models.WalletAddresses) string {
	slot, address, ok := SlotForAsset(asset, network, addrs)
	if !ok {
		return ""
	}
	return m.GetQRCode(slot, address)
}

// ClearCache 清空内存和持久化数据
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.entries = make(map[string]models.QRCodeData)
	m.mu.Unlock()

	if err := m.store.RemoveItem(cache.KeyQRCodes); err != nil {
		logger.Warn().Err(err).Msg("failed to clear qr cache")
	}
}

// Len 已缓存的槽位数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Manager) loadCache() {
	raw, found, err := m.store.GetItem(cache.KeyQRCodes)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load qr cache")
		return
	}
	if !found {
		return
	}

	entries := make(map[string]models.QRCodeData)
	if err = json.Unmarshal([]byte(raw), &entries); err != nil {
		logger.Warn().Err(err).Msg("failed to load qr cache")
		entries = make(map[string]models.QRCodeData)
	}

	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
}

func (m *Manager) saveCache() {
	m.mu.RLock()
	raw, err := json.Marshal(m.entries)
	m.mu.RUnlock()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to save qr cache")
		return
	}

	if err = m.store.SetItem(cache.KeyQRCodes, string(raw)); err != nil {
		logger.Warn().Err(err).Msg("failed to save qr cache")
	}
}
