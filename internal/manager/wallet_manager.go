package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/utrading/utrading-wallet-sync/internal/cache"
	"github.com/utrading/utrading-wallet-sync/internal/models"
	"github.com/utrading/utrading-wallet-sync/internal/session"
	"github.com/utrading/utrading-wallet-sync/internal/ws"
	"github.com/utrading/utrading-wallet-sync/pkg/goplus"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

const (
	DefaultSweepInterval = 30 * time.Second
	defaultFetchTimeout  = 30 * time.Second

	lastUpdateTTL = 24 * time.Hour
)

var (
	ErrSessionNotReady = errors.New("wallet session not ready")
	ErrAlreadyStarted  = errors.New("wallet manager already started")
)

// API 数据接口
type API interface {
	FetchCoins(ctx context.Context) ([]models.Coin, error)
	FetchBalance(ctx context.Context, address string) (models.BalanceData, error)
}

// Stream 实时价格流
type Stream interface {
	Connect()
	Reconnect()
	Stop()
	Connected() bool
	Seed(prices, p24h map[string]float64)
	Prices() map[string]float64
	P24h() map[string]float64
	SetUpdateHandler(fn ws.UpdateHandler)
}

// Notifier 数据变化后的外部通知，可为 nil
type Notifier interface {
	PublishSnapshot(snapshot any) error
	PublishPriceUpdate(update ws.PriceUpdate) error
}

type Options struct {
	SweepInterval time.Duration
	FetchTimeout  time.Duration
	Notifier      Notifier
}

// dataset 单个数据集的加载状态
type dataset struct {
	loading  bool
	inflight int
	err      error
}

func (d *dataset) begin() {
	d.inflight++
	d.loading = true
	d.err = nil
}

func (d *dataset) end(err error) {
	if d.inflight > 0 {
		d.inflight--
	}
	if d.inflight == 0 {
		d.loading = false
	}
	if err != nil {
		d.err = err
	}
}

// WalletManager 组合缓存、接口和价格流，维护钱包页面需要的数据
type WalletManager struct {
	api      API
	stream   Stream
	cache    *cache.WalletCache
	notifier Notifier

	sweepInterval time.Duration
	fetchTimeout  time.Duration

	mu      sync.RWMutex
	sess    *session.Session
	coins   []models.Coin
	balance models.BalanceData
	coinsDS dataset
	balDS   dataset
	// epoch 每次 Start/Stop 递增，旧请求的结果直接丢弃
	epoch   uint64
	running bool
	stopped bool

	done chan struct{}
	// wg 只跟踪巡检协程；进行中的请求不取消，结果按 epoch 丢弃
	wg *goplus.WaitGroup
}

func NewWalletManager(api API, stream Stream, c *cache.WalletCache, opts Options) *WalletManager {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	return &WalletManager{
		api:           api,
		stream:        stream,
		cache:         c,
		notifier:      opts.Notifier,
		sweepInterval: opts.SweepInterval,
		fetchTimeout:  opts.FetchTimeout,
		balance:       models.BalanceData{},
		coinsDS:       dataset{loading: true},
		balDS:         dataset{loading: true},
		done:          make(chan struct{}),
		wg:            goplus.NewWaitGroup(),
	}
}

// Start 会话就绪后调用：先用缓存填充，再异步拉取，最后连接价格流并启动过期巡检
func (m *WalletManager) Start(sess *session.Session) error {
	if !sess.Ready() {
		return ErrSessionNotReady
	}

	m.mu.Lock()
	if m.running || m.stopped {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.running = true
	m.sess = sess
	m.epoch++
	m.seedLocked()
	m.mu.Unlock()

	m.stream.SetUpdateHandler(m.onPriceUpdate)

	m.RetryDataFetch()
	m.stream.Connect()

	m.wg.Go(m.sweep)

	logger.Info().
		Str("address", sess.Address).
		Bool("demo", sess.Demo).
		Dur("sweep_interval", m.sweepInterval).
		Msg("wallet manager started")
	return nil
}

// seedLocked 同步读取缓存，命中的数据集不再处于加载中
func (m *WalletManager) seedLocked() {
	if coins, ok := cache.Get[[]models.Coin](m.cache, cache.KeyCoins); ok {
		m.coins = coins
		m.coinsDS.loading = false
	}

	if balance, ok := cache.Get[models.BalanceData](m.cache, cache.BalanceKey(m.sess.Address)); ok {
		m.balance = balance
		m.balDS.loading = false
	}

	prices, _ := cache.Get[models.PriceData](m.cache, cache.KeyPrices)
	p24h, _ := cache.Get[models.P24hData](m.cache, cache.KeyP24h)
	m.stream.Seed(prices, p24h)
}

// Stop 停止巡检和价格流；之后返回的请求结果被丢弃
func (m *WalletManager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.running = false
	m.epoch++
	m.mu.Unlock()

	close(m.done)
	m.stream.Stop()
	m.wg.Wait()

	logger.Info().Msg("wallet manager stopped")
}

// RetryConnection 主动断开后重连价格流
func (m *WalletManager) RetryConnection() {
	if !m.isRunning() {
		return
	}
	m.stream.Reconnect()
}

// RetryDataFetch 同时重新拉取币种和余额
func (m *WalletManager) RetryDataFetch() {
	m.RefetchCoins()
	m.RefetchBalance()
}

// RefetchCoins 异步拉取币种目录
func (m *WalletManager) RefetchCoins() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	epoch := m.epoch
	m.coinsDS.begin()
	m.mu.Unlock()

	goplus.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.fetchTimeout)
		defer cancel()

		coins, err := m.api.FetchCoins(ctx)
		m.finishCoins(epoch, coins, err)
	})
}

func (m *WalletManager) finishCoins(epoch uint64, coins []models.Coin, err error) {
	if err != nil {
		logger.Error().Err(err).Msg("fetch coins failed")
		if cached, ok := cache.Get[[]models.Coin](m.cache, cache.KeyCoins); ok {
			coins = cached
		}
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		logger.Debug().Msg("discard coins result from previous session")
		return
	}
	if coins != nil {
		m.coins = coins
	}
	m.coinsDS.end(err)
	if err == nil {
		m.touchLastUpdate()
	}
	m.mu.Unlock()

	m.notify()
}

// RefetchBalance 异步拉取当前地址的余额
func (m *WalletManager) RefetchBalance() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	address := m.sess.Address
	if address == "" {
		m.balDS.loading = false
		m.mu.Unlock()
		return
	}
	epoch := m.epoch
	m.balDS.begin()
	m.mu.Unlock()

	goplus.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.fetchTimeout)
		defer cancel()

		balance, err := m.api.FetchBalance(ctx, address)
		m.finishBalance(epoch, address, balance, err)
	})
}

func (m *WalletManager) finishBalance(epoch uint64, address string, balance models.BalanceData, err error) {
	if err != nil {
		logger.Error().Err(err).Str("address", address).Msg("fetch balance failed")
		if cached, ok := cache.Get[models.BalanceData](m.cache, cache.BalanceKey(address)); ok {
			balance = cached
		}
	}

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		logger.Debug().Msg("discard balance result from previous session")
		return
	}
	if balance != nil {
		m.balance = balance
	}
	m.balDS.end(err)
	if err == nil {
		m.touchLastUpdate()
	}
	m.mu.Unlock()

	m.notify()
}

func (m *WalletManager) touchLastUpdate() {
	m.cache.Set(cache.KeyLastUpdate, m.cache.Now().UnixMilli(), lastUpdateTTL)
}

// sweep 定期检查币种和余额缓存是否过期，过期则重新拉取
func (m *WalletManager) sweep() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.SweepStale()
		}
	}
}

// SweepStale 执行一次过期检查
func (m *WalletManager) SweepStale() {
	sess := m.Session()
	if sess == nil || !m.isRunning() {
		return
	}

	if m.cache.IsStale(cache.KeyCoins, cache.DurationCoins) {
		logger.Debug().Msg("coins cache stale, refetching")
		m.RefetchCoins()
	}
	if m.cache.IsStale(cache.BalanceKey(sess.Address), cache.DurationBalance) {
		logger.Debug().Str("address", sess.Address).Msg("balance cache stale, refetching")
		m.RefetchBalance()
	}
}

func (m *WalletManager) onPriceUpdate(update ws.PriceUpdate) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.PublishPriceUpdate(update); err != nil {
		logger.Warn().Err(err).Str("coin_id", update.CoinID).Msg("publish price update failed")
	}
}

func (m *WalletManager) notify() {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.PublishSnapshot(m.Snapshot()); err != nil {
		logger.Warn().Err(err).Msg("publish wallet snapshot failed")
	}
}

func (m *WalletManager) isRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Session 当前会话，未启动时为 nil
func (m *WalletManager) Session() *session.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess
}
