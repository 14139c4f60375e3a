package ws

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-wallet-sync/internal/cache"
	"github.com/utrading/utrading-wallet-sync/internal/monitor"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

const (
	CloseNormal = websocket.CloseNormalClosure

	dialRetryDelay = 5 * time.Second
	maxBackoff     = 30 * time.Second
	eventBuffer    = 64
)

// ReconnectDelay min(1000 * 2^(r*3), 30000) 毫秒，r ∈ [0, 1)
func ReconnectDelay(r float64) time.Duration {
	ms := 1000 * math.Pow(2, r*3)
	delay := time.Duration(ms * float64(time.Millisecond))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func randomBackoff() time.Duration {
	return ReconnectDelay(rand.Float64())
}

type eventKind int

const (
	evConnect eventKind = iota
	evReconnect
	evOpened
	evDialFailed
	evMessage
	evClosed
)

type event struct {
	kind  eventKind
	gen   uint64
	conn  Conn
	data  []byte
	err   error
	clean bool
}

// UpdateHandler 每条价格更新写入缓存后回调，运行在事件协程上
type UpdateHandler func(PriceUpdate)

// Manager 单连接价格流，状态只在事件协程里变更
type Manager struct {
	dialer  Dialer
	cache   *cache.WalletCache
	prices  *cache.PriceCache
	metrics *monitor.Metrics

	events    chan event
	done      chan struct{}
	exited    chan struct{}
	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once

	state atomic.Int32

	handlerMu sync.RWMutex
	onUpdate  UpdateHandler

	backoff   func() time.Duration
	dialRetry time.Duration

	// 以下字段仅事件协程访问
	conn       Conn
	cancelDial context.CancelFunc
	gen        uint64
	timer      *time.Timer
}

func NewManager(dialer Dialer, c *cache.WalletCache) *Manager {
	return &Manager{
		dialer:    dialer,
		cache:     c,
		prices:    cache.NewPriceCache(),
		metrics:   monitor.GetMetrics(),
		events:    make(chan event, eventBuffer),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
		backoff:   randomBackoff,
		dialRetry: dialRetryDelay,
	}
}

func (m *Manager) SetUpdateHandler(fn UpdateHandler) {
	m.handlerMu.Lock()
	m.onUpdate = fn
	m.handlerMu.Unlock()
}

// Start 启动事件协程，可重复调用
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		go m.run()
	})
}

// Connect 断开状态下发起连接；连接中或已连接时无操作
func (m *Manager) Connect() {
	m.Start()
	m.post(event{kind: evConnect})
}

// Reconnect 主动关闭当前连接后重新连接
func (m *Manager) Reconnect() {
	m.Start()
	m.post(event{kind: evReconnect})
}

// Stop 取消重连定时器，以 1000 关闭连接，等待事件协程退出
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	if m.started.Load() {
		<-m.exited
	}
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// Seed 冷启动时用缓存数据填充内存视图
func (m *Manager) Seed(prices, p24h map[string]float64) {
	m.prices.Seed(prices, p24h)
}

func (m *Manager) Prices() map[string]float64 {
	return m.prices.Prices()
}

func (m *Manager) P24h() map[string]float64 {
	return m.prices.P24h()
}

func (m *Manager) post(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) run() {
	defer close(m.exited)

	for {
		select {
		case <-m.done:
			m.teardown()
			return
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	m.metrics.SetStreamConnected(s == StateConnected)
}

func (m *Manager) handle(ev event) {
	switch ev.kind {
	case evConnect:
		m.connect()

	case evReconnect:
		m.dropCurrent("client reconnecting")
		m.connect()

	case evOpened:
		if ev.gen != m.gen || m.State() != StateConnecting {
			ev.conn.Close(CloseNormal, "superseded")
			return
		}
		m.cancelDial = nil
		m.stopTimer()
		m.conn = ev.conn
		m.setState(StateConnected)
		logger.Info().Uint64("gen", ev.gen).Msg("price stream connected")

		gen, conn := ev.gen, ev.conn
		go m.readLoop(gen, conn)

	case evDialFailed:
		if ev.gen != m.gen {
			return
		}
		m.cancelDial = nil
		m.setState(StateDisconnected)
		logger.Error().Err(ev.err).Dur("retry_in", m.dialRetry).Msg("price stream dial failed")
		m.schedule(m.dialRetry)

	case evMessage:
		if ev.gen != m.gen {
			return
		}
		m.handleMessage(ev.data)

	case evClosed:
		if ev.gen != m.gen {
			return
		}
		// 读失败后底层连接可能仍然存活，先关闭再考虑重连
		if err := ev.conn.Close(CloseNormal, "closed"); err != nil {
			logger.Debug().Err(err).Msg("close dropped price stream failed")
		}
		m.conn = nil
		m.setState(StateDisconnected)

		if ev.clean {
			logger.Info().Msg("price stream closed cleanly")
			return
		}
		delay := m.backoff()
		logger.Warn().Err(ev.err).Dur("backoff", delay).Msg("price stream closed unexpectedly, reconnecting")
		m.schedule(delay)
	}
}

func (m *Manager) connect() {
	if m.State() != StateDisconnected {
		logger.Debug().Str("state", m.State().String()).Msg("price stream connect ignored")
		return
	}

	m.stopTimer()
	m.gen++
	m.setState(StateConnecting)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel

	gen := m.gen
	go func() {
		conn, err := m.dialer.Dial(ctx)
		if err != nil {
			m.post(event{kind: evDialFailed, gen: gen, err: err})
			return
		}
		if !m.post(event{kind: evOpened, gen: gen, conn: conn}) {
			conn.Close(CloseNormal, "client shutting down")
		}
	}()
}

// dropCurrent 主动放弃当前连接或正在进行的拨号，旧代的事件随之失效
func (m *Manager) dropCurrent(reason string) {
	m.stopTimer()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(CloseNormal, reason); err != nil {
			logger.Debug().Err(err).Msg("close price stream failed")
		}
		m.conn = nil
	}
	m.gen++
	m.setState(StateDisconnected)
}

func (m *Manager) teardown() {
	m.dropCurrent("client shutting down")
	logger.Info().Msg("price stream stopped")
}

func (m *Manager) schedule(delay time.Duration) {
	m.stopTimer()
	m.metrics.IncStreamReconnect()
	m.timer = time.AfterFunc(delay, func() {
		m.post(event{kind: evConnect})
	})
}

func (m *Manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !m.post(event{kind: evClosed, gen: gen, conn: conn, err: err, clean: isCleanClose(err)}) {
				conn.Close(CloseNormal, "client shutting down")
			}
			return
		}
		if !m.post(event{kind: evMessage, gen: gen, data: data}) {
			return
		}
	}
}

// isCleanClose 只有 1000 视为正常关闭
func isCleanClose(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr) && closeErr.Code == CloseNormal
}

func (m *Manager) handleMessage(data []byte) {
	if !gjson.ValidBytes(data) {
		m.metrics.IncStreamMessage("invalid")
		logger.Warn().Int("size", len(data)).Msg("drop invalid price stream message")
		return
	}

	update, ok := ParsePriceUpdate(data)
	if !ok {
		m.metrics.IncStreamMessage("ignored")
		return
	}

	m.prices.SetPrice(update.CoinID, update.Price)
	m.cache.Set(cache.KeyPrices, m.prices.Prices(), cache.DurationPrices)

	if update.HasP24h {
		m.prices.SetP24h(update.CoinID, update.P24h)
		m.cache.Set(cache.KeyP24h, m.prices.P24h(), cache.DurationP24h)
	}
	m.metrics.IncStreamMessage(TypePriceUpdate)

	m.handlerMu.RLock()
	fn := m.onUpdate
	m.handlerMu.RUnlock()
	if fn != nil {
		fn(update)
	}
}
