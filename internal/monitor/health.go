package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utrading/utrading-wallet-sync/pkg/goplus"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

// StreamRef 价格流引用接口
type StreamRef interface {
	Connected() bool
}

// PublisherRef NATS发布器引用接口
type PublisherRef interface {
	IsConnected() bool
}

// WalletRef 钱包数据引用接口
type WalletRef interface {
	Status() any
	Receive(asset, network string) (any, bool)
	SetCurrency(currency string) error
	// Retry target: stream / data / coins / balance
	Retry(target string) error
}

// HealthServer HTTP 健康检查、指标和钱包状态服务器
type HealthServer struct {
	addr      string
	stream    StreamRef
	publisher PublisherRef
	wallet    WalletRef

	server   *http.Server
	listener net.Listener

	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	startTime    time.Time
}

// NewHealthServer publisher 和 wallet 可为 nil
func NewHealthServer(addr string, stream StreamRef, publisher PublisherRef, wallet WalletRef) *HealthServer {
	return &HealthServer{
		addr:         addr,
		stream:       stream,
		publisher:    publisher,
		wallet:       wallet,
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
	}
}

// Handler 路由表，测试直接使用
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/health/ready", h.readyHandler)
	mux.HandleFunc("/health/live", h.liveHandler)

	// Prometheus指标端点
	mux.Handle("/metrics", promhttp.Handler())

	// 钱包状态
	mux.HandleFunc("/status", h.statusHandler)
	mux.HandleFunc("/receive", h.receiveHandler)
	mux.HandleFunc("/currency", h.currencyHandler)
	mux.HandleFunc("/retry", h.retryHandler)

	return mux
}

// Start 监听成功后在后台提供服务
func (h *HealthServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", h.addr)
	if err != nil {
		return err
	}

	h.listener = ln
	h.server = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	goplus.Go(func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("health server error")
		}
	})

	logger.Info().Str("addr", ln.Addr().String()).Msg("health server started")
	return nil
}

// Addr 实际监听地址
func (h *HealthServer) Addr() string {
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

// Stop 停止服务器
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("encode response failed")
	}
}

func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// readyHandler 价格流连上才算就绪
func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isReady() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		http.Error(w, "wallet not started", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.wallet.Status())
}

// receiveHandler /receive?asset=USDT&network=TRC20
func (h *HealthServer) receiveHandler(w http.ResponseWriter, r *http.Request) {
	if h.wallet == nil {
		http.Error(w, "wallet not started", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	asset := query.Get("asset")
	if asset == "" {
		http.Error(w, "asset is required", http.StatusBadRequest)
		return
	}

	info, ok := h.wallet.Receive(asset, query.Get("network"))
	if !ok {
		http.Error(w, "unsupported asset", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// currencyHandler POST /currency?currency=IDR
func (h *HealthServer) currencyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.acceptPost(w, r) {
		return
	}
	if err := h.wallet.SetCurrency(r.FormValue("currency")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.wallet.Status())
}

// retryHandler POST /retry?target=stream|data|coins|balance，target 为空时等同 data
func (h *HealthServer) retryHandler(w http.ResponseWriter, r *http.Request) {
	if !h.acceptPost(w, r) {
		return
	}
	target := r.FormValue("target")
	if target == "" {
		target = "data"
	}
	if err := h.wallet.Retry(target); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("ok"))
}

func (h *HealthServer) acceptPost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if h.wallet == nil {
		http.Error(w, "wallet not started", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *HealthServer) isReady() bool {
	h.mu.RLock()
	healthy := h.healthy
	h.mu.RUnlock()

	if !healthy {
		return false
	}
	return h.stream != nil && h.stream.Connected()
}

func (h *HealthServer) getHealthStatus() HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	h.mu.RUnlock()

	streamConnected := false
	if h.stream != nil {
		streamConnected = h.stream.Connected()
	}

	natsConnected := false
	if h.publisher != nil {
		natsConnected = h.publisher.IsConnected()
	}

	return HealthStatus{
		Healthy:      healthy,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).String(),
		Stream:       StreamStatus{Connected: streamConnected},
		NATS:         NATSStatus{Enabled: h.publisher != nil, Connected: natsConnected},
	}
}

// HealthStatus 健康状态结构
type HealthStatus struct {
	Healthy      bool         `json:"healthy"`
	HealthySince string       `json:"healthy_since"`
	Uptime       string       `json:"uptime"`
	Stream       StreamStatus `json:"stream"`
	NATS         NATSStatus   `json:"nats"`
}

// StreamStatus 价格流连接状态
type StreamStatus struct {
	Connected bool `json:"connected"`
}

// NATSStatus NATS连接状态
type NATSStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}
