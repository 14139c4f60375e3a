package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标收集器
type Metrics struct {
	cacheLookups     *prometheus.CounterVec
	cacheWriteErrors *prometheus.CounterVec
	fetchTotal       *prometheus.CounterVec
	streamConnected  prometheus.Gauge
	streamReconnects prometheus.Counter
	streamMessages   *prometheus.CounterVec
	qrPreloads       *prometheus.CounterVec
	natsConnected    prometheus.Gauge
	natsPublished    *prometheus.CounterVec
}

// NewMetrics 创建指标收集器，registerer 为 nil 时不注册
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "缓存读取次数（按键和结果）",
			},
			[]string{"key", "result"}, // hit, miss, expired, malformed
		),
		cacheWriteErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_write_errors_total",
				Help:      "缓存写入失败次数",
			},
			[]string{"key"},
		),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "数据拉取次数（按数据集和来源）",
			},
			[]string{"dataset", "result"}, // cache, network, error
		),
		streamConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_connected",
				Help:      "Price stream connection status (1=connected, 0=disconnected)",
			},
		),
		streamReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_reconnects_total",
				Help:      "Total number of scheduled stream reconnects",
			},
		),
		streamMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_messages_total",
				Help:      "Total number of stream messages",
			},
			[]string{"outcome"}, // price_update, ignored, invalid
		),
		qrPreloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "qr_preloads_total",
				Help:      "二维码预加载次数",
			},
			[]string{"result"}, // cached, success, failure
		),
		natsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),
		natsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nats_published_total",
				Help:      "Total number of NATS publishes",
			},
			[]string{"subject", "status"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.cacheLookups,
			m.cacheWriteErrors,
			m.fetchTotal,
			m.streamConnected,
			m.streamReconnects,
			m.streamMessages,
			m.qrPreloads,
			m.natsConnected,
			m.natsPublished,
		)
	}

	return m
}

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
	} else {
		g.Set(0)
	}
}

func (m *Metrics) IncCacheLookup(key, result string) {
	m.cacheLookups.WithLabelValues(key, result).Inc()
}

func (m *Metrics) IncCacheWriteError(key string) {
	m.cacheWriteErrors.WithLabelValues(key).Inc()
}

// IncFetch 增加拉取计数
func (m *Metrics) IncFetch(dataset, result string) {
	m.fetchTotal.WithLabelValues(dataset, result).Inc()
}

// SetStreamConnected 设置价格流连接状态
func (m *Metrics) SetStreamConnected(connected bool) {
	boolGauge(m.streamConnected, connected)
}

func (m *Metrics) IncStreamReconnect() {
	m.streamReconnects.Inc()
}

func (m *Metrics) IncStreamMessage(outcome string) {
	m.streamMessages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncQRPreload(result string) {
	m.qrPreloads.WithLabelValues(result).Inc()
}

// SetNATSConnected 设置NATS连接状态
func (m *Metrics) SetNATSConnected(connected bool) {
	boolGauge(m.natsConnected, connected)
}

func (m *Metrics) IncNATSPublished(subject, status string) {
	m.natsPublished.WithLabelValues(subject, status).Inc()
}

var globalMetrics *Metrics
var metricsOnce sync.Once

// GetMetrics 获取全局指标收集器
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = NewMetrics("wallet_sync", prometheus.DefaultRegisterer)
	})
	return globalMetrics
}

// InitMetrics 初始化指标收集器（供main使用）
func InitMetrics() {
	GetMetrics()
}
