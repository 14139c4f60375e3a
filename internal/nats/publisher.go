package nats

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/utrading/utrading-wallet-sync/internal/monitor"
	"github.com/utrading/utrading-wallet-sync/internal/ws"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

const (
	SubjectPriceUpdate = "wallet.price_update"
	SubjectSnapshot    = "wallet.snapshot"
)

// PriceUpdateMessage 价格更新消息
type PriceUpdateMessage struct {
	CoinID    string   `json:"coin_id"`
	Price     float64  `json:"price"`
	P24h      *float64 `json:"p24h,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Publisher NATS 发布器
type Publisher struct {
	*nats.Conn
	metrics *monitor.Metrics
	mu      sync.RWMutex
	closed  bool
}

// NewPublisher 创建 NATS 发布器
func NewPublisher(url string, opts ...nats.Option) (*Publisher, error) {
	metrics := monitor.GetMetrics()
	opts = append([]nats.Option{
		nats.Name("wallet_sync"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.SetNATSConnected(false)
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			metrics.SetNATSConnected(true)
			logger.Info().Str("url", conn.ConnectedUrl()).Msg("nats reconnected")
		}),
	}, opts...)

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		Conn:    conn,
		metrics: metrics,
	}

	// 更新指标
	metrics.SetNATSConnected(true)

	return p, nil
}

// PublishPriceUpdate 发布单条价格更新
func (p *Publisher) PublishPriceUpdate(update ws.PriceUpdate) error {
	msg := PriceUpdateMessage{
		CoinID:    update.CoinID,
		Price:     update.Price,
		Timestamp: time.Now().UnixMilli(),
	}
	if update.HasP24h {
		p24h := update.P24h
		msg.P24h = &p24h
	}
	return p.publishJSON(SubjectPriceUpdate, msg)
}

// PublishSnapshot 发布钱包快照
func (p *Publisher) PublishSnapshot(snapshot any) error {
	return p.publishJSON(SubjectSnapshot, snapshot)
}

func (p *Publisher) publishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error().Err(err).Str("subject", subject).Msg("marshal message failed")
		p.metrics.IncNATSPublished(subject, "error")
		return err
	}

	if err = p.Publish(subject, data); err != nil {
		p.metrics.IncNATSPublished(subject, "error")
		return err
	}
	p.metrics.IncNATSPublished(subject, "success")
	return nil
}

// IsConnected 检查发布器是否已连接
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.Conn != nil && p.Conn.IsConnected()
}

// Close 关闭连接，先 flush 已发布的消息
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	// 更新指标
	p.metrics.SetNATSConnected(false)

	if p.Conn != nil {
		if err := p.Conn.Drain(); err != nil {
			p.Conn.Close()
			return err
		}
	}
	return nil
}
