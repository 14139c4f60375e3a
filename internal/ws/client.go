package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

const (
	writeWait        = 10 * time.Second // 写入超时
	pongWait         = 60 * time.Second // 读取超时（应大于心跳间隔）
	pingPeriod       = 50 * time.Second // 心跳间隔
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 1024 * 1024 // 最大消息限制 1MB
)

// Conn 一条已建立的价格流连接
type Conn interface {
	// ReadMessage 阻塞直到收到下一条消息或连接关闭
	ReadMessage() ([]byte, error)
	// Close 发送关闭帧后断开，可重复调用
	Close(code int, reason string) error
}

// Dialer 建立新连接
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Client 基于 gorilla/websocket 的 Dialer
type Client struct {
	url string
}

func NewClient(url string) *Client {
	if url == "" {
		panic("ws: URL cannot be empty")
	}
	return &Client{url: url}
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial error: %w", err)
	}

	// 配置连接参数
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))

	// 处理标准 Pong 帧
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s := &socket{
		conn: conn,
		done: make(chan struct{}),
	}
	go s.pingPump()

	return s, nil
}

// socket 对 *websocket.Conn 的封装，写操作串行化
type socket struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (s *socket) ReadMessage() ([]byte, error) {
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			logger.Warn().Err(err).Msg("ws read error")
		}
		return nil, err
	}

	// 每次读取成功，刷新 ReadDeadline
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	return msg, nil
}

func (s *socket) Close(code int, reason string) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		msg := websocket.FormatCloseMessage(code, reason)
		if werr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); werr != nil {
			logger.Debug().Err(werr).Msg("write close frame failed")
		}
		s.writeMu.Unlock()

		err = s.conn.Close()
	})
	return err
}

func (s *socket) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				return
			}
		}
	}
}

func (s *socket) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}
