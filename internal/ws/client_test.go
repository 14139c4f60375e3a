package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/utrading/utrading-wallet-sync/internal/cache"
	"github.com/utrading/utrading-wallet-sync/internal/storage"
)

func TestNewClient(t *testing.T) {
	client := NewClient("wss://example.com/user-asset-price")

	if client == nil {
		t.Fatal("NewClient() returned nil")
	}

	if client.URL() != "wss://example.com/user-asset-price" {
		t.Errorf("url = %v, want %v", client.URL(), "wss://example.com/user-asset-price")
	}
}

func TestNewClientEmptyURL(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewClient with empty URL should panic")
		}
	}()

	NewClient("")
}

func TestClientDialFailure(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1/none")

	if _, err := client.Dial(context.Background()); err == nil {
		t.Error("Dial() to closed port should fail")
	}
}

func TestClientReadAndClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	closeCode := make(chan int, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"price_update","coinId":"bitcoin","price":1}`))

		// 等待客户端关闭帧
		for {
			if _, _, err = conn.ReadMessage(); err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					closeCode <- ce.Code
				}
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]

	conn, err := NewClient(wsURL).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}

	msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() failed: %v", err)
	}
	if string(msg) != `{"type":"price_update","coinId":"bitcoin","price":1}` {
		t.Errorf("message = %s", msg)
	}

	if err = conn.Close(CloseNormal, "client shutting down"); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	// 重复关闭是安全的
	conn.Close(CloseNormal, "again")

	select {
	case code := <-closeCode:
		if code != CloseNormal {
			t.Errorf("close code = %d, want %d", code, CloseNormal)
		}
	case <-time.After(2 * time.Second):
		t.Error("server did not receive close frame")
	}
}

func TestManagerWithServer_CleanAndAbruptClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var accepted atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := accepted.Add(1)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"price_update","coinId":"bitcoin","price":65000,"p24h":1}`))
		time.Sleep(50 * time.Millisecond)

		if n == 1 {
			// 第一次直接断开，不发关闭帧
			return
		}
		// 第二次正常关闭
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]
	wc := cache.New(storage.NewMemoryStore())
	m := NewManager(NewClient(wsURL), wc)
	m.backoff = func() time.Duration { return 20 * time.Millisecond }
	defer m.Stop()

	m.Connect()

	deadline := time.Now().Add(3 * time.Second)
	for accepted.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if accepted.Load() != 2 {
		t.Fatalf("accepted = %d, want 2 (reconnect after abrupt close)", accepted.Load())
	}

	// 正常关闭后不再重连
	time.Sleep(400 * time.Millisecond)
	if accepted.Load() != 2 {
		t.Errorf("accepted = %d after clean close, want 2", accepted.Load())
	}
	if m.Connected() {
		t.Error("manager should be disconnected after clean close")
	}

	prices, ok := cache.Get[map[string]float64](wc, cache.KeyPrices)
	if !ok || prices["bitcoin"] != 65000 {
		t.Errorf("prices = %v, want bitcoin=65000", prices)
	}
}
