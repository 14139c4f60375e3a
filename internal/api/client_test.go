package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-wallet-sync/internal/cache"
	"github.com/utrading/utrading-wallet-sync/internal/models"
	"github.com/utrading/utrading-wallet-sync/internal/storage"
)

const testAddress = "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b7"

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *cache.WalletCache, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	wc := cache.New(storage.NewMemoryStore())
	return NewClient(server.URL+"/", time.Second, wc), wc, &hits
}

func TestFetchCoins_ReadThrough(t *testing.T) {
	client, wc, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/user_asset", r.URL.Path)
		w.Write([]byte(`[{"coin_id":"bitcoin","name":"Bitcoin","symbol":"BTC","icon":"https://x/btc.png"}]`))
	})
	want := []models.Coin{{CoinID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Icon: "https://x/btc.png"}}

	coins, err := client.FetchCoins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, coins)

	entry, ok := wc.Lookup(cache.KeyCoins)
	require.True(t, ok)
	assert.Equal(t, int64(1800000), entry.TTL)

	again, err := client.FetchCoins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchCoins_StaleCacheRefetches(t *testing.T) {
	client, wc, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	now := time.Now()
	wc.SetClock(func() time.Time { return now })

	// ttl 比刷新窗口长，Get 能命中但 IsStale 为真
	wc.Set(cache.KeyCoins, []models.Coin{{CoinID: "old"}}, 2*time.Hour)
	now = now.Add(cache.DurationCoins + time.Second)

	coins, err := client.FetchCoins(context.Background())
	require.NoError(t, err)
	assert.Empty(t, coins)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchCoins_StatusError(t *testing.T) {
	client, wc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.FetchCoins(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "fetch coins")

	_, ok := wc.Lookup(cache.KeyCoins)
	assert.False(t, ok)
}

func TestFetchCoins_InvalidBody(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"oops"`))
	})

	_, err := client.FetchCoins(context.Background())
	assert.Error(t, err)
}

func TestFetchCoins_TransportError(t *testing.T) {
	wc := cache.New(storage.NewMemoryStore())
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond, wc)

	_, err := client.FetchCoins(context.Background())
	assert.Error(t, err)
}

func TestFetchBalance(t *testing.T) {
	client, wc, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/balance_data", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"address":"`+testAddress+`"}`, string(body))

		w.Write([]byte(`{"balance_data":{"BTC":0.5,"USDT":"120.25","BAD":"x"}}`))
	})

	balance, err := client.FetchBalance(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, 0.5, balance["BTC"])
	assert.Equal(t, 120.25, balance["USDT"])
	assert.NotContains(t, balance, "BAD")

	cached, ok := cache.Get[models.BalanceData](wc, cache.BalanceKey(testAddress))
	require.True(t, ok)
	assert.Equal(t, balance, cached)

	_, err = client.FetchBalance(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchBalance_MissingEnvelopeField(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	balance, err := client.FetchBalance(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Empty(t, balance)
}

func TestFetchBalance_NotObject(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balance_data":[1,2]}`))
	})

	_, err := client.FetchBalance(context.Background(), testAddress)
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	var got map[string]any
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"eth":"0xabc","tron":"Tabc"}`))
	})

	addrs, err := client.Authenticate(context.Background(), testAddress, "")
	require.NoError(t, err)
	assert.Equal(t, models.WalletAddresses{ETH: "0xabc", Tron: "Tabc"}, addrs)
	assert.Equal(t, testAddress, got["address"])
	assert.Contains(t, got, "invite")
	assert.Nil(t, got["invite"])

	_, err = client.Authenticate(context.Background(), testAddress, "friend42")
	require.NoError(t, err)
	assert.Equal(t, "friend42", got["invite"])
}

func TestAuthenticate_Rejected(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Authenticate(context.Background(), testAddress, "")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}
