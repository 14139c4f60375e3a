package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-wallet-sync/internal/cache"
	"github.com/utrading/utrading-wallet-sync/internal/models"
	"github.com/utrading/utrading-wallet-sync/internal/monitor"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

const (
	DefaultBaseURL = "https://web3.auryonex.com"

	pathCoins   = "/user_asset"
	pathBalance = "/balance_data"
	pathAuth    = "/auth"

	maxBodySize = 4 << 20
)

// StatusError 非 2xx 响应
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Status)
}

// Client 读穿透的钱包数据接口；网络错误直接返回，不在内部回退缓存
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.WalletCache
	metrics *monitor.Metrics
}

func NewClient(baseURL string, timeout time.Duration, c *cache.WalletCache) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   c,
		metrics: monitor.GetMetrics(),
	}
}

// FetchCoins 币种目录，缓存 30 分钟
func (c *Client) FetchCoins(ctx context.Context) ([]models.Coin, error) {
	if cached, ok := cache.Get[[]models.Coin](c.cache, cache.KeyCoins); ok &&
		!c.cache.IsStale(cache.KeyCoins, cache.DurationCoins) {
		c.metrics.IncFetch("coins", "cache")
		return cached, nil
	}

	body, err := c.do(ctx, "fetch coins", http.MethodGet, pathCoins, nil)
	if err != nil {
		c.metrics.IncFetch("coins", "error")
		return nil, err
	}

	var coins []models.Coin
	if err = json.Unmarshal(body, &coins); err != nil {
		c.metrics.IncFetch("coins", "error")
		return nil, fmt.Errorf("decode coins: %w", err)
	}

	c.cache.Set(cache.KeyCoins, coins, cache.DurationCoins)
	c.metrics.IncFetch("coins", "network")
	return coins, nil
}

// FetchBalance 按地址查询余额，缓存 5 分钟；只缓存信封里的 balance_data
func (c *Client) FetchBalance(ctx context.Context, address string) (models.BalanceData, error) {
	key := cache.BalanceKey(address)
	if cached, ok := cache.Get[models.BalanceData](c.cache, key); ok &&
		!c.cache.IsStale(key, cache.DurationBalance) {
		c.metrics.IncFetch("balance", "cache")
		return cached, nil
	}

	body, err := c.do(ctx, "fetch balance", http.MethodPost, pathBalance, map[string]string{"address": address})
	if err != nil {
		c.metrics.IncFetch("balance", "error")
		return nil, err
	}

	balance, err := parseBalance(body)
	if err != nil {
		c.metrics.IncFetch("balance", "error")
		return nil, err
	}

	c.cache.Set(key, balance, cache.DurationBalance)
	c.metrics.IncFetch("balance", "network")
	return balance, nil
}

// parseBalance 数值或数字字符串都接受，无法转换的项跳过
func parseBalance(body []byte) (models.BalanceData, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode balance: invalid json")
	}

	field := gjson.GetBytes(body, "balance_data")
	if !field.Exists() || field.Type == gjson.Null {
		return models.BalanceData{}, nil
	}
	if !field.IsObject() {
		return nil, fmt.Errorf("decode balance: balance_data is %s", field.Type)
	}

	balance := make(models.BalanceData)
	field.ForEach(func(symbol, value gjson.Result) bool {
		amount, err := cast.ToFloat64E(value.Value())
		if err != nil {
			logger.Warn().Err(err).Str("symbol", symbol.String()).Msg("skip non-numeric balance")
			return true
		}
		balance[symbol.String()] = amount
		return true
	})
	return balance, nil
}

// Authenticate 用钱包地址换取三条链的收款地址
func (c *Client) Authenticate(ctx context.Context, address, invite string) (models.WalletAddresses, error) {
	payload := map[string]any{"address": address, "invite": nil}
	if invite != "" {
		payload["invite"] = invite
	}

	body, err := c.do(ctx, "authenticate", http.MethodPost, pathAuth, payload)
	if err != nil {
		return models.WalletAddresses{}, err
	}

	var addrs models.WalletAddresses
	if err = json.Unmarshal(body, &addrs); err != nil {
		return models.WalletAddresses{}, fmt.Errorf("decode auth response: %w", err)
	}
	return addrs, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	return body, nil
}
