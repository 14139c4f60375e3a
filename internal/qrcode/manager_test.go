package qrcode

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-wallet-sync/internal/cache"
	"github.com/utrading/utrading-wallet-sync/internal/models"
	"github.com/utrading/utrading-wallet-sync/internal/storage"
)

type fakePreloader struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (p *fakePreloader) Preload(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, url)
	if p.fail {
		return errors.New("image load error")
	}
	return nil
}

func (p *fakePreloader) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

var testAddrs = models.WalletAddresses{
	ETH:  "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b7",
	Tron: "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7",
	BTC:  "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
}

func newTestManager(p Preloader) (*Manager, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return NewManager(store, Options{Preloader: p}), store
}

func TestBuildURL(t *testing.T) {
	m, _ := newTestManager(&fakePreloader{})

	assert.Equal(t,
		"https://api.qrserver.com/v1/create-qr-code/?size=180x180&data=bitcoin%3A1A1z%2Bx%20y",
		m.BuildURL("bitcoin:1A1z+x y"))
	assert.Equal(t, "", m.BuildURL(""))
}

func TestGenerateQRCode_CachedWithinWindow(t *testing.T) {
	p := &fakePreloader{}
	m, _ := newTestManager(p)

	first := m.GenerateQRCode(context.Background(), SlotETH, testAddrs.ETH)
	second := m.GenerateQRCode(context.Background(), SlotETH, testAddrs.ETH)

	assert.Equal(t, first, second)
	assert.Contains(t, first, testAddrs.ETH)
	assert.Equal(t, 1, p.Count())
}

func TestGenerateQRCode_ExpiresAfterWindow(t *testing.T) {
	p := &fakePreloader{}
	m, _ := newTestManager(p)
	now := time.Now()
	m.SetClock(func() time.Time { return now })

	m.GenerateQRCode(context.Background(), SlotBTC, testAddrs.BTC)
	now = now.Add(FreshnessWindow)
	m.GenerateQRCode(context.Background(), SlotBTC, testAddrs.BTC)

	assert.Equal(t, 2, p.Count())
}

func TestGenerateQRCode_AddressChangeRegenerates(t *testing.T) {
	p := &fakePreloader{}
	m, _ := newTestManager(p)

	m.GenerateQRCode(context.Background(), SlotETH, "0x0000000000000000000000000000000000000001")
	url := m.GenerateQRCode(context.Background(), SlotETH, "0x0000000000000000000000000000000000000002")

	assert.Contains(t, url, "0x0000000000000000000000000000000000000002")
	assert.Equal(t, 2, p.Count())
}

func TestGenerateQRCode_PreloadFailureNotCached(t *testing.T) {
	p := &fakePreloader{fail: true}
	m, _ := newTestManager(p)

	url := m.GenerateQRCode(context.Background(), SlotTron, testAddrs.Tron)
	assert.Equal(t, m.BuildURL(testAddrs.Tron), url)
	assert.Equal(t, 0, m.Len())

	m.GenerateQRCode(context.Background(), SlotTron, testAddrs.Tron)
	assert.Equal(t, 2, p.Count())
}

func TestGenerateQRCode_EmptyAddress(t *testing.T) {
	p := &fakePreloader{}
	m, _ := newTestManager(p)

	assert.Equal(t, "", m.GenerateQRCode(context.Background(), SlotBTC, ""))
	assert.Equal(t, 0, p.Count())
}

func TestGetQRCode_AddressMismatchSynthesizes(t *testing.T) {
	m, _ := newTestManager(&fakePreloader{})
	addr1 := "0x0000000000000000000000000000000000000001"
	addr2 := "0x0000000000000000000000000000000000000002"

	cachedURL := m.GenerateQRCode(context.Background(), SlotETH, addr1)
	got := m.GetQRCode(SlotETH, addr2)

	assert.NotEqual(t, cachedURL, got)
	assert.Contains(t, got, addr2)
	assert.Equal(t, cachedURL, m.GetQRCode(SlotETH, addr1))
	// 现场拼接不写缓存
	assert.Equal(t, 1, m.Len())
}

func TestInitialize_GeneratesAllSlotsAndPersists(t *testing.T) {
	p := &fakePreloader{}
	m, store := newTestManager(p)

	require.NoError(t, m.Initialize(context.Background(), testAddrs))
	assert.True(t, m.Initialized())
	assert.Equal(t, 5, p.Count())
	assert.Equal(t, 5, m.Len())

	raw, found, err := store.GetItem(cache.KeyQRCodes)
	require.NoError(t, err)
	require.True(t, found)

	var persisted map[string]models.QRCodeData
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	assert.Equal(t, testAddrs.ETH, persisted[SlotUSDTERC20].Address)
	assert.Equal(t, testAddrs.Tron, persisted[SlotUSDTTRC20].Address)
	assert.True(t, strings.HasPrefix(persisted[SlotBTC].QRCodeURL, DefaultEndpoint))

	// 第二次调用不做任何事
	require.NoError(t, m.Initialize(context.Background(), testAddrs))
	assert.Equal(t, 5, p.Count())
}

func TestInitialize_ReusesPersistedCache(t *testing.T) {
	store := storage.NewMemoryStore()
	first := NewManager(store, Options{Preloader: &fakePreloader{}})
	require.NoError(t, first.Initialize(context.Background(), testAddrs))

	p := &fakePreloader{}
	second := NewManager(store, Options{Preloader: p})
	require.NoError(t, second.Initialize(context.Background(), testAddrs))

	assert.Equal(t, 0, p.Count())
	assert.Equal(t, 5, second.Len())
}

func TestReset(t *testing.T) {
	p := &fakePreloader{}
	m, _ := newTestManager(p)

	require.NoError(t, m.Initialize(context.Background(), testAddrs))
	m.Reset()
	assert.False(t, m.Initialized())
	assert.Equal(t, 0, m.Len())

	// 重新初始化时从持久化数据恢复，不再预加载
	require.NoError(t, m.Initialize(context.Background(), testAddrs))
	assert.Equal(t, 5, p.Count())
	assert.Equal(t, 5, m.Len())
}

func TestClearCache(t *testing.T) {
	m, store := newTestManager(&fakePreloader{})
	require.NoError(t, m.Initialize(context.Background(), testAddrs))

	m.ClearCache()

	assert.Equal(t, 0, m.Len())
	_, found, _ := store.GetItem(cache.KeyQRCodes)
	assert.False(t, found)
}

func TestLoadCache_Malformed(t *testing.T) {
	m, store := newTestManager(&fakePreloader{})
	require.NoError(t, store.SetItem(cache.KeyQRCodes, "{broken"))

	require.NoError(t, m.Initialize(context.Background(), testAddrs))
	assert.Equal(t, 5, m.Len())
}

func TestGetQRCodeForAsset(t *testing.T) {
	m, _ := newTestManager(&fakePreloader{})
	require.NoError(t, m.Initialize(context.Background(), testAddrs))

	tests := []struct {
		asset, network string
		wantAddr       string
	}{
		{"USDT", "ERC20", testAddrs.ETH},
		{"USDT", "TRC20", testAddrs.Tron},
		{"USDT", "", testAddrs.Tron},
		{"ETH", "", testAddrs.ETH},
		{"BTC", "", testAddrs.BTC},
	}
	for _, tt := range tests {
		t.Run(tt.asset+"_"+tt.network, func(t *testing.T) {
			assert.Equal(t, m.BuildURL(tt.wantAddr), m.GetQRCodeForAsset(tt.asset, tt.network, testAddrs))
		})
	}

	assert.Equal(t, "", m.GetQRCodeForAsset("DOGE", "", testAddrs))
}
