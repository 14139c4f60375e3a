package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/utrading/utrading-wallet-sync/internal/models"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

var (
	ErrNoProvider     = errors.New("no wallet provider available")
	ErrNoAccount      = errors.New("no wallet address found")
	ErrInvalidAddress = errors.New("invalid wallet address")
)

// 演示身份
var DemoAddresses = models.WalletAddresses{
	ETH:  "0x742d35Cc6634C0532925a3b8D4C9db96C4b4d8b7",
	Tron: "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7",
	BTC:  "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
}

// Provider 注入的钱包，返回已授权账户
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
}

// StaticProvider 固定账户列表，用于命令行
type StaticProvider struct {
	Accounts []string
}

func (p StaticProvider) RequestAccounts(context.Context) ([]string, error) {
	return p.Accounts, nil
}

// AuthAPI 远端认证接口
type AuthAPI interface {
	Authenticate(ctx context.Context, address, invite string) (models.WalletAddresses, error)
}

// Session 一次认证的结果，三条链地址在会话期间不变
type Session struct {
	ID        string                 `json:"id"`
	Address   string                 `json:"address"`
	Addresses models.WalletAddresses `json:"addresses"`
	Demo      bool                   `json:"demo"`
	AuthError string                 `json:"auth_error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Ready 地址可用即就绪
func (s *Session) Ready() bool {
	return s != nil && s.Address != ""
}

func newSession(address string, addrs models.WalletAddresses) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Address:   address,
		Addresses: addrs,
		CreatedAt: time.Now(),
	}
}

// DemoSession 离线演示身份
func DemoSession(cause error) *Session {
	s := newSession(DemoAddresses.ETH, DemoAddresses)
	s.Demo = true
	if cause != nil {
		s.AuthError = cause.Error()
	}
	return s
}

type Options struct {
	Invite string
	// DemoFallback 认证失败时退回演示身份，仅用于开发环境
	DemoFallback bool
}

type Authenticator struct {
	provider Provider
	api      AuthAPI
	opts     Options

	mu      sync.RWMutex
	current *Session
}

func NewAuthenticator(provider Provider, api AuthAPI, opts Options) *Authenticator {
	return &Authenticator{provider: provider, api: api, opts: opts}
}

// Authenticate provider -> 第一个账户 -> 地址校验 -> /auth
func (a *Authenticator) Authenticate(ctx context.Context) (*Session, error) {
	s, err := a.authenticate(ctx)
	if err != nil {
		if !a.opts.DemoFallback {
			return nil, err
		}
		logger.Warn().Err(err).Msg("wallet authentication failed, using demo identity")
		s = DemoSession(err)
	}

	a.mu.Lock()
	a.current = s
	a.mu.Unlock()

	logger.Info().
		Str("session", s.ID).
		Str("address", s.Address).
		Bool("demo", s.Demo).
		Msg("wallet session ready")
	return s, nil
}

// Current 最近一次认证得到的会话
func (a *Authenticator) Current() *Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

func (a *Authenticator) authenticate(ctx context.Context) (*Session, error) {
	if a.provider == nil {
		return nil, ErrNoProvider
	}

	accounts, err := a.provider.RequestAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 || accounts[0] == "" {
		return nil, ErrNoAccount
	}

	address := accounts[0]
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}

	addrs, err := a.api.Authenticate(ctx, address, a.opts.Invite)
	if err != nil {
		return nil, fmt.Errorf("authenticate wallet: %w", err)
	}

	return newSession(address, addrs), nil
}
