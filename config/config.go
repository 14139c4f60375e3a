package config

import (
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

type Wallet struct {
	APIBaseURL         string        `toml:"api_base_url"`
	StreamURL          string        `toml:"stream_url"`
	Address            string        `toml:"address"`
	Invite             string        `toml:"invite"`
	RequestTimeout     time.Duration `toml:"request_timeout"`
	StaleSweepInterval time.Duration `toml:"stale_sweep_interval"`
}

type Auth struct {
	DemoFallback bool `toml:"demo_fallback"`
}

type MySQL struct {
	DSN                string   `toml:"dsn"`
	SlaveAddr          []string `toml:"slave_addr"`
	MaxIdleConnections int      `toml:"max_idle_connections"`
	MaxOpenConnections int      `toml:"max_open_connections"`
	SetConnMaxLifetime int      `toml:"set_conn_max_lifetime"`
	SetConnMaxIdleTime int      `toml:"set_conn_max_idle_time"`
	ProxyEnabled       bool     `toml:"proxy_enabled"`
	ProxyAddr          string   `toml:"proxy_addr"`
}

type Redis struct {
	Addr     string        `toml:"addr"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	Prefix   string        `toml:"prefix"`
	Timeout  time.Duration `toml:"timeout"`
}

type Storage struct {
	// memory / sqlite / mysql / redis
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
	MySQL      MySQL  `toml:"mysql"`
	Redis      Redis  `toml:"redis"`
}

type QR struct {
	Endpoint       string        `toml:"endpoint"`
	PreloadTimeout time.Duration `toml:"preload_timeout"`
	PoolSize       int           `toml:"pool_size"`
}

type NATS struct {
	Endpoint string `toml:"endpoint"`
}

type Monitor struct {
	Addr string `toml:"addr"`
}

type Logger struct {
	Dir        string `toml:"dir"`
	Level      string `toml:"level"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
	Console    bool   `toml:"console"`
}

type Config struct {
	Wallet  Wallet  `toml:"wallet"`
	Auth    Auth    `toml:"auth"`
	Storage Storage `toml:"storage"`
	QR      QR      `toml:"qr"`
	NATS    NATS    `toml:"nats"`
	Monitor Monitor `toml:"monitor"`
	Logger  Logger  `toml:"log"`
}

var (
	cfg         *Config
	cfgPath     string
	cfgLock     sync.RWMutex
	lastModTime time.Time
	stopChan    chan struct{}
	stopOnce    sync.Once
)

func Default() *Config {
	return &Config{
		Wallet: Wallet{
			APIBaseURL:         "https://web3.auryonex.com",
			StreamURL:          "wss://web3.auryonex.com/user-asset-price",
			RequestTimeout:     15 * time.Second,
			StaleSweepInterval: 30 * time.Second,
		},
		Auth: Auth{
			DemoFallback: false,
		},
		Storage: Storage{
			Driver:     "sqlite",
			SQLitePath: "data/wallet_cache.db",
			MySQL: MySQL{
				DSN:                "root:password@tcp(localhost:3306)/utrading?charset=utf8mb4&parseTime=True&loc=Local",
				SlaveAddr:          []string{},
				MaxIdleConnections: 4,
				MaxOpenConnections: 16,
				SetConnMaxLifetime: 7200,
				SetConnMaxIdleTime: 3600,
				ProxyEnabled:       false,
				ProxyAddr:          "127.0.0.1:7890",
			},
			Redis: Redis{
				Addr:    "127.0.0.1:6379",
				Prefix:  "wallet_sync:",
				Timeout: 3 * time.Second,
			},
		},
		QR: QR{
			Endpoint:       "https://api.qrserver.com/v1/create-qr-code/",
			PreloadTimeout: 10 * time.Second,
			PoolSize:       5,
		},
		NATS: NATS{
			// 为空时不发布
			Endpoint: "",
		},
		Monitor: Monitor{
			Addr: "127.0.0.1:16900",
		},
		Logger: Logger{
			Dir:        "logs",
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 30,
			MaxAge:     7,
			Compress:   false,
			Console:    false,
		},
	}
}

// Load 读取 TOML 文件；path 为空时只使用默认值和环境变量
func Load(path string) error {
	c := Default()

	var modTime time.Time
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		modTime = info.ModTime()
	}

	applyEnv(c)

	cfgLock.Lock()
	defer cfgLock.Unlock()
	cfg = c
	cfgPath = path
	lastModTime = modTime

	return nil
}

// LoadEnvFile 把 .env 文件加载进进程环境，已存在的变量不会被覆盖
func LoadEnvFile(files ...string) error {
	return godotenv.Load(files...)
}

// applyEnv 环境变量优先于文件
func applyEnv(c *Config) {
	if v := os.Getenv("WALLET_ADDRESS"); v != "" {
		c.Wallet.Address = v
	}
	if v := os.Getenv("WALLET_INVITE"); v != "" {
		c.Wallet.Invite = v
	}
	if v := os.Getenv("WALLET_API_BASE_URL"); v != "" {
		c.Wallet.APIBaseURL = v
	}
	if v := os.Getenv("WALLET_STREAM_URL"); v != "" {
		c.Wallet.StreamURL = v
	}
}

func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// Init 初始化配置并启动定期重载（默认10秒）
func Init(path string) error {
	return InitWithInterval(path, 10*time.Second)
}

// InitWithInterval 初始化配置并指定重载间隔
func InitWithInterval(path string, interval time.Duration) error {
	if err := Load(path); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	stopChan = make(chan struct{})
	stopOnce = sync.Once{}
	done := stopChan
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				reloadIfNeeded()
			case <-done:
				return
			}
		}
	}()

	return nil
}

// Stop 停止配置重载
func Stop() {
	if stopChan != nil {
		stopOnce.Do(func() { close(stopChan) })
	}
}

// reloadIfNeeded 仅在文件修改时重载
func reloadIfNeeded() {
	cfgLock.RLock()
	path := cfgPath
	lastMod := lastModTime
	cfgLock.RUnlock()

	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Error().Err(err).Msg("config stat failed")
		return
	}

	if info.ModTime().After(lastMod) {
		if err = Load(path); err != nil {
			logger.Error().Err(err).Msg("config reload failed")
		} else {
			logger.Info().Msg("config reloaded")
		}
	}
}
