package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"time"

	"github.com/utrading/utrading-wallet-sync/config"
	"github.com/utrading/utrading-wallet-sync/internal/api"
	"github.com/utrading/utrading-wallet-sync/internal/cache"
	"github.com/utrading/utrading-wallet-sync/internal/manager"
	"github.com/utrading/utrading-wallet-sync/internal/monitor"
	"github.com/utrading/utrading-wallet-sync/internal/nats"
	"github.com/utrading/utrading-wallet-sync/internal/portfolio"
	"github.com/utrading/utrading-wallet-sync/internal/qrcode"
	"github.com/utrading/utrading-wallet-sync/internal/session"
	"github.com/utrading/utrading-wallet-sync/internal/storage"
	"github.com/utrading/utrading-wallet-sync/internal/ws"
	"github.com/utrading/utrading-wallet-sync/pkg/goplus"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
	"github.com/utrading/utrading-wallet-sync/pkg/sigproc"
)

func main() {
	var configFile string
	var envFile string
	flag.StringVar(&configFile, "config", "", "config file path (optional)")
	flag.StringVar(&envFile, "env", ".env", "env file path (optional)")
	flag.Parse()

	// .env 不存在时忽略
	if err := config.LoadEnvFile(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("load env file failed: " + err.Error())
	}

	// 加载配置
	if err := config.Init(configFile); err != nil {
		panic(err)
	}
	cfg := config.Get()

	// 初始化日志
	if err := initLogger(cfg); err != nil {
		panic("init logger failed: " + err.Error())
	}
	defer logger.Close()

	logger.Info().Msg("wallet_sync service starting...")

	// 初始化指标
	monitor.InitMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化持久化存储
	store, closeStore, err := storage.Open(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("open storage failed")
	}
	walletCache := cache.New(store)

	apiClient := api.NewClient(cfg.Wallet.APIBaseURL, cfg.Wallet.RequestTimeout, walletCache)

	// 钱包认证
	var provider session.Provider
	if cfg.Wallet.Address != "" {
		provider = session.StaticProvider{Accounts: []string{cfg.Wallet.Address}}
	}
	authenticator := session.NewAuthenticator(provider, apiClient, session.Options{
		Invite:       cfg.Wallet.Invite,
		DemoFallback: cfg.Auth.DemoFallback,
	})
	sess, err := authenticator.Authenticate(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("wallet authentication failed")
	}

	// 二维码缓存在后台预热
	qrManager := qrcode.NewManager(store, qrcode.Options{
		Endpoint:  cfg.QR.Endpoint,
		PoolSize:  cfg.QR.PoolSize,
		Preloader: qrcode.NewHTTPPreloader(cfg.QR.PreloadTimeout),
	})
	goplus.Go(func() {
		if err := qrManager.Initialize(ctx, sess.Addresses); err != nil {
			logger.Error().Err(err).Msg("init qr cache failed")
		}
	})

	// NATS 可选
	var publisher *nats.Publisher
	var notifier manager.Notifier
	var publisherRef monitor.PublisherRef
	if cfg.NATS.Endpoint != "" {
		publisher, err = nats.NewPublisher(cfg.NATS.Endpoint)
		if err != nil {
			logger.Error().Err(err).Str("endpoint", cfg.NATS.Endpoint).Msg("init nats publisher failed, fan-out disabled")
		} else {
			notifier = publisher
			publisherRef = publisher
		}
	}

	// 价格流和数据编排
	stream := ws.NewManager(ws.NewClient(cfg.Wallet.StreamURL), walletCache)
	walletManager := manager.NewWalletManager(apiClient, stream, walletCache, manager.Options{
		SweepInterval: cfg.Wallet.StaleSweepInterval,
		FetchTimeout:  cfg.Wallet.RequestTimeout,
		Notifier:      notifier,
	})
	if err = walletManager.Start(sess); err != nil {
		logger.Fatal().Err(err).Msg("start wallet manager failed")
	}

	// 初始化健康检查服务器
	statusView := manager.NewStatusView(walletManager, qrManager, portfolio.NewPreferences(walletCache))
	healthServer := monitor.NewHealthServer(cfg.Monitor.Addr, stream, publisherRef, statusView)
	if err = healthServer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start health server failed")
	}

	logger.Info().
		Str("address", sess.Address).
		Bool("demo", sess.Demo).
		Str("stream_url", cfg.Wallet.StreamURL).
		Str("health_addr", healthServer.Addr()).
		Msg("wallet_sync service started successfully")

	// 优雅关闭
	sigproc.GracefulShutdown(15*time.Second, func(sig os.Signal) {
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")

		// 停止巡检并以 1000 关闭价格流
		walletManager.Stop()

		// 关闭健康检查服务器
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("stop health server failed")
		}

		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn().Err(err).Msg("close nats publisher failed")
			}
		}

		// 关闭配置重载
		config.Stop()

		// 关闭存储
		closeStore()

		logger.Info().Msg("wallet_sync service stopped")
		cancel()
	})

	<-ctx.Done()
}

func initLogger(cfg *config.Config) error {
	return logger.NewBuilder().
		SetDir(cfg.Logger.Dir).
		SetMaxSize(cfg.Logger.MaxSize).
		SetMaxBackups(cfg.Logger.MaxBackups).
		SetMaxAge(cfg.Logger.MaxAge).
		SetLevel(cfg.Logger.Level).
		EnableCompression(cfg.Logger.Compress).
		EnableConsoleOutput(cfg.Logger.Console).
		Build()
}
