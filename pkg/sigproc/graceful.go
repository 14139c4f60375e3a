package sigproc

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utrading/utrading-wallet-sync/pkg/goplus"
	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

type HandlerFunc func(os.Signal)

// GracefulShutdown 收到退出信号后执行 shutdown，最多等待 timeout 后强制退出
func GracefulShutdown(timeout time.Duration, shutdown HandlerFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	goplus.Go(func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("received signal")

		finished := make(chan struct{})
		goplus.Go(func() {
			shutdown(sig)
			close(finished)
		})

		select {
		case <-finished:
		case <-time.After(timeout):
			logger.Warn().Dur("timeout", timeout).Msg("shutdown timed out")
		}

		os.Exit(0)
	})
}
