package goplus

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/utrading/utrading-wallet-sync/pkg/logger"
)

func Recover() {
	if r := recover(); r != nil {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("panic: %v\ncallers:\n", r))
		for i := 2; i <= 32; i++ {
			_, file, line, ok := runtime.Caller(i)
			if !ok {
				break
			}
			sb.WriteString(fmt.Sprintf("%s:%d\n", file, line))
		}

		logger.Error().Msg(sb.String())
	}
}
