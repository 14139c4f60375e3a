package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logMu      sync.Mutex
	writers    map[string]*lumberjack.Logger
	closed     chan struct{}
	TimeFormat = "2006-01-02 15:04:05"
)

// initLogger 初始化全局 logger
func initLogger(config Config) error {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.SetGlobalLevel(parseLevel(config.Level))

	if config.LevelFiles.IsEmpty() {
		config.LevelFiles = LevelFiles{{Level: INFO, Path: "logs/info.log"}}
	}

	for _, path := range config.LevelFiles.GetPaths() {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
	}

	setWriter(config)

	logMu.Lock()
	closed = make(chan struct{})
	done := closed
	logMu.Unlock()

	go rotateDaily(done)
	return nil
}

func setWriter(config Config) {
	var configured uint8
	for _, entry := range config.LevelFiles {
		configured |= 1 << parseLevel(entry.Level)
	}

	outs := make([]io.Writer, 0, len(config.LevelFiles)+1)
	newWriters := make(map[string]*lumberjack.Logger, len(config.LevelFiles))

	for _, entry := range config.LevelFiles {
		lj := &lumberjack.Logger{
			Filename:   entry.Path,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		newWriters[entry.Level] = lj
		outs = append(outs, &levelFilterWriter{
			level:      parseLevel(entry.Level),
			configured: configured,
			Writer:     &zerolog.ConsoleWriter{Out: lj, TimeFormat: TimeFormat, NoColor: true},
		})
	}

	if config.Console {
		outs = append(outs, &zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat})
	}

	logMu.Lock()
	defer logMu.Unlock()

	closeWriters()
	writers = newWriters
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(outs...)).With().Timestamp().Caller().Logger()
}

// levelFilterWriter 只写入指定等级；未单独配置文件的等级落到 info 文件
type levelFilterWriter struct {
	level      zerolog.Level
	configured uint8
	io.Writer
}

func (w *levelFilterWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level == w.level {
		return w.Writer.Write(p)
	}

	switch w.level {
	case zerolog.InfoLevel:
		if w.configured&(1<<level) == 0 {
			return w.Writer.Write(p)
		}
	case zerolog.ErrorLevel:
		if level == zerolog.FatalLevel && w.configured&(1<<level) == 0 {
			return w.Writer.Write(p)
		}
	}
	return len(p), nil
}

func closeWriters() {
	for level, lj := range writers {
		if err := lj.Close(); err != nil {
			log.Logger.Err(err).Str("level", level).Msg("failed to close log writer")
		}
	}
	writers = nil
}

// rotateDaily 每天零点切割一次日志文件
func rotateDaily(done chan struct{}) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-done:
			timer.Stop()
			return
		case <-timer.C:
			logMu.Lock()
			for level, lj := range writers {
				if err := lj.Rotate(); err != nil {
					log.Logger.Err(err).Str("level", level).Msg("rotate log file failed")
				}
			}
			logMu.Unlock()
		}
	}
}

func Info() *zerolog.Event {
	return log.Logger.Info()
}

func Debug() *zerolog.Event {
	return log.Logger.Debug()
}

func Warn() *zerolog.Event {
	return log.Logger.Warn()
}

func Error() *zerolog.Event {
	return log.Logger.Error()
}

func Fatal() *zerolog.Event {
	return log.Logger.Fatal()
}

// Err 直接记录错误，err 为 nil 时按 info 级别输出
func Err(err error) *zerolog.Event {
	return log.Logger.Err(err)
}

// Infof 格式化 Info 日志
func Infof(format string, v ...any) {
	log.Logger.Info().CallerSkipFrame(1).Msgf(format, v...)
}

// Warnf 格式化 Warn 日志
func Warnf(format string, v ...any) {
	log.Logger.Warn().CallerSkipFrame(1).Msgf(format, v...)
}

// Close 停止日期切割并关闭文件
func Close() {
	logMu.Lock()
	defer logMu.Unlock()

	if closed != nil {
		close(closed)
		closed = nil
	}
	closeWriters()
}
