package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger 替换全局日志器，每条日志带上本机的昵称与运行模式，便于在同一终端区分主机和客户端
func InitLogger(logLevel, name, mode string) {
	cfg := zap.NewDevelopmentConfig()

	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level.SetLevel(level)

	// 终端同时用于按键输入，日志写到标准错误
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = level > zapcore.DebugLevel

	lgr, err := cfg.Build(zap.Fields(
		zap.String("peer", name),
		zap.String("mode", mode),
	))
	if err != nil {
		panic(fmt.Errorf("构建日志器失败: %w", err))
	}

	zap.ReplaceGlobals(lgr)
}
