package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"pacman-lan/internal/analytics"
	"pacman-lan/internal/config"
	"pacman-lan/internal/logger"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel, cfg.Name, cfg.Mode)
	defer zap.L().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cfg.Mode {
	case config.MODE_HOST:
		err = runHost(ctx, cfg)
	case config.MODE_JOIN:
		err = runJoin(ctx, cfg)
	}

	if err != nil {
		zap.L().Error("程序退出", zap.Error(err))
		os.Exit(1)
	}
}

// newPublisher 未配置 Kafka 或连接失败时退化为不发送事件
func newPublisher(cfg *config.AppConfig) analytics.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return analytics.Nop{}
	}

	p, err := analytics.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		zap.L().Warn("Kafka 不可用，不发送分析事件", zap.Error(err))
		return analytics.Nop{}
	}

	return p
}
