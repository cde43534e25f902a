package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/common/logger"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/config"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(logger.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "pulsoft-alarm",
		File:        cfg.Log.File,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. 创建服务
	alarmService, err := service.NewAlarmService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create alarm service",
			zap.Error(err),
		)
	}

	// 5. 启动服务（在 goroutine 中）
	serviceDone := make(chan error, 1)
	go func() {
		serviceDone <- alarmService.Start(ctx)
	}()

	// 6. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down",
			zap.String("signal", sig.String()),
		)
		cancel() // 取消上下文，停止消费
		select {
		case <-serviceDone:
		case <-time.After(10 * time.Second):
			log.Warn("Stream consumer did not stop in time")
		}
	case err := <-serviceDone:
		if err != nil {
			log.Error("Service error",
				zap.Error(err),
			)
		}
	}

	_ = alarmService.Stop()
	log.Info("Alarm service stopped")
}
