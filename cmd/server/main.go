package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accountstate/internal/config"
	"accountstate/internal/handler"
	"accountstate/internal/infrastructure/cache"
	"accountstate/internal/infrastructure/database"
	"accountstate/internal/infrastructure/lock"
	"accountstate/internal/infrastructure/mq"
	"accountstate/internal/job"
	"accountstate/internal/metrics"
	"accountstate/internal/repository"
	"accountstate/internal/service"
	"accountstate/pkg/idgen"
	"accountstate/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "服务异常退出: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	logger.SetGlobal(log)

	// 初始化 ID 生成器
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return err
	}

	// 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// 初始化 MySQL
	db, err := database.InitMySQL(&cfg.MySQL)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// 初始化 Redis
	redisClient, err := cache.InitRedis(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// 初始化 Kafka
	producer, err := mq.InitKafka(&cfg.Kafka, m)
	if err != nil {
		return err
	}
	defer producer.Close()

	store := repository.NewGormStore(db)
	locker := lock.NewRedisLocker(redisClient, time.Duration(cfg.Business.LockTimeoutSeconds)*time.Second)
	accountService := service.NewAccountService(store, locker, m, cfg)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxRepo := repository.NewOutboxRepository(db)
	outboxSender := job.NewOutboxSender(outboxRepo, producer, m, cfg.Business.MaxRetryCount)
	go outboxSender.Start(ctx)

	redriveJob := job.NewOutboxRedriveJob(outboxRepo, m, time.Duration(cfg.Business.RedriveAfterMinutes)*time.Minute)
	go redriveJob.Start(ctx)

	// 设置路由
	gin.SetMode(gin.ReleaseMode)
	router := handler.SetupRouter(handler.NewHandler(accountService, cfg.Business.HistoryMaxPageSize), reg)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("正在关闭服务...", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("服务启动失败", zap.Error(err))
		return err
	}

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("服务关闭异常", zap.Error(err))
	}

	log.Info("服务已关闭")
	return nil
}
