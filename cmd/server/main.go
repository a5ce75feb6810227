package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ledgerpay/internal/config"
	"ledgerpay/internal/handler"
	"ledgerpay/internal/infrastructure/cache"
	"ledgerpay/internal/infrastructure/database"
	"ledgerpay/internal/infrastructure/lock"
	"ledgerpay/internal/infrastructure/mq"
	"ledgerpay/internal/job"
	"ledgerpay/internal/observability"
	"ledgerpay/internal/repository"
	"ledgerpay/internal/service"
	"ledgerpay/pkg/idgen"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "ledgerpay").Logger()

	// 加载配置
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	// 初始化 ID 生成器
	if err := idgen.Init(1); err != nil {
		logger.Fatal().Err(err).Msg("初始化 ID 生成器失败")
	}

	// 初始化 MySQL
	db, err := database.InitMySQL(&cfg.MySQL)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化 MySQL 失败")
	}

	// 初始化 Redis
	redisClient, err := cache.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化 Redis 失败")
	}

	// 初始化 Kafka
	producer, err := mq.NewKafkaProducer(&cfg.Kafka)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化 Kafka 失败")
	}
	defer producer.Close()

	// 组装依赖
	store := repository.NewGormStore(db)
	locker := lock.NewRedisLocker(redisClient,
		time.Duration(cfg.Ledger.LockTTLSeconds)*time.Second,
		time.Duration(cfg.Ledger.LockRetryIntervalMS)*time.Millisecond,
		cfg.Ledger.LockMaxRetries)
	metrics := observability.NewLedgerMetrics(logger)

	ledgerService := service.NewLedgerService(store, locker, metrics, logger)
	accountService := service.NewAccountService(store, cfg.Ledger.DefaultCurrency)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	dispatcher := job.NewOutboxDispatcher(store, producer, cfg, logger)
	go dispatcher.Start(ctx)

	reconcileJob := job.NewReconcileJob(store, metrics, cfg, logger)
	go reconcileJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(ledgerService, accountService, logger)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("服务启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("服务启动失败")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务关闭异常")
	}

	logger.Info().Msg("服务已关闭")
}
