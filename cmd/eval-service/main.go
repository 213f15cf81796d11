package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ojcore/internal/common/cache"
	"ojcore/internal/common/db"
	"ojcore/internal/common/mq"
	"ojcore/internal/eval/judge"
	"ojcore/internal/eval/repository"
	"ojcore/internal/eval/service"
	"ojcore/internal/events"
	"ojcore/pkg/utils/logger"
)

const defaultConfigPath = "configs/eval_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	var publisher mq.Producer
	if appCfg.Kafka.Enabled {
		kafkaProducer, err := mq.NewKafkaProducer(appCfg.Kafka.toMQConfig())
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = kafkaProducer.Close()
		}()
		publisher = kafkaProducer
	}

	submissionRepo := repository.NewSubmissionRepository(mysqlDB)
	taskRepo := repository.NewTaskRepository(mysqlDB, redisCache)
	resultRepo := repository.NewResultRepository(mysqlDB, submissionRepo)

	hub := events.NewHub(appCfg.Events.HistoryWindow.std())
	defer hub.Stop()

	evaluator := service.NewEvaluator(service.EvaluatorOptions{
		Runner:        judge.NewProcessRunner(appCfg.Judge.Binary, appCfg.Judge.Timeout.std()),
		Guard:         service.NewGuard(),
		Submissions:   submissionRepo,
		Tasks:         taskRepo,
		Results:       resultRepo,
		Publisher:     publisher,
		PublishTopic:  appCfg.Kafka.Topic,
		SubmissionDir: appCfg.Judge.SubmissionDir,
		TaskDir:       appCfg.Judge.TaskDir,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := service.NewPool(evaluator, appCfg.Worker.PoolSize)
	pool.Start(ctx)

	sweeper := service.NewSweeper(submissionRepo, pool, func(userID int64) events.Notifier {
		return events.NewHubNotifier(hub, userID)
	}, appCfg.Sweep.Interval.std())
	sweeper.Start(ctx)

	logger.Info(ctx, "eval service started",
		zap.Int("workers", appCfg.Worker.PoolSize),
		zap.Duration("sweep_interval", appCfg.Sweep.Interval.std()),
		zap.Duration("history_window", appCfg.Events.HistoryWindow.std()),
		zap.Bool("kafka", appCfg.Kafka.Enabled))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info(ctx, "shutting down", zap.String("signal", sig.String()))

	// Stop feeding the pool first, then let in-flight evaluations finish.
	sweeper.Stop()
	pool.Stop()
}
