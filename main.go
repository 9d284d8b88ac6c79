package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"chatwatch/internal/channel"
	"chatwatch/internal/classifier"
	"chatwatch/internal/config"
	"chatwatch/internal/filter"
	"chatwatch/internal/permission"
	"chatwatch/internal/pipeline"
	"chatwatch/internal/queue"
	"chatwatch/internal/repository"
	"chatwatch/internal/routing"
	"chatwatch/internal/scoring"
	"chatwatch/internal/server"
	"chatwatch/internal/throttle"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Secrets may be provided via a local .env file in development.
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}

	cfgPath := "configs/config.yml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Redis backs the durable stream and the throttle store.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Repositories
	ruleRepo := repository.NewRuleRepository(db, logger)
	applicationRepo := repository.NewFilterApplicationRepository(db, logger)
	adminRepo := repository.NewAdminRepository(db, logger)
	alertRepo := repository.NewAlertRepository(db, logger)
	messageRepo := repository.NewMessageRepository(db, logger)

	// Pipeline stages
	classifierClient := classifier.NewClient(cfg.Classifier.URL,
		time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second)

	filterEngine := filter.NewEngine(ruleRepo, applicationRepo, logger)

	scorer := scoring.NewScorer(ruleRepo, scoring.Config{
		Threshold:          cfg.Detection.Threshold,
		LookupBudget:       time.Duration(cfg.Detection.LookupBudgetMs) * time.Millisecond,
		BusinessHoursStart: cfg.Detection.BusinessHoursStart,
		BusinessHoursEnd:   cfg.Detection.BusinessHoursEnd,
		AllowedSenders:     cfg.Detection.AllowedSenders,
		AllowedChatRooms:   cfg.Detection.AllowedChatRooms,
		AllowedKeywords:    cfg.Detection.AllowedKeywords,
		OfficialKeywords:   cfg.Detection.OfficialKeywords,
	}, logger)

	evaluator := permission.NewEvaluator(adminRepo, permission.Config{
		WorkHoursStart:    cfg.Routing.WorkHoursStart,
		WorkHoursEnd:      cfg.Routing.WorkHoursEnd,
		EmergencyOverride: cfg.Routing.EmergencyOverride,
	}, logger)

	adapters := buildAdapters(cfg, logger)

	router := routing.NewEngine(adapters, adminRepo, evaluator, routing.Config{
		Timeout:          time.Duration(cfg.Routing.TimeoutSeconds) * time.Second,
		MaxWorkers:       cfg.Routing.MaxWorkers,
		FallbackChannels: cfg.Routing.FallbackChannels,
	}, logger)

	limiter := throttle.NewLimiter(throttle.NewRedisStore(redisClient), throttle.Config{
		RoomTTL:   time.Duration(cfg.Throttle.RoomTTLSeconds) * time.Second,
		HourlyMax: cfg.Throttle.HourlyMax,
		FailOpen:  cfg.Throttle.FailOpen,
	}, logger)

	producer := queue.NewProducer(redisClient, cfg.Queue.Stream, cfg.Queue.DeadLetterStream, logger)

	processor := pipeline.NewProcessor(redisClient, pipeline.Config{
		Stream:        cfg.Queue.Stream,
		ConsumerGroup: cfg.Queue.ConsumerGroup,
		ConsumerName:  cfg.Queue.ConsumerName,
		Threshold:     cfg.Detection.Threshold,
	}, classifierClient, filterEngine, scorer, router, limiter, producer, messageRepo, alertRepo, logger)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the stream consumer in a goroutine
	go processor.Run(ctx)

	// HTTP layer logs through logrus
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	srv := server.NewServer(db, producer, log, logger)
	srv.Run(cfg.Server.Port)

	<-ctx.Done()
	logger.Info("Application stopped.")
}

func buildAdapters(cfg *config.Config, logger *zap.Logger) []channel.Adapter {
	var adapters []channel.Adapter

	telegram, err := channel.NewTelegramAdapter(
		cfg.Channels.Telegram.BotToken,
		cfg.Channels.Telegram.ChatID,
		cfg.Channels.Telegram.RatePerSecond,
		cfg.Channels.Telegram.Enabled,
		logger,
	)
	if err != nil {
		logger.Warn("Failed to initialize Telegram adapter, continuing without it", zap.Error(err))
	} else {
		adapters = append(adapters, telegram)
	}

	adapters = append(adapters,
		channel.NewEmailAdapter(
			cfg.Channels.Email.SMTPHost,
			cfg.Channels.Email.SMTPPort,
			cfg.Channels.Email.Username,
			cfg.Channels.Email.Password,
			cfg.Channels.Email.From,
			cfg.Channels.Email.To,
			cfg.Channels.Email.Enabled,
			logger,
		),
		channel.NewWebhookAdapter(cfg.Channels.Webhook.URL, cfg.Channels.Webhook.Enabled, logger),
		channel.NewConsoleAdapter(cfg.Channels.Console.Enabled, logger),
	)

	return adapters
}
