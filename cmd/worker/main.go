package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wintera/fleet/internal/ai"
	"github.com/wintera/fleet/internal/assets"
	"github.com/wintera/fleet/internal/config"
	"github.com/wintera/fleet/internal/notify"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/sms"
	"github.com/wintera/fleet/internal/telegram"
	"github.com/wintera/fleet/internal/worker"
	"github.com/wintera/fleet/pkg/cache"
	"github.com/wintera/fleet/pkg/crypto"
	"github.com/wintera/fleet/pkg/database"
	"github.com/wintera/fleet/pkg/logger"
	"github.com/wintera/fleet/pkg/messaging"
)

func main() {
	cfg, err := config.Load(os.Getenv("FLEET_CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Configuration error", logger.Field{Key: "error", Value: err.Error()})
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)
	logger.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mongoDB, err := database.NewMongoDB(cfg.Mongo.URI, cfg.Mongo.DBName, cfg.Mongo.Timeout)
	if err != nil {
		log.Fatal("MongoDB connection failed", logger.Field{Key: "error", Value: err.Error()})
	}
	defer mongoDB.Close()
	db := mongoDB.Database()

	if err := ensureIndexes(mongoDB); err != nil {
		// Indexes may already exist with older definitions; keep going.
		log.Warn("Index creation incomplete", logger.Field{Key: "error", Value: err.Error()})
	}

	redis, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Redis connection failed", logger.Field{Key: "error", Value: err.Error()})
	}
	defer redis.Close()

	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URL)
		if err != nil {
			log.Fatal("RabbitMQ connection failed", logger.Field{Key: "error", Value: err.Error()})
		}
		publisher = rabbit
	}
	defer publisher.Close()

	encryptor, err := crypto.NewEncryptor(cfg.Crypto.SessionKey)
	if err != nil {
		log.Fatal("Session encryptor", logger.Field{Key: "error", Value: err.Error()})
	}

	templates, err := assets.Load(os.Getenv("FLEET_TEMPLATES_PATH"))
	if err != nil {
		log.Fatal("Templates load failed", logger.Field{Key: "error", Value: err.Error()})
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notifier.BotToken != "" {
		botNotifier, err := notify.NewBotNotifier(cfg.Notifier.BotToken, log)
		if err != nil {
			log.Fatal("Notifier bot failed", logger.Field{Key: "error", Value: err.Error()})
		}
		notifier = botNotifier
	}

	sessions := telegram.NewSessionManager(cfg.Telegram, db, encryptor, log)
	defer sessions.CloseAll()
	gateway := telegram.NewGateway(sessions)

	smsClient := sms.NewClient(cfg.SMS.APIKey, cfg.SMS.BaseURL, log)
	aiClient := ai.NewClient(cfg.AI, log)

	accountRepo := repository.NewAccountRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	audienceRepo := repository.NewAudienceRepository(db)
	blacklistRepo := repository.NewBlacklistRepository(db)
	herderRepo := repository.NewHerderRepository(db)
	warmupRepo := repository.NewWarmupRepository(db)
	factoryRepo := repository.NewFactoryRepository(db)
	authRepo := repository.NewAuthTaskRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	contentRepo := repository.NewContentRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	parsingRepo := repository.NewParsingRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	mailCache := repository.NewMailingCache(redis)

	metrics := worker.NewMetrics()
	events := worker.NewEvents(publisher, log)
	gate := worker.NewPanicGate(settingsRepo, log)
	selector := worker.NewSelector(accountRepo, log)
	pacing := worker.NewPacing(cfg.Mailing, statsRepo)

	runner := worker.NewRunner(cfg.Workers.TickInterval, metrics, log)

	if cfg.Workers.CampaignEnabled {
		runner.Register(worker.NewCampaignWorker(worker.CampaignWorkerDeps{
			Campaigns: campaignRepo,
			Audiences: audienceRepo,
			Accounts:  accountRepo,
			Blacklist: blacklistRepo,
			Content:   contentRepo,
			Settings:  settingsRepo,
			Stats:     statsRepo,
			MailCache: mailCache,
			Gateway:   gateway,
			Selector:  selector,
			Pacing:    pacing,
			Gate:      gate,
			AI:        aiClient,
			Notifier:  notifier,
			Events:    events,
			Metrics:   metrics,
			Config:    cfg.Mailing,
			Log:       log,
		}))
	}
	if cfg.Workers.HerderEnabled {
		runner.Register(worker.NewHerderWorker(worker.HerderWorkerDeps{
			Assignments: herderRepo,
			Accounts:    accountRepo,
			Settings:    settingsRepo,
			Gateway:     gateway,
			Selector:    selector,
			Gate:        gate,
			AI:          aiClient,
			Events:      events,
			Metrics:     metrics,
			Templates:   templates,
			Config:      cfg.Herder,
			Log:         log,
		}))
	}
	if cfg.Workers.WarmupEnabled {
		runner.Register(worker.NewWarmupWorker(worker.WarmupWorkerDeps{
			Warmups:   warmupRepo,
			Accounts:  accountRepo,
			Settings:  settingsRepo,
			Profiles:  profileRepo,
			Gateway:   gateway,
			Gate:      gate,
			AI:        aiClient,
			Notifier:  notifier,
			Events:    events,
			Metrics:   metrics,
			Templates: templates,
			Config:    cfg.Warmup,
			Log:       log,
		}))
	}
	if cfg.Workers.FactoryEnabled {
		runner.Register(worker.NewFactoryWorker(worker.FactoryWorkerDeps{
			Factory:  factoryRepo,
			Accounts: accountRepo,
			Warmups:  warmupRepo,
			Settings: settingsRepo,
			Vendor:   smsClient,
			Auth:     sessions,
			Gate:     gate,
			Notifier: notifier,
			Events:   events,
			Metrics:  metrics,
			SMSCfg:   cfg.SMS,
			Config:   cfg.Factory,
			Log:      log,
		}))
	}
	if cfg.Workers.AuthEnabled {
		runner.Register(worker.NewAuthWorker(worker.AuthWorkerDeps{
			Tasks:    authRepo,
			Accounts: accountRepo,
			Auth:     sessions,
			Gate:     gate,
			Notifier: notifier,
			Log:      log,
		}))
	}
	scheduler := worker.NewSchedulerWorker(worker.SchedulerWorkerDeps{
		Schedules: scheduleRepo,
		Campaigns: campaignRepo,
		Accounts:  accountRepo,
		Settings:  settingsRepo,
		Gate:      gate,
		Heatmap:   worker.NewHeatmap(statsRepo),
		Notifier:  notifier,
		Log:       log,
	})
	if cfg.Workers.SchedulerEnabled {
		runner.Register(scheduler)
	}
	if cfg.Workers.ContentEnabled {
		runner.Register(worker.NewContentWorker(worker.ContentWorkerDeps{
			Content:  contentRepo,
			Accounts: accountRepo,
			Settings: settingsRepo,
			Gateway:  gateway,
			Selector: selector,
			Gate:     gate,
			AI:       aiClient,
			Notifier: notifier,
			Events:   events,
			Log:      log,
		}))
	}

	if cfg.Workers.ParsingEnabled {
		runner.Register(worker.NewParsingWorker(worker.ParsingWorkerDeps{
			Parsing:   parsingRepo,
			Audiences: audienceRepo,
			Accounts:  accountRepo,
			Gateway:   gateway,
			Selector:  selector,
			Gate:      gate,
			Notifier:  notifier,
			Log:       log,
		}))
	}

	// Tenant midnights happen at different UTC minutes; check each one.
	if err := runner.RegisterCalendarJob("* * * * *", "daily_reset", scheduler.DailyReset); err != nil {
		log.Fatal("Calendar job registration failed", logger.Field{Key: "error", Value: err.Error()})
	}

	go serveMonitor(cfg.Monitor.Addr, log)

	log.Info("Fleet worker starting",
		logger.Field{Key: "tick_interval", Value: cfg.Workers.TickInterval.String()})
	runner.Start(ctx)
	log.Info("Fleet worker stopped")
}

func serveMonitor(addr string, log logger.Logger) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if err := router.Run(addr); err != nil {
		log.Error("Monitor server stopped", logger.Field{Key: "error", Value: err.Error()})
	}
}

func ensureIndexes(db *database.MongoDB) error {
	indexes := map[string][]mongo.IndexModel{
		"accounts": {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "folder_id", Value: 1}}},
		},
		"campaigns": {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		"audience_members": {
			{Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "sent", Value: 1}}},
		},
		"blacklist": {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "telegram_id", Value: 1}}},
		},
		"herder_actions": {
			{Keys: bson.D{{Key: "assignment_id", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
		"hourly_stats": {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "day_of_week", Value: 1}, {Key: "hour", Value: 1}}},
		},
		"scheduled_mailings": {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		},
		"scheduled_tasks": {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		},
		"scheduled_content": {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if err := db.CreateIndexes(collection, models); err != nil {
			return err
		}
	}
	return nil
}
