package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config is the full process configuration. Values come from config.yaml
// through viper; deployment secrets override through FLEET_* environment
// variables (envconfig).
type Config struct {
	App      AppConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Telegram TelegramConfig
	SMS      SMSConfig
	AI       AIConfig
	Notifier NotifierConfig
	Workers  WorkersConfig
	Mailing  MailingConfig
	Herder   HerderConfig
	Warmup   WarmupConfig
	Factory  FactoryConfig
	Crypto   CryptoConfig
	Monitor  MonitorConfig
}

type AppConfig struct {
	Env             string
	LogLevel        string
	LogFormat       string
	DefaultTimezone string
}

type MongoConfig struct {
	URI     string
	DBName  string
	Timeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL string
}

type TelegramConfig struct {
	APIID   int
	APIHash string
	// Device cloaking sent on session creation.
	DeviceModel   string
	SystemVersion string
	AppVersion    string
	LangCode      string
	// Per-account RPC rate limit.
	RateLimit float64
	RateBurst int
}

type SMSConfig struct {
	APIKey     string
	BaseURL    string
	MinBalance float64
	// How long the factory waits for an SMS code before releasing the number.
	CodeTimeout time.Duration
}

type AIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type NotifierConfig struct {
	BotToken string
}

type WorkersConfig struct {
	TickInterval     time.Duration
	CampaignEnabled  bool
	HerderEnabled    bool
	WarmupEnabled    bool
	FactoryEnabled   bool
	AuthEnabled      bool
	SchedulerEnabled bool
	ContentEnabled   bool
	ParsingEnabled   bool
}

type MailingConfig struct {
	BatchSize           int
	DelayMin            int
	DelayMax            int
	WarmStartCount      int
	WarmStartMultiplier float64
	TypingDelayMin      int
	TypingDelayMax      int
	ReportEvery         int
	MaxDelay            time.Duration
	CacheTTLDays        int
	ErrorPauseThreshold int
}

type HerderConfig struct {
	MaxDailyActions int
	PostFetchLimit  int
}

type WarmupConfig struct {
	DefaultDays     int
	WarmAccountDays int
	WarmFolder      string
}

type FactoryConfig struct {
	Country string
	Service string
}

type CryptoConfig struct {
	SessionKey string
}

type MonitorConfig struct {
	Addr string
}

// env mirrors the secret-bearing subset of Config for envconfig overrides.
type env struct {
	MongoURI      string `envconfig:"MONGO_URI"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RabbitURL     string `envconfig:"RABBITMQ_URL"`
	TelegramAPIID int    `envconfig:"TELEGRAM_API_ID"`
	TelegramHash  string `envconfig:"TELEGRAM_API_HASH"`
	SMSAPIKey     string `envconfig:"SMS_API_KEY"`
	AIAPIKey      string `envconfig:"AI_API_KEY"`
	BotToken      string `envconfig:"NOTIFIER_BOT_TOKEN"`
	SessionKey    string `envconfig:"SESSION_KEY"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine, defaults plus env cover a minimal deployment.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var e env
	if err := envconfig.Process("FLEET", &e); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	applyEnv(&cfg, &e)

	if cfg.Telegram.APIID == 0 || cfg.Telegram.APIHash == "" {
		return nil, fmt.Errorf("telegram api credentials are required")
	}
	if len(cfg.Crypto.SessionKey) != 32 {
		return nil, fmt.Errorf("session encryption key must be 32 bytes")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.loglevel", "info")
	v.SetDefault("app.logformat", "json")
	v.SetDefault("app.defaulttimezone", "Europe/Moscow")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.dbname", "fleet")
	v.SetDefault("mongo.timeout", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("telegram.devicemodel", "Desktop")
	v.SetDefault("telegram.systemversion", "Windows 10")
	v.SetDefault("telegram.appversion", "4.0.0")
	v.SetDefault("telegram.langcode", "ru")
	v.SetDefault("telegram.ratelimit", 1.0)
	v.SetDefault("telegram.rateburst", 2)

	v.SetDefault("sms.baseurl", "https://api.sms-activate.org/stubs/handler_api.php")
	v.SetDefault("sms.minbalance", 15.0)
	v.SetDefault("sms.codetimeout", 300*time.Second)

	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.maxtokens", 150)
	v.SetDefault("ai.temperature", 0.8)
	v.SetDefault("ai.timeout", 20*time.Second)

	v.SetDefault("workers.tickinterval", 10*time.Second)
	v.SetDefault("workers.campaignenabled", true)
	v.SetDefault("workers.herderenabled", true)
	v.SetDefault("workers.warmupenabled", true)
	v.SetDefault("workers.factoryenabled", true)
	v.SetDefault("workers.authenabled", true)
	v.SetDefault("workers.schedulerenabled", true)
	v.SetDefault("workers.contentenabled", true)
	v.SetDefault("workers.parsingenabled", true)

	v.SetDefault("mailing.batchsize", 10)
	v.SetDefault("mailing.delaymin", 30)
	v.SetDefault("mailing.delaymax", 90)
	v.SetDefault("mailing.warmstartcount", 10)
	v.SetDefault("mailing.warmstartmultiplier", 2.5)
	v.SetDefault("mailing.typingdelaymin", 2)
	v.SetDefault("mailing.typingdelaymax", 8)
	v.SetDefault("mailing.reportevery", 50)
	v.SetDefault("mailing.maxdelay", 10*time.Minute)
	v.SetDefault("mailing.cachettldays", 30)
	v.SetDefault("mailing.errorpausethreshold", 5)

	v.SetDefault("herder.maxdailyactions", 50)
	v.SetDefault("herder.postfetchlimit", 5)

	v.SetDefault("warmup.defaultdays", 5)
	v.SetDefault("warmup.warmaccountdays", 2)

	v.SetDefault("factory.country", "ru")
	v.SetDefault("factory.service", "tg")

	v.SetDefault("monitor.addr", ":8080")
}

func applyEnv(cfg *Config, e *env) {
	if e.MongoURI != "" {
		cfg.Mongo.URI = e.MongoURI
	}
	if e.RedisAddr != "" {
		cfg.Redis.Addr = e.RedisAddr
	}
	if e.RedisPassword != "" {
		cfg.Redis.Password = e.RedisPassword
	}
	if e.RabbitURL != "" {
		cfg.RabbitMQ.URL = e.RabbitURL
	}
	if e.TelegramAPIID != 0 {
		cfg.Telegram.APIID = e.TelegramAPIID
	}
	if e.TelegramHash != "" {
		cfg.Telegram.APIHash = e.TelegramHash
	}
	if e.SMSAPIKey != "" {
		cfg.SMS.APIKey = e.SMSAPIKey
	}
	if e.AIAPIKey != "" {
		cfg.AI.APIKey = e.AIAPIKey
	}
	if e.BotToken != "" {
		cfg.Notifier.BotToken = e.BotToken
	}
	if e.SessionKey != "" {
		cfg.Crypto.SessionKey = e.SessionKey
	}
	if e.LogLevel != "" {
		cfg.App.LogLevel = e.LogLevel
	}
}
