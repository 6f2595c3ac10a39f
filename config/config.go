package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	Timezone          string `mapstructure:"TIMEZONE"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	CORSOrigins       string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Persistence. STORAGE_BACKEND is "mongo" or "memory".
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	DatabaseName   string `mapstructure:"DATABASE_NAME"`
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`

	// Redis configuration.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisLedgerDB  int    `mapstructure:"REDIS_LEDGER_DB"`
	RedisSessionDB int    `mapstructure:"REDIS_SESSION_DB"`
	RedisQueueDB   int    `mapstructure:"REDIS_QUEUE_DB"`

	NATSURL      string `mapstructure:"NATS_URL"`
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`

	// Service periods and capacity rules.
	SlotIntervalMinutes int    `mapstructure:"SLOT_INTERVAL_MINUTES"`
	LunchOpen           string `mapstructure:"LUNCH_OPEN"`
	LunchClose          string `mapstructure:"LUNCH_CLOSE"`
	DinnerOpen          string `mapstructure:"DINNER_OPEN"`
	DinnerClose         string `mapstructure:"DINNER_CLOSE"`
	StandardCapacity    int    `mapstructure:"STANDARD_CAPACITY"`
	PlanningHorizonDays int    `mapstructure:"PLANNING_HORIZON_DAYS"`
	MaxPartySize        int    `mapstructure:"MAX_PARTY_SIZE"`
	GroupThreshold      int    `mapstructure:"GROUP_THRESHOLD"`

	// Chat sessions.
	ChatIdleTimeout  time.Duration `mapstructure:"CHAT_IDLE_TIMEOUT"`
	ChatHistoryLimit int           `mapstructure:"CHAT_HISTORY_LIMIT"`

	SweepSchedule string `mapstructure:"SWEEP_SCHEDULE"`
}

var AppConfig Config

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "tablebook")
	viper.SetDefault("STORAGE_BACKEND", "mongo")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_LEDGER_DB", 0)
	viper.SetDefault("REDIS_SESSION_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)
	viper.SetDefault("NATS_URL", "")
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	viper.SetDefault("SLOT_INTERVAL_MINUTES", 30)
	viper.SetDefault("LUNCH_OPEN", "12:00")
	viper.SetDefault("LUNCH_CLOSE", "14:30")
	viper.SetDefault("DINNER_OPEN", "18:00")
	viper.SetDefault("DINNER_CLOSE", "21:30")
	viper.SetDefault("STANDARD_CAPACITY", 50)
	viper.SetDefault("PLANNING_HORIZON_DAYS", 90)
	viper.SetDefault("MAX_PARTY_SIZE", 8)
	viper.SetDefault("GROUP_THRESHOLD", 9)
	viper.SetDefault("CHAT_IDLE_TIMEOUT", "30m")
	viper.SetDefault("CHAT_HISTORY_LIMIT", 50)
	viper.SetDefault("SWEEP_SCHEDULE", "@every 1h")
}

// Load reads .env, config.yaml and the environment into a validated Config.
func Load() (Config, error) {
	// A local .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded variables from .env")
	}

	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Validate checks the values the booking rules depend on.
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	if c.SlotIntervalMinutes <= 0 {
		return fmt.Errorf("SLOT_INTERVAL_MINUTES must be positive, got %d", c.SlotIntervalMinutes)
	}
	windows := [][2]string{{c.LunchOpen, c.LunchClose}, {c.DinnerOpen, c.DinnerClose}}
	for _, w := range windows {
		open, err := time.Parse("15:04", w[0])
		if err != nil {
			return fmt.Errorf("invalid window start %q: %w", w[0], err)
		}
		closing, err := time.Parse("15:04", w[1])
		if err != nil {
			return fmt.Errorf("invalid window end %q: %w", w[1], err)
		}
		if !closing.After(open) {
			return fmt.Errorf("window %s-%s is empty", w[0], w[1])
		}
	}
	if c.StandardCapacity <= 0 {
		return fmt.Errorf("STANDARD_CAPACITY must be positive")
	}
	if c.PlanningHorizonDays <= 0 {
		return fmt.Errorf("PLANNING_HORIZON_DAYS must be positive")
	}
	if c.MaxPartySize < 1 {
		return fmt.Errorf("MAX_PARTY_SIZE must be at least 1")
	}
	if c.GroupThreshold <= c.MaxPartySize {
		return fmt.Errorf("GROUP_THRESHOLD (%d) must exceed MAX_PARTY_SIZE (%d)", c.GroupThreshold, c.MaxPartySize)
	}
	if c.MaxRequestsPerMin <= 0 {
		return fmt.Errorf("MAX_REQUESTS_PER_MIN must be positive")
	}
	if c.ChatIdleTimeout <= 0 {
		return fmt.Errorf("CHAT_IDLE_TIMEOUT must be positive")
	}
	if c.ChatHistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be positive")
	}
	switch c.StorageBackend {
	case "mongo", "memory":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be mongo or memory, got %q", c.StorageBackend)
	}
	return nil
}

// Location returns the restaurant time zone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
