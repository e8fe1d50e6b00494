package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	redisAddrENV      = "REDIS_ADDR"
	redisPasswordENV  = "REDIS_PASSWORD"
	telegramTokenENV  = "TELEGRAM_TOKEN"
	telegramChatENV   = "TELEGRAM_CHAT_ID"
	auditDSNENV       = "AUDIT_DSN"
)

// Config ...
type Config struct {
	Service string `yaml:"service"`
	// DryRun swaps Redis for the in-memory store; useful for local poking.
	DryRun bool `yaml:"dry_run"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	// Audit is optional; an empty DSN disables the Postgres post log.
	Audit struct {
		DSN string `yaml:"dsn"`
	} `yaml:"audit"`

	// Feed is optional; when enabled the engine runs its own websocket
	// tick source instead of relying on an external socket bridge.
	Feed struct {
		Enabled bool     `yaml:"enabled"`
		URL     string   `yaml:"url"`
		Symbols []string `yaml:"symbols"`
	} `yaml:"feed"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`

	// Worker cadence and failure policy, env-tunable
	TrendlineInterval time.Duration
	TimeInterval      time.Duration
	SupervisorPoll    time.Duration
	TickQueueSize     int

	RetryCount   int
	RetryBackoff time.Duration
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, errors.Wrap(err, "open config file")
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		TrendlineInterval: durationFromEnv("TRENDLINE_INTERVAL", "10s"),
		TimeInterval:      durationFromEnv("TIME_INTERVAL", "10s"),
		SupervisorPoll:    durationFromEnv("SUPERVISOR_POLL", "3s"),
		TickQueueSize:     intFromEnv("TICK_QUEUE_SIZE", 4096),

		RetryCount:   intFromEnv("RETRY_COUNT", 3),
		RetryBackoff: durationFromEnv("RETRY_BACKOFF", "1s"),
	}
	if err := decoder.Decode(&config); err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}
	if config.Service == "" {
		config.Service = "watcher"
	}

	if addr := os.Getenv(redisAddrENV); addr != "" {
		config.Redis.Addr = addr
	}
	if pass := os.Getenv(redisPasswordENV); pass != "" {
		config.Redis.Password = pass
	}
	if token := os.Getenv(telegramTokenENV); token != "" {
		config.Telegram.Token = token
	}
	if chat := os.Getenv(telegramChatENV); chat != "" {
		if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
			config.Telegram.ChatID = id
		}
	}
	if dsn := os.Getenv(auditDSNENV); dsn != "" {
		config.Audit.DSN = dsn
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
