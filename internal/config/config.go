package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	DB         DBConfig         `mapstructure:"db"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Counter    CounterConfig    `mapstructure:"counter"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

type DBConfig struct {
	// Driver is sqlite or postgres.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	// Backend is memory or redis.
	Backend string `mapstructure:"backend"`
	Redis   struct {
		Addr     string `mapstructure:"addr"`
		DB       int    `mapstructure:"db"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	// Compression is nop, gzip, brotli or lz4.
	Compression string `mapstructure:"compression"`
}

type RemoteConfig struct {
	Retry struct {
		Attempts uint          `mapstructure:"attempts"`
		Delay    time.Duration `mapstructure:"delay"`
	} `mapstructure:"retry"`
}

type ProcessingConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

type CounterConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type JobsConfig struct {
	CountRepair string        `mapstructure:"count_repair"`
	CacheWarm   string        `mapstructure:"cache_warm"`
	WarmWindow  time.Duration `mapstructure:"warm_window"`
}

type QueueConfig struct {
	// Backend is none, channel or kafka.
	Backend string `mapstructure:"backend"`
	Size    int    `mapstructure:"size"`
	Kafka   struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "notecache.db")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.compression", "nop")
	v.SetDefault("remote.retry.attempts", 3)
	v.SetDefault("remote.retry.delay", "200ms")
	v.SetDefault("processing.max_attempts", 3)
	v.SetDefault("counter.timeout", "10s")
	v.SetDefault("jobs.count_repair", "@every 1h")
	v.SetDefault("jobs.cache_warm", "@every 10m")
	v.SetDefault("jobs.warm_window", "30m")
	v.SetDefault("queue.backend", "none")
	v.SetDefault("queue.size", 256)
	v.SetDefault("queue.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("queue.kafka.topic", "notecache.events")
	v.SetDefault("server.addr", ":4020")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads .env, then config.yaml (from cfgFile, the working directory
// or $HOME/.notecache), then NOTECACHE_ environment variables. Later sources win.
func LoadConfig(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("no .env file loaded: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("NOTECACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.notecache")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// SetupLogging applies the log level and format.
func SetupLogging(cfg *Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	switch cfg.Log.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}
	return nil
}
