package config

import (
	"fmt"
	"io"

	"github.com/emrgen/notecache/internal/cache"
	"github.com/emrgen/notecache/internal/compress"
	"github.com/emrgen/notecache/internal/counter"
	"github.com/emrgen/notecache/internal/jobs"
	"github.com/emrgen/notecache/internal/processing"
	"github.com/emrgen/notecache/internal/queue"
	"github.com/emrgen/notecache/internal/service"
	"github.com/emrgen/notecache/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GetDb opens the remote store database.
func GetDb(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DB.Driver)
	}

	return gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// GetLocalStore builds the configured cache backend.
func GetLocalStore(cfg *Config) (cache.LocalStore, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cache.NewMemoryStore(), nil
	case "redis":
		return cache.NewRedisStore(cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		}), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// GetCache builds the typed cache over the configured backend and codec.
func GetCache(cfg *Config, local cache.LocalStore) (*cache.NoteCache, error) {
	codec, err := compress.ByName(cfg.Cache.Compression)
	if err != nil {
		return nil, err
	}
	return cache.NewNoteCache(local, codec), nil
}

// GetPublisher builds the configured event publisher.
func GetPublisher(cfg *Config) (queue.Publisher, error) {
	switch cfg.Queue.Backend {
	case "", "none":
		return queue.Nop{}, nil
	case "channel":
		return queue.NewChannelPublisher(cfg.Queue.Size), nil
	case "kafka":
		return queue.NewKafkaPublisher(cfg.Queue.Kafka.Brokers, cfg.Queue.Kafka.Topic)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

// App is the process-wide composition of the engine. It is built once and
// handed to whichever surface (CLI, HTTP) drives it.
type App struct {
	Config     *Config
	Store      *store.GormStore
	Cache      *cache.NoteCache
	Publisher  queue.Publisher
	Counter    *counter.Synchronizer
	Tracker    *processing.Tracker
	Repository *service.Repository

	closers []io.Closer
}

func NewApp(cfg *Config) (*App, error) {
	db, err := GetDb(cfg)
	if err != nil {
		return nil, err
	}
	remote := store.NewGormStore(db)

	local, err := GetLocalStore(cfg)
	if err != nil {
		return nil, err
	}
	nc, err := GetCache(cfg, local)
	if err != nil {
		return nil, err
	}

	publisher, err := GetPublisher(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Store: remote, Cache: nc, Publisher: publisher}
	if c, ok := local.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}
	app.closers = append(app.closers, publisher)

	gateway := store.WithRetry(remote, cfg.Remote.Retry.Attempts, cfg.Remote.Retry.Delay)
	app.Counter = counter.NewSynchronizer(gateway, nc, counter.Options{
		Timeout:   cfg.Counter.Timeout,
		Publisher: publisher,
	})
	app.Tracker = processing.NewTracker(&processing.Segmenter{}, processing.Options{
		MaxAttempts: cfg.Processing.MaxAttempts,
		Cache:       nc,
	})
	app.Repository = service.NewRepository(service.Options{
		Gateway:   gateway,
		Cache:     nc,
		Tracker:   app.Tracker,
		Counter:   app.Counter,
		Publisher: publisher,
	})

	return app, nil
}

// Jobs returns the background tasks enabled in the config. An empty schedule disables a task.
func (a *App) Jobs() []jobs.CronJob {
	var tasks []jobs.CronJob
	if a.Config.Jobs.CountRepair != "" {
		tasks = append(tasks, jobs.NewCountRepairTask(a.Config.Jobs.CountRepair, a.Store, a.Counter))
	}
	if a.Config.Jobs.CacheWarm != "" {
		tasks = append(tasks, jobs.NewCacheWarmTask(a.Config.Jobs.CacheWarm, a.Config.Jobs.WarmWindow, a.Store, a.Repository))
	}
	return tasks
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logrus.Warnf("close: %v", err)
		}
	}
	if sqlDB, err := a.Store.DB().DB(); err == nil {
		_ = sqlDB.Close()
	}
}
