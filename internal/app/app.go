package app

import (
	"errors"

	"go-surplus-storefront/internal/apiclient"
	"go-surplus-storefront/internal/config"
	"go-surplus-storefront/internal/currency"
	"go-surplus-storefront/internal/messaging/kafka/producer"
	"go-surplus-storefront/internal/outbox"
	"go-surplus-storefront/internal/storage"
	"go-surplus-storefront/internal/storefront"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	Registry *storefront.Registry
	Rates    *currency.Service
	Outbox   *outbox.Processor

	closers []func() error
}

// BuildApp connects the optional infrastructure, builds the storefront
// services and registers routes on router. Without REDIS_ADDR client state
// lives in memory; without KAFKA_BROKER cart events are dropped. With a
// broker, events are recorded to the outbox and relayed by a worker.
func BuildApp(cfg *config.Config, router *gin.Engine, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	// 1. Setup Infrastructure
	storageFor := func(string) storage.Storage { return storage.NewMemoryStorage() }
	outboxRepo := outbox.NewMemoryRepository()
	if cfg.RedisAddr != "" {
		rdb, err := connectRedisWithRetry(cfg.RedisAddr, 5, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		storageFor = redisStorage(rdb, cfg)
		outboxRepo = outbox.NewRedisRepository(rdb, logger)
	}

	var events producer.Publisher = producer.NopPublisher{}
	if cfg.KafkaBroker != "" {
		writer, err := connectKafkaWithRetry(cfg.KafkaBroker, cfg.KafkaTopic, 5, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, writer.Close)
		a.Outbox = outbox.NewProcessor(outboxRepo, producer.NewKafkaPublisher(writer, logger), cfg.OutboxInterval, logger)
		events = outbox.NewRecorder(outboxRepo)
	}

	// 2. Setup Services
	backend := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.HTTPTimeout),
		apiclient.WithLogger(logger),
	)
	a.Rates = currency.NewService(
		currency.WithSource(cfg.ExchangeRatesURL),
		currency.WithLogger(logger),
	)
	a.Registry = storefront.NewRegistry(storefront.Deps{
		API:     backend,
		Storage: storageFor,
		Keys:    cfg.StorageKeys,
		Events:  events,
		Logger:  logger,
		IdleTTL: cfg.ClientIdleTTL,
	})

	// 3. Register Modules & Routes
	registerModules(router, a, logger)

	return a, nil
}

// Close waits for background cart work, then releases connections.
func (a *App) Close() error {
	if a.Registry != nil {
		a.Registry.Wait()
	}
	if a.Rates != nil {
		a.Rates.Wait()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func redisStorage(rdb *redis.Client, cfg *config.Config) func(string) storage.Storage {
	return func(clientID string) storage.Storage {
		return storage.NewRedisStorage(rdb, clientID, cfg.StorageTTL)
	}
}
