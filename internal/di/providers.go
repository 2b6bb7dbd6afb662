package di

import (
	"context"
	"fmt"
	"time"

	"MTFCast/internal/domain/repository"
	internalrepo "MTFCast/internal/repository"
	"MTFCast/internal/saver"
	"MTFCast/internal/service/model"
	"MTFCast/internal/usecase"
	"MTFCast/pkg/cache"
	pkgch "MTFCast/pkg/clickhouse"
	"MTFCast/pkg/config"
	pkghttp "MTFCast/pkg/http"
	pkgkafka "MTFCast/pkg/kafka"
	applogger "MTFCast/pkg/logger"
	"MTFCast/pkg/metrics"
	"MTFCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBarStore creates the configured bar store backend.
func ProvideBarStore(cfg *config.Config, log *applogger.Logger) (repository.BarStore, error) {
	switch cfg.Store.Backend {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}

		store := internalrepo.NewCHBarStore(client, cfg.ClickHouse.Table, cfg.Store.RetryAttempts, cfg.Store.RetryBackoff)
		store.SetLogger(log)
		return store, nil
	case "csv":
		return internalrepo.NewCSVBarStore(cfg.Store.CSVPath, cfg.Backtest.Symbol, log), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// ProvideResultSink creates the Kafka result sink, or a no-op one when
// Kafka is disabled.
func ProvideResultSink(cfg *config.Config, log *applogger.Logger) (repository.ResultSink, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopResultSink{}, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaResultSink(producer, cfg.Kafka.Topic, log), nil
}

// ProvideCache creates the configured cache backend, or nil when caching is
// disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(
			cache.WithAddress(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
			cache.WithPassword(cfg.Cache.Redis.Password),
			cache.WithDB(cfg.Cache.Redis.DB),
			cache.WithPrefix(cfg.Cache.Redis.Prefix),
		)
	case "memory":
		return cache.NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// ProvideTrainable creates the model backend driven across folds.
func ProvideTrainable(cfg *config.Config, log *applogger.Logger) (repository.Trainable, error) {
	switch cfg.Model.Backend {
	case "baseline":
		return model.NewBaseline(), nil
	case "http":
		client := pkghttp.NewClient(pkghttp.WithTimeout(cfg.Model.Timeout))
		return model.NewHTTPService(client, cfg.Model.ServiceURL, cfg.Model.RetryAttempts, log), nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Model.Backend)
	}
}

// ProvideSaver creates the prediction artifact writer.
func ProvideSaver(cfg *config.Config) (saver.PredictionSaver, error) {
	return saver.NewPredictionSaver(cfg.Output.Format)
}

// ProvidePusher creates the Pushgateway pusher, or nil when disabled.
func ProvidePusher(cfg *config.Config) *metrics.Pusher {
	if !cfg.Pushgateway.Enabled {
		return nil
	}
	return metrics.NewPusher(cfg.Pushgateway.URL, cfg.Pushgateway.Job)
}

// ProvideRunBacktest creates the backtest use case.
func ProvideRunBacktest(
	store repository.BarStore,
	trainable repository.Trainable,
	sink repository.ResultSink,
	met repository.Metrics,
	cacheSvc cache.Service,
	predSaver saver.PredictionSaver,
	pusher *metrics.Pusher,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.RunBacktest {
	return usecase.NewRunBacktest(store, trainable, sink, met, cacheSvc, predSaver, pusher, cfg, log)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	runner *usecase.RunBacktest,
	store repository.BarStore,
	sink repository.ResultSink,
	cacheSvc cache.Service,
) *server.App {
	return server.New(cfg, log, runner, store, sink, cacheSvc)
}
