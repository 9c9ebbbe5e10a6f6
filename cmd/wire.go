package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-crawler/internal/checkpoint"
	"github.com/JakeFAU/keyword-crawler/internal/classifier"
	"github.com/JakeFAU/keyword-crawler/internal/config"
	"github.com/JakeFAU/keyword-crawler/internal/crawler"
	"github.com/JakeFAU/keyword-crawler/internal/frontier"
	"github.com/JakeFAU/keyword-crawler/internal/sink"
)

func buildCheckpointStore(ctx context.Context, cfg config.CheckpointConfig) (checkpoint.Store, func(), error) {
	switch cfg.Backend {
	case config.CheckpointRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		store, err := checkpoint.NewRedisStore(client, cfg.Redis.Prefix)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	case config.CheckpointGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create GCS client: %w", err)
		}
		store, err := checkpoint.NewGCSStore(client, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	default:
		store, err := checkpoint.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

func buildSink(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (crawler.ResultSink, error) {
	var sinks []crawler.ResultSink
	fail := func(err error) (crawler.ResultSink, error) {
		if closeErr := sink.NewMulti(sinks...).Close(); closeErr != nil {
			logger.Warn("closing partially built sinks failed", zap.Error(closeErr))
		}
		return nil, err
	}
	for _, backend := range cfg.Backends {
		var (
			s   crawler.ResultSink
			err error
		)
		switch backend {
		case config.SinkCSV:
			s, err = sink.NewCSV(cfg.CSV.Path)
		case config.SinkPostgres:
			s, err = sink.NewPostgres(ctx, postgresSinkConfig(cfg.Postgres))
		case config.SinkSQLite:
			s, err = sink.NewSQLite(cfg.SQLite.Path)
		case config.SinkKafka:
			s, err = sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		case config.SinkPubSub:
			s, err = sink.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		case config.SinkMemory:
			s = sink.NewMemory()
		default:
			err = &config.ConfigError{Field: "sink.backends", Reason: fmt.Sprintf("unknown sink %q", backend)}
		}
		if err != nil {
			return fail(fmt.Errorf("init %s sink: %w", backend, err))
		}
		logger.Info("result sink enabled", zap.String("backend", backend))
		sinks = append(sinks, s)
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sink.NewMulti(sinks...), nil
}

func postgresSinkConfig(cfg config.PostgresConfig) sink.PostgresConfig {
	return sink.PostgresConfig{
		DSN:             cfg.DSN,
		Table:           cfg.Table,
		MaxConns:        cfg.MaxConns,
		MaxConnLifetime: cfg.MaxConnLifetime,
	}
}

func buildFilter(cfg config.FilterConfig) classifier.Filter {
	return classifier.AllOf(
		classifier.NewDomainSuffixFilter(cfg.DomainSuffixes),
		classifier.NewBannedSubstringFilter(cfg.BannedSubstrings),
		classifier.NewBlockedDomainFilter(cfg.BlockedDomains),
	)
}

// collectSeeds merges inline seeds with the seeds file, if any.
func collectSeeds(cfg config.CrawlerConfig) ([]string, error) {
	seeds := append([]string(nil), cfg.Seeds...)
	if cfg.SeedsFile == "" {
		return seeds, nil
	}
	f, err := os.Open(cfg.SeedsFile)
	if err != nil {
		return nil, fmt.Errorf("open seeds file: %w", err)
	}
	defer f.Close()
	fromFile, err := frontier.ReadSeeds(f)
	if err != nil {
		return nil, fmt.Errorf("read seeds file %s: %w", cfg.SeedsFile, err)
	}
	return append(seeds, fromFile...), nil
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
