package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-crawler/internal/api"
	"github.com/JakeFAU/keyword-crawler/internal/checkpoint"
	"github.com/JakeFAU/keyword-crawler/internal/classifier"
	"github.com/JakeFAU/keyword-crawler/internal/config"
	"github.com/JakeFAU/keyword-crawler/internal/dedup"
	"github.com/JakeFAU/keyword-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/keyword-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/keyword-crawler/internal/frontier"
	"github.com/JakeFAU/keyword-crawler/internal/id/uuid"
	"github.com/JakeFAU/keyword-crawler/internal/logging"
	"github.com/JakeFAU/keyword-crawler/internal/metrics"
	"github.com/JakeFAU/keyword-crawler/internal/policy/ratelimit"
)

const finalCheckpointTimeout = 30 * time.Second

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Drain the keyword frontier",
		Long: `Restores the last checkpoint, seeds the frontier from config and the
seeds file, then crawls until the frontier is empty, the keyword budget is
spent, or the process is interrupted. A final checkpoint is always written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("seeds-file", "", "file with one seed keyword per line")
	flags.Int("concurrency", 0, "keyword tasks per batch")
	flags.Int("max-words", 0, "keyword processing budget for the run")
	flags.String("checkpoint-dir", "", "checkpoint directory for the file backend")
	for key, flag := range map[string]string{
		"crawler.seeds_file":  "seeds-file",
		"crawler.concurrency": "concurrency",
		"crawler.max_words":   "max-words",
		"checkpoint.dir":      "checkpoint-dir",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func runCrawl(parent context.Context, v *viper.Viper) error {
	cfg, err := config.LoadWith(v, resolveConfigPath())
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	metrics.Init()

	runID, err := uuid.New().NewID()
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", runID))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildCheckpointStore(ctx, cfg.Checkpoint)
	if err != nil {
		return fmt.Errorf("init checkpoint store: %w", err)
	}
	defer closeStore()

	registry := dedup.New()
	front := frontier.New(registry)
	manager := checkpoint.NewManager(store, front, registry, cfg.Crawler.CheckpointInterval, logger.Named("checkpoint"))
	if _, err := manager.Restore(ctx); err != nil {
		return fmt.Errorf("restore checkpoint: %w", err)
	}

	seeds, err := collectSeeds(cfg.Crawler)
	if err != nil {
		return err
	}
	queued := front.Seed(seeds)
	if cfg.Generate.Enabled {
		queued += front.Generate(seeds, frontier.SuffixRule{Suffix: cfg.Generate.Suffix, WithWWW: cfg.Generate.WithWWW})
	}
	metrics.SetFrontierSize(front.Len())
	logger.Info("frontier seeded",
		zap.Int("seeds", len(seeds)),
		zap.Int("queued", queued),
		zap.Int("pending", front.Len()),
		zap.Int("processed", registry.ProcessedCount()),
	)

	fetcher, err := collyfetcher.New(collyfetcher.Config{
		URLTemplate:   cfg.Fetcher.URLTemplate,
		UserAgent:     cfg.Fetcher.UserAgent,
		PageSize:      cfg.Fetcher.PageSize,
		RespectRobots: cfg.Fetcher.RespectRobots,
		Timeout:       cfg.Crawler.FetchTimeout,
	})
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	resultSink, err := buildSink(ctx, cfg.Sink, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := resultSink.Close(); err != nil {
			logger.Warn("result sink close failed", zap.Error(err))
		}
	}()

	cls := classifier.New(buildFilter(cfg.Filter), registry, logger.Named("classifier"), classifier.WithRunID(runID))
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Crawler.FetchRPS, Burst: cfg.Crawler.FetchBurst})
	dispatch := dispatcher.New(dispatcher.Config{
		Concurrency:         cfg.Crawler.Concurrency,
		MaxWords:            cfg.Crawler.MaxWords,
		Categories:          cfg.Crawler.ResultCategories,
		MaxPagesPerCategory: cfg.Crawler.MaxPagesPerCategory,
		FetchTimeout:        cfg.Crawler.FetchTimeout,
		InterBatchDelay:     cfg.Crawler.InterBatchDelay,
	}, front, registry, fetcher, cls, resultSink, limiter, logger.Named("dispatcher"))

	manager.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalCheckpointTimeout)
		defer cancel()
		if err := manager.Stop(stopCtx); err != nil {
			logger.Error("final checkpoint failed", zap.Error(err))
		}
	}()

	var state atomic.Value
	state.Store("running")
	if cfg.Server.Enabled {
		srv := api.NewServer(func() api.Status {
			return api.Status{
				RunID:     runID,
				State:     state.Load().(string),
				Frontier:  front.Len(),
				InFlight:  front.InFlight(),
				Processed: registry.ProcessedCount(),
				LinksSeen: registry.LinkCount(),
				MaxWords:  cfg.Crawler.MaxWords,
				Dropped:   dispatch.Stats().Dropped,
			}
		}, logger.Named("api"))
		srvCtx, cancelSrv := context.WithCancel(ctx)
		defer cancelSrv()
		go func() {
			if err := srv.ListenAndServe(srvCtx, cfg.Server.Addr); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		srv.SetReady(true)
		defer srv.SetReady(false)
	}

	logger.Info("crawl started",
		zap.Int("concurrency", cfg.Crawler.Concurrency),
		zap.Int("max_words", cfg.Crawler.MaxWords),
		zap.Strings("categories", cfg.Crawler.ResultCategories),
	)
	err = dispatch.Run(ctx)
	stats := dispatch.Stats()
	switch {
	case isInterrupt(err):
		state.Store("interrupted")
		logger.Warn("crawl interrupted; writing final checkpoint", zap.Int64("processed", stats.Processed))
		return nil
	case err != nil:
		state.Store("failed")
		return fmt.Errorf("run dispatcher: %w", err)
	}
	state.Store("finished")
	logger.Info("crawl finished",
		zap.Int64("processed", stats.Processed),
		zap.Int64("dropped", stats.Dropped),
		zap.Int("links_seen", registry.LinkCount()),
		zap.Int("remaining", front.Len()),
	)
	return nil
}
