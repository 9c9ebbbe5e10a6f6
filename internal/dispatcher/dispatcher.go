// Package dispatcher drains the keyword frontier with a bounded pool of keyword tasks.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
	"github.com/JakeFAU/keyword-crawler/internal/metrics"
)

const defaultFlushTimeout = 30 * time.Second

// Frontier is the work queue the dispatcher claims keywords from.
type Frontier interface {
	Claim(n int) []crawler.Keyword
	Complete(kw crawler.Keyword)
	IsEmpty() bool
	Len() int
}

// Registry gates keyword processing and enforces the run budget.
type Registry interface {
	TryMarkProcessedWithin(keyword string, limit int) (bool, error)
	BudgetExhausted(limit int) bool
}

// Classifier turns a page of candidates into accepted results.
type Classifier interface {
	Classify(keyword, category string, candidates []crawler.Candidate) []crawler.Result
}

// Limiter throttles outbound fetches per key.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Config drives dispatcher behavior.
type Config struct {
	Concurrency         int
	MaxWords            int
	Categories          []string
	MaxPagesPerCategory int
	FetchTimeout        time.Duration
	InterBatchDelay     time.Duration
	// FlushTimeout bounds sink writes, which run detached from cancellation.
	FlushTimeout time.Duration
}

// Stats counts keyword task outcomes for the current run.
type Stats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Dropped   int64 `json:"dropped"`
	Active    int64 `json:"active"`
}

// Dispatcher claims keywords in batches and runs one task per keyword.
type Dispatcher struct {
	cfg        Config
	frontier   Frontier
	registry   Registry
	fetcher    crawler.PageFetcher
	classifier Classifier
	sink       crawler.ResultSink
	limiter    Limiter
	logger     *zap.Logger

	processed atomic.Int64
	duplicate atomic.Int64
	dropped   atomic.Int64
	active    atomic.Int64
}

// New constructs a Dispatcher. A nil limiter disables throttling.
func New(
	cfg Config,
	frontier Frontier,
	registry Registry,
	fetcher crawler.PageFetcher,
	classifier Classifier,
	sink crawler.ResultSink,
	limiter Limiter,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxPagesPerCategory < 1 {
		cfg.MaxPagesPerCategory = 1
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		cfg:        cfg,
		frontier:   frontier,
		registry:   registry,
		fetcher:    fetcher,
		classifier: classifier,
		sink:       sink,
		limiter:    limiter,
		logger:     logger,
	}
}

// Stats returns the task outcome counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Processed: d.processed.Load(),
		Duplicate: d.duplicate.Load(),
		Dropped:   d.dropped.Load(),
		Active:    d.active.Load(),
	}
}

// Run drains the frontier until it is empty, the budget is spent, or ctx is
// cancelled. Cancellation stops claiming, lets in-flight tasks wind down, and
// returns the context error. Draining and budget exhaustion return nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	for batchNum := 1; ; batchNum++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.registry.BudgetExhausted(d.cfg.MaxWords) {
			d.logger.Info("processing budget exhausted; stopping dispatch",
				zap.Int("max_words", d.cfg.MaxWords),
				zap.Int("remaining", d.frontier.Len()),
			)
			return nil
		}

		batch := d.frontier.Claim(d.cfg.Concurrency)
		metrics.SetFrontierSize(d.frontier.Len())
		if len(batch) == 0 {
			d.logger.Info("frontier drained")
			return nil
		}
		d.logger.Debug("batch claimed", zap.Int("batch", batchNum), zap.Int("size", len(batch)))

		var wg sync.WaitGroup
		for _, kw := range batch {
			wg.Add(1)
			go func(kw crawler.Keyword) {
				defer wg.Done()
				d.runTask(ctx, kw)
			}(kw)
		}
		wg.Wait()
		metrics.SetFrontierSize(d.frontier.Len())

		if d.frontier.IsEmpty() {
			continue
		}
		if err := sleep(ctx, d.cfg.InterBatchDelay); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) runTask(ctx context.Context, kw crawler.Keyword) {
	d.active.Add(1)
	metrics.IncActiveTasks()
	logger := d.logger.With(zap.String("keyword", kw.Text))
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("keyword task panicked", zap.Any("panic", rec), zap.Stack("stack"))
		}
		d.frontier.Complete(kw)
		metrics.DecActiveTasks()
		d.active.Add(-1)
	}()

	marked, err := d.registry.TryMarkProcessedWithin(kw.Norm, d.cfg.MaxWords)
	switch {
	case errors.Is(err, crawler.ErrBudgetExhausted):
		logger.Warn("processing budget exhausted; dropping keyword", zap.Int("max_words", d.cfg.MaxWords))
		d.dropped.Add(1)
		metrics.ObserveKeyword(metrics.KeywordDropped)
		return
	case !marked:
		logger.Debug("keyword already processed")
		d.duplicate.Add(1)
		metrics.ObserveKeyword(metrics.KeywordDuplicate)
		return
	}

	results := make([][]crawler.Result, len(d.cfg.Categories))
	var g errgroup.Group
	for i, category := range d.cfg.Categories {
		g.Go(func() error {
			accepted, err := d.crawlCategory(ctx, kw, category)
			results[i] = accepted
			if err != nil {
				logger.Warn("fetch failed; stopping category", zap.String("category", category), zap.Error(err))
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logger.Info("keyword finished with partial results", zap.Error(err))
	}

	d.flush(ctx, kw, results, logger)

	d.processed.Add(1)
	metrics.ObserveKeyword(metrics.KeywordProcessed)
	if ctx.Err() != nil {
		logger.Info("keyword task interrupted; keyword stays processed")
	}
}

// crawlCategory fetches pages in order until the page limit, an empty page,
// a fetch failure, or cancellation. Each page is classified before the next
// one is requested. The error is the *crawler.FetchError that ended the
// category early; cancellation is not reported as a failure. Results from
// earlier pages are returned either way.
func (d *Dispatcher) crawlCategory(ctx context.Context, kw crawler.Keyword, category string) (accepted []crawler.Result, err error) {
	offset := 0
	defer func() {
		if rec := recover(); rec != nil {
			err = &crawler.FetchError{
				Keyword:  kw.Text,
				Category: category,
				Offset:   offset,
				Err:      fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	for pageNum := 0; pageNum < d.cfg.MaxPagesPerCategory; pageNum++ {
		if ctx.Err() != nil {
			return accepted, nil
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx, category); err != nil {
				return accepted, nil
			}
		}

		page, err := d.fetchPage(ctx, kw, category, offset)
		if err != nil {
			if ctx.Err() != nil {
				d.logger.Debug("fetch cancelled",
					zap.String("keyword", kw.Text),
					zap.String("category", category),
					zap.Int("offset", offset),
				)
				return accepted, nil
			}
			return accepted, err
		}
		if len(page.Candidates) == 0 {
			return accepted, nil
		}

		accepted = append(accepted, d.classifier.Classify(kw.Text, category, page.Candidates)...)

		next := page.NextOffset
		if next <= offset {
			next = offset + len(page.Candidates)
		}
		offset = next
	}
	return accepted, nil
}

func (d *Dispatcher) fetchPage(ctx context.Context, kw crawler.Keyword, category string, offset int) (crawler.Page, error) {
	fetchCtx := ctx
	if d.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, d.cfg.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	page, err := d.fetcher.Fetch(fetchCtx, kw.Text, category, offset)
	if err == nil && fetchCtx.Err() != nil {
		err = fetchCtx.Err()
	}
	metrics.ObserveFetch(category, err, time.Since(start))
	if err != nil {
		var fetchErr *crawler.FetchError
		if errors.As(err, &fetchErr) {
			return crawler.Page{}, err
		}
		return crawler.Page{}, &crawler.FetchError{Keyword: kw.Text, Category: category, Offset: offset, Err: err}
	}
	return page, nil
}

// flush writes accepted results per category in configured order. The links
// are already marked seen, so writes run detached from ctx cancellation.
func (d *Dispatcher) flush(ctx context.Context, kw crawler.Keyword, results [][]crawler.Result, logger *zap.Logger) {
	if d.sink == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.FlushTimeout)
	defer cancel()

	for i, batch := range results {
		if len(batch) == 0 {
			continue
		}
		category := d.cfg.Categories[i]
		err := d.sink.Write(writeCtx, kw.Text, category, batch)
		metrics.ObserveSinkWrite(err)
		if err != nil {
			logger.Error("result sink write failed",
				zap.String("category", category),
				zap.Int("results", len(batch)),
				zap.Error(err),
			)
			continue
		}
		logger.Info("results written", zap.String("category", category), zap.Int("results", len(batch)))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
