// Package classifier turns raw search candidates into accepted results.
package classifier

import (
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
	"github.com/JakeFAU/keyword-crawler/internal/metrics"
)

// LinkRegistry is the seen-link gate. It is the only dedup mechanism: a link
// accepted for one keyword is never emitted again for another.
type LinkRegistry interface {
	TryMarkLinkSeen(link string) bool
}

// Classifier filters candidates and stamps accepted results.
type Classifier struct {
	filter   Filter
	registry LinkRegistry
	runID    string
	now      func() time.Time
	logger   *zap.Logger
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRunID stamps results with the crawl run identifier.
func WithRunID(runID string) Option {
	return func(c *Classifier) {
		c.runID = runID
	}
}

// New builds a Classifier. A nil filter accepts every well-formed link.
func New(filter Filter, registry LinkRegistry, logger *zap.Logger, opts ...Option) *Classifier {
	if filter == nil {
		filter = AllOf()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Classifier{
		filter:   filter,
		registry: registry,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the accepted results for one page, in input order.
// Filtering runs before the seen-link gate so rejected links are never marked.
func (c *Classifier) Classify(keyword, category string, candidates []crawler.Candidate) []crawler.Result {
	var (
		out       []crawler.Result
		filtered  int
		duplicate int
	)
	foundAt := c.now()
	for _, cand := range candidates {
		link := strings.TrimSpace(cand.Link)
		if !wellFormed(link) || !c.filter.Allow(link) {
			filtered++
			continue
		}
		if !c.registry.TryMarkLinkSeen(link) {
			duplicate++
			continue
		}
		out = append(out, crawler.Result{
			RunID:    c.runID,
			Keyword:  keyword,
			Category: category,
			Label:    strings.TrimSpace(cand.Label),
			Link:     link,
			FoundAt:  foundAt,
		})
	}
	metrics.ObserveClassified(category, len(out), filtered, duplicate)
	c.logger.Debug("page classified",
		zap.String("keyword", keyword),
		zap.String("category", category),
		zap.Int("accepted", len(out)),
		zap.Int("filtered", filtered),
		zap.Int("duplicate", duplicate),
	)
	return out
}

func wellFormed(link string) bool {
	if link == "" || strings.ContainsAny(link, " \t\r\n") {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
