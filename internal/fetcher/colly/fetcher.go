// Package collyfetcher implements crawler.PageFetcher against a search engine using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	// URLTemplate holds {keyword}, {category} and {offset} placeholders.
	URLTemplate   string
	UserAgent     string
	PageSize      int
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher implements crawler.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnHTML(goquerySelector string, f colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if !strings.Contains(cfg.URLTemplate, "{keyword}") {
		return nil, fmt.Errorf("url template must contain {keyword}")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	// Clones share the base collector's http.Client; its timeout and
	// transport are fixed here and never touched per fetch.
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{cfg: cfg, baseCollector: c}, nil
}

// SearchURL renders the request URL for one results page.
func (f *Fetcher) SearchURL(keyword, category string, offset int) string {
	return strings.NewReplacer(
		"{keyword}", url.QueryEscape(keyword),
		"{category}", url.QueryEscape(category),
		"{offset}", strconv.Itoa(offset),
	).Replace(f.cfg.URLTemplate)
}

// Fetch requests one results page and extracts its outbound links.
func (f *Fetcher) Fetch(ctx context.Context, keyword, category string, offset int) (crawler.Page, error) {
	var (
		mu         sync.Mutex
		candidates []crawler.Candidate
		fetchErr   error
	)
	collector := f.buildCollector()
	f.configureCollectorHooks(collector, &mu, &candidates, &fetchErr)

	if err := runCollector(ctx, collector, f.SearchURL(keyword, category, offset), &mu, &fetchErr); err != nil {
		return crawler.Page{}, err
	}
	mu.Lock()
	defer mu.Unlock()
	return crawler.Page{Candidates: candidates, NextOffset: offset + f.cfg.PageSize}, nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.AllowURLRevisit = true
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	mu *sync.Mutex,
	candidates *[]crawler.Candidate,
	fetchErr *error,
) {
	hooks.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link, ok := extractLink(e.Attr("href"))
		if !ok {
			return
		}
		mu.Lock()
		*candidates = append(*candidates, crawler.Candidate{
			Label: strings.Join(strings.Fields(e.Text), " "),
			Link:  link,
		})
		mu.Unlock()
	})

	hooks.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, target string, mu *sync.Mutex, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		mu.Lock()
		defer mu.Unlock()
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// extractLink returns the outbound target of a result anchor. Redirect
// wrappers of the form /url?q=<target>&... are unwrapped; other absolute
// http(s) links pass through; everything else is ignored.
func extractLink(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Path == "/url" {
		target := u.Query().Get("q")
		if target == "" {
			target = u.Query().Get("url")
		}
		return absoluteHTTP(target)
	}
	return absoluteHTTP(href)
}

func absoluteHTTP(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return raw, true
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
