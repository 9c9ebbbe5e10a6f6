// Package sink provides crawler.ResultSink backends.
package sink

import (
	"context"
	"errors"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

// Multi fans every write out to all of its sinks.
type Multi struct {
	sinks []crawler.ResultSink
}

// NewMulti combines sinks. Nil entries are skipped.
func NewMulti(sinks ...crawler.ResultSink) *Multi {
	out := make([]crawler.ResultSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Multi{sinks: out}
}

// Write forwards results to every sink, even after one fails, and joins the errors.
func (m *Multi) Write(ctx context.Context, keyword, category string, results []crawler.Result) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, keyword, category, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins the errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
