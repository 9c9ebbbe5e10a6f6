package crawler

import "context"

// PageFetcher retrieves one page of search results for a keyword and result
// category. Implementations own every HTTP and markup detail.
type PageFetcher interface {
	Fetch(ctx context.Context, keyword string, category string, offset int) (Page, error)
}

// ResultSink receives accepted results. Writes may arrive concurrently from
// independent keyword tasks; implementations serialize internally when needed.
type ResultSink interface {
	Write(ctx context.Context, keyword string, category string, results []Result) error
	Close() error
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
