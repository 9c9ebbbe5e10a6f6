package crawler

import (
	"strings"
	"time"
)

// Keyword is a single unit of crawl work: a search term plus the normalized
// form used for every dedup comparison.
type Keyword struct {
	Text string
	Norm string
}

// NewKeyword trims text and derives its normalized form. It reports false for
// blank text or text spanning multiple lines, since checkpoints store one
// keyword per line.
func NewKeyword(text string) (Keyword, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.ContainsAny(trimmed, "\r\n") {
		return Keyword{}, false
	}
	return Keyword{Text: trimmed, Norm: Normalize(trimmed)}, true
}

// Normalize returns the case-folded form of a keyword.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// String returns the display text.
func (k Keyword) String() string {
	return k.Text
}

// Candidate is a raw search result before classification.
type Candidate struct {
	Label string
	Link  string
}

// Page is one page of raw candidates returned by a PageFetcher.
type Page struct {
	Candidates []Candidate
	// NextOffset is the offset the fetcher expects for the following page.
	NextOffset int
}

// Result is an accepted, deduplicated artifact discovered for a keyword.
type Result struct {
	RunID    string    `json:"run_id"`
	Keyword  string    `json:"keyword"`
	Category string    `json:"category"`
	Label    string    `json:"label"`
	Link     string    `json:"link"`
	FoundAt  time.Time `json:"found_at"`
}
