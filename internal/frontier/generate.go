package frontier

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// SuffixRule describes how candidate keywords are derived from base terms.
type SuffixRule struct {
	// Suffix is appended to every base term, e.g. ".com.bd".
	Suffix string
	// WithWWW also emits the "www."-prefixed variant.
	WithWWW bool
}

// GenerateCandidates expands base terms with rule. It is pure: the output
// depends only on its arguments and may contain duplicates, which Seed drops.
func GenerateCandidates(base []string, rule SuffixRule) []string {
	suffix := strings.ToLower(strings.TrimSpace(rule.Suffix))
	out := make([]string, 0, len(base)*2)
	for _, raw := range base {
		term := strings.TrimSpace(raw)
		if term == "" {
			continue
		}
		term = strings.TrimPrefix(term, "www.")
		if suffix != "" && !strings.HasSuffix(strings.ToLower(term), suffix) {
			term += suffix
		}
		out = append(out, term)
		if rule.WithWWW {
			out = append(out, "www."+term)
		}
	}
	return out
}

// ReadSeeds reads one keyword per line, skipping blank lines and # comments.
func ReadSeeds(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	return out, nil
}
