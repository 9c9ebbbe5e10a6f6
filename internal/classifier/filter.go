package classifier

import (
	"net/url"
	"strings"
)

// Filter decides whether a candidate link may be emitted.
type Filter interface {
	Allow(link string) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(link string) bool

// Allow calls f.
func (f FilterFunc) Allow(link string) bool {
	return f(link)
}

// AllOf accepts a link only when every non-nil filter accepts it.
func AllOf(filters ...Filter) Filter {
	active := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	return FilterFunc(func(link string) bool {
		for _, f := range active {
			if !f.Allow(link) {
				return false
			}
		}
		return true
	})
}

// DomainSuffixFilter accepts links whose host ends with one of the suffixes,
// e.g. ".com.bd" admits "shop.com.bd" and "www.shop.com.bd". An empty filter
// accepts everything.
type DomainSuffixFilter struct {
	suffixes []string
}

// NewDomainSuffixFilter normalizes suffixes to lowercase with a leading dot.
func NewDomainSuffixFilter(suffixes []string) *DomainSuffixFilter {
	f := &DomainSuffixFilter{}
	for _, raw := range suffixes {
		s := strings.ToLower(strings.TrimSpace(raw))
		s = strings.TrimPrefix(s, "*")
		if s == "" || s == "." {
			continue
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		f.suffixes = append(f.suffixes, s)
	}
	return f
}

// Allow implements Filter.
func (f *DomainSuffixFilter) Allow(link string) bool {
	if f == nil || len(f.suffixes) == 0 {
		return true
	}
	host := hostOf(link)
	if host == "" {
		return false
	}
	for _, s := range f.suffixes {
		if strings.HasSuffix(host, s) && len(host) > len(s) {
			return true
		}
	}
	return false
}

// BannedSubstringFilter rejects links containing any banned substring,
// compared case-insensitively.
type BannedSubstringFilter struct {
	banned []string
}

// NewBannedSubstringFilter builds a BannedSubstringFilter.
func NewBannedSubstringFilter(banned []string) *BannedSubstringFilter {
	f := &BannedSubstringFilter{}
	for _, raw := range banned {
		if s := strings.ToLower(strings.TrimSpace(raw)); s != "" {
			f.banned = append(f.banned, s)
		}
	}
	return f
}

// Allow implements Filter.
func (f *BannedSubstringFilter) Allow(link string) bool {
	if f == nil {
		return true
	}
	lower := strings.ToLower(link)
	for _, s := range f.banned {
		if strings.Contains(lower, s) {
			return false
		}
	}
	return true
}

// BlockedDomainFilter rejects exact hosts and "*.suffix" / ".suffix" wildcards.
type BlockedDomainFilter struct {
	exact    map[string]struct{}
	suffixes []string
}

// NewBlockedDomainFilter parses blocklist patterns.
func NewBlockedDomainFilter(patterns []string) *BlockedDomainFilter {
	f := &BlockedDomainFilter{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		switch {
		case value == "":
		case strings.HasPrefix(value, "*."):
			f.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			f.addSuffix(strings.TrimPrefix(value, "."))
		default:
			f.exact[value] = struct{}{}
		}
	}
	return f
}

func (f *BlockedDomainFilter) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range f.suffixes {
		if existing == suffix {
			return
		}
	}
	f.suffixes = append(f.suffixes, suffix)
}

// Allow implements Filter.
func (f *BlockedDomainFilter) Allow(link string) bool {
	if f == nil {
		return true
	}
	host := hostOf(link)
	if host == "" {
		return true
	}
	if _, blocked := f.exact[host]; blocked {
		return false
	}
	for _, suffix := range f.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return false
		}
	}
	return true
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
