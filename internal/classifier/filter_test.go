package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainSuffixFilter(t *testing.T) {
	t.Parallel()

	f := NewDomainSuffixFilter([]string{"com.bd", " *.org.bd ", ""})
	cases := map[string]bool{
		"https://shop.com.bd/a.txt":      true,
		"http://www.SHOP.com.bd":         true,
		"https://gov.org.bd/file.pdf":    true,
		"https://com.bd/":                false,
		"https://shop.com.bd.evil.com/a": false,
		"https://example.com/?q=.com.bd": false,
		"%%%":                            false,
	}
	for link, want := range cases {
		assert.Equalf(t, want, f.Allow(link), "link %s", link)
	}

	assert.True(t, NewDomainSuffixFilter(nil).Allow("https://anything.example"))
}

func TestBannedSubstringFilter(t *testing.T) {
	t.Parallel()

	f := NewBannedSubstringFilter([]string{"Google.", "  ", "webcache"})
	assert.False(t, f.Allow("https://www.google.com/url?q=x"))
	assert.False(t, f.Allow("https://WEBCACHE.example/x"))
	assert.True(t, f.Allow("https://shop.com.bd"))
}

func TestBlockedDomainFilter(t *testing.T) {
	t.Parallel()

	f := NewBlockedDomainFilter([]string{"spam.com.bd", "*.ads.com.bd", ".tracker.bd", ""})
	assert.False(t, f.Allow("https://spam.com.bd/x"))
	assert.True(t, f.Allow("https://notspam.com.bd/x"))
	assert.False(t, f.Allow("https://cdn.ads.com.bd/x"))
	assert.False(t, f.Allow("https://ads.com.bd/x"))
	assert.False(t, f.Allow("https://a.b.tracker.bd/x"))
	assert.True(t, f.Allow("https://shop.com.bd/x"))
}

func TestAllOfSkipsNilFilters(t *testing.T) {
	t.Parallel()

	f := AllOf(nil, FilterFunc(func(link string) bool { return link != "deny" }))
	assert.True(t, f.Allow("ok"))
	assert.False(t, f.Allow("deny"))
	assert.True(t, AllOf().Allow("anything"))
}
