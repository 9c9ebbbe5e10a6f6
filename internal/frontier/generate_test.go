package frontier

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCandidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base []string
		rule SuffixRule
		want []string
	}{
		{
			name: "suffix and www",
			base: []string{"shop"},
			rule: SuffixRule{Suffix: ".com.bd", WithWWW: true},
			want: []string{"shop.com.bd", "www.shop.com.bd"},
		},
		{
			name: "suffix already present",
			base: []string{"Shop.COM.BD", "www.tea.com.bd"},
			rule: SuffixRule{Suffix: ".com.bd"},
			want: []string{"Shop.COM.BD", "tea.com.bd"},
		},
		{
			name: "no suffix",
			base: []string{"alpha", " "},
			rule: SuffixRule{WithWWW: true},
			want: []string{"alpha", "www.alpha"},
		},
		{
			name: "empty base",
			base: nil,
			rule: SuffixRule{Suffix: ".com.bd"},
			want: []string{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, GenerateCandidates(tc.base, tc.rule))
		})
	}
}

func TestGenerateCandidatesDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	base := []string{"shop"}
	_ = GenerateCandidates(base, SuffixRule{Suffix: ".com.bd"})
	assert.Equal(t, []string{"shop"}, base)
}

func TestReadSeeds(t *testing.T) {
	t.Parallel()

	input := "# seeds\nexample.com.bd\n\n  shop.com.bd  \n#skip\nteashop.com.bd"
	got, err := ReadSeeds(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com.bd", "shop.com.bd", "teashop.com.bd"}, got)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestReadSeedsPropagatesErrors(t *testing.T) {
	t.Parallel()

	_, err := ReadSeeds(failingReader{})
	require.EqualError(t, err, "read seeds: disk gone")
}
