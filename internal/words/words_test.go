package words

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPick_DistinctWords(t *testing.T) {
	p, err := New()
	require.NoError(t, err)
	require.Greater(t, p.Len(), 3)

	for i := 0; i < 20; i++ {
		picked := p.Pick(3)
		require.Len(t, picked, 3)
		seen := map[string]bool{}
		for _, w := range picked {
			assert.False(t, seen[w], "duplicate word %q in one draw", w)
			seen[w] = true
		}
	}
}

func TestPick_MoreThanCorpusIsCapped(t *testing.T) {
	p, err := New()
	require.NoError(t, err)

	picked := p.Pick(p.Len() + 10)
	assert.Len(t, picked, p.Len())
}
