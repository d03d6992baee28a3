// Package words is the lexicon the drawer's candidate words are drawn from.
package words

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"slices"
)

//go:embed words.json
var corpus []byte

// Provider hands out distinct random words from the embedded corpus.
type Provider struct {
	words []string
}

func New() (*Provider, error) {
	var list []string
	if err := json.Unmarshal(corpus, &list); err != nil {
		return nil, fmt.Errorf("words: parse embedded corpus: %w", err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("words: embedded corpus is empty")
	}
	return &Provider{words: list}, nil
}

// Pick returns n distinct words drawn without replacement. Asking for more
// words than the corpus holds returns the whole corpus shuffled.
func (p *Provider) Pick(n int) []string {
	pool := slices.Clone(p.words)
	if n > len(pool) {
		n = len(pool)
	}
	picked := make([]string, 0, n)
	for range n {
		i := rand.IntN(len(pool))
		picked = append(picked, pool[i])
		pool = slices.Delete(pool, i, i+1)
	}
	return picked
}

// Len reports the corpus size.
func (p *Provider) Len() int { return len(p.words) }
