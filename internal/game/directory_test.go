package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDirectory() *Directory {
	return NewDirectory(DefaultSettings(), stubWords{}, &stubSched{}, zap.NewNop())
}

func TestDirectory_CreateAndFind(t *testing.T) {
	d := newTestDirectory()

	s := d.Create(NewPlayer("id-alice", "alice", &fakeConn{}))
	require.NotEmpty(t, s.ID)
	assert.Equal(t, StateWaiting, s.State())
	assert.Equal(t, "alice", s.Owner().Username)

	found, ok := d.Find(s.ID)
	require.True(t, ok)
	assert.Same(t, s, found)

	_, ok = d.Find("nope")
	assert.False(t, ok)
}

func TestDirectory_IdsAreUnique(t *testing.T) {
	d := newTestDirectory()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s := d.Create(NewPlayer("id", "alice", &fakeConn{}))
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}
}

func TestDirectory_RemoveIfEmpty(t *testing.T) {
	d := newTestDirectory()
	s := d.Create(NewPlayer("id-alice", "alice", &fakeConn{}))

	assert.False(t, d.RemoveIfEmpty(s), "non-empty session must stay")
	require.Equal(t, 1, d.Len())

	s.RemovePlayer("id-alice")
	assert.True(t, d.RemoveIfEmpty(s))
	assert.Equal(t, 0, d.Len())
	_, ok := d.Find(s.ID)
	assert.False(t, ok)
}
