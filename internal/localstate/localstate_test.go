package localstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSelectionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)

	key, err := s.LoadSelection()
	require.NoError(t, err)
	assert.Equal(t, "", key, "banco novo não tem seleção")

	require.NoError(t, s.SaveSelection("5511999999999"))
	require.NoError(t, s.SaveSelection("5521888888888"))

	key, err = s.LoadSelection()
	require.NoError(t, err)
	assert.Equal(t, "5521888888888", key, "última escrita vence")
}

func TestSelectionSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)
	require.NoError(t, s.SaveSelection("5511999999999"))
	require.NoError(t, s.Close())

	s2 := open(t, dir)
	key, err := s2.LoadSelection()
	require.NoError(t, err)
	assert.Equal(t, "5511999999999", key)
}

func TestUnreadRoundTrip(t *testing.T) {
	s := open(t, t.TempDir())

	require.NoError(t, s.SaveUnread(map[string]int{
		"5511999999999": 3,
		"5521888888888": 0, // zerado não é gravado
	}))

	counts, err := s.LoadUnread()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"5511999999999": 3}, counts)
}

func TestSaveUnreadReplacesSnapshot(t *testing.T) {
	s := open(t, t.TempDir())

	require.NoError(t, s.SaveUnread(map[string]int{"a": 1, "b": 2}))
	require.NoError(t, s.SaveUnread(map[string]int{"b": 5}))

	counts, err := s.LoadUnread()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 5}, counts)
}
