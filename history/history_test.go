package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.detai.dev/companion/internal/types"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openMem(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, text := range []string{"first", "second", "third"} {
		start := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Append(types.TranscriptRecord{
			Text:      text,
			StartedAt: start,
			EndedAt:   start.Add(5 * time.Second),
		}))
	}

	recs, err := s.Recent(0)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "third", recs[0].Text)
	assert.Equal(t, "second", recs[1].Text)
	assert.Equal(t, "first", recs[2].Text)
	for _, r := range recs {
		assert.NotEmpty(t, r.ID)
	}

	recs, err = s.Recent(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "third", recs[0].Text)
}

func TestRecentEmpty(t *testing.T) {
	s := openMem(t)

	recs, err := s.Recent(10)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestAppendKeepsID(t *testing.T) {
	s := openMem(t)

	require.NoError(t, s.Append(types.TranscriptRecord{ID: "fixed", Text: "hello", StartedAt: time.Now()}))
	recs, err := s.Recent(1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "fixed", recs[0].ID)
}

func TestSameStartTimeKeepsBoth(t *testing.T) {
	s := openMem(t)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(types.TranscriptRecord{Text: "a", StartedAt: at}))
	require.NoError(t, s.Append(types.TranscriptRecord{Text: "b", StartedAt: at}))

	recs, err := s.Recent(0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Append(types.TranscriptRecord{Text: "kept", StartedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(Options{Dir: dir})
	require.NoError(t, err)
	defer s.Close()

	recs, err := s.Recent(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0].Text)
}

func TestClosed(t *testing.T) {
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Append(types.TranscriptRecord{Text: "late"}), ErrClosed)
	_, err = s.Recent(1)
	assert.ErrorIs(t, err, ErrClosed)
}
