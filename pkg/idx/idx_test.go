package idx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewIsSortable(t *testing.T) {
	a := New()
	b := New()
	require.NotEqual(t, a, b)
	require.True(t, a.String() < b.String(), "later IDs must sort after earlier IDs")
}

func TestNewAtEmbedsTime(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	id := NewAt(at)
	require.Equal(t, at.Truncate(time.Millisecond), id.Time())
}

func TestParse(t *testing.T) {
	valid := New().String()

	t.Run("round trips valid IDs", func(t *testing.T) {
		id, err := Parse(valid)
		require.NoError(t, err)
		require.Equal(t, valid, id.String())
	})

	t.Run("trims whitespace", func(t *testing.T) {
		id, err := Parse("  " + valid + "  ")
		require.NoError(t, err)
		require.Equal(t, valid, id.String())
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := Parse("")
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := Parse("not-a-ulid")
		require.ErrorIs(t, err, ErrInvalid)
	})
}

func TestZero(t *testing.T) {
	require.True(t, Zero.IsZero())
	require.False(t, New().IsZero())
	require.True(t, Zero.Time().IsZero())
}
