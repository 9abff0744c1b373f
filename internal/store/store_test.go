package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clipbingo/clip-bingo-backend/internal/rounds"
)

func sampleState() EventState {
	started := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	return EventState{
		ActiveRoundIndex: 1,
		Rounds: []rounds.Round{
			{ID: "r0", Name: "Warmup", TrackPoolIDs: []string{"a", "b"}, Status: rounds.StatusCompleted},
			{ID: "r1", Name: "Main", TrackPoolIDs: []string{"c"}, Status: rounds.StatusActive, StartedAt: &started},
			{ID: "r2", Name: "Round 3", Status: rounds.StatusUnplanned},
		},
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.LoadEvent(ctx, "ROOM01")
	require.NoError(t, err)
	require.False(t, ok)

	st := sampleState()
	require.NoError(t, m.SaveEvent(ctx, "ROOM01", st))

	got, ok, err := m.LoadEvent(ctx, "ROOM01")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, st.ActiveRoundIndex, got.ActiveRoundIndex)
	require.Equal(t, st.Rounds, got.Rounds)
}

func TestMemory_SaveStoresCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	st := sampleState()
	require.NoError(t, m.SaveEvent(ctx, "ROOM01", st))

	st.Rounds[0].Status = rounds.StatusUnplanned

	got, _, err := m.LoadEvent(ctx, "ROOM01")
	require.NoError(t, err)
	require.Equal(t, rounds.StatusCompleted, got.Rounds[0].Status)
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveEvent(ctx, "ROOM01", sampleState()))
	require.NoError(t, m.DeleteEvent(ctx, "ROOM01"))

	_, ok, err := m.LoadEvent(ctx, "ROOM01")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemory_RoomsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.SaveEvent(ctx, "ROOM01", sampleState()))

	_, ok, err := m.LoadEvent(ctx, "ROOM02")
	require.NoError(t, err)
	require.False(t, ok)
}
