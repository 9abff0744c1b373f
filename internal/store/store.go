package store

import (
	"context"
	"sync"

	"github.com/clipbingo/clip-bingo-backend/internal/rounds"
)

// EventState is the durable slice of a room: the configured rounds and
// which one is active. It must survive a full client reload (and a server
// restart, with the gorm store) without losing progress.
type EventState struct {
	Rounds           []rounds.Round
	ActiveRoundIndex int
}

type Store interface {
	SaveEvent(ctx context.Context, roomID string, st EventState) error
	// LoadEvent returns ok=false when the room has no persisted state.
	LoadEvent(ctx context.Context, roomID string) (EventState, bool, error)
	DeleteEvent(ctx context.Context, roomID string) error
}

// Memory keeps event state in-process. The default when no database is
// configured, and what the tests use.
type Memory struct {
	mu     sync.RWMutex
	events map[string]EventState
}

func NewMemory() *Memory {
	return &Memory{events: make(map[string]EventState)}
}

func (m *Memory) SaveEvent(_ context.Context, roomID string, st EventState) error {
	cp := EventState{
		Rounds:           append([]rounds.Round(nil), st.Rounds...),
		ActiveRoundIndex: st.ActiveRoundIndex,
	}
	m.mu.Lock()
	m.events[roomID] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) LoadEvent(_ context.Context, roomID string) (EventState, bool, error) {
	m.mu.RLock()
	st, ok := m.events[roomID]
	m.mu.RUnlock()
	if !ok {
		return EventState{ActiveRoundIndex: -1}, false, nil
	}
	return EventState{
		Rounds:           append([]rounds.Round(nil), st.Rounds...),
		ActiveRoundIndex: st.ActiveRoundIndex,
	}, true, nil
}

func (m *Memory) DeleteEvent(_ context.Context, roomID string) error {
	m.mu.Lock()
	delete(m.events, roomID)
	m.mu.Unlock()
	return nil
}
