package rounds

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrRoundStateConflict = errors.New("illegal round state transition")

type Status string

const (
	StatusUnplanned Status = "unplanned"
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type Round struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	TrackPoolIDs []string   `json:"track_pool_ids"`
	Status       Status     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Manager owns the ordered round list of one event and is the only writer
// of Round.Status. It is not safe for concurrent use; the room loop is its
// single caller.
type Manager struct {
	rounds []Round
	active int // index of the Active round, -1 when none
}

// New creates an event with n unplanned rounds.
func New(n int) *Manager {
	m := &Manager{rounds: make([]Round, n), active: -1}
	for i := range m.rounds {
		m.rounds[i] = Round{
			ID:     uuid.NewString(),
			Name:   fmt.Sprintf("Round %d", i+1),
			Status: StatusUnplanned,
		}
	}
	return m
}

// Restore rebuilds a manager from persisted state. A round persisted as
// Active is demoted to Planned: in-memory round state (cards, marks, the
// played-clip log) did not survive, so the round must be started again by
// the host rather than resumed into an inconsistent session.
func Restore(rs []Round) *Manager {
	m := &Manager{rounds: make([]Round, len(rs)), active: -1}
	copy(m.rounds, rs)
	for i := range m.rounds {
		r := &m.rounds[i]
		if r.Status == StatusActive {
			r.Status = StatusPlanned
			r.StartedAt = nil
		}
	}
	return m
}

func (m *Manager) Len() int         { return len(m.rounds) }
func (m *Manager) ActiveIndex() int { return m.active }

// Rounds returns a copy; callers never get a mutable view.
func (m *Manager) Rounds() []Round {
	out := make([]Round, len(m.rounds))
	copy(out, m.rounds)
	return out
}

func (m *Manager) Active() (Round, bool) {
	if m.active < 0 {
		return Round{}, false
	}
	return m.rounds[m.active], true
}

func (m *Manager) check(i int) error {
	if i < 0 || i >= len(m.rounds) {
		return fmt.Errorf("%w: round %d does not exist", ErrRoundStateConflict, i)
	}
	return nil
}

// Plan assigns a track pool, moving the round Unplanned -> Planned.
// Re-planning a Planned round replaces its pool.
func (m *Manager) Plan(i int, name string, poolIDs []string) error {
	if err := m.check(i); err != nil {
		return err
	}
	if len(poolIDs) == 0 {
		return fmt.Errorf("%w: cannot plan round %d with an empty track pool", ErrRoundStateConflict, i)
	}
	r := &m.rounds[i]
	if r.Status != StatusUnplanned && r.Status != StatusPlanned {
		return fmt.Errorf("%w: round %d is %s, not plannable", ErrRoundStateConflict, i, r.Status)
	}
	if name != "" {
		r.Name = name
	}
	r.TrackPoolIDs = append([]string(nil), poolIDs...)
	r.Status = StatusPlanned
	return nil
}

// CanActivate reports whether Activate(i) would succeed, without mutating.
func (m *Manager) CanActivate(i int) error {
	if err := m.check(i); err != nil {
		return err
	}
	r := m.rounds[i]
	if r.Status != StatusPlanned {
		return fmt.Errorf("%w: round %d is %s, only a planned round can start", ErrRoundStateConflict, i, r.Status)
	}
	if len(r.TrackPoolIDs) == 0 {
		return fmt.Errorf("%w: round %d has no track pool", ErrRoundStateConflict, i)
	}
	return nil
}

// Activate moves round i Planned -> Active. Whichever round was Active is
// auto-completed first, so at most one round is ever Active.
func (m *Manager) Activate(i int, now time.Time) error {
	if err := m.CanActivate(i); err != nil {
		return err
	}
	if m.active >= 0 {
		m.completeAt(m.active, now)
	}
	r := &m.rounds[i]
	r.Status = StatusActive
	t := now
	r.StartedAt = &t
	r.CompletedAt = nil
	m.active = i
	return nil
}

// CompleteActive moves the Active round to Completed.
func (m *Manager) CompleteActive(now time.Time) (int, error) {
	if m.active < 0 {
		return -1, fmt.Errorf("%w: no active round to complete", ErrRoundStateConflict)
	}
	i := m.active
	m.completeAt(i, now)
	return i, nil
}

func (m *Manager) completeAt(i int, now time.Time) {
	r := &m.rounds[i]
	r.Status = StatusCompleted
	t := now
	r.CompletedAt = &t
	if m.active == i {
		m.active = -1
	}
}

// ResetEvent returns every round to Unplanned. The only path back from
// Completed.
func (m *Manager) ResetEvent() {
	for i := range m.rounds {
		r := &m.rounds[i]
		r.Status = StatusUnplanned
		r.TrackPoolIDs = nil
		r.StartedAt = nil
		r.CompletedAt = nil
	}
	m.active = -1
}

// IsFinalConfigured reports whether i is the last round that has been
// configured (planned or beyond). Winning it ends the whole event.
func (m *Manager) IsFinalConfigured(i int) bool {
	last := -1
	for j, r := range m.rounds {
		if r.Status != StatusUnplanned {
			last = j
		}
	}
	return last == i
}
