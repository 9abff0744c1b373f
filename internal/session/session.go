package session

import "time"

// DebounceWindow is a time-bounded suppression guard: after Fire, anything
// checked with IsSuppressed inside the window is held back. It replaces the
// ad-hoc "last X at" timestamp variables these guards tend to accrete.
type DebounceWindow struct {
	lastFiredAt time.Time
	window      time.Duration
}

func NewDebounceWindow(window time.Duration) DebounceWindow {
	return DebounceWindow{window: window}
}

func (w *DebounceWindow) Fire(now time.Time) { w.lastFiredAt = now }

func (w *DebounceWindow) IsSuppressed(now time.Time) bool {
	if w.lastFiredAt.IsZero() {
		return false
	}
	return now.Sub(w.lastFiredAt) < w.window
}

// Config carries the three guard windows of the sync protocol.
type Config struct {
	// ResumeDebounce suppresses repeated resume-playback nudges so a
	// reconnection storm cannot multiply playback commands.
	ResumeDebounce time.Duration
	// ReconnectIgnore drops externally-polled playback reports arriving
	// shortly after a participant reconnects.
	ReconnectIgnore time.Duration
	// ClipStartIgnore drops "not playing" reports arriving shortly after
	// a genuine clip start; they are presumed transport-lag artifacts.
	ClipStartIgnore time.Duration
}

func DefaultConfig() Config {
	return Config{
		ResumeDebounce:  10 * time.Second,
		ReconnectIgnore: 15 * time.Second,
		ClipStartIgnore: 15 * time.Second,
	}
}

// Protocol reconciles a flaky mobile client's view with authoritative room
// state. It is driven by the room loop, keyed by stable participant
// identity (a reconnect is the same participant on a new stream).
type Protocol struct {
	cfg        Config
	resume     DebounceWindow
	clipStart  DebounceWindow
	reconnects map[string]*DebounceWindow
	staleDrops int
}

func NewProtocol(cfg Config) *Protocol {
	return &Protocol{
		cfg:        cfg,
		resume:     NewDebounceWindow(cfg.ResumeDebounce),
		clipStart:  NewDebounceWindow(cfg.ClipStartIgnore),
		reconnects: make(map[string]*DebounceWindow),
	}
}

// AllowResumeNudge reports whether a resume-playback nudge may be sent now,
// and if so claims the window.
func (p *Protocol) AllowResumeNudge(now time.Time) bool {
	if p.resume.IsSuppressed(now) {
		return false
	}
	p.resume.Fire(now)
	return true
}

// NoteClipStarted records a server-confirmed clip start.
func (p *Protocol) NoteClipStarted(now time.Time) {
	p.clipStart.Fire(now)
}

// NoteReconnect records that the participant's connection was
// re-established; their polled reports are distrusted for a while.
func (p *Protocol) NoteReconnect(participantID string, now time.Time) {
	w, ok := p.reconnects[participantID]
	if !ok {
		dw := NewDebounceWindow(p.cfg.ReconnectIgnore)
		w = &dw
		p.reconnects[participantID] = w
	}
	w.Fire(now)
}

// Forget drops the participant's connection record entirely.
func (p *Protocol) Forget(participantID string) {
	delete(p.reconnects, participantID)
}

// AcceptPlaybackReport decides whether an externally-polled playback state
// report is trustworthy. Dropped reports are silent to users but counted
// for diagnostics.
func (p *Protocol) AcceptPlaybackReport(participantID string, playing bool, now time.Time) bool {
	if w, ok := p.reconnects[participantID]; ok && w.IsSuppressed(now) {
		p.staleDrops++
		return false
	}
	if !playing && p.clipStart.IsSuppressed(now) {
		p.staleDrops++
		return false
	}
	return true
}

// StaleDiscarded returns how many reports the guard windows have dropped.
func (p *Protocol) StaleDiscarded() int { return p.staleDrops }
