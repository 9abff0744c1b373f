package room

import (
	"github.com/clipbingo/clip-bingo-backend/internal/card"
	"github.com/clipbingo/clip-bingo-backend/internal/rounds"
	"github.com/clipbingo/clip-bingo-backend/internal/tracks"
	"github.com/clipbingo/clip-bingo-backend/internal/types"
)

type Msg interface{ isRoomMsg() }

// Join binds a connection to a stable participant identity. A reconnect is
// a Join with an ID the room has seen before; the room resyncs that client
// proactively instead of waiting for it to ask.
type Join struct {
	ParticipantID string
	Outbox        chan types.ServerMessage
}

func (Join) isRoomMsg() {}

// Leave detaches one connection. Outbox identifies which stream is going
// away: a Leave from a stale stream must not evict a fresh reconnect that
// already replaced it. A nil Outbox detaches unconditionally.
type Leave struct {
	ParticipantID string
	Outbox        chan types.ServerMessage
}

func (Leave) isRoomMsg() {}

// FromClient carries one decoded client command.
type FromClient struct {
	ParticipantID string
	Msg           types.ClientMessage
}

func (FromClient) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// GetState reflects loop-owned state without data races. Test-only.
type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

// View is a read-only copy of room state for tests and diagnostics.
type View struct {
	Version          int
	NumClients       int
	GameState        GameState
	CurrentClip      string
	Paused           bool
	ActiveRoundIndex int
	Rounds           []rounds.Round
	PlayedClips      []string
	Marked           map[string][]card.Pos
	HostID           string
	StaleDiscarded   int
	HasCard          map[string]bool
}

// Provider results and timers re-enter the loop as ordinary messages, so
// every state mutation happens on the single command path.

type clipStarted struct{ clipID string }

func (clipStarted) isRoomMsg() {}

type clipStartFailed struct {
	participantID string
	clipID        string
	err           error
}

func (clipStartFailed) isRoomMsg() {}

type roundTracksLoaded struct {
	participantID string
	roundIndex    int
	tracks        []tracks.Track
}

func (roundTracksLoaded) isRoomMsg() {}

type roundTracksFailed struct {
	participantID string
	roundIndex    int
	err           error
}

func (roundTracksFailed) isRoomMsg() {}

// claimTimeout fires when a host review has been pending too long. The
// generation lets the arbiter drop fires armed for an already-resolved
// review.
type claimTimeout struct{ gen int }

func (claimTimeout) isRoomMsg() {}
