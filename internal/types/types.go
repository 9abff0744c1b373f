package types

import (
	"github.com/clipbingo/clip-bingo-backend/internal/card"
	"github.com/clipbingo/clip-bingo-backend/internal/pattern"
	"github.com/clipbingo/clip-bingo-backend/internal/rounds"
)

// Client -> Server message types. The set is closed; anything else is
// answered with an Error frame at the transport boundary.
//
// MarkSquare / UnmarkSquare: position
// ClaimWin: {}
// ReviewClaim: approved, reason?
// StartRound / CompleteRound: round_index
// PlanRound: round_index, name?, pool_ids
// ResetEvent: {}
// SetPattern: pattern
// StartClip: clip_id, device_id
// PlaybackReport: playing
type ClientMessage struct {
	Type       string        `json:"type"`
	Position   card.Pos      `json:"position,omitempty"`
	Approved   bool          `json:"approved,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	RoundIndex int           `json:"round_index,omitempty"`
	Name       string        `json:"name,omitempty"`
	PoolIDs    []string      `json:"pool_ids,omitempty"`
	Pattern    *pattern.Spec `json:"pattern,omitempty"`
	ClipID     string        `json:"clip_id,omitempty"`
	DeviceID   string        `json:"device_id,omitempty"`
	Playing    bool          `json:"playing,omitempty"`
}

const (
	MsgMarkSquare     = "MarkSquare"
	MsgUnmarkSquare   = "UnmarkSquare"
	MsgClaimWin       = "ClaimWin"
	MsgReviewClaim    = "ReviewClaim"
	MsgStartRound     = "StartRound"
	MsgPlanRound      = "PlanRound"
	MsgCompleteRound  = "CompleteRound"
	MsgResetEvent     = "ResetEvent"
	MsgSetPattern     = "SetPattern"
	MsgStartClip      = "StartClip"
	MsgPlaybackReport = "PlaybackReport"
)

// Server -> Client frame types.
const (
	SrvSessionState     = "SessionState"
	SrvCardAssigned     = "CardAssigned"
	SrvClipStarted      = "ClipStarted"
	SrvGamePaused       = "GamePaused"
	SrvClaimResolved    = "ClaimResolved"
	SrvRoundComplete    = "RoundComplete"
	SrvGameSessionEnded = "GameSessionEnded"
	SrvError            = "Error"
)

// SessionState is the full authoritative snapshot a client needs to render
// the room; it is pushed on join, on reconnect, and after every applied
// command.
type SessionState struct {
	Version               int                   `json:"version"`
	GameState             string                `json:"game_state"`
	CurrentClip           string                `json:"current_clip,omitempty"`
	PausedForVerification bool                  `json:"paused_for_verification"`
	ActiveRoundIndex      int                   `json:"active_round_index"`
	Rounds                []rounds.Round        `json:"rounds"`
	Pattern               pattern.Spec          `json:"pattern"`
	PlayedClips           []string              `json:"played_clips"`
	Marked                map[string][]card.Pos `json:"marked"`
	Participants          []string              `json:"participants"`
	HostID                string                `json:"host_id,omitempty"`
}

type ServerMessage struct {
	Type       string                 `json:"type"`
	Version    int                    `json:"version,omitempty"`
	State      *SessionState          `json:"state,omitempty"`
	Card       *card.Card             `json:"card,omitempty"`
	ClipID     string                 `json:"clip_id,omitempty"`
	Claimant   string                 `json:"claimant,omitempty"`
	Approved   bool                   `json:"approved,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Review     []pattern.ReviewSquare `json:"review,omitempty"`
	RoundIndex int                    `json:"round_index,omitempty"`
	Error      string                 `json:"error,omitempty"`
}
