package claim

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clipbingo/clip-bingo-backend/internal/card"
	"github.com/clipbingo/clip-bingo-backend/internal/pattern"
)

var (
	ErrNoPendingReview      = errors.New("no claim awaiting review")
	ErrClaimAlreadyResolved = errors.New("claim already resolved")
)

// TimeoutReason is the resolution reason recorded when a host never
// answers a pending review.
const TimeoutReason = "timeout"

type Status string

const (
	StatusPending        Status = "pending"
	StatusAwaitingReview Status = "awaiting_review"
	StatusAutoAccepted   Status = "auto_accepted"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
)

type Claim struct {
	ID           string
	ClaimantID   string
	ClaimedAt    time.Time
	CardSnapshot *card.Card
	Pattern      pattern.Spec
	Result       pattern.Result
	Status       Status
	Reason       string
	ResolvedAt   *time.Time
}

// Outcome tells the room loop what Submit decided.
type Outcome int

const (
	// OutcomeInvalid: pattern not complete; reject to the claimant only.
	OutcomeInvalid Outcome = iota
	// OutcomeReview: claim entered AwaitingHostReview; pause the room.
	OutcomeReview
	// OutcomeAutoAccepted: fully-automatic mode accepted a clean claim.
	OutcomeAutoAccepted
	// OutcomeQueued: another claim holds the review slot; this one waits.
	OutcomeQueued
)

// Evaluator re-computes a claimant's pattern result against the room's
// current state. Claims queued behind an active review are re-evaluated
// when dequeued, because marks may have changed in between.
type Evaluator func(claimantID string) (pattern.Result, *card.Card, bool)

// Arbiter is the per-room win-claim state machine. It holds at most one
// claim in AwaitingHostReview; everything else queues. It runs no
// goroutines of its own: the room loop calls it and schedules the review
// timeout, and a generation counter rejects stale timer fires.
type Arbiter struct {
	autoAccept bool
	reviewing  *Claim
	queue      []string // claimant IDs waiting for the review slot
	archive    []*Claim
	gen        int
}

func NewArbiter(autoAccept bool) *Arbiter {
	return &Arbiter{autoAccept: autoAccept}
}

// Reviewing returns the claim currently awaiting host review, if any.
func (a *Arbiter) Reviewing() (*Claim, bool) {
	return a.reviewing, a.reviewing != nil
}

// Generation identifies the current review for timeout scheduling; a timer
// fire carrying an older generation is ignored.
func (a *Arbiter) Generation() int { return a.gen }

// Archive returns resolved claims, oldest first.
func (a *Arbiter) Archive() []*Claim {
	out := make([]*Claim, len(a.archive))
	copy(out, a.archive)
	return out
}

// Submit evaluates a fresh claim. If a review is already pending the
// claimant queues; queued claims are judged against the room state at
// dequeue time, not submission time.
func (a *Arbiter) Submit(claimantID string, activePattern pattern.Spec, eval Evaluator, now time.Time) (*Claim, Outcome) {
	if a.reviewing != nil {
		a.queue = append(a.queue, claimantID)
		return nil, OutcomeQueued
	}
	return a.open(claimantID, activePattern, eval, now)
}

func (a *Arbiter) open(claimantID string, activePattern pattern.Spec, eval Evaluator, now time.Time) (*Claim, Outcome) {
	res, snapshot, ok := eval(claimantID)
	if !ok || !res.Complete {
		c := &Claim{
			ID:         uuid.NewString(),
			ClaimantID: claimantID,
			ClaimedAt:  now,
			Pattern:    activePattern,
			Result:     res,
			Status:     StatusRejected,
			Reason:     pattern.ErrInvalidPatternClaim.Error(),
		}
		a.resolveAt(c, now)
		return c, OutcomeInvalid
	}

	c := &Claim{
		ID:           uuid.NewString(),
		ClaimantID:   claimantID,
		ClaimedAt:    now,
		CardSnapshot: snapshot,
		Pattern:      activePattern,
		Result:       res,
		Status:       StatusPending,
	}
	if a.autoAccept && res.IllegitimateMarked == 0 {
		c.Status = StatusAutoAccepted
		a.resolveAt(c, now)
		return c, OutcomeAutoAccepted
	}

	c.Status = StatusAwaitingReview
	a.reviewing = c
	a.gen++
	return c, OutcomeReview
}

// Resolve settles the pending review. Calling it with no pending review,
// or for a claim that already resolved, is rejected rather than
// double-applied.
func (a *Arbiter) Resolve(approved bool, reason string, now time.Time) (*Claim, error) {
	c := a.reviewing
	if c == nil {
		return nil, ErrNoPendingReview
	}
	if c.Status != StatusAwaitingReview {
		return nil, ErrClaimAlreadyResolved
	}
	if approved {
		c.Status = StatusApproved
	} else {
		c.Status = StatusRejected
		c.Reason = reason
	}
	a.reviewing = nil
	a.resolveAt(c, now)
	return c, nil
}

// TimeoutFire handles a review-timeout tick. Fires carrying a stale
// generation (the review they were armed for has already resolved) are
// dropped.
func (a *Arbiter) TimeoutFire(gen int, now time.Time) (*Claim, bool) {
	if a.reviewing == nil || gen != a.gen {
		return nil, false
	}
	c, err := a.Resolve(false, TimeoutReason, now)
	if err != nil {
		return nil, false
	}
	return c, true
}

// PromoteNext pulls the next queued claimant, if any, and opens their claim
// against the current room state.
func (a *Arbiter) PromoteNext(activePattern pattern.Spec, eval Evaluator, now time.Time) (*Claim, Outcome, bool) {
	if a.reviewing != nil || len(a.queue) == 0 {
		return nil, 0, false
	}
	claimant := a.queue[0]
	a.queue = a.queue[1:]
	c, out := a.open(claimant, activePattern, eval, now)
	return c, out, true
}

// ResetRound drops the pending review and queue; round transitions reset
// verification state. Resolved history is kept.
func (a *Arbiter) ResetRound() {
	a.reviewing = nil
	a.queue = nil
	a.gen++
}

func (a *Arbiter) resolveAt(c *Claim, now time.Time) {
	t := now
	c.ResolvedAt = &t
	a.archive = append(a.archive, c)
}
