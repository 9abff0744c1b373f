package claim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clipbingo/clip-bingo-backend/internal/card"
	"github.com/clipbingo/clip-bingo-backend/internal/pattern"
)

var lineSpec = pattern.Spec{Kind: pattern.Line}

func completeEval(t *testing.T) Evaluator {
	t.Helper()
	return func(string) (pattern.Result, *card.Card, bool) {
		return pattern.Result{Complete: true, LegitimateMarked: 5, BestLineLength: 5, ProgressPercent: 100}, nil, true
	}
}

func incompleteEval(t *testing.T) Evaluator {
	t.Helper()
	return func(string) (pattern.Result, *card.Card, bool) {
		return pattern.Result{BestLineLength: 3, ProgressPercent: 60}, nil, true
	}
}

func TestSubmit_CompleteClaimAlwaysPausesForReview(t *testing.T) {
	a := NewArbiter(false)
	c, out := a.Submit("alice", lineSpec, completeEval(t), time.Now())
	require.Equal(t, OutcomeReview, out)
	require.Equal(t, StatusAwaitingReview, c.Status)

	reviewing, ok := a.Reviewing()
	require.True(t, ok)
	require.Same(t, c, reviewing)
}

func TestSubmit_IncompleteClaimRejectedImmediately(t *testing.T) {
	a := NewArbiter(false)
	c, out := a.Submit("alice", lineSpec, incompleteEval(t), time.Now())
	require.Equal(t, OutcomeInvalid, out)
	require.Equal(t, StatusRejected, c.Status)
	require.NotNil(t, c.ResolvedAt)

	_, ok := a.Reviewing()
	require.False(t, ok)
	require.Len(t, a.Archive(), 1)
}

func TestSubmit_NoCardRejected(t *testing.T) {
	a := NewArbiter(false)
	eval := func(string) (pattern.Result, *card.Card, bool) {
		return pattern.Result{}, nil, false
	}
	_, out := a.Submit("ghost", lineSpec, eval, time.Now())
	require.Equal(t, OutcomeInvalid, out)
}

func TestSubmit_AutoAcceptMode(t *testing.T) {
	a := NewArbiter(true)
	c, out := a.Submit("alice", lineSpec, completeEval(t), time.Now())
	require.Equal(t, OutcomeAutoAccepted, out)
	require.Equal(t, StatusAutoAccepted, c.Status)
}

func TestSubmit_AutoAcceptStillReviewsDirtyClaim(t *testing.T) {
	a := NewArbiter(true)
	eval := func(string) (pattern.Result, *card.Card, bool) {
		return pattern.Result{Complete: true, IllegitimateMarked: 2}, nil, true
	}
	_, out := a.Submit("alice", lineSpec, eval, time.Now())
	require.Equal(t, OutcomeReview, out)
}

func TestOnlyOneClaimInReview_SecondQueues(t *testing.T) {
	a := NewArbiter(false)
	_, out := a.Submit("alice", lineSpec, completeEval(t), time.Now())
	require.Equal(t, OutcomeReview, out)

	c, out := a.Submit("bob", lineSpec, completeEval(t), time.Now())
	require.Equal(t, OutcomeQueued, out)
	require.Nil(t, c)
}

func TestResolve_ApproveAndIdempotence(t *testing.T) {
	a := NewArbiter(false)
	a.Submit("alice", lineSpec, completeEval(t), time.Now())

	c, err := a.Resolve(true, "", time.Now())
	require.NoError(t, err)
	require.Equal(t, StatusApproved, c.Status)

	// Resolving again must be a no-op rejection, never double-applied.
	_, err = a.Resolve(true, "", time.Now())
	require.ErrorIs(t, err, ErrNoPendingReview)
}

func TestResolve_RejectKeepsReason(t *testing.T) {
	a := NewArbiter(false)
	a.Submit("alice", lineSpec, completeEval(t), time.Now())

	c, err := a.Resolve(false, "marks do not match playback", time.Now())
	require.NoError(t, err)
	require.Equal(t, StatusRejected, c.Status)
	require.Equal(t, "marks do not match playback", c.Reason)
}

func TestTimeoutFire_RejectsPendingReview(t *testing.T) {
	a := NewArbiter(false)
	a.Submit("alice", lineSpec, completeEval(t), time.Now())
	gen := a.Generation()

	c, fired := a.TimeoutFire(gen, time.Now())
	require.True(t, fired)
	require.Equal(t, StatusRejected, c.Status)
	require.Equal(t, TimeoutReason, c.Reason)
	_, ok := a.Reviewing()
	require.False(t, ok)
}

func TestTimeoutFire_StaleGenerationDropped(t *testing.T) {
	a := NewArbiter(false)
	a.Submit("alice", lineSpec, completeEval(t), time.Now())
	staleGen := a.Generation()
	_, err := a.Resolve(true, "", time.Now())
	require.NoError(t, err)

	// A new review opens with a fresh generation; the old timer fire must
	// not touch it.
	a.Submit("bob", lineSpec, completeEval(t), time.Now())
	_, fired := a.TimeoutFire(staleGen, time.Now())
	require.False(t, fired)

	reviewing, ok := a.Reviewing()
	require.True(t, ok)
	require.Equal(t, "bob", reviewing.ClaimantID)
}

func TestPromoteNext_ReEvaluatesAgainstCurrentState(t *testing.T) {
	a := NewArbiter(false)
	a.Submit("alice", lineSpec, completeEval(t), time.Now())

	// Bob's board was complete at claim time...
	_, out := a.Submit("bob", lineSpec, completeEval(t), time.Now())
	require.Equal(t, OutcomeQueued, out)

	_, err := a.Resolve(false, "nope", time.Now())
	require.NoError(t, err)

	// ...but by review time the state moved; bob is judged on it now.
	c, out, ok := a.PromoteNext(lineSpec, incompleteEval(t), time.Now())
	require.True(t, ok)
	require.Equal(t, OutcomeInvalid, out)
	require.Equal(t, "bob", c.ClaimantID)

	_, _, ok = a.PromoteNext(lineSpec, incompleteEval(t), time.Now())
	require.False(t, ok)
}

func TestPromoteNext_BlockedWhileReviewing(t *testing.T) {
	a := NewArbiter(false)
	a.Submit("alice", lineSpec, completeEval(t), time.Now())
	a.Submit("bob", lineSpec, completeEval(t), time.Now())

	_, _, ok := a.PromoteNext(lineSpec, completeEval(t), time.Now())
	require.False(t, ok)
}

func TestResetRound_DropsReviewAndQueue(t *testing.T) {
	a := NewArbiter(false)
	a.Submit("alice", lineSpec, completeEval(t), time.Now())
	a.Submit("bob", lineSpec, completeEval(t), time.Now())
	gen := a.Generation()

	a.ResetRound()
	_, ok := a.Reviewing()
	require.False(t, ok)
	_, _, promoted := a.PromoteNext(lineSpec, completeEval(t), time.Now())
	require.False(t, promoted)

	_, fired := a.TimeoutFire(gen, time.Now())
	require.False(t, fired)
}
