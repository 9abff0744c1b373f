package pattern

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clipbingo/clip-bingo-backend/internal/card"
)

// testCard assigns clip "clip-r-c" to position "r-c" so tests can reason
// about clips by position.
func testCard(t *testing.T) *card.Card {
	t.Helper()
	var squares [card.SquareCount]card.Square
	i := 0
	for r := 0; r < card.GridSize; r++ {
		for c := 0; c < card.GridSize; c++ {
			squares[i] = card.Square{
				Position: card.PosOf(r, c),
				ClipID:   fmt.Sprintf("clip-%d-%d", r, c),
			}
			i++
		}
	}
	c, err := card.FromSquares(squares)
	require.NoError(t, err)
	return c
}

func clipAt(t *testing.T, c *card.Card, pos card.Pos) string {
	t.Helper()
	id, ok := c.ClipAt(pos)
	require.True(t, ok)
	return id
}

// markPlayed marks the given positions and records their clips as played.
func markPlayed(t *testing.T, c *card.Card, marked map[card.Pos]bool, played map[string]bool, positions ...card.Pos) {
	t.Helper()
	for _, p := range positions {
		marked[p] = true
		played[clipAt(t, c, p)] = true
	}
}

func TestEvaluate_LineRowComplete(t *testing.T) {
	c := testCard(t)
	marked := map[card.Pos]bool{}
	played := map[string]bool{}
	markPlayed(t, c, marked, played,
		card.PosOf(2, 0), card.PosOf(2, 1), card.PosOf(2, 2), card.PosOf(2, 3), card.PosOf(2, 4))

	res := Evaluate(c, marked, played, Spec{Kind: Line})
	require.True(t, res.Complete)
	require.Equal(t, 5, res.BestLineLength)
	require.Equal(t, 100, res.ProgressPercent)
	require.Len(t, res.WinningPositions, 5)
	require.Zero(t, res.IllegitimateMarked)
}

func TestEvaluate_LineColumnAndDiagonal(t *testing.T) {
	for name, positions := range map[string][]card.Pos{
		"column": {card.PosOf(0, 3), card.PosOf(1, 3), card.PosOf(2, 3), card.PosOf(3, 3), card.PosOf(4, 3)},
		"diag":   {card.PosOf(0, 0), card.PosOf(1, 1), card.PosOf(2, 2), card.PosOf(3, 3), card.PosOf(4, 4)},
		"anti":   {card.PosOf(0, 4), card.PosOf(1, 3), card.PosOf(2, 2), card.PosOf(3, 1), card.PosOf(4, 0)},
	} {
		t.Run(name, func(t *testing.T) {
			c := testCard(t)
			marked := map[card.Pos]bool{}
			played := map[string]bool{}
			markPlayed(t, c, marked, played, positions...)

			res := Evaluate(c, marked, played, Spec{Kind: Line})
			require.True(t, res.Complete)
		})
	}
}

func TestEvaluate_LinePartialProgress(t *testing.T) {
	c := testCard(t)
	marked := map[card.Pos]bool{}
	played := map[string]bool{}
	markPlayed(t, c, marked, played, card.PosOf(1, 0), card.PosOf(1, 1), card.PosOf(1, 2))

	res := Evaluate(c, marked, played, Spec{Kind: Line})
	require.False(t, res.Complete)
	require.Equal(t, 3, res.BestLineLength)
	require.Equal(t, 60, res.ProgressPercent)
	require.Empty(t, res.WinningPositions)
}

func TestEvaluate_IllegitimateMarksNeverCount(t *testing.T) {
	c := testCard(t)
	marked := map[card.Pos]bool{}
	played := map[string]bool{}
	// Four clips genuinely played, fifth square marked speculatively.
	markPlayed(t, c, marked, played,
		card.PosOf(0, 0), card.PosOf(0, 1), card.PosOf(0, 2), card.PosOf(0, 3))
	marked[card.PosOf(0, 4)] = true // clip never played

	res := Evaluate(c, marked, played, Spec{Kind: Line})
	require.False(t, res.Complete)
	require.Equal(t, 4, res.BestLineLength)
	require.Equal(t, 4, res.LegitimateMarked)
	require.Equal(t, 1, res.IllegitimateMarked)
}

func TestEvaluate_FourCorners(t *testing.T) {
	c := testCard(t)
	marked := map[card.Pos]bool{}
	played := map[string]bool{}
	markPlayed(t, c, marked, played, card.PosOf(0, 0), card.PosOf(0, 4), card.PosOf(4, 0))

	res := Evaluate(c, marked, played, Spec{Kind: FourCorners})
	require.False(t, res.Complete)
	require.Equal(t, 75, res.ProgressPercent)

	markPlayed(t, c, marked, played, card.PosOf(4, 4))
	res = Evaluate(c, marked, played, Spec{Kind: FourCorners})
	require.True(t, res.Complete)
	require.Len(t, res.WinningPositions, 4)
}

func TestEvaluate_XNeedsBothDiagonals(t *testing.T) {
	c := testCard(t)
	marked := map[card.Pos]bool{}
	played := map[string]bool{}
	for i := 0; i < card.GridSize; i++ {
		markPlayed(t, c, marked, played, card.PosOf(i, i))
	}
	res := Evaluate(c, marked, played, Spec{Kind: X})
	require.False(t, res.Complete)

	for i := 0; i < card.GridSize; i++ {
		markPlayed(t, c, marked, played, card.PosOf(i, card.GridSize-1-i))
	}
	res = Evaluate(c, marked, played, Spec{Kind: X})
	require.True(t, res.Complete)
	// Center is shared between the diagonals.
	require.Len(t, res.WinningPositions, 9)
}

func TestEvaluate_FullCard24Of25(t *testing.T) {
	c := testCard(t)
	marked := map[card.Pos]bool{}
	played := map[string]bool{}
	all := card.AllPositions()
	markPlayed(t, c, marked, played, all[:24]...)

	res := Evaluate(c, marked, played, Spec{Kind: FullCard})
	require.False(t, res.Complete)
	require.Equal(t, 96, res.ProgressPercent)

	markPlayed(t, c, marked, played, all[24])
	res = Evaluate(c, marked, played, Spec{Kind: FullCard})
	require.True(t, res.Complete)
}

func TestEvaluate_CustomMaskRestricted(t *testing.T) {
	c := testCard(t)
	mask := []card.Pos{card.PosOf(0, 0), card.PosOf(2, 2), card.PosOf(4, 4)}
	marked := map[card.Pos]bool{}
	played := map[string]bool{}

	// Legitimate marks outside the mask must not advance a custom pattern.
	markPlayed(t, c, marked, played, card.PosOf(1, 1), card.PosOf(3, 3))
	res := Evaluate(c, marked, played, Spec{Kind: Custom, Mask: mask})
	require.False(t, res.Complete)
	require.Equal(t, 0, res.ProgressPercent)

	markPlayed(t, c, marked, played, mask[0], mask[1])
	res = Evaluate(c, marked, played, Spec{Kind: Custom, Mask: mask})
	require.False(t, res.Complete)
	require.Equal(t, 66, res.ProgressPercent)

	markPlayed(t, c, marked, played, mask[2])
	res = Evaluate(c, marked, played, Spec{Kind: Custom, Mask: mask})
	require.True(t, res.Complete)
	require.Equal(t, 100, res.ProgressPercent)
}

func TestEvaluate_EmptyCustomMaskNeverCompletes(t *testing.T) {
	c := testCard(t)
	marked := map[card.Pos]bool{}
	played := map[string]bool{}
	markPlayed(t, c, marked, played, card.AllPositions()...)

	res := Evaluate(c, marked, played, Spec{Kind: Custom})
	require.False(t, res.Complete)
}

func TestReview_Verdicts(t *testing.T) {
	c := testCard(t)
	marked := map[card.Pos]bool{}
	played := map[string]bool{}
	legit := card.PosOf(0, 0)
	illegit := card.PosOf(0, 1)
	unmarked := card.PosOf(0, 2)

	markPlayed(t, c, marked, played, legit)
	marked[illegit] = true

	rows := Review(c, marked, played, []card.Pos{legit, illegit, unmarked})
	require.Len(t, rows, 3)
	require.Equal(t, VerdictLegitimate, rows[0].Verdict)
	require.Equal(t, VerdictIllegitimate, rows[1].Verdict)
	require.Equal(t, VerdictUnmarked, rows[2].Verdict)
}
