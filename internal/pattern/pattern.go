package pattern

import (
	"errors"

	"github.com/clipbingo/clip-bingo-backend/internal/card"
)

var ErrInvalidPatternClaim = errors.New("claimed pattern is not complete")

type Kind string

const (
	Line        Kind = "line"
	FourCorners Kind = "four_corners"
	X           Kind = "x"
	FullCard    Kind = "full_card"
	Custom      Kind = "custom"
)

// Spec is the room-wide win pattern. Mask is only meaningful for Custom.
type Spec struct {
	Kind Kind       `json:"kind"`
	Mask []card.Pos `json:"mask,omitempty"`
}

// Result reports completion and partial progress for one evaluation.
// LegitimateMarked/IllegitimateMarked count over the whole card so the
// host UI can flag speculative marks; progress is pattern-scoped.
type Result struct {
	Complete           bool
	LegitimateMarked   int
	IllegitimateMarked int
	BestLineLength     int
	ProgressPercent    int
	WinningPositions   []card.Pos
}

// SquareVerdict tags one reviewed position for the host audit view.
type SquareVerdict string

const (
	VerdictLegitimate   SquareVerdict = "legitimate"
	VerdictIllegitimate SquareVerdict = "illegitimate"
	VerdictUnmarked     SquareVerdict = "unmarked"
)

type ReviewSquare struct {
	Position card.Pos      `json:"position"`
	ClipID   string        `json:"clip_id"`
	Verdict  SquareVerdict `json:"verdict"`
}

func lines() [][]card.Pos {
	out := make([][]card.Pos, 0, 12)
	for r := 0; r < card.GridSize; r++ {
		row := make([]card.Pos, card.GridSize)
		for c := 0; c < card.GridSize; c++ {
			row[c] = card.PosOf(r, c)
		}
		out = append(out, row)
	}
	for c := 0; c < card.GridSize; c++ {
		col := make([]card.Pos, card.GridSize)
		for r := 0; r < card.GridSize; r++ {
			col[r] = card.PosOf(r, c)
		}
		out = append(out, col)
	}
	diag, anti := make([]card.Pos, card.GridSize), make([]card.Pos, card.GridSize)
	for i := 0; i < card.GridSize; i++ {
		diag[i] = card.PosOf(i, i)
		anti[i] = card.PosOf(i, card.GridSize-1-i)
	}
	return append(out, diag, anti)
}

func corners() []card.Pos {
	return []card.Pos{
		card.PosOf(0, 0), card.PosOf(0, card.GridSize-1),
		card.PosOf(card.GridSize-1, 0), card.PosOf(card.GridSize-1, card.GridSize-1),
	}
}

// xPositions is both diagonals; the center is shared, 9 distinct positions.
func xPositions() []card.Pos {
	seen := make(map[card.Pos]bool)
	out := make([]card.Pos, 0, 9)
	for i := 0; i < card.GridSize; i++ {
		for _, p := range []card.Pos{card.PosOf(i, i), card.PosOf(i, card.GridSize-1-i)} {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Evaluate decides completion of spec over c given the authoritative marked
// set and the room's played-clip log. A square is legitimate iff it is
// marked AND its clip has been confirmed played; illegitimate marks are
// flagged but never advance a pattern.
func Evaluate(c *card.Card, marked map[card.Pos]bool, played map[string]bool, spec Spec) Result {
	legit := make(map[card.Pos]bool, len(marked))
	var res Result
	for pos := range marked {
		if !marked[pos] {
			continue
		}
		clip, ok := c.ClipAt(pos)
		if !ok {
			continue
		}
		if played[clip] {
			legit[pos] = true
			res.LegitimateMarked++
		} else {
			res.IllegitimateMarked++
		}
	}

	best := 0
	var bestComplete []card.Pos
	for _, line := range lines() {
		n := countLegit(line, legit)
		if n > best {
			best = n
		}
		if n == len(line) && bestComplete == nil {
			bestComplete = line
		}
	}
	res.BestLineLength = best

	switch spec.Kind {
	case Line:
		if bestComplete != nil {
			res.Complete = true
			res.WinningPositions = bestComplete
		}
		res.ProgressPercent = percent(best, card.GridSize)
	case FourCorners:
		res.Complete, res.WinningPositions, res.ProgressPercent = region(corners(), legit)
	case X:
		res.Complete, res.WinningPositions, res.ProgressPercent = region(xPositions(), legit)
	case FullCard:
		res.Complete, res.WinningPositions, res.ProgressPercent = region(card.AllPositions(), legit)
	case Custom:
		// Counting is restricted to the mask; never fall back to
		// full-card logic for a custom shape.
		res.Complete, res.WinningPositions, res.ProgressPercent = region(spec.Mask, legit)
		if len(spec.Mask) == 0 {
			res.Complete = false
			res.ProgressPercent = 0
		}
	}
	return res
}

func region(required []card.Pos, legit map[card.Pos]bool) (bool, []card.Pos, int) {
	n := countLegit(required, legit)
	if n == len(required) && n > 0 {
		return true, required, 100
	}
	return false, nil, percent(n, len(required))
}

func countLegit(required []card.Pos, legit map[card.Pos]bool) int {
	n := 0
	for _, p := range required {
		if legit[p] {
			n++
		}
	}
	return n
}

func percent(n, of int) int {
	if of == 0 {
		return 0
	}
	return n * 100 / of
}

// Review builds the per-position audit view for the positions of a
// completed pattern instance, so a host can see exactly which squares
// carried the win and whether each one is trustworthy.
func Review(c *card.Card, marked map[card.Pos]bool, played map[string]bool, winning []card.Pos) []ReviewSquare {
	out := make([]ReviewSquare, 0, len(winning))
	for _, pos := range winning {
		clip, _ := c.ClipAt(pos)
		verdict := VerdictUnmarked
		if marked[pos] {
			if played[clip] {
				verdict = VerdictLegitimate
			} else {
				verdict = VerdictIllegitimate
			}
		}
		out = append(out, ReviewSquare{Position: pos, ClipID: clip, Verdict: verdict})
	}
	return out
}
