package card

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/clipbingo/clip-bingo-backend/internal/tracks"
)

var ErrInsufficientPool = errors.New("track pool smaller than 25")

const (
	GridSize    = 5
	SquareCount = GridSize * GridSize
)

// Pos is a grid position encoded "row-col", row/col in 0..4.
type Pos string

func PosOf(row, col int) Pos {
	return Pos(fmt.Sprintf("%d-%d", row, col))
}

// AllPositions returns the 25 grid positions in row-major order.
func AllPositions() []Pos {
	out := make([]Pos, 0, SquareCount)
	for r := 0; r < GridSize; r++ {
		for c := 0; c < GridSize; c++ {
			out = append(out, PosOf(r, c))
		}
	}
	return out
}

type Square struct {
	Position Pos    `json:"position"`
	ClipID   string `json:"clip_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Marked   bool   `json:"marked"`
}

type Card struct {
	ID      string              `json:"id"`
	Squares [SquareCount]Square `json:"squares"`

	byPos map[Pos]int // position -> Squares index
}

// SquareAt returns the square at pos, or false if pos is off the grid.
func (c *Card) SquareAt(pos Pos) (Square, bool) {
	i, ok := c.byPos[pos]
	if !ok {
		return Square{}, false
	}
	return c.Squares[i], true
}

// ClipAt is SquareAt for callers that only need the clip identity.
func (c *Card) ClipAt(pos Pos) (string, bool) {
	sq, ok := c.SquareAt(pos)
	return sq.ClipID, ok
}

func (c *Card) index() {
	c.byPos = make(map[Pos]int, SquareCount)
	for i := range c.Squares {
		c.byPos[c.Squares[i].Position] = i
	}
}

// Generate builds one card from a deduplicated pool. 25 tracks are drawn
// uniformly without repetition, then bound to the grid by a Fisher-Yates
// shuffle of the position order, so two cards from the same pool are
// independent bijections pool->grid.
func Generate(pool []tracks.Track, rng *rand.Rand) (*Card, error) {
	if len(pool) < SquareCount {
		return nil, fmt.Errorf("%w: got %d tracks", ErrInsufficientPool, len(pool))
	}

	pick := rng.Perm(len(pool))[:SquareCount]

	positions := AllPositions()
	for i := len(positions) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		positions[i], positions[j] = positions[j], positions[i]
	}

	c := &Card{ID: uuid.NewString()}
	for i := 0; i < SquareCount; i++ {
		t := pool[pick[i]]
		c.Squares[i] = Square{
			Position: positions[i],
			ClipID:   t.ClipID,
			Title:    t.Title,
			Artist:   t.Artist,
		}
	}
	c.index()
	return c, nil
}

// FromSquares builds a card from explicit squares, enforcing the same
// invariants Generate guarantees: 25 distinct positions covering the grid,
// 25 distinct clips.
func FromSquares(squares [SquareCount]Square) (*Card, error) {
	positions := make(map[Pos]bool, SquareCount)
	clips := make(map[string]bool, SquareCount)
	for _, sq := range squares {
		positions[sq.Position] = true
		clips[sq.ClipID] = true
	}
	if len(clips) != SquareCount {
		return nil, errors.New("card squares must reference 25 distinct clips")
	}
	for _, p := range AllPositions() {
		if !positions[p] {
			return nil, fmt.Errorf("card is missing grid position %s", p)
		}
	}
	c := &Card{ID: uuid.NewString(), Squares: squares}
	c.index()
	return c, nil
}

// Clone returns an independent copy, used for claim snapshots.
func (c *Card) Clone() *Card {
	cp := &Card{ID: c.ID, Squares: c.Squares}
	cp.index()
	return cp
}
