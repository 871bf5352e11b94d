package game

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinabrahms/debuffchess/internal/chess"
	"github.com/justinabrahms/debuffchess/internal/debuff"
)

func sq(t *testing.T, s string) chess.Coord {
	t.Helper()
	c, err := chess.ParseCoord(s)
	require.NoError(t, err)
	return c
}

func seeded(seed int64, opts ...Option) *Game {
	return New(append([]Option{WithRand(rand.New(rand.NewSource(seed)))}, opts...)...)
}

// offeringGame returns a game where white has played e2-e4 and is offered id.
func offeringGame(t *testing.T, id debuff.ID) *Game {
	t.Helper()
	for seed := int64(0); seed < 1000; seed++ {
		g := seeded(seed)
		require.True(t, g.Move(sq(t, "e2"), sq(t, "e4")))
		for _, o := range g.Offers() {
			if o == id {
				return g
			}
		}
	}
	t.Fatalf("no seed offered %s", id)
	return nil
}

func TestNewGame(t *testing.T) {
	g := New()

	assert.Equal(t, chess.White, g.Turn())
	assert.Equal(t, AwaitingSelection, g.Phase())
	assert.Equal(t, chess.NoColor, g.Winner())
	assert.Equal(t, debuff.None, g.Debuff(chess.White))
	assert.Equal(t, debuff.None, g.Debuff(chess.Black))
	assert.Empty(t, g.History())
	assert.True(t, g.Board().Equal(chess.NewBoard()))
}

func TestMoveAndDebuffCycle(t *testing.T) {
	g := offeringGame(t, debuff.Pacifist)

	assert.Equal(t, AwaitingDebuffChoice, g.Phase())
	assert.Equal(t, chess.White, g.Turn(), "turn does not pass until a debuff is chosen")

	offers := g.Offers()
	require.Len(t, offers, OfferCount)
	seen := map[debuff.ID]bool{}
	for _, id := range offers {
		assert.NotEqual(t, debuff.None, id)
		assert.False(t, seen[id], "duplicate offer %s", id)
		seen[id] = true
	}

	require.True(t, g.ChooseDebuff(debuff.Pacifist))

	assert.Equal(t, chess.Black, g.Turn())
	assert.Equal(t, AwaitingSelection, g.Phase())
	assert.Equal(t, debuff.Pacifist, g.Debuff(chess.Black))
	assert.Empty(t, g.Offers())

	history := g.History()
	require.Len(t, history, 1)
	assert.Equal(t, "e2-e4", history[0].Notation)
	assert.Equal(t, debuff.None, history[0].Debuff)
	assert.Nil(t, history[0].Captured)

	board := g.Board()
	p, ok := board.At(sq(t, "e4"))
	require.True(t, ok)
	assert.Equal(t, chess.Piece{Type: chess.Pawn, Color: chess.White}, p)
}

func TestChooseDebuffMustBeOffered(t *testing.T) {
	g := seeded(7)
	require.True(t, g.Move(sq(t, "g1"), sq(t, "f3")))

	offered := map[debuff.ID]bool{}
	for _, id := range g.Offers() {
		offered[id] = true
	}
	var missing debuff.ID
	for _, id := range debuff.Default().Pool() {
		if !offered[id] {
			missing = id
			break
		}
	}

	before := g.Snapshot()
	assert.False(t, g.ChooseDebuff(missing))
	assert.False(t, g.ChooseDebuff(debuff.None))
	assert.Empty(t, cmp.Diff(before, g.Snapshot()))
}

func TestRejectionsDoNotMutate(t *testing.T) {
	g := New()
	before := g.Snapshot()

	assert.False(t, g.SelectPiece(sq(t, "e7")), "opponent piece")
	assert.False(t, g.SelectPiece(sq(t, "e4")), "empty square")
	assert.False(t, g.SelectPiece(sq(t, "a1")), "blocked rook")
	assert.False(t, g.Move(sq(t, "e2"), sq(t, "e5")))
	assert.False(t, g.Move(sq(t, "e7"), sq(t, "e5")))
	assert.False(t, g.ChooseDebuff(debuff.Slowed), "no move made yet")
	assert.False(t, g.ApplyRemoteDebuff(debuff.Slowed), "no move made yet")
	assert.False(t, g.ApplyRemoteMove(sq(t, "e2"), sq(t, "e1")))

	assert.Empty(t, cmp.Diff(before, g.Snapshot()))
}

func TestSelectAndDeselect(t *testing.T) {
	g := New()

	require.True(t, g.SelectPiece(sq(t, "g1")))
	assert.Equal(t, AwaitingDestination, g.Phase())
	assert.ElementsMatch(t, []chess.Coord{sq(t, "f3"), sq(t, "h3")}, g.Destinations())

	require.True(t, g.SelectPiece(sq(t, "g1")), "reselecting deselects")
	_, selected := g.Selected()
	assert.False(t, selected)
	assert.Equal(t, AwaitingSelection, g.Phase())
	assert.Empty(t, g.Destinations())

	require.True(t, g.SelectPiece(sq(t, "b1")))
	require.True(t, g.SelectPiece(sq(t, "d2")), "switching selection")
	sel, _ := g.Selected()
	assert.Equal(t, sq(t, "d2"), sel)
}

func TestMoveUsesSelectionDestinations(t *testing.T) {
	g := New()
	require.True(t, g.SelectPiece(sq(t, "e2")))

	assert.False(t, g.Move(sq(t, "e2"), sq(t, "e5")))
	assert.True(t, g.Move(sq(t, "e2"), sq(t, "e3")))
	assert.Equal(t, AwaitingDebuffChoice, g.Phase())
}

func TestRemoteCycle(t *testing.T) {
	g := New()

	require.True(t, g.ApplyRemoteMove(sq(t, "d2"), sq(t, "d4")))
	assert.Equal(t, AwaitingDebuffChoice, g.Phase())
	assert.Empty(t, g.Offers(), "remote moves draw no offers")

	assert.False(t, g.ChooseDebuff(debuff.Frozen), "nothing offered locally")
	assert.False(t, g.ApplyRemoteDebuff(debuff.None))
	assert.False(t, g.ApplyRemoteDebuff(debuff.ID("BOGUS")))

	require.True(t, g.ApplyRemoteDebuff(debuff.Frozen))
	assert.Equal(t, chess.Black, g.Turn())
	assert.Equal(t, debuff.Frozen, g.Debuff(chess.Black))

	assert.False(t, g.SelectPiece(sq(t, "b8")), "frozen knights")
	assert.False(t, g.ApplyRemoteMove(sq(t, "b8"), sq(t, "c6")), "remote moves are validated too")
	assert.True(t, g.ApplyRemoteMove(sq(t, "d7"), sq(t, "d5")))
}

func TestPacifistEnforcement(t *testing.T) {
	board := chess.MustBoardFromFEN("4k3/8/8/3p4/8/4P3/8/4K3")
	g := New(WithPosition(board, chess.White))

	require.True(t, g.ApplyRemoteMove(sq(t, "e3"), sq(t, "e4")))
	require.True(t, g.ApplyRemoteDebuff(debuff.Pacifist))

	assert.Equal(t, []chess.Coord{sq(t, "d4")}, g.ValidMoves(sq(t, "d5")))
	assert.False(t, g.Move(sq(t, "d5"), sq(t, "e4")))
	require.True(t, g.Move(sq(t, "d5"), sq(t, "d4")))

	history := g.History()
	require.Len(t, history, 2)
	assert.Equal(t, debuff.Pacifist, history[1].Debuff)
}

func TestSlowedPinsFirstTouchedPiece(t *testing.T) {
	g := New()
	require.True(t, g.ApplyRemoteMove(sq(t, "e2"), sq(t, "e4")))
	require.True(t, g.ApplyRemoteDebuff(debuff.Slowed))

	require.True(t, g.SelectPiece(sq(t, "b8")))
	require.True(t, g.SelectPiece(sq(t, "b8")), "deselect")
	assert.False(t, g.SelectPiece(sq(t, "e7")), "only the first touched piece may move")
	assert.False(t, g.Move(sq(t, "e7"), sq(t, "e5")))
	assert.True(t, g.SelectPiece(sq(t, "b8")))
	assert.True(t, g.Move(sq(t, "b8"), sq(t, "c6")))
}

func TestKingCaptureEndsGame(t *testing.T) {
	board := chess.MustBoardFromFEN("4k3/4R3/8/8/8/8/8/4K3")
	g := seeded(1, WithPosition(board, chess.White))

	require.True(t, g.Move(sq(t, "e7"), sq(t, "e8")))

	assert.Equal(t, GameOver, g.Phase())
	assert.Equal(t, chess.White, g.Winner())
	assert.Empty(t, g.Offers(), "no debuff choice after a winning move")

	history := g.History()
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Captured)
	assert.Equal(t, chess.King, history[0].Captured.Type)
	assert.Equal(t, "Re7xe8", history[0].Notation)

	before := g.Snapshot()
	assert.False(t, g.SelectPiece(sq(t, "e1")))
	assert.False(t, g.Move(sq(t, "e1"), sq(t, "d1")))
	assert.False(t, g.ApplyRemoteMove(sq(t, "e1"), sq(t, "d1")))
	assert.False(t, g.ChooseDebuff(debuff.Slowed))
	assert.Empty(t, cmp.Diff(before, g.Snapshot()))
}

func TestMatchEndsWithTheLastKing(t *testing.T) {
	var board chess.Board
	board.Set(sq(t, "e8"), chess.Piece{Type: chess.King, Color: chess.Black})
	board.Set(sq(t, "a8"), chess.Piece{Type: chess.King, Color: chess.Black})
	board.Set(sq(t, "e7"), chess.Piece{Type: chess.Rook, Color: chess.White})
	board.Set(sq(t, "e1"), chess.Piece{Type: chess.King, Color: chess.White})
	g := seeded(1, WithPosition(board, chess.White))

	require.True(t, g.Move(sq(t, "e7"), sq(t, "e8")))
	assert.Equal(t, AwaitingDebuffChoice, g.Phase(), "black still has a king")
	assert.Equal(t, chess.NoColor, g.Winner())
	require.True(t, g.ApplyRemoteDebuff(debuff.Frozen))

	require.True(t, g.Move(sq(t, "a8"), sq(t, "b8")))
	require.True(t, g.ApplyRemoteDebuff(debuff.Frozen))

	require.True(t, g.Move(sq(t, "e8"), sq(t, "b8")))
	assert.Equal(t, GameOver, g.Phase())
	assert.Equal(t, chess.White, g.Winner())
	board = g.Board()
	assert.Empty(t, board.Kings(chess.Black))
}

func TestDeclareWinner(t *testing.T) {
	g := New()

	assert.False(t, g.DeclareWinner(chess.NoColor))
	require.True(t, g.DeclareWinner(chess.Black))
	assert.Equal(t, GameOver, g.Phase())
	assert.Equal(t, chess.Black, g.Winner())

	assert.True(t, g.DeclareWinner(chess.Black), "repeating the same result is accepted")
	assert.False(t, g.DeclareWinner(chess.White))
	assert.Equal(t, chess.Black, g.Winner())
}

func TestReset(t *testing.T) {
	g := offeringGame(t, debuff.Ghosting)
	require.True(t, g.ChooseDebuff(debuff.Ghosting))
	require.True(t, g.Move(sq(t, "g8"), sq(t, "f6")))

	g.Reset()

	assert.Empty(t, cmp.Diff(New().Snapshot(), g.Snapshot()))
}

func TestBoardBefore(t *testing.T) {
	g := New()
	require.True(t, g.ApplyRemoteMove(sq(t, "e2"), sq(t, "e4")))
	require.True(t, g.ApplyRemoteDebuff(debuff.Corrupted))
	require.True(t, g.ApplyRemoteMove(sq(t, "e7"), sq(t, "e5")))

	first, ok := g.BoardBefore(0)
	require.True(t, ok)
	assert.True(t, first.Equal(chess.NewBoard()))

	second, ok := g.BoardBefore(1)
	require.True(t, ok)
	p, occupied := second.At(sq(t, "e4"))
	assert.True(t, occupied)
	assert.Equal(t, chess.White, p.Color)

	first.Clear(sq(t, "e1"))
	again, _ := g.BoardBefore(0)
	assert.True(t, again.Equal(chess.NewBoard()), "history boards are copies")

	_, ok = g.BoardBefore(2)
	assert.False(t, ok)
	_, ok = g.BoardBefore(-1)
	assert.False(t, ok)
}

func TestSnapshotIsDetached(t *testing.T) {
	g := seeded(3)
	require.True(t, g.Move(sq(t, "a2"), sq(t, "a3")))

	snap := g.Snapshot()
	original := snap.Offers[0]
	snap.Offers[0] = debuff.None
	snap.Board.Clear(sq(t, "a3"))
	snap.Debuffs[chess.White] = debuff.Frozen

	assert.Equal(t, original, g.Offers()[0])
	board := g.Board()
	_, occupied := board.At(sq(t, "a3"))
	assert.True(t, occupied)
	assert.Equal(t, debuff.None, g.Debuff(chess.White))
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/8/P7/1PPPPPPP/RNBQKBNR w - - 0 1", snap.FEN)
}
