package chess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sq(t *testing.T, s string) Coord {
	t.Helper()
	c, err := ParseCoord(s)
	require.NoError(t, err)
	return c
}

func squares(t *testing.T, names ...string) []Coord {
	t.Helper()
	out := make([]Coord, 0, len(names))
	for _, n := range names {
		out = append(out, sq(t, n))
	}
	return out
}

func TestDestinationsOnEmptyBoard(t *testing.T) {
	center := Coord{Row: 4, Col: 4}
	tests := []struct {
		name  string
		piece Piece
		from  Coord
		count int
	}{
		{"Rook in the center", Piece{Rook, White}, center, 14},
		{"Bishop in the center", Piece{Bishop, White}, center, 13},
		{"Queen in the center", Piece{Queen, Black}, center, 27},
		{"Knight in the center", Piece{Knight, White}, center, 8},
		{"King in the center", Piece{King, Black}, center, 8},
		{"Knight in the corner", Piece{Knight, White}, Coord{0, 0}, 2},
		{"King in the corner", Piece{King, White}, Coord{7, 7}, 3},
		{"Rook in the corner", Piece{Rook, Black}, Coord{0, 0}, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Board
			b.Set(tt.from, tt.piece)

			moves := Destinations(&b, tt.from)
			assert.Len(t, moves, tt.count)
			for _, m := range moves {
				assert.True(t, m.Valid(), "destination %v off board", m)
				assert.NotEqual(t, tt.from, m)
			}
		})
	}
}

func TestRookCoversRankAndFile(t *testing.T) {
	var b Board
	from := Coord{Row: 4, Col: 4}
	b.Set(from, Piece{Rook, White})

	var want []Coord
	for i := 0; i < Size; i++ {
		if i != 4 {
			want = append(want, Coord{Row: 4, Col: i}, Coord{Row: i, Col: 4})
		}
	}
	assert.ElementsMatch(t, want, Destinations(&b, from))
}

func TestSlidingCaptureAndBlock(t *testing.T) {
	var b Board
	from := sq(t, "d4")
	b.Set(from, Piece{Rook, White})
	b.Set(sq(t, "d6"), Piece{Pawn, Black}) // enemy: included, ray stops
	b.Set(sq(t, "f4"), Piece{Knight, White}) // own: excluded, ray stops

	moves := Destinations(&b, from)
	assert.Contains(t, moves, sq(t, "d6"))
	assert.NotContains(t, moves, sq(t, "d7"))
	assert.Contains(t, moves, sq(t, "e4"))
	assert.NotContains(t, moves, sq(t, "f4"))
	assert.NotContains(t, moves, sq(t, "g4"))
	assert.ElementsMatch(t, squares(t, "d5", "d6", "d3", "d2", "d1", "c4", "b4", "a4", "e4"), moves)
}

func TestPawnDestinations(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		from string
		want []string
	}{
		{
			name: "White pawn double step from start",
			fen:  StartingFEN,
			from: "e2",
			want: []string{"e3", "e4"},
		},
		{
			name: "Black pawn double step from start",
			fen:  StartingFEN,
			from: "d7",
			want: []string{"d6", "d5"},
		},
		{
			name: "No double step off the start rank",
			fen:  "4k3/8/8/8/8/4P3/8/4K3",
			from: "e3",
			want: []string{"e4"},
		},
		{
			name: "Blocked pawn cannot advance",
			fen:  "4k3/8/8/8/4p3/4P3/8/4K3",
			from: "e3",
			want: []string{},
		},
		{
			name: "Double step needs both squares empty",
			fen:  "4k3/8/8/8/4n3/8/4P3/4K3",
			from: "e2",
			want: []string{"e3"},
		},
		{
			name: "Diagonal captures only onto enemies",
			fen:  "4k3/8/8/3p1N2/4P3/8/8/4K3",
			from: "e4",
			want: []string{"e5", "d5"},
		},
		{
			name: "Black pawn captures toward row 7",
			fen:  "4k3/8/8/3p4/2P1P3/8/8/4K3",
			from: "d5",
			want: []string{"d4", "c4", "e4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := BoardFromFEN(tt.fen)
			require.NoError(t, err)
			assert.ElementsMatch(t, squares(t, tt.want...), Destinations(&b, sq(t, tt.from)))
		})
	}
}

func TestKnightJumpsOverPieces(t *testing.T) {
	b := NewBoard()
	assert.ElementsMatch(t, squares(t, "a3", "c3"), Destinations(&b, sq(t, "b1")))
	assert.ElementsMatch(t, squares(t, "f6", "h6"), Destinations(&b, sq(t, "g8")))
}

func TestBlockedPiecesInStartingPosition(t *testing.T) {
	b := NewBoard()
	for _, name := range []string{"a1", "c1", "d1", "e1", "f1", "h1", "a8", "d8", "e8"} {
		assert.Empty(t, Destinations(&b, sq(t, name)), name)
	}
}

func TestDestinationsOfEmptySquare(t *testing.T) {
	b := NewBoard()
	assert.Empty(t, Destinations(&b, sq(t, "e4")))
	assert.Empty(t, Destinations(&b, Coord{Row: 9, Col: 0}))
}

func TestChebyshev(t *testing.T) {
	assert.Equal(t, 0, Chebyshev(Coord{3, 3}, Coord{3, 3}))
	assert.Equal(t, 2, Chebyshev(Coord{6, 4}, Coord{4, 4}))
	assert.Equal(t, 7, Chebyshev(Coord{0, 0}, Coord{7, 5}))
	assert.Equal(t, 2, Chebyshev(Coord{7, 1}, Coord{5, 2}))
}

func TestNotation(t *testing.T) {
	b, err := BoardFromFEN("4k3/3r4/8/8/8/8/4P3/3QKN2")
	require.NoError(t, err)

	assert.Equal(t, "e2-e4", Notation(&b, sq(t, "e2"), sq(t, "e4")))
	assert.Equal(t, "Qd1xd7", Notation(&b, sq(t, "d1"), sq(t, "d7")))
	assert.Equal(t, "Nf1-g3", Notation(&b, sq(t, "f1"), sq(t, "g3")))
	assert.Equal(t, "Ke1-f2", Notation(&b, sq(t, "e1"), sq(t, "f2")))
}
