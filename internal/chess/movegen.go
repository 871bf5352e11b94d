package chess

import "strings"

type offset struct {
	dr, dc int
}

var (
	rookDirections   = []offset{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	bishopDirections = []offset{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	queenDirections  = append(append([]offset{}, bishopDirections...), rookDirections...)
	knightOffsets    = []offset{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets      = []offset{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
)

// Forward is the row delta of a pawn advance: white moves toward row 0.
func Forward(color Color) int {
	if color == White {
		return -1
	}
	return 1
}

// PawnStartRow is the row a color's pawns start on.
func PawnStartRow(color Color) int {
	if color == White {
		return 6
	}
	return 1
}

// BackRankRow is the row a color's pieces start on.
func BackRankRow(color Color) int {
	if color == White {
		return 7
	}
	return 0
}

// Destinations returns the pseudo-legal destinations of the piece on from.
// Leaving one's own king capturable is not checked.
func Destinations(b *Board, from Coord) []Coord {
	piece, ok := b.At(from)
	if !ok {
		return nil
	}

	switch piece.Type {
	case Pawn:
		return pawnDestinations(b, from, piece.Color)
	case Knight:
		return stepDestinations(b, from, piece.Color, knightOffsets)
	case King:
		return stepDestinations(b, from, piece.Color, kingOffsets)
	case Rook:
		return slidingDestinations(b, from, piece.Color, rookDirections)
	case Bishop:
		return slidingDestinations(b, from, piece.Color, bishopDirections)
	case Queen:
		return slidingDestinations(b, from, piece.Color, queenDirections)
	}
	return nil
}

func pawnDestinations(b *Board, from Coord, color Color) []Coord {
	var moves []Coord
	dir := Forward(color)

	one := Coord{Row: from.Row + dir, Col: from.Col}
	if _, occupied := b.At(one); one.Valid() && !occupied {
		moves = append(moves, one)

		two := Coord{Row: from.Row + 2*dir, Col: from.Col}
		if _, occupied := b.At(two); from.Row == PawnStartRow(color) && two.Valid() && !occupied {
			moves = append(moves, two)
		}
	}

	for _, dc := range []int{-1, 1} {
		target := Coord{Row: from.Row + dir, Col: from.Col + dc}
		if p, occupied := b.At(target); occupied && p.Color != color {
			moves = append(moves, target)
		}
	}
	return moves
}

func stepDestinations(b *Board, from Coord, color Color, offsets []offset) []Coord {
	var moves []Coord
	for _, o := range offsets {
		target := Coord{Row: from.Row + o.dr, Col: from.Col + o.dc}
		if !target.Valid() {
			continue
		}
		if p, occupied := b.At(target); occupied && p.Color == color {
			continue
		}
		moves = append(moves, target)
	}
	return moves
}

func slidingDestinations(b *Board, from Coord, color Color, directions []offset) []Coord {
	var moves []Coord
	for _, o := range directions {
		target := Coord{Row: from.Row + o.dr, Col: from.Col + o.dc}
		for target.Valid() {
			if p, occupied := b.At(target); occupied {
				if p.Color != color {
					moves = append(moves, target)
				}
				break
			}
			moves = append(moves, target)
			target = Coord{Row: target.Row + o.dr, Col: target.Col + o.dc}
		}
	}
	return moves
}

// Chebyshev returns the king-move distance between two squares.
func Chebyshev(a, b Coord) int {
	dr := abs(a.Row - b.Row)
	dc := abs(a.Col - b.Col)
	if dr > dc {
		return dr
	}
	return dc
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Notation renders a move for the history list: piece letter (omitted for
// pawns), origin, "x" for a capture or "-" otherwise, destination.
func Notation(b *Board, from, to Coord) string {
	piece, _ := b.At(from)
	notation := ""
	if piece.Type != Pawn {
		notation += strings.ToUpper(pieceLetters[piece.Type])
	}
	notation += from.String()
	if _, captured := b.At(to); captured {
		notation += "x"
	} else {
		notation += "-"
	}
	return notation + to.String()
}
