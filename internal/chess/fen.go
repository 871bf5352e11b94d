package chess

import (
	"fmt"
	"strings"

	notnil "github.com/notnil/chess"
)

// StartingFEN is the piece placement of NewBoard.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

var (
	toNotnilType = map[PieceType]notnil.PieceType{
		Pawn:   notnil.Pawn,
		Knight: notnil.Knight,
		Bishop: notnil.Bishop,
		Rook:   notnil.Rook,
		Queen:  notnil.Queen,
		King:   notnil.King,
	}
	fromNotnilType = map[notnil.PieceType]PieceType{
		notnil.Pawn:   Pawn,
		notnil.Knight: Knight,
		notnil.Bishop: Bishop,
		notnil.Rook:   Rook,
		notnil.Queen:  Queen,
		notnil.King:   King,
	}
)

func toNotnilSquare(c Coord) notnil.Square {
	return notnil.Square((Size-1-c.Row)*Size + c.Col)
}

func fromNotnilSquare(sq notnil.Square) Coord {
	return Coord{Row: Size - 1 - int(sq.Rank()), Col: int(sq.File())}
}

func toNotnilColor(c Color) notnil.Color {
	if c == White {
		return notnil.White
	}
	return notnil.Black
}

func fromNotnilColor(c notnil.Color) Color {
	switch c {
	case notnil.White:
		return White
	case notnil.Black:
		return Black
	default:
		return NoColor
	}
}

// FEN returns the piece-placement field of the board in FEN.
func (b *Board) FEN() string {
	squares := make(map[notnil.Square]notnil.Piece)
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			p := b[row][col]
			if p.IsZero() {
				continue
			}
			c := Coord{Row: row, Col: col}
			squares[toNotnilSquare(c)] = notnil.NewPiece(toNotnilType[p.Type], toNotnilColor(p.Color))
		}
	}
	return notnil.NewBoard(squares).String()
}

// PositionFEN returns a full FEN for the board with turn to move. Castling
// and en passant do not exist in this rule set, so those fields are "-".
func PositionFEN(b *Board, turn Color) string {
	side := "w"
	if turn == Black {
		side = "b"
	}
	return fmt.Sprintf("%s %s - - 0 1", b.FEN(), side)
}

// ParseFEN decodes a full FEN, or a bare piece-placement field, into a board
// and the side to move (white for a bare placement).
func ParseFEN(fen string) (Board, Color, error) {
	fields := strings.Fields(fen)
	if len(fields) == 1 {
		fen = fields[0] + " w - - 0 1"
	}

	var pos notnil.Position
	if err := pos.UnmarshalText([]byte(fen)); err != nil {
		return Board{}, NoColor, fmt.Errorf("invalid FEN: %w", err)
	}

	var b Board
	for sq, p := range pos.Board().SquareMap() {
		pt, ok := fromNotnilType[p.Type()]
		if !ok {
			continue
		}
		b.Set(fromNotnilSquare(sq), Piece{Type: pt, Color: fromNotnilColor(p.Color())})
	}
	return b, fromNotnilColor(pos.Turn()), nil
}

// BoardFromFEN is ParseFEN without the side to move.
func BoardFromFEN(fen string) (Board, error) {
	b, _, err := ParseFEN(fen)
	return b, err
}

// MustBoardFromFEN panics on an invalid FEN. Intended for fixtures.
func MustBoardFromFEN(fen string) Board {
	b, err := BoardFromFEN(fen)
	if err != nil {
		panic(err)
	}
	return b
}
