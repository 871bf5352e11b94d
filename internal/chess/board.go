package chess

import (
	"encoding/json"
	"fmt"
)

// Board is an 8x8 grid of pieces. It is a value type: assigning or
// passing a Board copies every square, so snapshots never alias.
type Board [Size][Size]Piece

var backRank = [Size]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// NewBoard returns the standard starting position.
func NewBoard() Board {
	var b Board
	for col := 0; col < Size; col++ {
		b[0][col] = Piece{Type: backRank[col], Color: Black}
		b[1][col] = Piece{Type: Pawn, Color: Black}
		b[6][col] = Piece{Type: Pawn, Color: White}
		b[7][col] = Piece{Type: backRank[col], Color: White}
	}
	return b
}

// At returns the piece on c and whether the square is occupied.
// Off-board coordinates are reported as empty.
func (b *Board) At(c Coord) (Piece, bool) {
	if !c.Valid() {
		return Piece{}, false
	}
	p := b[c.Row][c.Col]
	return p, !p.IsZero()
}

// Set places p on c. Setting the zero Piece clears the square.
func (b *Board) Set(c Coord, p Piece) {
	if !c.Valid() {
		return
	}
	b[c.Row][c.Col] = p
}

func (b *Board) Clear(c Coord) {
	b.Set(c, Piece{})
}

// Clone returns an independent copy.
func (b Board) Clone() Board {
	return b
}

func (b Board) Equal(other Board) bool {
	return b == other
}

// Find returns every square holding the given piece, in row-major order.
func (b *Board) Find(p Piece) []Coord {
	var out []Coord
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if b[row][col] == p {
				out = append(out, Coord{Row: row, Col: col})
			}
		}
	}
	return out
}

// Kings returns the squares of the given color's kings.
func (b *Board) Kings(color Color) []Coord {
	return b.Find(Piece{Type: King, Color: color})
}

// Material returns the material count for both sides
func (b *Board) Material() MaterialCount {
	var count MaterialCount
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			p := b[row][col]
			switch p.Color {
			case White:
				count.White += StandardPieceValues[p.Type]
			case Black:
				count.Black += StandardPieceValues[p.Type]
			}
		}
	}
	return count
}

// MaterialBalance is white's material minus black's.
func (b *Board) MaterialBalance() int {
	count := b.Material()
	return count.White - count.Black
}

// MarshalJSON renders the board as rows of pieces, null for empty squares.
func (b Board) MarshalJSON() ([]byte, error) {
	rows := make([][]*Piece, Size)
	for row := 0; row < Size; row++ {
		rows[row] = make([]*Piece, Size)
		for col := 0; col < Size; col++ {
			if p := b[row][col]; !p.IsZero() {
				rows[row][col] = &p
			}
		}
	}
	return json.Marshal(rows)
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var rows [][]*Piece
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != Size {
		return fmt.Errorf("board must have %d rows, got %d", Size, len(rows))
	}
	var out Board
	for row := range rows {
		if len(rows[row]) != Size {
			return fmt.Errorf("row %d must have %d squares, got %d", row, Size, len(rows[row]))
		}
		for col, p := range rows[row] {
			if p != nil {
				out[row][col] = *p
			}
		}
	}
	*b = out
	return nil
}
