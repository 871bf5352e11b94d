package chess

import (
	"encoding/json"
	"fmt"
)

// Size is the number of rows and columns on the board.
const Size = 8

type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

// Opponent returns the other side. NoColor has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// MarshalText encodes the color as the single letter peers exchange ("w"/"b").
func (c Color) MarshalText() ([]byte, error) {
	switch c {
	case White:
		return []byte("w"), nil
	case Black:
		return []byte("b"), nil
	default:
		return nil, fmt.Errorf("cannot encode color %d", c)
	}
}

func (c *Color) UnmarshalText(text []byte) error {
	switch string(text) {
	case "w", "white":
		*c = White
	case "b", "black":
		*c = Black
	default:
		return fmt.Errorf("invalid color %q", text)
	}
	return nil
}

type PieceType uint8

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var pieceLetters = map[PieceType]string{
	Pawn:   "p",
	Knight: "n",
	Bishop: "b",
	Rook:   "r",
	Queen:  "q",
	King:   "k",
}

func (t PieceType) String() string {
	switch t {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

func (t PieceType) MarshalText() ([]byte, error) {
	letter, ok := pieceLetters[t]
	if !ok {
		return nil, fmt.Errorf("cannot encode piece type %d", t)
	}
	return []byte(letter), nil
}

func (t *PieceType) UnmarshalText(text []byte) error {
	for pt, letter := range pieceLetters {
		if letter == string(text) || pt.String() == string(text) {
			*t = pt
			return nil
		}
	}
	return fmt.Errorf("invalid piece type %q", text)
}

// Piece is an immutable value. The zero Piece marks an empty square.
type Piece struct {
	Type  PieceType `json:"type"`
	Color Color     `json:"color"`
}

func (p Piece) IsZero() bool {
	return p.Type == NoPieceType
}

func (p Piece) String() string {
	if p.IsZero() {
		return "empty"
	}
	return p.Color.String() + " " + p.Type.String()
}

// Coord addresses a square: row 0 is black's back rank, col 0 is file a.
type Coord struct {
	Row int
	Col int
}

func (c Coord) Valid() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

// String returns the algebraic display form, e.g. "e2".
func (c Coord) String() string {
	if !c.Valid() {
		return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
	}
	return fmt.Sprintf("%c%d", 'a'+c.Col, Size-c.Row)
}

// ParseCoord parses algebraic notation ("e2") into a Coord.
func ParseCoord(s string) (Coord, error) {
	if len(s) != 2 {
		return Coord{}, fmt.Errorf("invalid square notation %q", s)
	}
	c := Coord{Row: Size - int(s[1]-'0'), Col: int(s[0] - 'a')}
	if !c.Valid() {
		return Coord{}, fmt.Errorf("invalid square notation %q", s)
	}
	return c, nil
}

// MarshalJSON encodes the coordinate as [row, col].
func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("coordinate must be [row, col]: %w", err)
	}
	*c = Coord{Row: pair[0], Col: pair[1]}
	return nil
}

// MaterialCount represents the material count for both sides
type MaterialCount struct {
	White int `json:"white"`
	Black int `json:"black"`
}

// StandardPieceValues maps piece types to their standard values
var StandardPieceValues = map[PieceType]int{
	Pawn:   1,
	Knight: 3,
	Bishop: 3,
	Rook:   5,
	Queen:  9,
	King:   0, // King has no material value
}
