// Package debuff holds the catalog of move restrictions a player can place on
// the opponent's next turn. A Debuff has two hooks that compose with the move
// generator: a selection veto and a destination filter.
package debuff

import (
	"github.com/justinabrahms/debuffchess/internal/chess"
)

// ID identifies a debuff on the wire and in history entries.
type ID string

const (
	None         ID = "NONE"
	Slowed       ID = "SLOWED"
	Weakened     ID = "WEAKENED"
	Corrupted    ID = "CORRUPTED"
	Frozen       ID = "FROZEN"
	Limited      ID = "LIMITED"
	Shackled     ID = "SHACKLED"
	Pacifist     ID = "PACIFIST"
	Cowardice    ID = "COWARDICE"
	Isolated     ID = "ISOLATED"
	NobilityLock ID = "NOBILITY_LOCK"
	BackRankJail ID = "BACK_RANK_JAIL"
	ShortFuse    ID = "SHORT_FUSE"
	Ghosting     ID = "GHOSTING"
)

// SelectionContext describes the selection being attempted. Selected is the
// square already selected this turn, nil if none.
type SelectionContext struct {
	From     chess.Coord
	Selected *chess.Coord
}

// SelectFunc vetoes starting a move with piece.
type SelectFunc func(piece chess.Piece, ctx SelectionContext, board *chess.Board) bool

// FilterFunc narrows the move generator's destinations for piece on from.
type FilterFunc func(dests []chess.Coord, from chess.Coord, board *chess.Board, piece chess.Piece) []chess.Coord

// Debuff is a stateless restriction. Nil hooks mean "always selectable" and
// "no filtering".
type Debuff struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	canSelect SelectFunc
	filter    FilterFunc
}

func (d Debuff) CanSelect(piece chess.Piece, ctx SelectionContext, board *chess.Board) bool {
	if d.canSelect == nil {
		return true
	}
	return d.canSelect(piece, ctx, board)
}

// Filter returns the surviving destinations. The input slice is not modified.
func (d Debuff) Filter(dests []chess.Coord, from chess.Coord, board *chess.Board, piece chess.Piece) []chess.Coord {
	if d.filter == nil {
		return dests
	}
	return d.filter(dests, from, board, piece)
}

// ValidMoves applies the selection veto, generates pseudo-legal destinations
// and filters them. It is a pure function of its inputs.
func ValidMoves(board *chess.Board, from chess.Coord, d Debuff, ctx SelectionContext) []chess.Coord {
	piece, ok := board.At(from)
	if !ok {
		return nil
	}
	if !d.CanSelect(piece, ctx, board) {
		return nil
	}
	return d.Filter(chess.Destinations(board, from), from, board, piece)
}

func keep(dests []chess.Coord, pred func(chess.Coord) bool) []chess.Coord {
	out := make([]chess.Coord, 0, len(dests))
	for _, to := range dests {
		if pred(to) {
			out = append(out, to)
		}
	}
	return out
}
