package game

import (
	"github.com/justinabrahms/debuffchess/internal/chess"
	"github.com/justinabrahms/debuffchess/internal/debuff"
)

// Snapshot is a detached copy of the match state for rendering and for the
// HTTP API.
type Snapshot struct {
	Board        chess.Board               `json:"board"`
	FEN          string                    `json:"fen"`
	Turn         chess.Color               `json:"turn"`
	Phase        Phase                     `json:"phase"`
	Debuffs      map[chess.Color]debuff.ID `json:"debuffs"`
	Winner       *chess.Color              `json:"winner,omitempty"`
	Selected     *chess.Coord              `json:"selected,omitempty"`
	Destinations []chess.Coord             `json:"destinations"`
	Offers       []debuff.ID               `json:"offers"`
	History      []Move                    `json:"history"`
	Material     chess.MaterialCount       `json:"material"`
}

func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		Board:        g.board.Clone(),
		FEN:          chess.PositionFEN(&g.board, g.turn),
		Turn:         g.turn,
		Phase:        g.phase,
		Debuffs:      make(map[chess.Color]debuff.ID, len(g.debuffs)),
		Destinations: g.Destinations(),
		Offers:       g.Offers(),
		History:      g.History(),
		Material:     g.board.Material(),
	}
	for color, id := range g.debuffs {
		s.Debuffs[color] = id
	}
	if g.winner != chess.NoColor {
		w := g.winner
		s.Winner = &w
	}
	if sel, ok := g.Selected(); ok {
		s.Selected = &sel
	}
	if s.Destinations == nil {
		s.Destinations = []chess.Coord{}
	}
	if s.Offers == nil {
		s.Offers = []debuff.ID{}
	}
	return s
}
