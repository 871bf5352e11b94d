package debuff

import (
	"github.com/justinabrahms/debuffchess/internal/chess"
)

func banType(t chess.PieceType) SelectFunc {
	return func(piece chess.Piece, _ SelectionContext, _ *chess.Board) bool {
		return piece.Type != t
	}
}

func catalog() []Debuff {
	return []Debuff{
		{
			ID:          None,
			Name:        "None",
			Description: "No active debuff.",
		},
		{
			ID:          Slowed,
			Name:        "Slowed",
			Description: "Opponent can only move the first piece they touch.",
			canSelect: func(_ chess.Piece, ctx SelectionContext, _ *chess.Board) bool {
				return ctx.Selected == nil || *ctx.Selected == ctx.From
			},
		},
		{
			ID:          Weakened,
			Name:        "Weakened",
			Description: "Opponent cannot move their Queen.",
			canSelect:   banType(chess.Queen),
		},
		{
			ID:          Corrupted,
			Name:        "Corrupted",
			Description: "Opponent cannot move pieces more than 2 squares.",
			filter: func(dests []chess.Coord, from chess.Coord, _ *chess.Board, _ chess.Piece) []chess.Coord {
				return keep(dests, func(to chess.Coord) bool {
					return chess.Chebyshev(from, to) <= 2
				})
			},
		},
		{
			ID:          Frozen,
			Name:        "Frozen",
			Description: "Opponent cannot move their Knights.",
			canSelect:   banType(chess.Knight),
		},
		{
			ID:          Limited,
			Name:        "Limited",
			Description: "Opponent Rooks can only move up to 3 squares.",
			filter: func(dests []chess.Coord, from chess.Coord, _ *chess.Board, piece chess.Piece) []chess.Coord {
				if piece.Type != chess.Rook {
					return dests
				}
				return keep(dests, func(to chess.Coord) bool {
					return chess.Chebyshev(from, to) <= 3
				})
			},
		},
		{
			ID:          Shackled,
			Name:        "Shackled",
			Description: "Opponent cannot move their Bishops.",
			canSelect:   banType(chess.Bishop),
		},
		{
			ID:          Pacifist,
			Name:        "Pacifist",
			Description: "Opponent cannot capture any pieces.",
			filter: func(dests []chess.Coord, _ chess.Coord, board *chess.Board, _ chess.Piece) []chess.Coord {
				return keep(dests, func(to chess.Coord) bool {
					_, occupied := board.At(to)
					return !occupied
				})
			},
		},
		{
			ID:          Cowardice,
			Name:        "Cowardice",
			Description: "Opponent cannot move their King.",
			canSelect:   banType(chess.King),
		},
		{
			ID:          Isolated,
			Name:        "Isolated",
			Description: "Opponent can only move pieces not adjacent to friendly pieces.",
			canSelect: func(piece chess.Piece, ctx SelectionContext, board *chess.Board) bool {
				for dr := -1; dr <= 1; dr++ {
					for dc := -1; dc <= 1; dc++ {
						if dr == 0 && dc == 0 {
							continue
						}
						n := chess.Coord{Row: ctx.From.Row + dr, Col: ctx.From.Col + dc}
						if p, ok := board.At(n); ok && p.Color == piece.Color {
							return false
						}
					}
				}
				return true
			},
		},
		{
			ID:          NobilityLock,
			Name:        "Nobility Lock",
			Description: "Opponent can only move Pawns and the King.",
			canSelect: func(piece chess.Piece, _ SelectionContext, _ *chess.Board) bool {
				return piece.Type == chess.Pawn || piece.Type == chess.King
			},
		},
		{
			ID:          BackRankJail,
			Name:        "Back Rank Jail",
			Description: "Opponent's pieces on their back rank cannot move.",
			canSelect: func(piece chess.Piece, ctx SelectionContext, _ *chess.Board) bool {
				return ctx.From.Row != chess.BackRankRow(piece.Color)
			},
		},
		{
			ID:          ShortFuse,
			Name:        "Short Fuse",
			Description: "Opponent's Pawns cannot move two squares on their first move.",
			filter: func(dests []chess.Coord, from chess.Coord, _ *chess.Board, piece chess.Piece) []chess.Coord {
				if piece.Type != chess.Pawn {
					return dests
				}
				return keep(dests, func(to chess.Coord) bool {
					dr := to.Row - from.Row
					return dr < 2 && dr > -2
				})
			},
		},
		{
			ID:          Ghosting,
			Name:        "Ghosting",
			Description: "Opponent cannot move pieces to the two center columns.",
			filter: func(dests []chess.Coord, _ chess.Coord, _ *chess.Board, _ chess.Piece) []chess.Coord {
				return keep(dests, func(to chess.Coord) bool {
					return to.Col != 3 && to.Col != 4
				})
			},
		},
	}
}
