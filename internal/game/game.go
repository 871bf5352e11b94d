// Package game implements the turn state machine of a debuff chess match:
// selection, move application, debuff assignment, win detection and reset.
//
// Illegal operations are rejected by returning false and never mutate state.
// A Game is not safe for concurrent use; callers serialize access.
package game

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/justinabrahms/debuffchess/internal/chess"
	"github.com/justinabrahms/debuffchess/internal/debuff"
)

// OfferCount is the number of debuffs offered to the mover after each move.
const OfferCount = 3

type Phase string

const (
	AwaitingSelection    Phase = "awaiting_selection"
	AwaitingDestination  Phase = "awaiting_destination"
	AwaitingDebuffChoice Phase = "awaiting_debuff_choice"
	GameOver             Phase = "game_over"
)

// Move is an immutable history entry.
type Move struct {
	From        chess.Coord  `json:"from"`
	To          chess.Coord  `json:"to"`
	Piece       chess.Piece  `json:"piece"`
	Captured    *chess.Piece `json:"captured,omitempty"`
	Notation    string       `json:"notation"`
	BoardBefore chess.Board  `json:"-"`
	Debuff      debuff.ID    `json:"activeDebuff"`
}

type Game struct {
	registry *debuff.Registry
	rng      *rand.Rand
	logger   zerolog.Logger

	board   chess.Board
	turn    chess.Color
	debuffs map[chess.Color]debuff.ID
	history []Move
	winner  chess.Color
	phase   Phase

	selected     *chess.Coord
	destinations []chess.Coord
	// first square selected this turn; SLOWED pins the mover to it
	touched *chess.Coord
	offers  []debuff.ID
}

// Option configures a Game
type Option func(*Game)

// WithRegistry sets the debuff catalog
func WithRegistry(r *debuff.Registry) Option {
	return func(g *Game) {
		g.registry = r
	}
}

// WithRand sets the source used to draw debuff offers
func WithRand(rng *rand.Rand) Option {
	return func(g *Game) {
		g.rng = rng
	}
}

// WithLogger sets a custom logger
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Game) {
		g.logger = logger
	}
}

// WithPosition starts the match from an arbitrary board instead of the
// standard setup. Reset always returns to the standard setup.
func WithPosition(b chess.Board, turn chess.Color) Option {
	return func(g *Game) {
		g.board = b
		g.turn = turn
	}
}

func New(opts ...Option) *Game {
	g := &Game{
		registry: debuff.Default(),
		logger:   zerolog.Nop(),
	}
	g.Reset()

	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g
}

// Reset clears the match: starting board, white to move, no debuffs, empty
// history, no winner.
func (g *Game) Reset() {
	g.board = chess.NewBoard()
	g.turn = chess.White
	g.debuffs = map[chess.Color]debuff.ID{
		chess.White: debuff.None,
		chess.Black: debuff.None,
	}
	g.history = nil
	g.winner = chess.NoColor
	g.phase = AwaitingSelection
	g.selected = nil
	g.destinations = nil
	g.touched = nil
	g.offers = nil

	g.logger.Debug().Msg("Match reset")
}

func (g *Game) Board() chess.Board { return g.board }

func (g *Game) Turn() chess.Color { return g.turn }

func (g *Game) Phase() Phase { return g.phase }

// Winner returns NoColor while the match is undecided.
func (g *Game) Winner() chess.Color { return g.winner }

// Debuff returns the debuff active for color.
func (g *Game) Debuff(color chess.Color) debuff.ID { return g.debuffs[color] }

func (g *Game) History() []Move {
	out := make([]Move, len(g.history))
	copy(out, g.history)
	return out
}

func (g *Game) Offers() []debuff.ID {
	return append([]debuff.ID(nil), g.offers...)
}

func (g *Game) Selected() (chess.Coord, bool) {
	if g.selected == nil {
		return chess.Coord{}, false
	}
	return *g.selected, true
}

func (g *Game) Destinations() []chess.Coord {
	return append([]chess.Coord(nil), g.destinations...)
}

// BoardBefore returns the board as it was before history entry index.
func (g *Game) BoardBefore(index int) (chess.Board, bool) {
	if index < 0 || index >= len(g.history) {
		return chess.Board{}, false
	}
	return g.history[index].BoardBefore, true
}

func (g *Game) activeDebuff() debuff.Debuff {
	return g.registry.MustGet(g.debuffs[g.turn])
}

// ValidMoves returns the destinations the piece on from would get if it were
// selected now. It does not change state.
func (g *Game) ValidMoves(from chess.Coord) []chess.Coord {
	if g.phase != AwaitingSelection && g.phase != AwaitingDestination {
		return nil
	}
	piece, ok := g.board.At(from)
	if !ok || piece.Color != g.turn {
		return nil
	}
	ctx := debuff.SelectionContext{From: from, Selected: g.touched}
	return debuff.ValidMoves(&g.board, from, g.activeDebuff(), ctx)
}

// SelectPiece selects the mover's piece on c. Selecting the already selected
// square deselects it.
func (g *Game) SelectPiece(c chess.Coord) bool {
	if g.phase != AwaitingSelection && g.phase != AwaitingDestination {
		return false
	}
	piece, ok := g.board.At(c)
	if !ok || piece.Color != g.turn {
		return false
	}

	if g.selected != nil && *g.selected == c {
		g.ClearSelection()
		return true
	}

	moves := g.ValidMoves(c)
	if len(moves) == 0 {
		g.logger.Debug().Str("square", c.String()).Str("debuff", string(g.debuffs[g.turn])).Msg("Selection rejected")
		return false
	}

	sel := c
	g.selected = &sel
	g.destinations = moves
	if g.touched == nil {
		touched := c
		g.touched = &touched
	}
	g.phase = AwaitingDestination
	return true
}

// ClearSelection discards an in-flight selection.
func (g *Game) ClearSelection() {
	g.selected = nil
	g.destinations = nil
	if g.phase == AwaitingDestination {
		g.phase = AwaitingSelection
	}
}

func contains(coords []chess.Coord, c chess.Coord) bool {
	for _, x := range coords {
		if x == c {
			return true
		}
	}
	return false
}

// Move plays a local move. to must be a destination of from under the active
// debuff; if from is not the current selection the destinations are computed
// as if it had just been selected. On success the mover is offered debuffs.
func (g *Game) Move(from, to chess.Coord) bool {
	if g.phase != AwaitingSelection && g.phase != AwaitingDestination {
		return false
	}

	dests := g.destinations
	if g.selected == nil || *g.selected != from {
		dests = g.ValidMoves(from)
	}
	if !contains(dests, to) {
		return false
	}

	g.apply(from, to)
	if g.phase == AwaitingDebuffChoice {
		g.offers = g.registry.Draw(g.rng, OfferCount)
	}
	return true
}

// ApplyRemoteMove plays a move received from the peer. The remote selection
// is not shared, so destinations are computed without selection context. No
// offers are drawn: the peer chooses its own debuff.
func (g *Game) ApplyRemoteMove(from, to chess.Coord) bool {
	if g.phase != AwaitingSelection && g.phase != AwaitingDestination {
		return false
	}
	piece, ok := g.board.At(from)
	if !ok || piece.Color != g.turn {
		return false
	}
	ctx := debuff.SelectionContext{From: from}
	if !contains(debuff.ValidMoves(&g.board, from, g.activeDebuff(), ctx), to) {
		return false
	}

	g.apply(from, to)
	return true
}

func (g *Game) apply(from, to chess.Coord) {
	piece, _ := g.board.At(from)
	entry := Move{
		From:        from,
		To:          to,
		Piece:       piece,
		Notation:    chess.Notation(&g.board, from, to),
		BoardBefore: g.board.Clone(),
		Debuff:      g.debuffs[g.turn],
	}
	captured, hit := g.board.At(to)
	if hit {
		entry.Captured = &captured
	}

	g.board.Set(to, piece)
	g.board.Clear(from)
	g.history = append(g.history, entry)

	g.selected = nil
	g.destinations = nil
	g.touched = nil
	g.offers = nil

	// Positions set up with extra kings end only when the last one falls.
	if hit && captured.Type == chess.King && len(g.board.Kings(captured.Color)) == 0 {
		g.winner = g.turn
		g.phase = GameOver
		g.logger.Info().Str("notation", entry.Notation).Str("winner", g.winner.String()).Msg("King captured")
		return
	}
	g.phase = AwaitingDebuffChoice
	g.logger.Debug().Str("notation", entry.Notation).Str("color", g.turn.String()).Msg("Move applied")
}

// ChooseDebuff assigns one of the offered debuffs to the opponent and passes
// the turn.
func (g *Game) ChooseDebuff(id debuff.ID) bool {
	if g.phase != AwaitingDebuffChoice {
		return false
	}
	offered := false
	for _, o := range g.offers {
		if o == id {
			offered = true
			break
		}
	}
	if !offered {
		return false
	}
	g.assign(id)
	return true
}

// ApplyRemoteDebuff assigns a debuff chosen by the peer. Any catalog id other
// than NONE is accepted.
func (g *Game) ApplyRemoteDebuff(id debuff.ID) bool {
	if g.phase != AwaitingDebuffChoice || id == debuff.None {
		return false
	}
	if _, err := g.registry.Lookup(id); err != nil {
		g.logger.Warn().Err(err).Msg("Remote debuff rejected")
		return false
	}
	g.assign(id)
	return true
}

func (g *Game) assign(id debuff.ID) {
	opponent := g.turn.Opponent()
	g.debuffs[opponent] = id
	g.turn = opponent
	g.phase = AwaitingSelection
	g.offers = nil
	g.touched = nil

	g.logger.Debug().Str("debuff", string(id)).Str("target", opponent.String()).Msg("Debuff assigned")
}

// DeclareWinner ends the match with color as the winner.
func (g *Game) DeclareWinner(color chess.Color) bool {
	if color != chess.White && color != chess.Black {
		return false
	}
	if g.phase == GameOver {
		return g.winner == color
	}
	g.winner = color
	g.phase = GameOver
	g.selected = nil
	g.destinations = nil
	g.offers = nil
	return true
}
