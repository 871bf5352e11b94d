// Package session keeps two debuff chess games in lockstep over a peer
// channel. A Synchronizer owns one game.Game and funnels local commands,
// inbound frames and connection events through a single event loop, so every
// transition runs to completion before the next one starts.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/justinabrahms/debuffchess/internal/chess"
	"github.com/justinabrahms/debuffchess/internal/debuff"
	"github.com/justinabrahms/debuffchess/internal/game"
	"github.com/justinabrahms/debuffchess/internal/transport"
)

const DefaultNegotiationTimeout = 30 * time.Second

var (
	// ErrInvalidPayload wraps handshake strings the transport could not use.
	// The negotiation stage is left unchanged so the user can retry.
	ErrInvalidPayload = errors.New("session: invalid handshake payload")

	ErrNoSession     = errors.New("session: no session in progress")
	ErrSessionActive = errors.New("session: a session is already active")
	ErrStopped       = errors.New("session: synchronizer stopped")
)

type Role string

const (
	RoleCreator Role = "creator"
	RoleJoiner  Role = "joiner"
)

const (
	StatusLocal        = "Local game"
	StatusOffering     = "Generating offer"
	StatusWaiting      = "Waiting for the answer from your opponent"
	StatusAnswering    = "Generating answer"
	StatusAnswered     = "Answer ready, waiting for the connection"
	StatusConnected    = "Connected"
	StatusNewMatch     = "New match started"
	StatusOpponentNew  = "Opponent started a new match"
	StatusDisconnected = "Opponent disconnected"
	StatusNegotiation  = "Connection failed, start over"
)

// Session describes the peer link. It is independent of the match: a soft
// reset keeps it, a hard reset discards it.
type Session struct {
	ID         uuid.UUID       `json:"id"`
	Role       Role            `json:"role"`
	LocalColor chess.Color     `json:"localColor"`
	State      transport.State `json:"state"`
}

// View is what observers see after every transition.
type View struct {
	Game    game.Snapshot `json:"game"`
	Session *Session      `json:"session,omitempty"`
	Status  string        `json:"status"`
	// CanAct reports whether local input is accepted right now.
	CanAct bool `json:"canAct"`
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithLogger sets a custom logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithNegotiationTimeout bounds Host, Join and Accept
func WithNegotiationTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		s.timeout = d
	}
}

type Synchronizer struct {
	logger  zerolog.Logger
	factory transport.Factory
	timeout time.Duration

	commands chan func()
	inbox    *queue
	done     chan struct{}

	handlerMu sync.RWMutex
	handler   func(View)

	// Owned by the event loop.
	game    *game.Game
	session *Session
	peer    transport.Peer
	status  string
}

func New(g *game.Game, factory transport.Factory, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		logger:   zerolog.Nop(),
		factory:  factory,
		timeout:  DefaultNegotiationTimeout,
		commands: make(chan func()),
		inbox:    newQueue(),
		done:     make(chan struct{}),
		game:     g,
		status:   StatusLocal,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetHandler installs the single observer. It is called from the event loop
// after every transition and must not call back into the Synchronizer
// synchronously.
func (s *Synchronizer) SetHandler(fn func(View)) {
	s.handlerMu.Lock()
	s.handler = fn
	s.handlerMu.Unlock()
}

// Run processes events until ctx is cancelled, then closes any open peer.
func (s *Synchronizer) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case fn := <-s.commands:
			fn()
		case <-s.inbox.wake:
			for _, fn := range s.inbox.drain() {
				fn()
			}
		case <-ctx.Done():
			if s.peer != nil {
				if err := s.peer.Close(); err != nil {
					s.logger.Error().Err(err).Msg("Failed to close peer")
				}
			}
			s.logger.Info().Msg("Synchronizer stopped")
			return
		}
	}
}

// do runs fn on the event loop and waits for it.
func (s *Synchronizer) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.commands <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrStopped
	}
}

func (s *Synchronizer) view() View {
	v := View{
		Game:   s.game.Snapshot(),
		Status: s.status,
		CanAct: s.canAct(),
	}
	if s.session != nil {
		sess := *s.session
		v.Session = &sess
	}
	return v
}

func (s *Synchronizer) notify() {
	s.handlerMu.RLock()
	fn := s.handler
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(s.view())
	}
}

// canAct gates local input: always in a local game, only on the local
// color's turn over a connected link.
func (s *Synchronizer) canAct() bool {
	if s.session == nil {
		return true
	}
	return s.session.State == transport.StateConnected && s.game.Turn() == s.session.LocalColor
}

func (s *Synchronizer) connected() bool {
	return s.session != nil && s.session.State == transport.StateConnected
}

func (s *Synchronizer) send(m Message) {
	if s.peer == nil {
		return
	}
	data, err := Encode(m)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(m.Type)).Msg("Failed to encode message")
		return
	}
	if err := s.peer.Send(data); err != nil {
		s.logger.Error().Err(err).Str("type", string(m.Type)).Msg("Failed to send message")
	}
}

// View returns the current state.
func (s *Synchronizer) View() View {
	var v View
	if err := s.do(func() { v = s.view() }); err != nil {
		return View{Status: err.Error()}
	}
	return v
}

// BoardBefore returns the board preceding history entry index.
func (s *Synchronizer) BoardBefore(index int) (chess.Board, bool) {
	var (
		b  chess.Board
		ok bool
	)
	_ = s.do(func() { b, ok = s.game.BoardBefore(index) })
	return b, ok
}

// Select forwards a local selection. Selections are never sent to the peer.
func (s *Synchronizer) Select(c chess.Coord) bool {
	var ok bool
	_ = s.do(func() {
		if !s.canAct() {
			return
		}
		if ok = s.game.SelectPiece(c); ok {
			s.notify()
		}
	})
	return ok
}

func (s *Synchronizer) ClearSelection() {
	_ = s.do(func() {
		s.game.ClearSelection()
		s.notify()
	})
}

// Move plays a local move and sends MOVE, followed by GAME_OVER when the move
// captured the king.
func (s *Synchronizer) Move(from, to chess.Coord) bool {
	var ok bool
	_ = s.do(func() {
		if !s.canAct() {
			return
		}
		if ok = s.game.Move(from, to); !ok {
			return
		}
		if s.session != nil {
			s.send(MoveMessage(from, to))
			if winner := s.game.Winner(); winner != chess.NoColor {
				s.send(GameOverMessage(winner))
			}
		}
		s.notify()
	})
	return ok
}

// ChooseDebuff assigns one of the local offers to the opponent and sends
// DEBUFF.
func (s *Synchronizer) ChooseDebuff(id debuff.ID) bool {
	var ok bool
	_ = s.do(func() {
		if !s.canAct() {
			return
		}
		if ok = s.game.ChooseDebuff(id); !ok {
			return
		}
		if s.session != nil {
			s.send(DebuffMessage(id))
		}
		s.notify()
	})
	return ok
}

// NewMatch soft-resets the game. Over a connected link the peer is asked to
// reset too; the link itself is kept.
func (s *Synchronizer) NewMatch() {
	_ = s.do(func() {
		s.game.Reset()
		if s.connected() {
			s.send(ResetMessage(true))
		}
		s.status = StatusNewMatch
		s.notify()
	})
}

// Leave hard-resets: the peer is closed, the session dropped and the game
// returns to local mode. Safe to call at any time.
func (s *Synchronizer) Leave() {
	_ = s.do(func() {
		s.hardReset(StatusLocal)
		s.notify()
	})
}

func (s *Synchronizer) hardReset(status string) {
	peer := s.peer
	s.peer = nil
	s.session = nil
	s.game.Reset()
	s.status = status

	if peer != nil {
		if err := peer.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Error closing peer")
		}
	}
}

// startSession creates a fresh peer for a new negotiation.
func (s *Synchronizer) startSession(role Role, status string) (transport.Peer, error) {
	var (
		peer transport.Peer
		err  error
	)
	if doErr := s.do(func() {
		if s.session != nil {
			err = ErrSessionActive
			return
		}
		peer, err = s.factory()
		if err != nil {
			err = fmt.Errorf("failed to create peer: %w", err)
			return
		}

		color := chess.White
		if role == RoleJoiner {
			color = chess.Black
		}
		s.peer = peer
		s.session = &Session{
			ID:         uuid.New(),
			Role:       role,
			LocalColor: color,
			State:      transport.StateConnecting,
		}
		s.game.Reset()
		s.status = status

		peer.OnStateChange(func(state transport.State) {
			s.inbox.push(func() { s.handleState(peer, state) })
		})
		peer.OnMessage(func(data []byte) {
			s.inbox.push(func() { s.handleMessage(peer, data) })
		})

		s.logger.Info().Str("session", s.session.ID.String()).Str("role", string(role)).Msg("Session started")
		s.notify()
	}); doErr != nil {
		return nil, doErr
	}
	return peer, err
}

// abandon drops a negotiation whose peer is still current.
func (s *Synchronizer) abandon(peer transport.Peer, status string) {
	_ = s.do(func() {
		if s.peer != peer {
			return
		}
		s.hardReset(status)
		s.notify()
	})
}

func (s *Synchronizer) setStatus(peer transport.Peer, status string) {
	_ = s.do(func() {
		if s.peer != peer || s.connected() {
			return
		}
		s.status = status
		s.notify()
	})
}

// Host becomes the creator (white) and returns the offer to hand to the
// opponent.
func (s *Synchronizer) Host(ctx context.Context) (string, error) {
	peer, err := s.startSession(RoleCreator, StatusOffering)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	offer, err := peer.CreateOffer(ctx)
	if err != nil {
		s.abandon(peer, StatusNegotiation)
		return "", fmt.Errorf("failed to create offer: %w", err)
	}

	s.setStatus(peer, StatusWaiting)
	return offer, nil
}

// Join becomes the joiner (black) from the creator's offer and returns the
// answer. A malformed offer leaves no session behind.
func (s *Synchronizer) Join(ctx context.Context, offer string) (string, error) {
	peer, err := s.startSession(RoleJoiner, StatusAnswering)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	answer, err := peer.CreateAnswer(ctx, offer)
	if err != nil {
		if errors.Is(err, transport.ErrInvalidSignal) {
			s.abandon(peer, StatusLocal)
			return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		s.abandon(peer, StatusNegotiation)
		return "", fmt.Errorf("failed to create answer: %w", err)
	}

	s.setStatus(peer, StatusAnswered)
	return answer, nil
}

// Accept completes the creator's side with the joiner's answer. A malformed
// answer leaves the creator waiting so it can be retried.
func (s *Synchronizer) Accept(ctx context.Context, answer string) error {
	var (
		peer transport.Peer
		err  error
	)
	if doErr := s.do(func() {
		switch {
		case s.session == nil || s.session.Role != RoleCreator:
			err = ErrNoSession
		case s.session.State == transport.StateConnected:
			err = ErrSessionActive
		default:
			peer = s.peer
		}
	}); doErr != nil {
		return doErr
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := peer.AcceptAnswer(ctx, answer); err != nil {
		if errors.Is(err, transport.ErrInvalidSignal) {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return fmt.Errorf("failed to accept answer: %w", err)
	}
	return nil
}

func (s *Synchronizer) handleState(peer transport.Peer, state transport.State) {
	if s.peer != peer || s.session == nil {
		return
	}
	previous := s.session.State
	s.session.State = state
	s.logger.Info().Str("from", string(previous)).Str("to", string(state)).Msg("Connection state changed")

	switch state {
	case transport.StateConnected:
		s.status = fmt.Sprintf("%s, you play %s", StatusConnected, s.session.LocalColor)
	case transport.StateClosed, transport.StateFailed:
		s.hardReset(StatusDisconnected)
	case transport.StateDisconnected:
		if previous == transport.StateConnected {
			s.hardReset(StatusDisconnected)
		}
	}
	s.notify()
}

func (s *Synchronizer) handleMessage(peer transport.Peer, data []byte) {
	if s.peer != peer || s.session == nil {
		return
	}
	m, err := Decode(data)
	if err != nil {
		s.logger.Warn().Err(err).Int("len", len(data)).Msg("Dropping malformed frame")
		return
	}

	remote := s.session.LocalColor.Opponent()
	switch m.Type {
	case MessageMove:
		if s.game.Turn() != remote {
			s.logger.Warn().Msg("Dropping MOVE received out of turn")
			return
		}
		if !s.game.ApplyRemoteMove(m.Move.From, m.Move.To) {
			s.logger.Warn().Str("from", m.Move.From.String()).Str("to", m.Move.To.String()).Msg("Rejected remote move")
			return
		}
	case MessageDebuff:
		if s.game.Turn() != remote || s.game.Phase() != game.AwaitingDebuffChoice {
			s.logger.Warn().Msg("Dropping DEBUFF received out of turn")
			return
		}
		if !s.game.ApplyRemoteDebuff(m.Debuff.DebuffID) {
			s.logger.Warn().Str("debuff", string(m.Debuff.DebuffID)).Msg("Rejected remote debuff")
			return
		}
	case MessageReset:
		if !m.Reset.IsRequest {
			s.logger.Debug().Msg("Peer acknowledged new match")
			return
		}
		s.game.Reset()
		s.status = StatusOpponentNew
		s.send(ResetMessage(false))
	case MessageGameOver:
		if !s.game.DeclareWinner(m.GameOver.Winner) {
			s.logger.Warn().Str("winner", m.GameOver.Winner.String()).Msg("Conflicting GAME_OVER ignored")
			return
		}
	}
	s.notify()
}

// queue is an unbounded FIFO for transport callbacks. Pushing never blocks;
// peers may fire callbacks from inside Close while the loop is running.
type queue struct {
	mu    sync.Mutex
	items []func()
	wake  chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

func (q *queue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
