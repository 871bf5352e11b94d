// Package transport provides the peer-to-peer channels two debuff chess
// instances play over. Every Peer follows the same manual signaling flow:
// the creator produces an offer string, the joiner turns it into an answer
// string, and the creator accepts the answer. Both strings are opaque text
// the users copy between machines out of band.
package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/justinabrahms/debuffchess/internal/config"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
	StateFailed       State = "failed"
)

var (
	// ErrNotOpen is returned by Send when the channel is not connected.
	ErrNotOpen = errors.New("transport: channel not open")

	// ErrInvalidSignal is returned for offers and answers that cannot be
	// decoded or do not belong to this peer.
	ErrInvalidSignal = errors.New("transport: invalid signal")
)

// Peer is one end of an ordered, reliable message channel.
type Peer interface {
	CreateOffer(ctx context.Context) (string, error)
	CreateAnswer(ctx context.Context, offer string) (string, error)
	AcceptAnswer(ctx context.Context, answer string) error

	// Send delivers one message. It fails with ErrNotOpen unless the
	// channel is connected.
	Send(data []byte) error
	// Close is idempotent.
	Close() error
	State() State

	OnStateChange(fn func(State))
	OnMessage(fn func([]byte))
}

// Factory creates a fresh, unconnected Peer.
type Factory func() (Peer, error)

type settings struct {
	logger        zerolog.Logger
	iceServers    []string
	listenAddr    string
	advertiseHost string
	dialer        *websocket.Dialer
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:     zerolog.Nop(),
		iceServers: []string{config.DefaultSTUNServer},
		listenAddr: ":0",
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a Peer
type Option func(*settings)

// WithLogger sets a custom logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithICEServers sets the STUN/TURN urls used by WebRTC peers
func WithICEServers(urls []string) Option {
	return func(s *settings) {
		s.iceServers = urls
	}
}

// WithListenAddr sets where a websocket creator listens for the joiner
func WithListenAddr(addr string) Option {
	return func(s *settings) {
		s.listenAddr = addr
	}
}

// WithAdvertiseHost sets the host a websocket creator puts in its offer
func WithAdvertiseHost(host string) Option {
	return func(s *settings) {
		s.advertiseHost = host
	}
}

// WithDialer sets the dialer a websocket joiner uses
func WithDialer(d *websocket.Dialer) Option {
	return func(s *settings) {
		s.dialer = d
	}
}

// NewFactory returns a Factory for the transport named in cfg.
func NewFactory(cfg config.PeerConfig, logger zerolog.Logger) (Factory, error) {
	switch cfg.Transport {
	case config.TransportWebRTC, "":
		opts := []Option{WithLogger(logger)}
		if len(cfg.ICEServers) > 0 {
			opts = append(opts, WithICEServers(cfg.ICEServers))
		}
		return func() (Peer, error) {
			return NewWebRTCPeer(opts...), nil
		}, nil
	case config.TransportWebSocket:
		opts := []Option{
			WithLogger(logger),
			WithListenAddr(cfg.ListenAddr),
			WithAdvertiseHost(cfg.AdvertiseHost),
		}
		return func() (Peer, error) {
			return NewWebSocketPeer(opts...), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

// encodeSignal renders a signaling payload as base64 JSON so it survives
// copy and paste.
func encodeSignal(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode signal: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeSignal(s string, v interface{}) error {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	return nil
}

// handlers tracks the state and callbacks every Peer implementation shares.
type handlers struct {
	mu        sync.RWMutex
	state     State
	onState   func(State)
	onMessage func([]byte)
}

func (h *handlers) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state == "" {
		return StateDisconnected
	}
	return h.state
}

func (h *handlers) OnStateChange(fn func(State)) {
	h.mu.Lock()
	h.onState = fn
	h.mu.Unlock()
}

func (h *handlers) OnMessage(fn func([]byte)) {
	h.mu.Lock()
	h.onMessage = fn
	h.mu.Unlock()
}

// setState records s and notifies the observer if it changed. Terminal states
// are sticky.
func (h *handlers) setState(s State) {
	h.mu.Lock()
	if h.state == s || h.state == StateClosed || h.state == StateFailed {
		h.mu.Unlock()
		return
	}
	h.state = s
	fn := h.onState
	h.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

func (h *handlers) deliver(data []byte) {
	h.mu.RLock()
	fn := h.onMessage
	h.mu.RUnlock()
	if fn != nil {
		fn(data)
	}
}
