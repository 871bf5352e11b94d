package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const memoryInboxSize = 64

// Switchboard connects in-process peers through the regular offer/answer
// handshake. It backs tests and single-process demos.
type Switchboard struct {
	mu      sync.Mutex
	offers  map[string]*MemoryPeer
	answers map[string]*MemoryPeer
}

func NewSwitchboard() *Switchboard {
	return &Switchboard{
		offers:  make(map[string]*MemoryPeer),
		answers: make(map[string]*MemoryPeer),
	}
}

// Factory returns a Factory producing peers attached to this switchboard.
func (s *Switchboard) Factory() Factory {
	return func() (Peer, error) {
		return newMemoryPeer(s), nil
	}
}

type memorySignal struct {
	Offer  string `json:"offer"`
	Answer string `json:"answer,omitempty"`
}

// MemoryPeer is an in-process Peer.
type MemoryPeer struct {
	handlers

	board *Switchboard
	token string

	mu     sync.Mutex
	remote *MemoryPeer
	inbox  chan []byte
	done   chan struct{}
	once   sync.Once
}

func newMemoryPeer(board *Switchboard) *MemoryPeer {
	return &MemoryPeer{
		board: board,
		inbox: make(chan []byte, memoryInboxSize),
		done:  make(chan struct{}),
	}
}

// Pipe returns two peers that are already connected to each other.
func Pipe() (*MemoryPeer, *MemoryPeer) {
	a := newMemoryPeer(nil)
	b := newMemoryPeer(nil)
	link(a, b)
	return a, b
}

func link(a, b *MemoryPeer) {
	a.mu.Lock()
	a.remote = b
	a.mu.Unlock()
	b.mu.Lock()
	b.remote = a
	b.mu.Unlock()

	go a.pump()
	go b.pump()
	a.setState(StateConnected)
	b.setState(StateConnected)
}

func (p *MemoryPeer) CreateOffer(ctx context.Context) (string, error) {
	if p.board == nil {
		return "", fmt.Errorf("memory peer has no switchboard")
	}
	p.token = uuid.NewString()

	p.board.mu.Lock()
	p.board.offers[p.token] = p
	p.board.mu.Unlock()

	p.setState(StateConnecting)
	return encodeSignal(memorySignal{Offer: p.token})
}

func (p *MemoryPeer) CreateAnswer(ctx context.Context, offer string) (string, error) {
	if p.board == nil {
		return "", fmt.Errorf("memory peer has no switchboard")
	}
	var sig memorySignal
	if err := decodeSignal(offer, &sig); err != nil {
		return "", err
	}

	p.board.mu.Lock()
	_, ok := p.board.offers[sig.Offer]
	if ok {
		p.token = uuid.NewString()
		p.board.answers[p.token] = p
	}
	p.board.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: unknown offer", ErrInvalidSignal)
	}

	p.setState(StateConnecting)
	return encodeSignal(memorySignal{Offer: sig.Offer, Answer: p.token})
}

func (p *MemoryPeer) AcceptAnswer(ctx context.Context, answer string) error {
	var sig memorySignal
	if err := decodeSignal(answer, &sig); err != nil {
		return err
	}
	if p.board == nil || sig.Offer != p.token {
		return fmt.Errorf("%w: answer is for another offer", ErrInvalidSignal)
	}

	p.board.mu.Lock()
	joiner, ok := p.board.answers[sig.Answer]
	if ok {
		delete(p.board.answers, sig.Answer)
		delete(p.board.offers, sig.Offer)
	}
	p.board.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown answer", ErrInvalidSignal)
	}

	link(p, joiner)
	return nil
}

func (p *MemoryPeer) Send(data []byte) error {
	p.mu.Lock()
	remote := p.remote
	p.mu.Unlock()
	if remote == nil || p.State() != StateConnected {
		return ErrNotOpen
	}

	msg := append([]byte(nil), data...)
	select {
	case remote.inbox <- msg:
		return nil
	case <-remote.done:
		return ErrNotOpen
	case <-p.done:
		return ErrNotOpen
	}
}

// Close shuts down both ends, as closing a data channel does.
func (p *MemoryPeer) Close() error {
	p.terminate(StateClosed)
	return nil
}

// Fail drops the link as a transport failure would: both ends report failed.
func (p *MemoryPeer) Fail() {
	p.terminate(StateFailed)
}

func (p *MemoryPeer) terminate(state State) {
	p.shutdown(state)
	p.mu.Lock()
	remote := p.remote
	p.mu.Unlock()
	if remote != nil {
		remote.shutdown(state)
	}
}

func (p *MemoryPeer) shutdown(state State) {
	p.once.Do(func() {
		close(p.done)
		if p.board != nil {
			p.board.mu.Lock()
			delete(p.board.offers, p.token)
			delete(p.board.answers, p.token)
			p.board.mu.Unlock()
		}
		p.setState(state)
	})
}

func (p *MemoryPeer) pump() {
	for {
		select {
		case msg := <-p.inbox:
			p.deliver(msg)
		case <-p.done:
			return
		}
	}
}
