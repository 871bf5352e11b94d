package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// DataChannelLabel names the single game data channel.
const DataChannelLabel = "gameData"

// WebRTCPeer carries game messages over one ordered, reliable WebRTC data
// channel. Offers and answers are base64 JSON session descriptions produced
// after ICE gathering completes, so no trickle signaling is needed.
type WebRTCPeer struct {
	handlers

	logger     zerolog.Logger
	iceServers []string

	mu sync.Mutex
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel
}

func NewWebRTCPeer(opts ...Option) *WebRTCPeer {
	s := newSettings(opts)
	return &WebRTCPeer{
		logger:     s.logger.With().Str("transport", "webrtc").Logger(),
		iceServers: s.iceServers,
	}
}

func (p *WebRTCPeer) newConnection() (*webrtc.PeerConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pc != nil {
		return nil, fmt.Errorf("peer connection already negotiated")
	}

	conf := webrtc.Configuration{}
	if len(p.iceServers) > 0 {
		conf.ICEServers = []webrtc.ICEServer{{URLs: p.iceServers}}
	}
	pc, err := webrtc.NewPeerConnection(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.logger.Debug().Str("state", s.String()).Msg("Peer connection state changed")
		switch s {
		case webrtc.PeerConnectionStateConnecting:
			p.setState(StateConnecting)
		case webrtc.PeerConnectionStateDisconnected:
			p.setState(StateDisconnected)
		case webrtc.PeerConnectionStateFailed:
			p.setState(StateFailed)
		case webrtc.PeerConnectionStateClosed:
			p.setState(StateClosed)
		}
	})

	p.pc = pc
	return pc, nil
}

// bindChannel wires data channel events. Connected is reported only once the
// channel itself is open.
func (p *WebRTCPeer) bindChannel(dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		p.logger.Info().Str("label", dc.Label()).Msg("Data channel open")
		p.setState(StateConnected)
	})
	dc.OnClose(func() {
		p.logger.Info().Str("label", dc.Label()).Msg("Data channel closed")
		p.setState(StateClosed)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		p.deliver(msg.Data)
	})
}

// localDescription sets desc and waits for ICE gathering so the returned
// description carries every candidate.
func (p *WebRTCPeer) localDescription(ctx context.Context, pc *webrtc.PeerConnection, desc webrtc.SessionDescription) (string, error) {
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("ice gathering: %w", ctx.Err())
	}
	return encodeSignal(pc.LocalDescription())
}

func (p *WebRTCPeer) CreateOffer(ctx context.Context) (string, error) {
	pc, err := p.newConnection()
	if err != nil {
		return "", err
	}
	p.setState(StateConnecting)

	dc, err := pc.CreateDataChannel(DataChannelLabel, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create data channel: %w", err)
	}
	p.bindChannel(dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	return p.localDescription(ctx, pc, offer)
}

func (p *WebRTCPeer) CreateAnswer(ctx context.Context, offer string) (string, error) {
	var remote webrtc.SessionDescription
	if err := decodeSignal(offer, &remote); err != nil {
		return "", err
	}
	if remote.Type != webrtc.SDPTypeOffer {
		return "", fmt.Errorf("%w: expected an offer, got %s", ErrInvalidSignal, remote.Type)
	}

	pc, err := p.newConnection()
	if err != nil {
		return "", err
	}
	p.setState(StateConnecting)

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != DataChannelLabel {
			p.logger.Warn().Str("label", dc.Label()).Msg("Ignoring unexpected data channel")
			return
		}
		p.bindChannel(dc)
	})

	if err := pc.SetRemoteDescription(remote); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	return p.localDescription(ctx, pc, answer)
}

func (p *WebRTCPeer) AcceptAnswer(ctx context.Context, answer string) error {
	var remote webrtc.SessionDescription
	if err := decodeSignal(answer, &remote); err != nil {
		return err
	}
	if remote.Type != webrtc.SDPTypeAnswer {
		return fmt.Errorf("%w: expected an answer, got %s", ErrInvalidSignal, remote.Type)
	}

	p.mu.Lock()
	pc := p.pc
	p.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("no offer has been created")
	}
	if err := pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	return nil
}

func (p *WebRTCPeer) Send(data []byte) error {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotOpen
	}
	if err := dc.SendText(string(data)); err != nil {
		return fmt.Errorf("data channel send: %w", err)
	}
	return nil
}

func (p *WebRTCPeer) Close() error {
	p.mu.Lock()
	pc, dc := p.pc, p.dc
	p.mu.Unlock()

	var errs error
	if dc != nil {
		if err := dc.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close data channel: %w", err))
		}
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close peer connection: %w", err))
		}
	}
	p.setState(StateClosed)
	return errs
}
