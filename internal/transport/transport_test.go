package transport

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinabrahms/debuffchess/internal/config"
)

// recorder captures what a Peer reports through its callbacks.
type recorder struct {
	mu       sync.Mutex
	states   []State
	messages []string
}

func record(p Peer) *recorder {
	r := &recorder{}
	p.OnStateChange(func(s State) {
		r.mu.Lock()
		r.states = append(r.states, s)
		r.mu.Unlock()
	})
	p.OnMessage(func(data []byte) {
		r.mu.Lock()
		r.messages = append(r.messages, string(data))
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *recorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func waitForState(t *testing.T, p Peer, want State) {
	t.Helper()
	assert.Eventually(t, func() bool { return p.State() == want }, 5*time.Second, 10*time.Millisecond,
		"peer never reached %s, last state %s", want, p.State())
}

func TestDecodeSignalRejectsGarbage(t *testing.T) {
	var v websocketOffer
	assert.ErrorIs(t, decodeSignal("not base64!", &v), ErrInvalidSignal)

	notJSON, err := encodeSignal("just a string")
	require.NoError(t, err)
	assert.ErrorIs(t, decodeSignal(notJSON, &v), ErrInvalidSignal)

	good, err := encodeSignal(websocketOffer{URL: "ws://host:1/peer", Token: "t"})
	require.NoError(t, err)
	require.NoError(t, decodeSignal(" "+good+"\n", &v))
	assert.Equal(t, "ws://host:1/peer", v.URL)
}

func TestPipeDeliversInOrder(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	rec := record(b)

	var want []string
	for i := 0; i < 200; i++ {
		msg := fmt.Sprintf("msg-%d", i)
		want = append(want, msg)
		require.NoError(t, a.Send([]byte(msg)))
	}

	assert.Eventually(t, func() bool { return len(rec.Messages()) == len(want) }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, rec.Messages())
}

func TestPipeCloseReachesBothEnds(t *testing.T) {
	a, b := Pipe()
	rec := record(b)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "close is idempotent")

	assert.Equal(t, StateClosed, a.State())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []State{StateClosed}, rec.States())
	assert.ErrorIs(t, b.Send([]byte("late")), ErrNotOpen)
}

func TestSwitchboardHandshake(t *testing.T) {
	ctx := context.Background()
	factory := NewSwitchboard().Factory()

	creator, err := factory()
	require.NoError(t, err)
	joiner, err := factory()
	require.NoError(t, err)
	creatorRec := record(creator)
	joinerRec := record(joiner)

	assert.ErrorIs(t, creator.Send([]byte("early")), ErrNotOpen)

	offer, err := creator.CreateOffer(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateConnecting, creator.State())

	answer, err := joiner.CreateAnswer(ctx, offer)
	require.NoError(t, err)
	require.NoError(t, creator.AcceptAnswer(ctx, answer))

	assert.Equal(t, StateConnected, creator.State())
	assert.Equal(t, StateConnected, joiner.State())
	assert.Equal(t, []State{StateConnecting, StateConnected}, creatorRec.States())

	require.NoError(t, creator.Send([]byte("hello")))
	require.NoError(t, joiner.Send([]byte("hi")))
	assert.Eventually(t, func() bool {
		return len(joinerRec.Messages()) == 1 && len(creatorRec.Messages()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"hello"}, joinerRec.Messages())
	assert.Equal(t, []string{"hi"}, creatorRec.Messages())

	require.NoError(t, joiner.Close())
	assert.Equal(t, StateClosed, creator.State())
}

func TestSwitchboardRejectsForeignSignals(t *testing.T) {
	ctx := context.Background()
	board := NewSwitchboard()
	factory := board.Factory()

	joiner, _ := factory()
	bogus, err := encodeSignal(memorySignal{Offer: "nobody"})
	require.NoError(t, err)
	_, err = joiner.CreateAnswer(ctx, bogus)
	assert.ErrorIs(t, err, ErrInvalidSignal)

	first, _ := factory()
	second, _ := factory()
	offer, err := first.CreateOffer(ctx)
	require.NoError(t, err)
	_, err = second.CreateOffer(ctx)
	require.NoError(t, err)

	answer, err := joiner.CreateAnswer(ctx, offer)
	require.NoError(t, err)
	assert.ErrorIs(t, second.AcceptAnswer(ctx, answer), ErrInvalidSignal, "answer belongs to first")
	assert.ErrorIs(t, first.AcceptAnswer(ctx, "%%%"), ErrInvalidSignal)
	require.NoError(t, first.AcceptAnswer(ctx, answer))
}

func loopbackPeer() *WebSocketPeer {
	return NewWebSocketPeer(WithListenAddr("127.0.0.1:0"), WithAdvertiseHost("127.0.0.1"))
}

func TestWebSocketHandshake(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	creator := loopbackPeer()
	joiner := NewWebSocketPeer()
	defer creator.Close()
	defer joiner.Close()
	creatorRec := record(creator)
	joinerRec := record(joiner)

	offer, err := creator.CreateOffer(ctx)
	require.NoError(t, err)

	var sig websocketOffer
	require.NoError(t, decodeSignal(offer, &sig))
	assert.Contains(t, sig.URL, "ws://127.0.0.1:")
	assert.NotEmpty(t, sig.Token)

	answer, err := joiner.CreateAnswer(ctx, offer)
	require.NoError(t, err)
	assert.Equal(t, StateConnected, joiner.State())

	require.NoError(t, creator.AcceptAnswer(ctx, answer))
	assert.Equal(t, StateConnected, creator.State())

	for i := 0; i < 10; i++ {
		require.NoError(t, creator.Send([]byte(fmt.Sprintf("c%d", i))))
		require.NoError(t, joiner.Send([]byte(fmt.Sprintf("j%d", i))))
	}
	assert.Eventually(t, func() bool {
		return len(joinerRec.Messages()) == 10 && len(creatorRec.Messages()) == 10
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "c0", joinerRec.Messages()[0])
	assert.Equal(t, "j9", creatorRec.Messages()[9])

	require.NoError(t, joiner.Close())
	waitForState(t, creator, StateClosed)
	assert.ErrorIs(t, creator.Send([]byte("gone")), ErrNotOpen)
}

func TestWebSocketRejectsWrongToken(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	creator := loopbackPeer()
	defer creator.Close()
	offer, err := creator.CreateOffer(ctx)
	require.NoError(t, err)

	var sig websocketOffer
	require.NoError(t, decodeSignal(offer, &sig))
	sig.Token = "guess"
	forged, err := encodeSignal(sig)
	require.NoError(t, err)

	joiner := NewWebSocketPeer()
	defer joiner.Close()
	_, err = joiner.CreateAnswer(ctx, forged)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, joiner.State())
}

func TestWebSocketAcceptTimesOut(t *testing.T) {
	creator := loopbackPeer()
	defer creator.Close()

	_, err := creator.CreateOffer(context.Background())
	require.NoError(t, err)

	answer, err := encodeSignal(websocketAnswer{Nonce: "never-dialed"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, creator.AcceptAnswer(ctx, answer), context.DeadlineExceeded)
}

func TestWebRTCRejectsMismatchedDescriptions(t *testing.T) {
	ctx := context.Background()
	p := NewWebRTCPeer()
	defer p.Close()

	answerDesc, err := encodeSignal(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"})
	require.NoError(t, err)
	offerDesc, err := encodeSignal(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	require.NoError(t, err)

	_, err = p.CreateAnswer(ctx, answerDesc)
	assert.ErrorIs(t, err, ErrInvalidSignal)
	assert.ErrorIs(t, p.AcceptAnswer(ctx, offerDesc), ErrInvalidSignal)
	assert.Error(t, p.AcceptAnswer(ctx, answerDesc), "no offer created yet")
	assert.ErrorIs(t, p.Send([]byte("x")), ErrNotOpen)
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		transport string
		want      interface{}
		wantErr   bool
	}{
		{transport: config.TransportWebRTC, want: &WebRTCPeer{}},
		{transport: config.TransportWebSocket, want: &WebSocketPeer{}},
		{transport: "carrier-pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.transport, func(t *testing.T) {
			cfg := config.Default().Peer
			cfg.Transport = tt.transport
			factory, err := NewFactory(cfg, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			peer, err := factory()
			require.NoError(t, err)
			assert.IsType(t, tt.want, peer)
			assert.Equal(t, StateDisconnected, peer.State())
		})
	}
}
