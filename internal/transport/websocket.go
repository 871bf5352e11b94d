package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

const (
	// WebSocket parameters
	pingPeriod   = 54 * time.Second
	pongWait     = 60 * time.Second
	writeTimeout = 10 * time.Second

	sendBufferSize = 256

	peerPath    = "/peer"
	tokenHeader = "X-Debuffchess-Token"
	nonceHeader = "X-Debuffchess-Nonce"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Joiners are native clients authenticated by token, not browsers
		return true
	},
}

type websocketOffer struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

type websocketAnswer struct {
	Nonce string `json:"nonce"`
}

type incomingConn struct {
	nonce string
	conn  *websocket.Conn
}

// WebSocketPeer is a LAN transport for hosts without WebRTC. The creator
// listens and puts its URL and a token in the offer; the joiner dials with
// the token and a fresh nonce and answers with that nonce; the creator then
// adopts the connection carrying the nonce.
type WebSocketPeer struct {
	handlers

	logger        zerolog.Logger
	listenAddr    string
	advertiseHost string
	dialer        *websocket.Dialer

	mu       sync.Mutex
	token    string
	listener net.Listener
	server   *http.Server
	incoming chan incomingConn
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func NewWebSocketPeer(opts ...Option) *WebSocketPeer {
	s := newSettings(opts)
	return &WebSocketPeer{
		logger:        s.logger.With().Str("transport", "websocket").Logger(),
		listenAddr:    s.listenAddr,
		advertiseHost: s.advertiseHost,
		dialer:        s.dialer,
		incoming:      make(chan incomingConn, 4),
		send:          make(chan []byte, sendBufferSize),
		done:          make(chan struct{}),
	}
}

func (p *WebSocketPeer) CreateOffer(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener != nil || p.conn != nil {
		return "", fmt.Errorf("websocket peer already negotiated")
	}

	ln, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", p.listenAddr, err)
	}
	p.listener = ln
	p.token = uuid.NewString()

	mux := http.NewServeMux()
	mux.HandleFunc(peerPath, p.handleJoin)
	p.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: writeTimeout,
	}
	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error().Err(err).Msg("Peer listener failed")
		}
	}()

	host := p.advertiseHost
	if host == "" {
		host = "localhost"
	}
	port := ln.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("ws://%s%s", net.JoinHostPort(host, strconv.Itoa(port)), peerPath)

	p.logger.Info().Str("url", url).Msg("Waiting for joiner")
	p.setState(StateConnecting)
	return encodeSignal(websocketOffer{URL: url, Token: p.token})
}

func (p *WebSocketPeer) handleJoin(w http.ResponseWriter, r *http.Request) {
	nonce := r.Header.Get(nonceHeader)
	if r.Header.Get(tokenHeader) != p.token || nonce == "" {
		http.Error(w, "Invalid token", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to upgrade peer connection")
		return
	}

	select {
	case p.incoming <- incomingConn{nonce: nonce, conn: conn}:
	case <-p.done:
		conn.Close()
	default:
		p.logger.Warn().Str("remote", r.RemoteAddr).Msg("Too many pending joiners, dropping")
		conn.Close()
	}
}

func (p *WebSocketPeer) CreateAnswer(ctx context.Context, offer string) (string, error) {
	var sig websocketOffer
	if err := decodeSignal(offer, &sig); err != nil {
		return "", err
	}
	if sig.URL == "" || sig.Token == "" {
		return "", fmt.Errorf("%w: offer is missing url or token", ErrInvalidSignal)
	}

	p.setState(StateConnecting)
	nonce := uuid.NewString()
	headers := http.Header{}
	headers.Set(tokenHeader, sig.Token)
	headers.Set(nonceHeader, nonce)
	headers.Set("User-Agent", "DebuffChess/1.0")

	conn, _, err := p.dialer.DialContext(ctx, sig.URL, headers)
	if err != nil {
		p.setState(StateFailed)
		return "", fmt.Errorf("websocket dial failed: %w", err)
	}

	p.logger.Info().Str("url", sig.URL).Msg("Connected to creator")
	p.attach(conn)
	return encodeSignal(websocketAnswer{Nonce: nonce})
}

func (p *WebSocketPeer) AcceptAnswer(ctx context.Context, answer string) error {
	var sig websocketAnswer
	if err := decodeSignal(answer, &sig); err != nil {
		return err
	}
	if sig.Nonce == "" {
		return fmt.Errorf("%w: answer is missing nonce", ErrInvalidSignal)
	}

	p.mu.Lock()
	listening := p.listener != nil
	p.mu.Unlock()
	if !listening {
		return fmt.Errorf("no offer has been created")
	}

	for {
		select {
		case in := <-p.incoming:
			if in.nonce != sig.Nonce {
				p.logger.Warn().Msg("Dropping joiner with unknown nonce")
				in.conn.Close()
				continue
			}
			p.stopListening()
			p.attach(in.conn)
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for joiner: %w", ctx.Err())
		case <-p.done:
			return ErrNotOpen
		}
	}
}

func (p *WebSocketPeer) stopListening() error {
	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.mu.Unlock()
	if srv == nil {
		return nil
	}
	// Hijacked websocket connections are not tracked by the server and
	// survive Close.
	return srv.Close()
}

func (p *WebSocketPeer) attach(conn *websocket.Conn) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	go p.writePump(conn)
	go p.readPump(conn)
	p.setState(StateConnected)
}

func (p *WebSocketPeer) readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-p.done:
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Info().Msg("Peer closed connection")
				p.shutdown(StateClosed)
			} else {
				p.logger.Error().Err(err).Msg("Peer connection lost")
				p.shutdown(StateFailed)
			}
			return
		}
		p.deliver(message)
	}
}

func (p *WebSocketPeer) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-p.send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				p.logger.Error().Err(err).Msg("Peer write failed")
				p.shutdown(StateFailed)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.shutdown(StateFailed)
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *WebSocketPeer) Send(data []byte) error {
	if p.State() != StateConnected {
		return ErrNotOpen
	}
	msg := append([]byte(nil), data...)
	select {
	case p.send <- msg:
		return nil
	case <-p.done:
		return ErrNotOpen
	}
}

func (p *WebSocketPeer) Close() error {
	return p.shutdown(StateClosed)
}

// shutdown tears everything down once and reports state. Later calls are
// no-ops.
func (p *WebSocketPeer) shutdown(state State) error {
	var errs error
	p.once.Do(func() {
		close(p.done)

		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()

		if conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			// WriteControl may run concurrently with the write pump
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = multierror.Append(errs, fmt.Errorf("close connection: %w", err))
			}
		}
		if err := p.stopListening(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close listener: %w", err))
		}
	drain:
		for {
			select {
			case in := <-p.incoming:
				in.conn.Close()
			default:
				break drain
			}
		}
		p.setState(state)
	})
	return errs
}
