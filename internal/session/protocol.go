package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/justinabrahms/debuffchess/internal/chess"
	"github.com/justinabrahms/debuffchess/internal/debuff"
)

// MessageType discriminates the four frames peers exchange.
type MessageType string

const (
	MessageMove     MessageType = "MOVE"
	MessageDebuff   MessageType = "DEBUFF"
	MessageReset    MessageType = "RESET"
	MessageGameOver MessageType = "GAME_OVER"
)

// ErrInvalidMessage is returned by Decode for frames that cannot be applied.
var ErrInvalidMessage = errors.New("session: invalid message")

type MovePayload struct {
	From chess.Coord `json:"from"`
	To   chess.Coord `json:"to"`
}

type DebuffPayload struct {
	DebuffID debuff.ID `json:"debuffId"`
}

// ResetPayload distinguishes a new-match request from its acknowledgement.
// Only a request resets the receiver.
type ResetPayload struct {
	IsRequest bool `json:"isRequest"`
}

type GameOverPayload struct {
	Winner chess.Color `json:"winner"`
}

// Message is a decoded frame. Exactly one payload field is set, matching Type.
type Message struct {
	Type     MessageType
	Move     *MovePayload
	Debuff   *DebuffPayload
	Reset    *ResetPayload
	GameOver *GameOverPayload
}

type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func MoveMessage(from, to chess.Coord) Message {
	return Message{Type: MessageMove, Move: &MovePayload{From: from, To: to}}
}

func DebuffMessage(id debuff.ID) Message {
	return Message{Type: MessageDebuff, Debuff: &DebuffPayload{DebuffID: id}}
}

func ResetMessage(isRequest bool) Message {
	return Message{Type: MessageReset, Reset: &ResetPayload{IsRequest: isRequest}}
}

func GameOverMessage(winner chess.Color) Message {
	return Message{Type: MessageGameOver, GameOver: &GameOverPayload{Winner: winner}}
}

func (m Message) payload() (interface{}, error) {
	switch m.Type {
	case MessageMove:
		return m.Move, nil
	case MessageDebuff:
		return m.Debuff, nil
	case MessageReset:
		return m.Reset, nil
	case MessageGameOver:
		return m.GameOver, nil
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
}

// Encode renders m as a single JSON text frame.
func Encode(m Message) ([]byte, error) {
	p, err := m.payload()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", m.Type, err)
	}
	return json.Marshal(envelope{Type: m.Type, Payload: raw})
}

// Decode parses and validates a frame. A RESET without payload is a request.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	raw := bytes.TrimSpace(env.Payload)
	empty := len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("{}"))

	m := Message{Type: env.Type}
	var target interface{}
	switch env.Type {
	case MessageMove:
		m.Move = &MovePayload{}
		target = m.Move
	case MessageDebuff:
		m.Debuff = &DebuffPayload{}
		target = m.Debuff
	case MessageReset:
		m.Reset = &ResetPayload{IsRequest: true}
		if empty {
			return m, nil
		}
		target = m.Reset
	case MessageGameOver:
		m.GameOver = &GameOverPayload{}
		target = m.GameOver
	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, env.Type)
	}

	if len(raw) == 0 {
		return Message{}, fmt.Errorf("%w: %s without payload", ErrInvalidMessage, env.Type)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return Message{}, fmt.Errorf("%w: %s payload: %v", ErrInvalidMessage, env.Type, err)
	}

	switch {
	case m.Move != nil && (!m.Move.From.Valid() || !m.Move.To.Valid()):
		return Message{}, fmt.Errorf("%w: move off the board", ErrInvalidMessage)
	case m.Debuff != nil && m.Debuff.DebuffID == "":
		return Message{}, fmt.Errorf("%w: missing debuffId", ErrInvalidMessage)
	case m.GameOver != nil && m.GameOver.Winner == chess.NoColor:
		return Message{}, fmt.Errorf("%w: missing winner", ErrInvalidMessage)
	}
	return m, nil
}
