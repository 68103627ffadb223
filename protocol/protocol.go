package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Privacy is a room's visibility.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// RoomInfo is the body returned by the room-creation endpoints on both the
// relay and the hub.
type RoomInfo struct {
	ID        string  `json:"id"`
	Privacy   Privacy `json:"privacy"`
	RelayAddr string  `json:"relayAddr"`
}

// Opcode selects the message variant on the wire.
type Opcode uint8

const (
	OpcodeHello       Opcode = 0
	OpcodeChatMessage Opcode = 1
)

var (
	// ErrUnknownOpcode marks a frame whose opcode this version does not
	// recognize. Receivers log and drop the frame; the connection survives.
	ErrUnknownOpcode = errors.New("protocol: unknown opcode")

	// ErrTruncated marks a binary frame with no payload after the opcode
	// byte, or no opcode byte at all.
	ErrTruncated = errors.New("protocol: truncated frame")
)

// Hello tells a freshly connected client which connection id it was
// assigned. Sent server-to-client only.
type Hello struct {
	ID string `json:"id"`
}

// ChatMessage is user content fanned out to every other connection.
type ChatMessage struct {
	AuthorID string `json:"authorID"`
	Content  string `json:"content"`
}

// Message is the decoded tagged union. Exactly one of Hello and Chat is
// non-nil, matching Opcode.
type Message struct {
	Opcode Opcode
	Hello  *Hello
	Chat   *ChatMessage
}

// NewHello builds a handshake message carrying the assigned connection id.
func NewHello(id string) Message {
	return Message{Opcode: OpcodeHello, Hello: &Hello{ID: id}}
}

// NewChatMessage builds a broadcast message from authorID.
func NewChatMessage(authorID, content string) Message {
	return Message{Opcode: OpcodeChatMessage, Chat: &ChatMessage{AuthorID: authorID, Content: content}}
}

// AuthorID returns the originating connection id, or "" for messages that
// have no author (Hello).
func (m Message) AuthorID() string {
	if m.Chat != nil {
		return m.Chat.AuthorID
	}
	return ""
}

type envelope struct {
	Opcode Opcode          `json:"opcode"`
	Data   json.RawMessage `json:"data"`
}

// MarshalJSON encodes the canonical {"opcode":N,"data":{...}} envelope.
func (m Message) MarshalJSON() ([]byte, error) {
	data, err := m.payload()
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Opcode: m.Opcode, Data: data})
}

// UnmarshalJSON decodes the canonical envelope.
func (m *Message) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	decoded, err := fromPayload(env.Opcode, env.Data)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}

// EncodeJSON serializes m as the canonical text frame.
func EncodeJSON(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeJSON parses a text frame.
func DecodeJSON(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// EncodeBinary serializes m as an opcode-prefixed frame: one opcode byte
// followed by the UTF-8 JSON payload of the data object.
func EncodeBinary(m Message) ([]byte, error) {
	data, err := m.payload()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, byte(m.Opcode))
	return append(buf, data...), nil
}

// DecodeBinary parses an opcode-prefixed frame.
func DecodeBinary(b []byte) (Message, error) {
	if len(b) == 0 {
		return Message{}, ErrTruncated
	}
	op := Opcode(b[0])
	if len(b) == 1 {
		return Message{}, fmt.Errorf("%w: no payload after opcode %d", ErrTruncated, op)
	}
	return fromPayload(op, b[1:])
}

func (m Message) payload() ([]byte, error) {
	switch m.Opcode {
	case OpcodeHello:
		if m.Hello == nil {
			return nil, errors.New("protocol: hello message without payload")
		}
		return json.Marshal(m.Hello)
	case OpcodeChatMessage:
		if m.Chat == nil {
			return nil, errors.New("protocol: chat message without payload")
		}
		return json.Marshal(m.Chat)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, m.Opcode)
	}
}

func fromPayload(op Opcode, data []byte) (Message, error) {
	switch op {
	case OpcodeHello:
		var h Hello
		if err := json.Unmarshal(data, &h); err != nil {
			return Message{}, fmt.Errorf("protocol: decode hello: %w", err)
		}
		return Message{Opcode: op, Hello: &h}, nil
	case OpcodeChatMessage:
		var c ChatMessage
		if err := json.Unmarshal(data, &c); err != nil {
			return Message{}, fmt.Errorf("protocol: decode chat message: %w", err)
		}
		return Message{Opcode: op, Chat: &c}, nil
	default:
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownOpcode, op)
	}
}
