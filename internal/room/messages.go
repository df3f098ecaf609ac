package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/menjava/internal/model"
)

var (
	// ErrUnknownCommand is returned for a message type the room does not handle.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMalformedCommand is returned for a frame that is not a valid envelope.
	ErrMalformedCommand = errors.New("malformed command")
)

// envelope is the wire frame of every command and event.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Command is a message sent by a client. The set of commands is closed.
type Command interface {
	command() string
}

// JoinRoom subscribes the connection to a room.
type JoinRoom struct {
	RoomCode string `json:"roomCode"`
}

// SelectCard puts one of the sender's cards on the table.
type SelectCard struct {
	RoomCode string `json:"roomCode"`
	CardID   int64  `json:"cardId"`
}

// SendMessage relays a chat line to the other occupant.
type SendMessage struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text"`
}

// CompleteTrade confirms the current selections. The optional card ids are
// the selections the sender saw.
type CompleteTrade struct {
	SessionID      string `json:"sessionId"`
	MyCardID       *int64 `json:"myCardId,omitempty"`
	OpponentCardID *int64 `json:"opponentCardId,omitempty"`
}

// RejectTrade ends the negotiation without a swap.
type RejectTrade struct {
	SessionID string `json:"sessionId"`
}

func (JoinRoom) command() string      { return "joinRoom" }
func (SelectCard) command() string    { return "selectCard" }
func (SendMessage) command() string   { return "sendMessage" }
func (CompleteTrade) command() string { return "completeTrade" }
func (RejectTrade) command() string   { return "rejectTrade" }

// DecodeCommand parses a client frame.
func DecodeCommand(raw []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	var cmd Command
	switch env.Type {
	case "joinRoom":
		cmd = &JoinRoom{}
	case "selectCard":
		cmd = &SelectCard{}
	case "sendMessage":
		cmd = &SendMessage{}
	case "completeTrade":
		cmd = &CompleteTrade{}
	case "rejectTrade":
		cmd = &RejectTrade{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, cmd); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedCommand, env.Type, err)
		}
	}
	return cmd, nil
}

// Event is a message sent to clients. The set of events is closed.
type Event interface {
	event() string
}

// Occupant is a user connected to a room.
type Occupant struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// RoomUsers is the current roster of a room.
type RoomUsers struct {
	RoomCode string     `json:"roomCode"`
	Users    []Occupant `json:"users"`
}

// SessionState is the full session snapshot sent to a joining client.
type SessionState struct {
	Session *model.TradeSession `json:"session"`
}

// CardSelected tells the other occupant which card a party chose.
type CardSelected struct {
	RoomCode string          `json:"roomCode"`
	User     Occupant        `json:"user"`
	Card     model.Selection `json:"card"`
}

// ReceiveMessage is a relayed chat line.
type ReceiveMessage struct {
	RoomCode string    `json:"roomCode"`
	User     Occupant  `json:"user"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

// TradeCompleted announces a settled swap.
type TradeCompleted struct {
	RoomCode string              `json:"roomCode"`
	Session  *model.TradeSession `json:"session"`
	Trade    *model.Trade        `json:"trade"`
}

// TradeRejected announces that a party ended the negotiation.
type TradeRejected struct {
	RoomCode string `json:"roomCode"`
	UserID   int64  `json:"userId"`
}

// TradeCancelled announces that the session was closed by the system.
type TradeCancelled struct {
	RoomCode string `json:"roomCode"`
}

// WaitingOtherUser tells the caller of completeTrade that its confirmation
// is recorded.
type WaitingOtherUser struct {
	SessionID string `json:"sessionId"`
}

// Error reports a failed command to its sender only.
type Error struct {
	Command string `json:"command,omitempty"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (RoomUsers) event() string        { return "roomUsers" }
func (SessionState) event() string     { return "sessionState" }
func (CardSelected) event() string     { return "cardSelected" }
func (ReceiveMessage) event() string   { return "receiveMessage" }
func (TradeCompleted) event() string   { return "tradeCompleted" }
func (TradeRejected) event() string    { return "tradeRejected" }
func (TradeCancelled) event() string   { return "tradeCancelled" }
func (WaitingOtherUser) event() string { return "waitingOtherUser" }
func (Error) event() string            { return "error" }

// EncodeEvent frames an event for the wire.
func EncodeEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", e.event(), err)
	}
	return json.Marshal(envelope{Type: e.event(), Data: data})
}
