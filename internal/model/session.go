package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the lifecycle state of a TradeSession.
type SessionStatus string

// Trade session statuses.
const (
	SessionPending   SessionStatus = "pending"
	SessionAccepted  SessionStatus = "accepted"
	SessionRejected  SessionStatus = "rejected"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s SessionStatus) Terminal() bool {
	return s == SessionRejected || s == SessionCompleted || s == SessionCancelled
}

// TradeType distinguishes marketplace negotiations from friend rooms.
type TradeType string

// Trade types.
const (
	TradePublic  TradeType = "public"
	TradePrivate TradeType = "private"
)

// Selection is the card one party currently puts on the table.
type Selection struct {
	CardID         int64           `json:"card_id"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
}

// TradeSession is a two-party negotiation and the unit of settlement.
type TradeSession struct {
	ID                 string              `json:"id"`
	RoomCode           string              `json:"room_code"`
	InitiatorID        int64               `json:"initiator_id"`
	ReceiverID         int64               `json:"receiver_id"`
	TradeType          TradeType           `json:"trade_type"`
	RequestedCardID    *int64              `json:"requested_card_id,omitempty"`
	ConstrainedUserID  *int64              `json:"constrained_user_id,omitempty"`
	InitiatorSelection *Selection          `json:"initiator_selection,omitempty"`
	ReceiverSelection  *Selection          `json:"receiver_selection,omitempty"`
	InitiatorConfirmed bool                `json:"initiator_confirmed"`
	ReceiverConfirmed  bool                `json:"receiver_confirmed"`
	Status             SessionStatus       `json:"status"`
	ValueDiffPct       decimal.NullDecimal `json:"value_difference_percentage"`
	Version            int64               `json:"version"`
	CreatedAt          time.Time           `json:"created_at"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`

	// Set when the session was opened from a trade request.
	RequestID *string `json:"request_id,omitempty"`
}

// Participant reports whether userID is one of the two parties.
func (s *TradeSession) Participant(userID int64) bool {
	return userID == s.InitiatorID || userID == s.ReceiverID
}

// Counterpart returns the other party's id.
func (s *TradeSession) Counterpart(userID int64) int64 {
	if userID == s.InitiatorID {
		return s.ReceiverID
	}
	return s.InitiatorID
}

// SelectionOf returns the given party's current selection, or nil.
func (s *TradeSession) SelectionOf(userID int64) *Selection {
	if userID == s.InitiatorID {
		return s.InitiatorSelection
	}
	if userID == s.ReceiverID {
		return s.ReceiverSelection
	}
	return nil
}

// Confirmed reports whether the given party has confirmed completion.
func (s *TradeSession) Confirmed(userID int64) bool {
	if userID == s.InitiatorID {
		return s.InitiatorConfirmed
	}
	if userID == s.ReceiverID {
		return s.ReceiverConfirmed
	}
	return false
}

// Constrains reports whether userID must select the requested card.
func (s *TradeSession) Constrains(userID int64) bool {
	return s.RequestedCardID != nil && s.ConstrainedUserID != nil && *s.ConstrainedUserID == userID
}
