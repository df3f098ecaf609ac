package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a TradeRequest.
type RequestStatus string

// Trade request statuses.
const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
	RequestCompleted RequestStatus = "completed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestCancelled || s == RequestCompleted
}

// OfferedCard describes the card the sender puts up in a quick trade.
type OfferedCard struct {
	CardID       int64  `json:"card_id"`
	DisplayName  string `json:"display_name,omitempty"`
	DisplayImage string `json:"display_image,omitempty"`
}

// TradeRequest is a one-sided proposal from one user to another.
type TradeRequest struct {
	ID              string              `json:"id"`
	FromUserID      int64               `json:"from_user_id"`
	ToUserID        int64               `json:"to_user_id"`
	RequestedCardID *int64              `json:"requested_card_id,omitempty"`
	OfferedCard     *OfferedCard        `json:"offered_card,omitempty"`
	OfferedPrice    decimal.NullDecimal `json:"offered_price"`
	TargetPrice     decimal.NullDecimal `json:"target_price"`
	Note            string              `json:"note,omitempty"`
	Status          RequestStatus       `json:"status"`
	SessionID       *string             `json:"session_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	FinishedAt      *time.Time          `json:"finished_at,omitempty"`

	// Joined fields (not always populated).
	FromUsername      string `json:"from_username,omitempty"`
	ToUsername        string `json:"to_username,omitempty"`
	RequestedCardName string `json:"requested_card_name,omitempty"`
}

// Quick reports whether the request carries an offered card and can settle
// without a negotiation room.
func (r *TradeRequest) Quick() bool {
	return r.OfferedCard != nil
}
