package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the settlement record of a completed card swap.
type Trade struct {
	ID              int64           `json:"id"`
	SessionID       *string         `json:"session_id,omitempty"`
	RequestID       *string         `json:"request_id,omitempty"`
	InitiatorID     int64           `json:"initiator_id"`
	ReceiverID      int64           `json:"receiver_id"`
	InitiatorCardID int64           `json:"initiator_card_id"`
	ReceiverCardID  int64           `json:"receiver_card_id"`
	InitiatorValue  decimal.Decimal `json:"initiator_value"`
	ReceiverValue   decimal.Decimal `json:"receiver_value"`
	ValueDiffPct    decimal.Decimal `json:"value_difference_percentage"`
	CompletedAt     time.Time       `json:"completed_at"`

	// Joined fields (not always populated).
	InitiatorName     string `json:"initiator_name,omitempty"`
	ReceiverName      string `json:"receiver_name,omitempty"`
	InitiatorCardName string `json:"initiator_card_name,omitempty"`
	ReceiverCardName  string `json:"receiver_card_name,omitempty"`
}
