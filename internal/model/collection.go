package model

import "github.com/shopspring/decimal"

// Ownership is a user's holding of one catalog card.
type Ownership struct {
	UserID   int64 `json:"user_id"`
	CardID   int64 `json:"card_id"`
	Quantity int   `json:"quantity"`
	ForTrade bool  `json:"for_trade"`

	// Joined fields (not always populated).
	CardName       string          `json:"card_name,omitempty"`
	Category       Category        `json:"category,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	Username       string          `json:"username,omitempty"`
}
