package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// Swap is an exchange where each party gives one copy of a card to the other.
type Swap struct {
	InitiatorID     int64
	ReceiverID      int64
	InitiatorCardID int64
	ReceiverCardID  int64
	InitiatorValue  decimal.Decimal
	ReceiverValue   decimal.Decimal
	ValueDiffPct    decimal.Decimal

	SessionID *string
	RequestID *string
}

// CheckHoldings verifies that both parties still hold the card they give.
func CheckHoldings(ctx context.Context, db store.DBTX, sw Swap) error {
	holdings := []struct{ user, card int64 }{
		{sw.InitiatorID, sw.InitiatorCardID},
		{sw.ReceiverID, sw.ReceiverCardID},
	}
	for _, h := range holdings {
		qty, err := store.GetOwnedQuantity(ctx, db, h.user, h.card)
		if err != nil {
			return err
		}
		if qty < 1 {
			return fmt.Errorf("%w: user %d, card %d", ErrCardNotOwned, h.user, h.card)
		}
	}
	return nil
}

// Transfer checks both holdings, moves one copy of each card to the other
// party and records the trade. db must be a transaction that already holds
// the write lock, so no other settlement can spend the same copies between
// the check and the move. Nothing is written if a holding is missing.
func Transfer(ctx context.Context, db store.DBTX, sw Swap, at time.Time) (*model.Trade, error) {
	if err := CheckHoldings(ctx, db, sw); err != nil {
		return nil, err
	}

	if err := store.TransferOne(ctx, db, sw.InitiatorID, sw.ReceiverID, sw.InitiatorCardID); err != nil {
		return nil, transferError(err)
	}
	if err := store.TransferOne(ctx, db, sw.ReceiverID, sw.InitiatorID, sw.ReceiverCardID); err != nil {
		return nil, transferError(err)
	}

	t := &model.Trade{
		SessionID:       sw.SessionID,
		RequestID:       sw.RequestID,
		InitiatorID:     sw.InitiatorID,
		ReceiverID:      sw.ReceiverID,
		InitiatorCardID: sw.InitiatorCardID,
		ReceiverCardID:  sw.ReceiverCardID,
		InitiatorValue:  sw.InitiatorValue,
		ReceiverValue:   sw.ReceiverValue,
		ValueDiffPct:    sw.ValueDiffPct.Round(2),
		CompletedAt:     at,
	}
	id, err := store.InsertTrade(ctx, db, t)
	if err != nil {
		return nil, err
	}
	t.ID = id
	return t, nil
}

func transferError(err error) error {
	if errors.Is(err, store.ErrInsufficientQuantity) {
		return fmt.Errorf("%w: %v", ErrCardNotOwned, err)
	}
	return err
}
