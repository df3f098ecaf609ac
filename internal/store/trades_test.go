package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
)

func TestInsertAndListTrades(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ash := seedUser(t, database, "ash")
	misty := seedUser(t, database, "misty")
	brock := seedUser(t, database, "brock")
	pika := seedCard(t, database, "Pikachu", "10")
	staryu := seedCard(t, database, "Staryu", "10.5")

	id, err := InsertTrade(ctx, database, &model.Trade{
		InitiatorID:     ash.ID,
		ReceiverID:      misty.ID,
		InitiatorCardID: pika.ID,
		ReceiverCardID:  staryu.ID,
		InitiatorValue:  decimal.RequireFromString("10"),
		ReceiverValue:   decimal.RequireFromString("10.5"),
		ValueDiffPct:    decimal.RequireFromString("4.76"),
		CompletedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("InsertTrade: %v", err)
	}

	got, err := GetTrade(ctx, database, id)
	if err != nil || got == nil {
		t.Fatalf("GetTrade: %v, %v", got, err)
	}
	if got.InitiatorCardName != "Pikachu" || got.ReceiverName != "misty" {
		t.Errorf("unexpected joined fields: %+v", got)
	}
	if got.SessionID != nil || got.RequestID != nil {
		t.Error("expected no session or request link")
	}

	mine, _ := ListTrades(ctx, database, misty.ID)
	if len(mine) != 1 {
		t.Errorf("expected 1 trade for misty, got %d", len(mine))
	}
	none, _ := ListTrades(ctx, database, brock.ID)
	if len(none) != 0 {
		t.Errorf("expected 0 trades for brock, got %d", len(none))
	}
}
