package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
)

func TestCreateAndGetCard(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	card, err := CreateCard(ctx, database, &model.Card{
		Name:           "Professor's Research",
		Category:       model.CategoryTrainer,
		Trainer:        &model.TrainerDetails{Subtype: "supporter", Effect: "Draw 7 cards."},
		SetCode:        "SVI",
		EstimatedValue: decimal.RequireFromString("1.25"),
	})
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	got, err := GetCard(ctx, database, card.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.Category != model.CategoryTrainer || got.Trainer == nil {
		t.Fatalf("expected trainer payload, got %+v", got)
	}
	if got.Trainer.Subtype != "supporter" {
		t.Errorf("expected subtype 'supporter', got %q", got.Trainer.Subtype)
	}
	if got.Pokemon != nil || got.Energy != nil {
		t.Error("expected only the trainer payload to be set")
	}
	if !got.EstimatedValue.Equal(decimal.RequireFromString("1.25")) {
		t.Errorf("expected value 1.25, got %s", got.EstimatedValue)
	}

	missing, err := GetCard(ctx, database, 999)
	if err != nil || missing != nil {
		t.Errorf("expected nil for missing card, got %v, %v", missing, err)
	}
}

func TestListCardsFiltered(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	seedCard(t, database, "Pikachu", "2")
	seedCard(t, database, "Raichu", "3")
	CreateCard(ctx, database, &model.Card{
		Name:     "Lightning Energy",
		Category: model.CategoryEnergy,
		Energy:   &model.EnergyDetails{EnergyType: "lightning", Basic: true},
	})

	all, _ := ListCards(ctx, database, "", "")
	if len(all) != 3 {
		t.Errorf("expected 3 cards, got %d", len(all))
	}

	energy, _ := ListCards(ctx, database, model.CategoryEnergy, "")
	if len(energy) != 1 || energy[0].Energy == nil || !energy[0].Energy.Basic {
		t.Errorf("expected one basic energy card, got %+v", energy)
	}

	byName, _ := ListCards(ctx, database, "", "chu")
	if len(byName) != 2 {
		t.Errorf("expected 2 cards matching 'chu', got %d", len(byName))
	}

	literal, _ := ListCards(ctx, database, "", "%")
	if len(literal) != 0 {
		t.Errorf("expected '%%' to match literally, got %d cards", len(literal))
	}
}

func TestUpdateCardValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	card := seedCard(t, database, "Mew", "10")
	card.EstimatedValue = decimal.RequireFromString("12.50")
	if err := UpdateCard(ctx, database, card); err != nil {
		t.Fatalf("UpdateCard: %v", err)
	}

	v, ok, err := GetCardValue(ctx, database, card.ID)
	if err != nil || !ok {
		t.Fatalf("GetCardValue: %v, found=%v", err, ok)
	}
	if !v.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("expected 12.5, got %s", v)
	}

	_, ok, _ = GetCardValue(ctx, database, 999)
	if ok {
		t.Error("expected missing card to report not found")
	}
}
