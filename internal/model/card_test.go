package model

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCardValidate(t *testing.T) {
	tests := []struct {
		name    string
		card    Card
		wantErr bool
	}{
		{"pokemon", Card{Name: "Pikachu", Category: CategoryPokemon, Pokemon: &PokemonDetails{HP: 60}}, false},
		{"trainer without payload", Card{Name: "Potion", Category: CategoryTrainer}, false},
		{"energy", Card{Name: "Fire Energy", Category: CategoryEnergy, Energy: &EnergyDetails{EnergyType: "fire", Basic: true}}, false},
		{"missing name", Card{Category: CategoryPokemon}, true},
		{"unknown category", Card{Name: "X", Category: "item"}, true},
		{"mismatched payload", Card{Name: "Potion", Category: CategoryTrainer, Pokemon: &PokemonDetails{}}, true},
		{"two payloads", Card{Name: "X", Category: CategoryEnergy, Energy: &EnergyDetails{}, Trainer: &TrainerDetails{}}, true},
		{"negative value", Card{Name: "X", Category: CategoryEnergy, EstimatedValue: decimal.NewFromInt(-1)}, true},
	}

	for _, tt := range tests {
		err := tt.card.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestCardDetailsRoundTrip(t *testing.T) {
	c := Card{Name: "Charmander", Category: CategoryPokemon, Pokemon: &PokemonDetails{HP: 50, Types: []string{"fire"}, Stage: "basic"}}
	raw, err := c.MarshalDetails()
	if err != nil {
		t.Fatalf("MarshalDetails: %v", err)
	}

	decoded := Card{Category: CategoryPokemon}
	if err := decoded.UnmarshalDetails(raw); err != nil {
		t.Fatalf("UnmarshalDetails: %v", err)
	}
	if decoded.Pokemon == nil || decoded.Pokemon.HP != 50 || decoded.Pokemon.Stage != "basic" {
		t.Errorf("unexpected details: %+v", decoded.Pokemon)
	}
	if decoded.Trainer != nil || decoded.Energy != nil {
		t.Error("expected only the pokemon payload to be set")
	}

	unknown := Card{Category: "item"}
	if err := unknown.UnmarshalDetails("{}"); err == nil {
		t.Error("expected error for unknown category")
	}
}
