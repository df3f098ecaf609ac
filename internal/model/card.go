package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category is the kind of trading card. It selects which payload a Card carries.
type Category string

// Card categories.
const (
	CategoryPokemon Category = "pokemon"
	CategoryTrainer Category = "trainer"
	CategoryEnergy  Category = "energy"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPokemon, CategoryTrainer, CategoryEnergy:
		return true
	}
	return false
}

// PokemonDetails is the payload of a pokemon card.
type PokemonDetails struct {
	HP    int      `json:"hp,omitempty"`
	Types []string `json:"types,omitempty"`
	Stage string   `json:"stage,omitempty"`
}

// TrainerDetails is the payload of a trainer card.
type TrainerDetails struct {
	Subtype string `json:"subtype,omitempty"`
	Effect  string `json:"effect,omitempty"`
}

// EnergyDetails is the payload of an energy card.
type EnergyDetails struct {
	EnergyType string `json:"energy_type,omitempty"`
	Basic      bool   `json:"basic"`
}

// Card is a catalog entry. Exactly one of Pokemon, Trainer or Energy is set,
// matching Category.
type Card struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Category       Category        `json:"category"`
	Pokemon        *PokemonDetails `json:"pokemon,omitempty"`
	Trainer        *TrainerDetails `json:"trainer,omitempty"`
	Energy         *EnergyDetails  `json:"energy,omitempty"`
	SetCode        string          `json:"set_code,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Validate checks that the payload agrees with the category.
func (c *Card) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("card name required")
	}
	if !c.Category.Valid() {
		return fmt.Errorf("invalid card category %q", c.Category)
	}
	if c.EstimatedValue.IsNegative() {
		return fmt.Errorf("estimated value cannot be negative")
	}

	set := 0
	for _, present := range []bool{c.Pokemon != nil, c.Trainer != nil, c.Energy != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("card carries more than one category payload")
	}

	switch c.Category {
	case CategoryPokemon:
		if c.Trainer != nil || c.Energy != nil {
			return fmt.Errorf("pokemon card with non-pokemon payload")
		}
	case CategoryTrainer:
		if c.Pokemon != nil || c.Energy != nil {
			return fmt.Errorf("trainer card with non-trainer payload")
		}
	case CategoryEnergy:
		if c.Pokemon != nil || c.Trainer != nil {
			return fmt.Errorf("energy card with non-energy payload")
		}
	}
	return nil
}

// MarshalDetails encodes the category payload for storage.
func (c *Card) MarshalDetails() (string, error) {
	var payload any
	switch {
	case c.Category == CategoryPokemon && c.Pokemon != nil:
		payload = c.Pokemon
	case c.Category == CategoryTrainer && c.Trainer != nil:
		payload = c.Trainer
	case c.Category == CategoryEnergy && c.Energy != nil:
		payload = c.Energy
	default:
		return "{}", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding card details: %w", err)
	}
	return string(data), nil
}

// UnmarshalDetails decodes a stored payload into the field matching Category.
func (c *Card) UnmarshalDetails(raw string) error {
	if raw == "" {
		raw = "{}"
	}
	var err error
	switch c.Category {
	case CategoryPokemon:
		c.Pokemon = &PokemonDetails{}
		err = json.Unmarshal([]byte(raw), c.Pokemon)
	case CategoryTrainer:
		c.Trainer = &TrainerDetails{}
		err = json.Unmarshal([]byte(raw), c.Trainer)
	case CategoryEnergy:
		c.Energy = &EnergyDetails{}
		err = json.Unmarshal([]byte(raw), c.Energy)
	default:
		return fmt.Errorf("unknown card category %q", c.Category)
	}
	if err != nil {
		return fmt.Errorf("decoding card details: %w", err)
	}
	return nil
}
