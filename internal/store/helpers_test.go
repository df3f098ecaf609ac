package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/model"
)

func seedUser(t *testing.T, database *sql.DB, name string) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, name, "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("seeding user %s: %v", name, err)
	}
	return u
}

func seedCard(t *testing.T, database *sql.DB, name, value string) *model.Card {
	t.Helper()
	c, err := CreateCard(context.Background(), database, &model.Card{
		Name:           name,
		Category:       model.CategoryPokemon,
		Pokemon:        &model.PokemonDetails{HP: 60, Types: []string{"lightning"}},
		EstimatedValue: decimal.RequireFromString(value),
	})
	if err != nil {
		t.Fatalf("seeding card %s: %v", name, err)
	}
	return c
}
