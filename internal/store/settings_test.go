package store

import (
	"context"
	"testing"

	"github.com/erazemk/menjava/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// First call should generate a secret.
	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 == "" {
		t.Fatal("expected non-empty secret")
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestPutSettingIfAbsentKeepsFirstValue(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := PutSettingIfAbsent(ctx, database, "motd", "first"); err != nil {
		t.Fatal(err)
	}
	if err := PutSettingIfAbsent(ctx, database, "motd", "second"); err != nil {
		t.Fatal(err)
	}

	got, err := GetSetting(ctx, database, "motd")
	if err != nil {
		t.Fatal(err)
	}
	if got != "first" {
		t.Errorf("expected 'first', got %q", got)
	}
}
