package trade

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/menjava/internal/catalog"
	"github.com/erazemk/menjava/internal/db"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

type fixture struct {
	db     *sql.DB
	svc    *Service
	cat    *catalog.Catalog
	events *recorder
	clock  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)

	cat, err := catalog.New(database, 64)
	require.NoError(t, err)

	f := &fixture{
		db:     database,
		cat:    cat,
		events: &recorder{},
		clock:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(database, cat, Options{Now: func() time.Time { return f.clock }})
	f.svc.SetNotifier(f.events)
	return f
}

func (f *fixture) user(t *testing.T, name string) int64 {
	t.Helper()
	u, err := store.CreateUser(context.Background(), f.db, name, "hash", model.RoleUser)
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) card(t *testing.T, name, value string) int64 {
	t.Helper()
	c, err := f.cat.Create(context.Background(), &model.Card{
		Name:           name,
		Category:       model.CategoryPokemon,
		Pokemon:        &model.PokemonDetails{HP: 70},
		EstimatedValue: decimal.RequireFromString(value),
	})
	require.NoError(t, err)
	return c.ID
}

func (f *fixture) give(t *testing.T, userID, cardID int64, qty int) {
	t.Helper()
	require.NoError(t, store.AddToCollection(context.Background(), f.db, userID, cardID, qty, true))
}

func (f *fixture) owned(t *testing.T, userID, cardID int64) int {
	t.Helper()
	qty, err := store.GetOwnedQuantity(context.Background(), f.db, userID, cardID)
	require.NoError(t, err)
	return qty
}

// recorder collects notifications.
type recorder struct {
	mu        sync.Mutex
	selected  []int64
	completed []string
	rejected  []string
	cancelled []string
}

func (r *recorder) CardSelected(s *model.TradeSession, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = append(r.selected, userID)
}

func (r *recorder) TradeCompleted(s *model.TradeSession, t *model.Trade) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, s.ID)
}

func (r *recorder) TradeRejected(s *model.TradeSession, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, s.ID)
}

func (r *recorder) TradeCancelled(s *model.TradeSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, s.ID)
}

func ptr[T any](v T) *T { return &v }
