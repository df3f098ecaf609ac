// Package catalog serves card estimated values, caching them in memory.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// DefaultCacheSize is used when a non-positive size is configured.
const DefaultCacheSize = 1024

// ErrUnknownCard is returned when a card does not exist in the catalog.
var ErrUnknownCard = errors.New("unknown card")

// Catalog reads cards and their estimated values. Values are cached until the
// card is updated through the catalog.
type Catalog struct {
	db    *sql.DB
	cache *lru.Cache

	mu  sync.Mutex
	gen uint64 // bumped by every invalidation
}

// New creates a catalog backed by db with an LRU of the given size.
func New(db *sql.DB, size int) (*Catalog, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating value cache: %w", err)
	}
	return &Catalog{db: db, cache: cache}, nil
}

// EstimatedValue returns the current estimated value of a card.
func (c *Catalog) EstimatedValue(ctx context.Context, cardID int64) (decimal.Decimal, error) {
	if v, ok := c.cache.Get(cardID); ok {
		return v.(decimal.Decimal), nil
	}

	gen := c.generation()
	v, found, err := store.GetCardValue(ctx, c.db, cardID)
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, fmt.Errorf("card %d: %w", cardID, ErrUnknownCard)
	}
	c.remember(cardID, v, gen)
	return v, nil
}

func (c *Catalog) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// remember caches a value read at generation gen, unless an invalidation
// happened since the read started.
func (c *Catalog) remember(cardID int64, v decimal.Decimal, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.cache.Add(cardID, v)
	}
}

// Card returns a catalog entry, or nil if it does not exist.
func (c *Catalog) Card(ctx context.Context, cardID int64) (*model.Card, error) {
	return store.GetCard(ctx, c.db, cardID)
}

// Cards lists catalog entries, optionally filtered by category and name.
func (c *Catalog) Cards(ctx context.Context, category model.Category, name string) ([]model.Card, error) {
	return store.ListCards(ctx, c.db, category, name)
}

// Create validates and stores a new card.
func (c *Catalog) Create(ctx context.Context, card *model.Card) (*model.Card, error) {
	if err := card.Validate(); err != nil {
		return nil, err
	}
	created, err := store.CreateCard(ctx, c.db, card)
	if err != nil {
		return nil, err
	}
	c.cache.Add(created.ID, created.EstimatedValue)
	return created, nil
}

// Update validates and stores a changed card and drops its cached value.
func (c *Catalog) Update(ctx context.Context, card *model.Card) error {
	if err := card.Validate(); err != nil {
		return err
	}
	c.Invalidate(card.ID)
	err := store.UpdateCard(ctx, c.db, card)
	c.Invalidate(card.ID)
	return err
}

// Invalidate drops the cached value of a card. Reads already in flight do
// not cache what they return.
func (c *Catalog) Invalidate(cardID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Remove(cardID)
}
