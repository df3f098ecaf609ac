// Package trade implements trade requests, negotiation sessions and their
// settlement as an atomic card swap.
package trade

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/catalog"
	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// DefaultRequestTTL is how long finished requests are kept.
const DefaultRequestTTL = 48 * time.Hour

// Valuer supplies the current estimated value of a card.
type Valuer interface {
	EstimatedValue(ctx context.Context, cardID int64) (decimal.Decimal, error)
}

// Notifier is told about committed session changes so connected clients can
// be updated. Calls happen after the change is durable.
type Notifier interface {
	CardSelected(s *model.TradeSession, userID int64)
	TradeCompleted(s *model.TradeSession, t *model.Trade)
	TradeRejected(s *model.TradeSession, userID int64)
	TradeCancelled(s *model.TradeSession)
}

type nopNotifier struct{}

func (nopNotifier) CardSelected(*model.TradeSession, int64) {}
func (nopNotifier) TradeCompleted(*model.TradeSession, *model.Trade) {}
func (nopNotifier) TradeRejected(*model.TradeSession, int64) {}
func (nopNotifier) TradeCancelled(*model.TradeSession) {}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	MaxValueDiffPct decimal.Decimal
	RequestTTL      time.Duration
	Now             func() time.Time
}

// Service runs the trade request ledger, the session state machine and
// settlement against the database.
type Service struct {
	db      *sql.DB
	values  Valuer
	notify  Notifier
	maxDiff decimal.Decimal
	ttl     time.Duration
	now     func() time.Time
}

// NewService creates a trade service.
func NewService(db *sql.DB, values Valuer, opts Options) *Service {
	s := &Service{
		db:      db,
		values:  values,
		notify:  nopNotifier{},
		maxDiff: opts.MaxValueDiffPct,
		ttl:     opts.RequestTTL,
		now:     opts.Now,
	}
	if !s.maxDiff.IsPositive() {
		s.maxDiff = DefaultMaxValueDiffPct
	}
	if s.ttl <= 0 {
		s.ttl = DefaultRequestTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetNotifier installs the receiver of session change notifications.
func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notify = n
}

// MaxValueDiffPct returns the configured parity bound.
func (s *Service) MaxValueDiffPct() decimal.Decimal {
	return s.maxDiff
}

func (s *Service) value(ctx context.Context, cardID int64) (decimal.Decimal, error) {
	v, err := s.values.EstimatedValue(ctx, cardID)
	if errors.Is(err, catalog.ErrUnknownCard) {
		return decimal.Zero, fmt.Errorf("card %d: %w", cardID, ErrNotFound)
	}
	return v, err
}

func (s *Service) requireUser(ctx context.Context, db store.DBTX, id int64) error {
	u, err := store.GetUser(ctx, db, id)
	if err != nil {
		return err
	}
	if u == nil || u.DeletedAt != nil {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
	roomCodeAttempts = 5
)

// newRoomCode returns a short human-shareable room code.
func newRoomCode() (string, error) {
	b := make([]byte, roomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating room code: %w", err)
	}
	for i := range b {
		b[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}
	return string(b), nil
}
