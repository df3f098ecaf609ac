package trade

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// NewRequest holds the sender's input for a trade request.
type NewRequest struct {
	To              int64
	RequestedCardID *int64
	OfferedCardID   *int64
	OfferedPrice    decimal.NullDecimal
	TargetPrice     decimal.NullDecimal
	Note            string
}

// AcceptResult is the outcome of accepting a request: either a room was
// opened for negotiation, or the quick trade settled immediately.
type AcceptResult struct {
	Settled bool                `json:"settled"`
	Session *model.TradeSession `json:"session,omitempty"`
	Trade   *model.Trade        `json:"trade,omitempty"`
}

// CreateRequest records a pending trade request from one user to another.
// Prices default to the catalog values of the named cards. When the sender
// names both prices they must already be within the parity bound; settlement
// still checks the catalog values.
func (s *Service) CreateRequest(ctx context.Context, from int64, in NewRequest) (*model.TradeRequest, error) {
	if from == in.To {
		return nil, ErrSelfTrade
	}
	if in.RequestedCardID == nil && in.OfferedCardID == nil {
		return nil, ErrMissingCard
	}
	if err := s.checkPrices(in.OfferedPrice, in.TargetPrice); err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, s.db, in.To); err != nil {
		return nil, err
	}

	req := &model.TradeRequest{
		ID:              uuid.NewString(),
		FromUserID:      from,
		ToUserID:        in.To,
		RequestedCardID: in.RequestedCardID,
		OfferedPrice:    in.OfferedPrice,
		TargetPrice:     in.TargetPrice,
		Note:            in.Note,
		Status:          model.RequestPending,
		CreatedAt:       s.now(),
	}

	if in.RequestedCardID != nil {
		v, err := s.value(ctx, *in.RequestedCardID)
		if err != nil {
			return nil, err
		}
		if !req.TargetPrice.Valid {
			req.TargetPrice = decimal.NewNullDecimal(v)
		}
	}

	if in.OfferedCardID != nil {
		owned, err := store.GetOwnership(ctx, s.db, from, *in.OfferedCardID)
		if err != nil {
			return nil, err
		}
		if owned == nil {
			return nil, fmt.Errorf("%w: card %d", ErrInvalidOfferedCard, *in.OfferedCardID)
		}
		req.OfferedCard = &model.OfferedCard{
			CardID:       owned.CardID,
			DisplayName:  owned.CardName,
			DisplayImage: owned.ImageURL,
		}
		if !req.OfferedPrice.Valid {
			req.OfferedPrice = decimal.NewNullDecimal(owned.EstimatedValue)
		}
	}

	existing, err := store.FindPendingRequest(ctx, s.db, from, in.To, in.RequestedCardID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &DuplicateRequestError{ExistingID: existing.ID}
	}

	if err := store.InsertRequest(ctx, s.db, req); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race with a concurrent create for the same triple.
			if existing, _ := store.FindPendingRequest(ctx, s.db, from, in.To, in.RequestedCardID); existing != nil {
				return nil, &DuplicateRequestError{ExistingID: existing.ID}
			}
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}

	slog.Info("trade request created", "request", req.ID, "from", from, "to", in.To, "quick", req.Quick())
	return store.GetRequest(ctx, s.db, req.ID)
}

func (s *Service) checkPrices(offered, target decimal.NullDecimal) error {
	for _, p := range []decimal.NullDecimal{offered, target} {
		if p.Valid && p.Decimal.IsNegative() {
			return fmt.Errorf("%w: %s", ErrInvalidPrice, p.Decimal)
		}
	}
	if offered.Valid && target.Valid {
		if _, err := CheckParity(offered.Decimal, target.Decimal, s.maxDiff); err != nil {
			return err
		}
	}
	return nil
}

// GetRequest returns a request visible to the acting user.
func (s *Service) GetRequest(ctx context.Context, id string, actor int64) (*model.TradeRequest, error) {
	req, err := store.GetRequest(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if actor != req.FromUserID && actor != req.ToUserID {
		return nil, ErrForbidden
	}
	return req, nil
}

// ListRequests returns the acting user's requests in the given direction
// ("incoming", "outgoing" or both when empty), optionally by status.
func (s *Service) ListRequests(ctx context.Context, actor int64, direction string, status model.RequestStatus) ([]model.TradeRequest, error) {
	return store.ListRequests(ctx, s.db, actor, direction, status)
}

// AcceptRequest accepts a pending request addressed to the acting user.
//
// A quick request naming both cards settles at once if the values are
// within the parity bound; on ValueDiffTooHigh the request stays pending.
// Any other request opens a negotiation room and becomes accepted.
func (s *Service) AcceptRequest(ctx context.Context, id string, actor int64) (*AcceptResult, error) {
	var result *AcceptResult

	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		req, err := s.pendingRequestFor(ctx, tx, id, actor, false)
		if err != nil {
			return err
		}

		if req.Quick() && req.RequestedCardID != nil {
			t, err := s.settleQuick(ctx, tx, req)
			if err != nil {
				return err
			}
			result = &AcceptResult{Settled: true, Trade: t}
			return nil
		}

		session, err := s.openSession(ctx, tx, req)
		if err != nil {
			return err
		}
		result = &AcceptResult{Session: session}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Settled {
		slog.Info("quick trade settled", "request", id, "trade", result.Trade.ID)
		if t, err := store.GetTrade(ctx, s.db, result.Trade.ID); err == nil && t != nil {
			result.Trade = t
		}
	} else {
		slog.Info("trade request accepted", "request", id, "room", result.Session.RoomCode)
	}
	return result, nil
}

// OpenRoom opens a negotiation room for a pending request instead of
// accepting or rejecting it outright. The request becomes accepted and is
// completed when the room settles.
func (s *Service) OpenRoom(ctx context.Context, id string, actor int64) (*model.TradeSession, error) {
	var session *model.TradeSession
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		req, err := s.pendingRequestFor(ctx, tx, id, actor, false)
		if err != nil {
			return err
		}
		session, err = s.openSession(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("trade room opened", "request", id, "room", session.RoomCode)
	return session, nil
}

// RejectRequest rejects a pending request addressed to the acting user.
func (s *Service) RejectRequest(ctx context.Context, id string, actor int64) error {
	return s.finishRequest(ctx, id, actor, false, model.RequestRejected)
}

// CancelRequest withdraws a pending request sent by the acting user.
func (s *Service) CancelRequest(ctx context.Context, id string, actor int64) error {
	return s.finishRequest(ctx, id, actor, true, model.RequestCancelled)
}

func (s *Service) finishRequest(ctx context.Context, id string, actor int64, sender bool, to model.RequestStatus) error {
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.pendingRequestFor(ctx, tx, id, actor, sender); err != nil {
			return err
		}
		now := s.now()
		ok, err := store.TransitionRequest(ctx, tx, id, store.RequestTransition{
			From:       model.RequestPending,
			To:         to,
			FinishedAt: &now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("trade request finished", "request", id, "status", to, "user", actor)
	return nil
}

// pendingRequestFor loads a request and checks that actor is its sender (or
// recipient) and that it is still pending.
func (s *Service) pendingRequestFor(ctx context.Context, db store.DBTX, id string, actor int64, sender bool) (*model.TradeRequest, error) {
	req, err := store.GetRequest(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}

	party := req.ToUserID
	if sender {
		party = req.FromUserID
	}
	if actor != party {
		return nil, ErrForbidden
	}
	if req.Status != model.RequestPending {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidState, req.Status)
	}
	return req, nil
}

// settleQuick swaps the offered card for the requested one and completes the
// request.
func (s *Service) settleQuick(ctx context.Context, tx *sql.Tx, req *model.TradeRequest) (*model.Trade, error) {
	offered := req.OfferedCard.CardID
	requested := *req.RequestedCardID

	offeredValue, err := s.value(ctx, offered)
	if err != nil {
		return nil, err
	}
	requestedValue, err := s.value(ctx, requested)
	if err != nil {
		return nil, err
	}
	diff, err := CheckParity(offeredValue, requestedValue, s.maxDiff)
	if err != nil {
		return nil, err
	}

	qty, err := store.GetOwnedQuantity(ctx, tx, req.FromUserID, offered)
	if err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, fmt.Errorf("%w: card %d", ErrInvalidOfferedCard, offered)
	}

	now := s.now()
	t, err := Transfer(ctx, tx, Swap{
		InitiatorID:     req.FromUserID,
		ReceiverID:      req.ToUserID,
		InitiatorCardID: offered,
		ReceiverCardID:  requested,
		InitiatorValue:  offeredValue,
		ReceiverValue:   requestedValue,
		ValueDiffPct:    diff,
		RequestID:       &req.ID,
	}, now)
	if err != nil {
		return nil, err
	}

	ok, err := store.TransitionRequest(ctx, tx, req.ID, store.RequestTransition{
		From:       model.RequestPending,
		To:         model.RequestCompleted,
		FinishedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}
	return t, nil
}

// openSession creates the public session for a request and marks the
// request accepted.
//
// When the request names a requested card, the recipient must give that
// card. A quick request without one binds the sender to the offered card
// and leaves the recipient free to choose.
func (s *Service) openSession(ctx context.Context, tx *sql.Tx, req *model.TradeRequest) (*model.TradeSession, error) {
	session := &model.TradeSession{
		InitiatorID: req.FromUserID,
		ReceiverID:  req.ToUserID,
		TradeType:   model.TradePublic,
		Status:      model.SessionPending,
	}
	switch {
	case req.RequestedCardID != nil:
		session.RequestedCardID = req.RequestedCardID
		session.ConstrainedUserID = &req.ToUserID
	case req.OfferedCard != nil:
		session.RequestedCardID = &req.OfferedCard.CardID
		session.ConstrainedUserID = &req.FromUserID
	}

	if err := s.insertSession(ctx, tx, session); err != nil {
		return nil, err
	}

	ok, err := store.TransitionRequest(ctx, tx, req.ID, store.RequestTransition{
		From:      model.RequestPending,
		To:        model.RequestAccepted,
		SessionID: &session.ID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}

	return store.GetSession(ctx, tx, session.ID)
}

// insertSession assigns an id and a free room code and stores the session.
func (s *Service) insertSession(ctx context.Context, db store.DBTX, session *model.TradeSession) error {
	session.ID = uuid.NewString()
	session.CreatedAt = s.now()

	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := newRoomCode()
		if err != nil {
			return err
		}
		session.RoomCode = code

		err = store.InsertSession(ctx, db, session)
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("no free room code after %d attempts", roomCodeAttempts)
}
