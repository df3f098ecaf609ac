package trade

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/model"
	"github.com/erazemk/menjava/internal/store"
)

// Outcome is the result of a successful Complete call.
type Outcome string

const (
	// OutcomeWaiting means the caller's confirmation is recorded and the
	// other party has not confirmed yet.
	OutcomeWaiting Outcome = "waiting_other_user"
	// OutcomeCompleted means both parties confirmed and the swap settled.
	OutcomeCompleted Outcome = "completed"
)

// Expectation is the caller's view of both selections when confirming. If
// the stored selections differ, Complete fails with ErrSelectionChanged.
type Expectation struct {
	MyCardID       int64
	OpponentCardID int64
}

// CompleteResult reports what a Complete call achieved.
type CompleteResult struct {
	Outcome Outcome             `json:"outcome"`
	Session *model.TradeSession `json:"session"`
	Trade   *model.Trade        `json:"trade,omitempty"`
}

// CreatePrivateRoom opens a private session between the acting user and
// another user, without a requested card.
func (s *Service) CreatePrivateRoom(ctx context.Context, actor, with int64) (*model.TradeSession, error) {
	if actor == with {
		return nil, ErrSelfTrade
	}
	if err := s.requireUser(ctx, s.db, with); err != nil {
		return nil, err
	}

	session := &model.TradeSession{
		InitiatorID: actor,
		ReceiverID:  with,
		TradeType:   model.TradePrivate,
		Status:      model.SessionPending,
	}
	if err := s.insertSession(ctx, s.db, session); err != nil {
		return nil, err
	}

	slog.Info("private trade room created", "room", session.RoomCode, "initiator", actor, "receiver", with)
	return store.GetSession(ctx, s.db, session.ID)
}

// GetSession returns a session the acting user takes part in.
func (s *Service) GetSession(ctx context.Context, id string, actor int64) (*model.TradeSession, error) {
	session, err := store.GetSession(ctx, s.db, id)
	return checkParticipant(session, err, id, actor)
}

// SessionForRoom resolves a room code to the session behind it. Only the two
// parties may see it or join its room.
func (s *Service) SessionForRoom(ctx context.Context, roomCode string, actor int64) (*model.TradeSession, error) {
	session, err := store.GetSessionByRoom(ctx, s.db, roomCode)
	return checkParticipant(session, err, roomCode, actor)
}

// ListSessions returns the acting user's sessions, optionally by status.
func (s *Service) ListSessions(ctx context.Context, actor int64, status model.SessionStatus) ([]model.TradeSession, error) {
	return store.ListSessions(ctx, s.db, actor, status)
}

func checkParticipant(session *model.TradeSession, err error, ref string, actor int64) (*model.TradeSession, error) {
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %s: %w", ref, ErrNotFound)
	}
	if !session.Participant(actor) {
		return nil, ErrForbidden
	}
	return session, nil
}

// pendingSessionFor loads a session inside a transaction and checks that the
// actor takes part in it and that it is still pending.
func pendingSessionFor(ctx context.Context, db store.DBTX, id string, actor int64) (*model.TradeSession, error) {
	session, err := store.GetSession(ctx, db, id)
	session, err = checkParticipant(session, err, id, actor)
	if err != nil {
		return nil, err
	}
	if session.Status != model.SessionPending {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, session.Status)
	}
	return session, nil
}

// SelectCard puts one of the acting user's cards on the table, replacing any
// earlier selection. Both confirmations are cleared so neither party settles
// on a selection they have not seen.
func (s *Service) SelectCard(ctx context.Context, sessionID string, actor, cardID int64) (*model.TradeSession, error) {
	value, err := s.value(ctx, cardID)
	if err != nil {
		return nil, err
	}

	var session *model.TradeSession
	err = store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		cur, err := pendingSessionFor(ctx, tx, sessionID, actor)
		if err != nil {
			return err
		}
		if cur.Constrains(actor) && cardID != *cur.RequestedCardID {
			return fmt.Errorf("%w: card %d", ErrCardNotAllowed, cardID)
		}

		qty, err := store.GetOwnedQuantity(ctx, tx, actor, cardID)
		if err != nil {
			return err
		}
		if qty < 1 {
			return fmt.Errorf("%w: card %d", ErrCardNotOwned, cardID)
		}

		ok, err := store.UpdateSelection(ctx, tx, cur.ID, cur.Version, actor == cur.InitiatorID, model.Selection{
			CardID:         cardID,
			EstimatedValue: value,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}

		session, err = store.GetSession(ctx, tx, cur.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("card selected", "room", session.RoomCode, "user", actor, "card", cardID)
	s.notify.CardSelected(session, actor)
	return session, nil
}

// Complete confirms the acting user's agreement to swap the current
// selections.
//
// Validation failures change nothing. The first confirmation is recorded and
// returns OutcomeWaiting; repeating it before the other party confirms is a
// no-op. The second confirmation settles the swap. If settlement then fails
// because a card is no longer held, the confirmation is kept and the error
// returned, and ownership is left untouched.
func (s *Service) Complete(ctx context.Context, sessionID string, actor int64, expect *Expectation) (*CompleteResult, error) {
	var result *CompleteResult
	var settleErr error

	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		cur, err := pendingSessionFor(ctx, tx, sessionID, actor)
		if err != nil {
			return err
		}

		sw, err := s.validateSwap(ctx, cur, actor, expect)
		if err != nil {
			return err
		}

		if cur.Confirmed(actor) && !cur.Confirmed(cur.Counterpart(actor)) {
			result = &CompleteResult{Outcome: OutcomeWaiting, Session: cur}
			return nil
		}

		if !cur.Confirmed(actor) {
			ok, err := store.SetConfirmed(ctx, tx, cur.ID, cur.Version, actor == cur.InitiatorID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidState
			}
			cur.Version++
		}

		if !cur.Confirmed(cur.Counterpart(actor)) {
			cur, err = store.GetSession(ctx, tx, cur.ID)
			if err != nil {
				return err
			}
			result = &CompleteResult{Outcome: OutcomeWaiting, Session: cur}
			return nil
		}

		// Both parties have confirmed. A missing holding keeps the
		// confirmation but settles nothing.
		if err := CheckHoldings(ctx, tx, sw); err != nil {
			settleErr = err
			return nil
		}

		now := s.now()
		t, err := Transfer(ctx, tx, sw, now)
		if err != nil {
			return err
		}

		ok, err := store.FinishSession(ctx, tx, cur.ID, cur.Version, store.SessionTransition{
			To:           model.SessionCompleted,
			ValueDiffPct: decimal.NewNullDecimal(sw.ValueDiffPct.Round(2)),
			CompletedAt:  &now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}

		if cur.RequestID != nil {
			if _, err := store.TransitionRequest(ctx, tx, *cur.RequestID, store.RequestTransition{
				From:       model.RequestAccepted,
				To:         model.RequestCompleted,
				FinishedAt: &now,
			}); err != nil {
				return err
			}
		}

		cur, err = store.GetSession(ctx, tx, cur.ID)
		if err != nil {
			return err
		}
		result = &CompleteResult{Outcome: OutcomeCompleted, Session: cur, Trade: t}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if settleErr != nil {
		slog.Warn("trade settlement failed", "session", sessionID, "user", actor, "error", settleErr)
		return nil, settleErr
	}

	if result.Outcome == OutcomeCompleted {
		if t, err := store.GetTrade(ctx, s.db, result.Trade.ID); err == nil && t != nil {
			result.Trade = t
		}
		slog.Info("trade settled", "room", result.Session.RoomCode, "trade", result.Trade.ID,
			"value_diff_pct", result.Session.ValueDiffPct.Decimal.String())
		s.notify.TradeCompleted(result.Session, result.Trade)
	}
	return result, nil
}

// validateSwap checks that a pending session can settle as it stands and
// returns the swap it would perform, valued at current catalog values.
func (s *Service) validateSwap(ctx context.Context, cur *model.TradeSession, actor int64, expect *Expectation) (Swap, error) {
	if cur.InitiatorSelection == nil || cur.ReceiverSelection == nil {
		return Swap{}, ErrBothMustSelect
	}

	if expect != nil {
		mine := cur.SelectionOf(actor)
		theirs := cur.SelectionOf(cur.Counterpart(actor))
		if mine.CardID != expect.MyCardID || theirs.CardID != expect.OpponentCardID {
			return Swap{}, ErrSelectionChanged
		}
	}

	if cur.RequestedCardID != nil && cur.ConstrainedUserID != nil {
		constrained := cur.SelectionOf(*cur.ConstrainedUserID)
		if constrained == nil || constrained.CardID != *cur.RequestedCardID {
			return Swap{}, fmt.Errorf("%w: card %d required", ErrRequestedCardMismatch, *cur.RequestedCardID)
		}
	}

	initValue, err := s.value(ctx, cur.InitiatorSelection.CardID)
	if err != nil {
		return Swap{}, err
	}
	recvValue, err := s.value(ctx, cur.ReceiverSelection.CardID)
	if err != nil {
		return Swap{}, err
	}
	diff, err := CheckParity(initValue, recvValue, s.maxDiff)
	if err != nil {
		return Swap{}, err
	}

	return Swap{
		InitiatorID:     cur.InitiatorID,
		ReceiverID:      cur.ReceiverID,
		InitiatorCardID: cur.InitiatorSelection.CardID,
		ReceiverCardID:  cur.ReceiverSelection.CardID,
		InitiatorValue:  initValue,
		ReceiverValue:   recvValue,
		ValueDiffPct:    diff,
		SessionID:       &cur.ID,
		RequestID:       cur.RequestID,
	}, nil
}

// RejectSession ends a pending session without a swap. A linked request is
// finished as rejected.
func (s *Service) RejectSession(ctx context.Context, sessionID string, actor int64) (*model.TradeSession, error) {
	session, err := s.closeSession(ctx, sessionID, &actor, model.SessionRejected, model.RequestRejected)
	if err != nil {
		return nil, err
	}

	slog.Info("trade rejected", "room", session.RoomCode, "user", actor)
	s.notify.TradeRejected(session, actor)
	return session, nil
}

// CancelUserSessions cancels every pending session and request of a user,
// for example when the account is removed. It returns the number of
// sessions cancelled.
func (s *Service) CancelUserSessions(ctx context.Context, userID int64) (int, error) {
	sessions, err := store.ListSessions(ctx, s.db, userID, model.SessionPending)
	if err != nil {
		return 0, err
	}

	var cancelled []*model.TradeSession
	for _, sess := range sessions {
		closed, err := s.closeSession(ctx, sess.ID, nil, model.SessionCancelled, model.RequestCancelled)
		if err != nil {
			if errors.Is(err, ErrInvalidState) {
				continue
			}
			return len(cancelled), err
		}
		cancelled = append(cancelled, closed)
	}

	requests, err := store.ListRequests(ctx, s.db, userID, "", model.RequestPending)
	if err != nil {
		return len(cancelled), err
	}
	now := s.now()
	for _, req := range requests {
		if _, err := store.TransitionRequest(ctx, s.db, req.ID, store.RequestTransition{
			From:       model.RequestPending,
			To:         model.RequestCancelled,
			FinishedAt: &now,
		}); err != nil {
			return len(cancelled), err
		}
	}

	for _, sess := range cancelled {
		s.notify.TradeCancelled(sess)
	}
	if len(cancelled) > 0 || len(requests) > 0 {
		slog.Info("user trades cancelled", "user", userID, "sessions", len(cancelled), "requests", len(requests))
	}
	return len(cancelled), nil
}

// closeSession moves a pending session to a terminal status other than
// completed and finishes its accepted request. A nil actor skips the
// participant check.
func (s *Service) closeSession(ctx context.Context, sessionID string, actor *int64, to model.SessionStatus, reqTo model.RequestStatus) (*model.TradeSession, error) {
	var session *model.TradeSession
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var cur *model.TradeSession
		var err error
		if actor != nil {
			cur, err = pendingSessionFor(ctx, tx, sessionID, *actor)
		} else {
			cur, err = store.GetSession(ctx, tx, sessionID)
			if err == nil && (cur == nil || cur.Status != model.SessionPending) {
				err = ErrInvalidState
			}
		}
		if err != nil {
			return err
		}

		ok, err := store.FinishSession(ctx, tx, cur.ID, cur.Version, store.SessionTransition{To: to})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}

		if cur.RequestID != nil {
			now := s.now()
			if _, err := store.TransitionRequest(ctx, tx, *cur.RequestID, store.RequestTransition{
				From:       model.RequestAccepted,
				To:         reqTo,
				FinishedAt: &now,
			}); err != nil {
				return err
			}
		}

		session, err = store.GetSession(ctx, tx, cur.ID)
		return err
	})
	return session, err
}
