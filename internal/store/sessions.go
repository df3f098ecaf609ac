package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/model"
)

const sessionColumns = `s.id, s.room_code, s.initiator_id, s.receiver_id, s.trade_type,
	s.requested_card_id, s.constrained_user_id,
	s.initiator_card_id, s.initiator_value, s.receiver_card_id, s.receiver_value,
	s.initiator_confirmed, s.receiver_confirmed, s.status, s.value_diff_pct, s.version,
	s.created_at, s.completed_at,
	(SELECT r.id FROM trade_requests r WHERE r.session_id = s.id LIMIT 1)`

// InsertSession stores a new trade session. Returns ErrConflict if the room
// code is already taken.
func InsertSession(ctx context.Context, db DBTX, s *model.TradeSession) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO trade_sessions (id, room_code, initiator_id, receiver_id, trade_type,
		        requested_card_id, constrained_user_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.RoomCode, s.InitiatorID, s.ReceiverID, s.TradeType,
		nullInt64(s.RequestedCardID), nullInt64(s.ConstrainedUserID), s.Status, s.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("inserting trade session: %w", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("inserting trade session: %w", err)
	}
	return nil
}

// GetSession returns a trade session by ID.
func GetSession(ctx context.Context, db DBTX, id string) (*model.TradeSession, error) {
	return getSessionWhere(ctx, db, `s.id = ?`, id)
}

// GetSessionByRoom returns the trade session owning a room code.
func GetSessionByRoom(ctx context.Context, db DBTX, roomCode string) (*model.TradeSession, error) {
	return getSessionWhere(ctx, db, `s.room_code = ?`, roomCode)
}

func getSessionWhere(ctx context.Context, db DBTX, where string, arg any) (*model.TradeSession, error) {
	s, err := scanSession(db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM trade_sessions s WHERE `+where, arg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting trade session: %w", err)
	}
	return s, nil
}

// ListSessions returns the sessions a user takes part in, newest first,
// optionally filtered by status.
func ListSessions(ctx context.Context, db DBTX, userID int64, status model.SessionStatus) ([]model.TradeSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM trade_sessions s
		WHERE (s.initiator_id = ? OR s.receiver_id = ?)`
	args := []any{userID, userID}
	if status != "" {
		query += ` AND s.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY s.created_at DESC, s.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing trade sessions: %w", err)
	}
	defer rows.Close()

	var out []model.TradeSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trade session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// UpdateSelection stores one party's selection and clears both
// confirmations. It applies only while the session is pending and still at
// the given version.
func UpdateSelection(ctx context.Context, db DBTX, id string, version int64, initiator bool, sel model.Selection) (bool, error) {
	query := `UPDATE trade_sessions
		SET receiver_card_id = ?, receiver_value = ?,
		    initiator_confirmed = 0, receiver_confirmed = 0, version = version + 1
		WHERE id = ? AND version = ? AND status = ?`
	if initiator {
		query = `UPDATE trade_sessions
		SET initiator_card_id = ?, initiator_value = ?,
		    initiator_confirmed = 0, receiver_confirmed = 0, version = version + 1
		WHERE id = ? AND version = ? AND status = ?`
	}

	res, err := db.ExecContext(ctx, query, sel.CardID, sel.EstimatedValue, id, version, model.SessionPending)
	if err != nil {
		return false, fmt.Errorf("updating selection: %w", err)
	}
	return affected(res)
}

// SetConfirmed records one party's completion confirmation, under the same
// pending-and-version condition as UpdateSelection.
func SetConfirmed(ctx context.Context, db DBTX, id string, version int64, initiator bool) (bool, error) {
	column := "receiver_confirmed"
	if initiator {
		column = "initiator_confirmed"
	}

	res, err := db.ExecContext(ctx,
		`UPDATE trade_sessions SET `+column+` = 1, version = version + 1
		 WHERE id = ? AND version = ? AND status = ?`,
		id, version, model.SessionPending,
	)
	if err != nil {
		return false, fmt.Errorf("recording confirmation: %w", err)
	}
	return affected(res)
}

// SessionTransition describes the terminal update of a pending session.
type SessionTransition struct {
	To           model.SessionStatus
	ValueDiffPct decimal.NullDecimal
	CompletedAt  *time.Time
}

// FinishSession moves a pending session at the given version to a terminal
// status and reports whether it did.
func FinishSession(ctx context.Context, db DBTX, id string, version int64, t SessionTransition) (bool, error) {
	var completed sql.NullTime
	if t.CompletedAt != nil {
		completed = sql.NullTime{Time: t.CompletedAt.UTC(), Valid: true}
	}

	res, err := db.ExecContext(ctx,
		`UPDATE trade_sessions
		 SET status = ?, value_diff_pct = ?, completed_at = ?, version = version + 1
		 WHERE id = ? AND version = ? AND status = ?`,
		t.To, t.ValueDiffPct, completed, id, version, model.SessionPending,
	)
	if err != nil {
		return false, fmt.Errorf("finishing trade session: %w", err)
	}
	return affected(res)
}

func scanSession(row rowScanner) (*model.TradeSession, error) {
	s := &model.TradeSession{}
	var requested, constrained, initCard, recvCard sql.NullInt64
	var initValue, recvValue decimal.NullDecimal
	var completed sql.NullTime
	var requestID sql.NullString
	if err := row.Scan(&s.ID, &s.RoomCode, &s.InitiatorID, &s.ReceiverID, &s.TradeType,
		&requested, &constrained,
		&initCard, &initValue, &recvCard, &recvValue,
		&s.InitiatorConfirmed, &s.ReceiverConfirmed, &s.Status, &s.ValueDiffPct, &s.Version,
		&s.CreatedAt, &completed, &requestID); err != nil {
		return nil, err
	}

	s.RequestedCardID = ptrInt64(requested)
	s.ConstrainedUserID = ptrInt64(constrained)
	if initCard.Valid {
		s.InitiatorSelection = &model.Selection{CardID: initCard.Int64, EstimatedValue: initValue.Decimal}
	}
	if recvCard.Valid {
		s.ReceiverSelection = &model.Selection{CardID: recvCard.Int64, EstimatedValue: recvValue.Decimal}
	}
	s.CompletedAt = ptrTime(completed)
	s.RequestID = ptrString(requestID)
	return s, nil
}
