package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/menjava/internal/model"
)

const tradeColumns = `t.id, t.session_id, t.request_id, t.initiator_id, t.receiver_id,
	t.initiator_card_id, t.receiver_card_id, t.initiator_value, t.receiver_value,
	t.value_diff_pct, t.completed_at,
	iu.username, ru.username, ic.name, rc.name`

const tradeJoins = ` FROM trades t
	JOIN users iu ON iu.id = t.initiator_id
	JOIN users ru ON ru.id = t.receiver_id
	JOIN cards ic ON ic.id = t.initiator_card_id
	JOIN cards rc ON rc.id = t.receiver_card_id`

// InsertTrade records a settled swap and returns its ID.
func InsertTrade(ctx context.Context, db DBTX, t *model.Trade) (int64, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO trades (session_id, request_id, initiator_id, receiver_id,
		        initiator_card_id, receiver_card_id, initiator_value, receiver_value,
		        value_diff_pct, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, t.RequestID, t.InitiatorID, t.ReceiverID,
		t.InitiatorCardID, t.ReceiverCardID, t.InitiatorValue, t.ReceiverValue,
		t.ValueDiffPct, t.CompletedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording trade: %w", err)
	}
	return result.LastInsertId()
}

// GetTrade returns a settled trade by ID.
func GetTrade(ctx context.Context, db DBTX, id int64) (*model.Trade, error) {
	t, err := scanTrade(db.QueryRowContext(ctx,
		`SELECT `+tradeColumns+tradeJoins+` WHERE t.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting trade: %w", err)
	}
	return t, nil
}

// ListTrades returns settled trades, optionally only those a user took part
// in, newest first.
func ListTrades(ctx context.Context, db DBTX, userID int64) ([]model.Trade, error) {
	query := `SELECT ` + tradeColumns + tradeJoins + ` WHERE 1=1`
	var args []any

	if userID > 0 {
		query += ` AND (t.initiator_id = ? OR t.receiver_id = ?)`
		args = append(args, userID, userID)
	}
	query += ` ORDER BY t.completed_at DESC, t.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

func scanTrade(row rowScanner) (*model.Trade, error) {
	t := &model.Trade{}
	var session, request sql.NullString
	if err := row.Scan(&t.ID, &session, &request, &t.InitiatorID, &t.ReceiverID,
		&t.InitiatorCardID, &t.ReceiverCardID, &t.InitiatorValue, &t.ReceiverValue,
		&t.ValueDiffPct, &t.CompletedAt,
		&t.InitiatorName, &t.ReceiverName, &t.InitiatorCardName, &t.ReceiverCardName); err != nil {
		return nil, err
	}
	t.SessionID = ptrString(session)
	t.RequestID = ptrString(request)
	return t, nil
}
