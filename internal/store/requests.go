package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/menjava/internal/model"
)

// Request list directions, relative to the listing user.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

const requestColumns = `r.id, r.from_user_id, r.to_user_id, r.requested_card_id,
	r.offered_card_id, r.offered_name, r.offered_image, r.offered_price, r.target_price,
	r.note, r.status, r.session_id, r.created_at, r.finished_at,
	fu.username, tu.username, COALESCE(c.name, '')`

const requestJoins = ` FROM trade_requests r
	JOIN users fu ON fu.id = r.from_user_id
	JOIN users tu ON tu.id = r.to_user_id
	LEFT JOIN cards c ON c.id = r.requested_card_id`

// InsertRequest stores a new trade request. Returns ErrConflict if a pending
// request for the same (from, to, requested card) already exists.
func InsertRequest(ctx context.Context, db DBTX, r *model.TradeRequest) error {
	var offeredID sql.NullInt64
	var offeredName, offeredImage sql.NullString
	if r.OfferedCard != nil {
		offeredID = sql.NullInt64{Int64: r.OfferedCard.CardID, Valid: true}
		offeredName = sql.NullString{String: r.OfferedCard.DisplayName, Valid: true}
		offeredImage = sql.NullString{String: r.OfferedCard.DisplayImage, Valid: true}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO trade_requests (id, from_user_id, to_user_id, requested_card_id,
		        offered_card_id, offered_name, offered_image, offered_price, target_price,
		        note, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FromUserID, r.ToUserID, nullInt64(r.RequestedCardID),
		offeredID, offeredName, offeredImage, r.OfferedPrice, r.TargetPrice,
		r.Note, r.Status, r.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("inserting trade request: %w", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("inserting trade request: %w", err)
	}
	return nil
}

// GetRequest returns a trade request by ID.
func GetRequest(ctx context.Context, db DBTX, id string) (*model.TradeRequest, error) {
	r, err := scanRequest(db.QueryRowContext(ctx,
		`SELECT `+requestColumns+requestJoins+` WHERE r.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting trade request: %w", err)
	}
	return r, nil
}

// FindPendingRequest returns the pending request for the given triple, if any.
func FindPendingRequest(ctx context.Context, db DBTX, fromUserID, toUserID int64, requestedCardID *int64) (*model.TradeRequest, error) {
	var cardKey int64
	if requestedCardID != nil {
		cardKey = *requestedCardID
	}

	r, err := scanRequest(db.QueryRowContext(ctx,
		`SELECT `+requestColumns+requestJoins+`
		 WHERE r.from_user_id = ? AND r.to_user_id = ? AND IFNULL(r.requested_card_id, 0) = ?
		   AND r.status = ?`,
		fromUserID, toUserID, cardKey, model.RequestPending,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding pending trade request: %w", err)
	}
	return r, nil
}

// ListRequests returns requests sent or received by a user, newest first.
// An empty direction lists both; an empty status lists every status.
func ListRequests(ctx context.Context, db DBTX, userID int64, direction string, status model.RequestStatus) ([]model.TradeRequest, error) {
	query := `SELECT ` + requestColumns + requestJoins
	var args []any

	switch direction {
	case DirectionIncoming:
		query += ` WHERE r.to_user_id = ?`
		args = append(args, userID)
	case DirectionOutgoing:
		query += ` WHERE r.from_user_id = ?`
		args = append(args, userID)
	default:
		query += ` WHERE (r.from_user_id = ? OR r.to_user_id = ?)`
		args = append(args, userID, userID)
	}

	if status != "" {
		query += ` AND r.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY r.created_at DESC, r.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing trade requests: %w", err)
	}
	defer rows.Close()

	var out []model.TradeRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trade request: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// RequestTransition describes a conditional status change of a trade request.
type RequestTransition struct {
	From       model.RequestStatus
	To         model.RequestStatus
	FinishedAt *time.Time
	SessionID  *string
}

// TransitionRequest moves a request from one status to another. It only
// applies while the stored status still equals t.From, and reports whether
// it did. A nil SessionID keeps the stored link.
func TransitionRequest(ctx context.Context, db DBTX, id string, t RequestTransition) (bool, error) {
	var finished sql.NullTime
	if t.FinishedAt != nil {
		finished = sql.NullTime{Time: t.FinishedAt.UTC(), Valid: true}
	}
	var session sql.NullString
	if t.SessionID != nil {
		session = sql.NullString{String: *t.SessionID, Valid: true}
	}

	res, err := db.ExecContext(ctx,
		`UPDATE trade_requests
		 SET status = ?, finished_at = COALESCE(finished_at, ?), session_id = COALESCE(?, session_id)
		 WHERE id = ? AND status = ?`,
		t.To, finished, session, id, t.From,
	)
	if err != nil {
		return false, fmt.Errorf("updating trade request status: %w", err)
	}
	return affected(res)
}

// PurgeFinishedRequests deletes requests that finished before the cutoff.
func PurgeFinishedRequests(ctx context.Context, db DBTX, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM trade_requests WHERE finished_at IS NOT NULL AND finished_at < ?`,
		before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging finished trade requests: %w", err)
	}
	return res.RowsAffected()
}

func scanRequest(row rowScanner) (*model.TradeRequest, error) {
	r := &model.TradeRequest{}
	var requested, offeredID sql.NullInt64
	var offeredName, offeredImage, note, session sql.NullString
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.FromUserID, &r.ToUserID, &requested,
		&offeredID, &offeredName, &offeredImage, &r.OfferedPrice, &r.TargetPrice,
		&note, &r.Status, &session, &r.CreatedAt, &finished,
		&r.FromUsername, &r.ToUsername, &r.RequestedCardName); err != nil {
		return nil, err
	}

	r.RequestedCardID = ptrInt64(requested)
	if offeredID.Valid {
		r.OfferedCard = &model.OfferedCard{
			CardID:       offeredID.Int64,
			DisplayName:  offeredName.String,
			DisplayImage: offeredImage.String,
		}
	}
	r.Note = note.String
	r.SessionID = ptrString(session)
	r.FinishedAt = ptrTime(finished)
	return r, nil
}
