package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/menjava/internal/model"
)

// ErrInsufficientQuantity is returned when a holding cannot cover a decrement.
var ErrInsufficientQuantity = errors.New("insufficient quantity")

const ownershipColumns = `col.user_id, col.card_id, col.quantity, col.for_trade,
	c.name, c.category, COALESCE(c.image_url, ''), c.estimated_value, u.username`

const ownershipJoins = ` FROM collection col
	JOIN cards c ON c.id = col.card_id
	JOIN users u ON u.id = col.user_id`

// AddToCollection adds quantity copies of a card to a user's collection.
func AddToCollection(ctx context.Context, db DBTX, userID, cardID int64, quantity int, forTrade bool) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO collection (user_id, card_id, quantity, for_trade) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, card_id) DO UPDATE SET quantity = quantity + excluded.quantity`,
		userID, cardID, quantity, forTrade,
	)
	if err != nil {
		return fmt.Errorf("adding to collection: %w", err)
	}
	return nil
}

// GetOwnership returns a user's holding of a card, or nil if they hold none.
func GetOwnership(ctx context.Context, db DBTX, userID, cardID int64) (*model.Ownership, error) {
	o, err := scanOwnership(db.QueryRowContext(ctx,
		`SELECT `+ownershipColumns+ownershipJoins+` WHERE col.user_id = ? AND col.card_id = ?`,
		userID, cardID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting ownership: %w", err)
	}
	return o, nil
}

// GetOwnedQuantity returns how many copies of a card a user holds.
func GetOwnedQuantity(ctx context.Context, db DBTX, userID, cardID int64) (int, error) {
	var qty int
	err := db.QueryRowContext(ctx,
		`SELECT quantity FROM collection WHERE user_id = ? AND card_id = ?`,
		userID, cardID,
	).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting owned quantity: %w", err)
	}
	return qty, nil
}

// ListCollection returns all holdings of a user.
func ListCollection(ctx context.Context, db DBTX, userID int64) ([]model.Ownership, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+ownershipColumns+ownershipJoins+` WHERE col.user_id = ? ORDER BY c.name`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing collection: %w", err)
	}
	defer rows.Close()
	return scanOwnerships(rows)
}

// ListMarket returns holdings other users marked for trade, optionally for a
// single card. Holdings of excludeUserID are left out.
func ListMarket(ctx context.Context, db DBTX, excludeUserID, cardID int64) ([]model.Ownership, error) {
	query := `SELECT ` + ownershipColumns + ownershipJoins + `
		WHERE col.for_trade = 1 AND u.deleted_at IS NULL AND col.user_id <> ?`
	args := []any{excludeUserID}

	if cardID > 0 {
		query += ` AND col.card_id = ?`
		args = append(args, cardID)
	}
	query += ` ORDER BY c.name, u.username`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing market: %w", err)
	}
	defer rows.Close()
	return scanOwnerships(rows)
}

// SetForTrade flags or unflags a holding as available for trade. The boolean
// is false if the user does not hold the card.
func SetForTrade(ctx context.Context, db DBTX, userID, cardID int64, forTrade bool) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE collection SET for_trade = ? WHERE user_id = ? AND card_id = ?`,
		forTrade, userID, cardID,
	)
	if err != nil {
		return false, fmt.Errorf("updating for_trade flag: %w", err)
	}
	return affected(res)
}

// AdjustCollection changes the quantity of a holding by delta (for corrections).
// If the resulting quantity is 0, the row is deleted.
func AdjustCollection(ctx context.Context, db *sql.DB, userID, cardID int64, delta int) error {
	if delta == 0 {
		return fmt.Errorf("delta must be non-zero")
	}

	return WithTx(ctx, db, func(tx *sql.Tx) error {
		current, err := GetOwnedQuantity(ctx, tx, userID, cardID)
		if err != nil {
			return err
		}

		newQty := current + delta
		if newQty < 0 {
			return fmt.Errorf("%w: have %d, adjusting by %d", ErrInsufficientQuantity, current, delta)
		}

		switch {
		case newQty == 0:
			_, err = tx.ExecContext(ctx,
				`DELETE FROM collection WHERE user_id = ? AND card_id = ?`,
				userID, cardID,
			)
		case current == 0:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO collection (user_id, card_id, quantity) VALUES (?, ?, ?)`,
				userID, cardID, newQty,
			)
		default:
			_, err = tx.ExecContext(ctx,
				`UPDATE collection SET quantity = ? WHERE user_id = ? AND card_id = ?`,
				newQty, userID, cardID,
			)
		}
		if err != nil {
			return fmt.Errorf("adjusting collection: %w", err)
		}
		return nil
	})
}

// TransferOne moves a single copy of a card between two users. The source
// row is removed when its last copy leaves; the destination row is created
// if absent. Callers run it inside a transaction together with the checks
// that justify it.
func TransferOne(ctx context.Context, db DBTX, fromUserID, toUserID, cardID int64) error {
	if fromUserID == toUserID {
		return fmt.Errorf("cannot transfer to same user")
	}

	res, err := db.ExecContext(ctx,
		`UPDATE collection SET quantity = quantity - 1
		 WHERE user_id = ? AND card_id = ? AND quantity > 1`,
		fromUserID, cardID,
	)
	if err != nil {
		return fmt.Errorf("decrementing source holding: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		res, err = db.ExecContext(ctx,
			`DELETE FROM collection WHERE user_id = ? AND card_id = ? AND quantity = 1`,
			fromUserID, cardID,
		)
		if err != nil {
			return fmt.Errorf("removing source holding: %w", err)
		}
		if ok, err = affected(res); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("user %d, card %d: %w", fromUserID, cardID, ErrInsufficientQuantity)
		}
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO collection (user_id, card_id, quantity) VALUES (?, ?, 1)
		 ON CONFLICT (user_id, card_id) DO UPDATE SET quantity = quantity + 1`,
		toUserID, cardID,
	)
	if err != nil {
		return fmt.Errorf("updating destination holding: %w", err)
	}
	return nil
}

func scanOwnership(row rowScanner) (*model.Ownership, error) {
	o := &model.Ownership{}
	if err := row.Scan(&o.UserID, &o.CardID, &o.Quantity, &o.ForTrade,
		&o.CardName, &o.Category, &o.ImageURL, &o.EstimatedValue, &o.Username); err != nil {
		return nil, err
	}
	return o, nil
}

func scanOwnerships(rows *sql.Rows) ([]model.Ownership, error) {
	var out []model.Ownership
	for rows.Next() {
		o, err := scanOwnership(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ownership: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
