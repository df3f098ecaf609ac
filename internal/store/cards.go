package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/menjava/internal/model"
)

const cardColumns = `id, name, category, details, set_code, image_url, estimated_value, created_at, updated_at`

// CreateCard adds a card to the catalog.
func CreateCard(ctx context.Context, db DBTX, c *model.Card) (*model.Card, error) {
	details, err := c.MarshalDetails()
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO cards (name, category, details, set_code, image_url, estimated_value)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Category, details, c.SetCode, c.ImageURL, c.EstimatedValue,
	)
	if err != nil {
		return nil, fmt.Errorf("creating card: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting card id: %w", err)
	}

	return GetCard(ctx, db, id)
}

// GetCard returns a card by ID.
func GetCard(ctx context.Context, db DBTX, id int64) (*model.Card, error) {
	c, err := scanCard(db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting card: %w", err)
	}
	return c, nil
}

// ListCards returns catalog cards, optionally filtered by category and a
// case-insensitive name fragment.
func ListCards(ctx context.Context, db DBTX, category model.Category, name string) ([]model.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE 1=1`
	var args []any

	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if name != "" {
		query += ` AND name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(name)+"%")
	}
	query += ` ORDER BY name, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	defer rows.Close()

	var cards []model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning card: %w", err)
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

// UpdateCard replaces a card's metadata and estimated value.
func UpdateCard(ctx context.Context, db DBTX, c *model.Card) error {
	details, err := c.MarshalDetails()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`UPDATE cards SET name = ?, category = ?, details = ?, set_code = ?, image_url = ?,
		        estimated_value = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		c.Name, c.Category, details, c.SetCode, c.ImageURL, c.EstimatedValue, c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating card: %w", err)
	}
	return nil
}

// GetCardValue returns a card's estimated value. The boolean is false if the
// card does not exist.
func GetCardValue(ctx context.Context, db DBTX, id int64) (decimal.Decimal, bool, error) {
	var v decimal.Decimal
	err := db.QueryRowContext(ctx,
		`SELECT estimated_value FROM cards WHERE id = ?`, id,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("getting card value: %w", err)
	}
	return v, true, nil
}

func scanCard(row rowScanner) (*model.Card, error) {
	c := &model.Card{}
	var details string
	var setCode, imageURL sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.Category, &details, &setCode, &imageURL,
		&c.EstimatedValue, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.SetCode = setCode.String
	c.ImageURL = imageURL.String
	if err := c.UnmarshalDetails(details); err != nil {
		return nil, err
	}
	return c, nil
}

func escapeLike(s string) string {
	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '%' || ch == '_' || ch == '\\' {
			r = append(r, '\\')
		}
		r = append(r, ch)
	}
	return string(r)
}
