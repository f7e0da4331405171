package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceRepo reads the latest quotes written by the external price job.
type PriceRepo struct {
	db *DB
}

func NewPriceRepository(db *DB) *PriceRepo {
	return &PriceRepo{db: db}
}

func (r *PriceRepo) LatestPrice(ctx context.Context, ticker string) (*Price, error) {
	var p Price
	var raw, asOf string

	err := r.db.QueryRowContext(ctx, `
		SELECT ticker, price, currency, as_of
		FROM prices
		WHERE ticker = ?
		ORDER BY as_of DESC
		LIMIT 1
	`, strings.ToUpper(ticker)).Scan(&p.Ticker, &raw, &p.Currency, &asOf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}

	if p.Price, err = decimal.NewFromString(raw); err != nil {
		return nil, fmt.Errorf("failed to parse price %q for %s: %w", raw, p.Ticker, err)
	}
	if p.AsOf, err = parseTime(asOf); err != nil {
		return nil, err
	}

	return &p, nil
}
