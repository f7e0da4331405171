package database

import (
	"context"
	"fmt"
	"strings"
)

// ReferenceRepo reads the ticker and alias reference tables.
type ReferenceRepo struct {
	db *DB
}

func NewReferenceRepository(db *DB) *ReferenceRepo {
	return &ReferenceRepo{db: db}
}

func (r *ReferenceRepo) LoadAliases(ctx context.Context) ([]Alias, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.alias, a.ticker
		FROM ticker_aliases a
		JOIN tickers t ON t.ticker = a.ticker
		WHERE t.active = 1
		ORDER BY a.alias
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	defer rows.Close()

	var aliases []Alias
	for rows.Next() {
		var a Alias
		if err := rows.Scan(&a.Alias, &a.Ticker); err != nil {
			return nil, fmt.Errorf("failed to scan alias row: %w", err)
		}
		aliases = append(aliases, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alias rows: %w", err)
	}

	return aliases, nil
}

func (r *ReferenceRepo) LoadValidTickers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ticker FROM tickers WHERE active = 1 ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker row: %w", err)
		}
		tickers = append(tickers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticker rows: %w", err)
	}

	return tickers, nil
}

// SeedAliases upserts tickers and their aliases. Aliases are stored lower-cased; an alias that
// already points to another ticker is re-pointed.
func (r *ReferenceRepo) SeedAliases(ctx context.Context, seeds []TickerSeed) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, seed := range seeds {
		ticker := strings.ToUpper(strings.TrimSpace(seed.Ticker))
		if ticker == "" {
			continue
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO tickers (ticker, name, active) VALUES (?, ?, 1)
			ON CONFLICT (ticker) DO UPDATE SET name = excluded.name, active = 1
		`, ticker, seed.Name)
		if err != nil {
			return fmt.Errorf("failed to upsert ticker %s: %w", ticker, err)
		}

		for _, alias := range seed.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias == "" {
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO ticker_aliases (alias, ticker) VALUES (?, ?)
				ON CONFLICT (alias) DO UPDATE SET ticker = excluded.ticker
			`, alias, ticker)
			if err != nil {
				return fmt.Errorf("failed to upsert alias %q: %w", alias, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit aliases: %w", err)
	}

	return nil
}
