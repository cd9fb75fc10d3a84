package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/maltedev/applicability-scraper/internal/ozon"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS listings (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	offer_id   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	article    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteStore keeps listings in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create listings table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) List(ctx context.Context, search string) ([]ozon.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM listings ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := []ozon.Listing{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}

		var l ozon.Listing
		if err := json.Unmarshal([]byte(payload), &l); err != nil {
			return nil, fmt.Errorf("failed to decode listing: %w", err)
		}
		if Matches(l, search) {
			listings = append(listings, l)
		}
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, listings []ozon.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listings (offer_id, name, article, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (offer_id) DO UPDATE
		SET name = excluded.name, article = excluded.article, payload = excluded.payload`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		payload, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to marshal listing %s: %w", l.OfferID, err)
		}
		if _, err := stmt.ExecContext(ctx, l.OfferID, l.Name, l.Article(), string(payload)); err != nil {
			return fmt.Errorf("failed to insert listing %s: %w", l.OfferID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, offerID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE offer_id = ?`, offerID); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
