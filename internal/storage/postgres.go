package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/maltedev/applicability-scraper/internal/database"
	"github.com/maltedev/applicability-scraper/internal/ozon"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS listings (
	seq        BIGSERIAL,
	offer_id   TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	article    TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const postgresArticleIndex = `CREATE INDEX IF NOT EXISTS listings_article_idx ON listings (article)`

type PostgresStore struct {
	db *database.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := database.New(ctx, database.DefaultConfig(dsn))
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx, postgresSchema, postgresArticleIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare listings table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) List(ctx context.Context, search string) ([]ozon.Listing, error) {
	query := `SELECT payload FROM listings ORDER BY seq`
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		query = `SELECT payload FROM listings WHERE name ILIKE $1 OR article ILIKE $1 ORDER BY seq`
		args = append(args, likePattern(search))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	listings := []ozon.Listing{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}

		var l ozon.Listing
		if err := json.Unmarshal(payload, &l); err != nil {
			return nil, fmt.Errorf("failed to decode listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}

	return listings, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns search into a substring pattern with LIKE wildcards escaped.
func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

func (s *PostgresStore) Append(ctx context.Context, listings []ozon.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	query := `
		INSERT INTO listings (offer_id, name, article, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (offer_id) DO UPDATE
		SET name = EXCLUDED.name, article = EXCLUDED.article, payload = EXCLUDED.payload`

	batch := &pgx.Batch{}
	for _, l := range listings {
		payload, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to marshal listing %s: %w", l.OfferID, err)
		}
		batch.Queue(query, l.OfferID, l.Name, l.Article(), payload)
	}

	if err := s.db.SendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to insert listings: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, offerID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM listings WHERE offer_id = $1`, offerID); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
