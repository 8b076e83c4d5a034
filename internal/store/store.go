package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/confide/internal/recorder"
)

const schema = `
CREATE TABLE IF NOT EXISTS study_documents (
	id             uuid PRIMARY KEY,
	collection     text NOT NULL,
	participant_id text NOT NULL,
	recorded_at    timestamptz NOT NULL,
	body           jsonb NOT NULL,
	created_at     timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS study_documents_participant_idx
	ON study_documents (collection, participant_id, recorded_at);
`

// Store is the PostgreSQL remote sink. Every document lands in one jsonb table.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Put implements recorder.Sink.
func (s *Store) Put(ctx context.Context, doc recorder.Document) error {
	body, err := json.Marshal(doc.Body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", doc.Collection, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO study_documents (id, collection, participant_id, recorded_at, body)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), doc.Collection, doc.ParticipantID, doc.Timestamp.UTC(), body,
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", doc.Collection, err)
	}
	return nil
}

// CountDocuments returns how many documents a participant has in a collection.
func (s *Store) CountDocuments(ctx context.Context, collection, participantID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM study_documents
		WHERE collection = $1 AND participant_id = $2`,
		collection, participantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
