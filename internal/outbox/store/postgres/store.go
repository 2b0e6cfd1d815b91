package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"careflow/internal/outbox"
)

// Store persists outbox entries in PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry outbox.Entry) error {
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.AggregateType, entry.AggregateID, entry.EventType,
		entry.Payload, entry.Status, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append outbox entry: %w", err)
	}
	return nil
}

// FetchPending returns up to limit pending entries, oldest first, so retried
// events for one patient keep their original order.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Entry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status, created_at, processed_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []outbox.Entry
	for rows.Next() {
		var entry outbox.Entry
		err := rows.Scan(&entry.ID, &entry.AggregateType, &entry.AggregateID,
			&entry.EventType, &entry.Payload, &entry.Status, &entry.CreatedAt, &entry.ProcessedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkProcessed flips entries to processed in one round trip.
func (s *Store) MarkProcessed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	query := `
		UPDATE outbox
		SET status = 'processed', processed_at = now()
		WHERE id = ANY($1::uuid[])
	`
	_, err := s.db.ExecContext(ctx, query, pq.Array(raw))
	if err != nil {
		return fmt.Errorf("mark outbox entries processed: %w", err)
	}
	return nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM outbox WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending outbox entries: %w", err)
	}
	return count, nil
}
