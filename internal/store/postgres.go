package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrNotFound reports a lookup miss.
var ErrNotFound = errors.New("signal not found")

// PostgresStore persists signals in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings the database.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSignal(ctx context.Context, rec SignalRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (id, event_id, event_type, asset, action, direction, confidence, risk_flags, signal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO UPDATE SET
			event_type = EXCLUDED.event_type,
			asset = EXCLUDED.asset,
			action = EXCLUDED.action,
			direction = EXCLUDED.direction,
			confidence = EXCLUDED.confidence,
			risk_flags = EXCLUDED.risk_flags,
			signal = EXCLUDED.signal`,
		rec.ID, rec.EventID, rec.EventType, rec.Asset, rec.Action, rec.Direction,
		rec.Confidence, pq.Array(rec.RiskFlags), rec.Signal, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving signal %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetSignal(ctx context.Context, id string) (SignalRecord, error) {
	var rec SignalRecord
	var flags pq.StringArray
	err := s.db.QueryRowContext(ctx, `
		SELECT id, event_id, event_type, asset, action, direction, confidence, risk_flags, signal, created_at
		FROM signals WHERE id = $1`, id).Scan(
		&rec.ID, &rec.EventID, &rec.EventType, &rec.Asset, &rec.Action, &rec.Direction,
		&rec.Confidence, &flags, &rec.Signal, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SignalRecord{}, ErrNotFound
	}
	if err != nil {
		return SignalRecord{}, fmt.Errorf("loading signal %s: %w", id, err)
	}
	rec.RiskFlags = []string(flags)
	return rec, nil
}

func (s *PostgresStore) RecentSignals(ctx context.Context, asset string, limit int) ([]SignalRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, event_type, asset, action, direction, confidence, risk_flags, signal, created_at
		FROM signals WHERE ($1 = '' OR asset = $1)
		ORDER BY created_at DESC LIMIT $2`, asset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing signals for %q: %w", asset, err)
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		var flags pq.StringArray
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.EventType, &rec.Asset, &rec.Action,
			&rec.Direction, &rec.Confidence, &flags, &rec.Signal, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.RiskFlags = []string(flags)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, processed_at)
		VALUES ($1, NOW())
		ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return false, fmt.Errorf("marking event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) ClearProcessed(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM processed_events WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("clearing event %s: %w", eventID, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
