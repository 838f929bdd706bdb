package store

import (
	"context"
	"log"
	"time"

	"github.com/marketpulse/deepsignal/config"
)

// SignalRecord is a persisted final signal together with the event that
// produced it.
type SignalRecord struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Asset      string    `json:"asset"`
	Action     string    `json:"action"`
	Direction  string    `json:"direction"`
	Confidence float64   `json:"confidence"`
	RiskFlags  []string  `json:"risk_flags"`
	Signal     []byte    `json:"signal"`
	CreatedAt  time.Time `json:"created_at"`
}

// SignalStore persists final signals and deduplicates event processing.
type SignalStore interface {
	// SaveSignal persists one signal record. Saving the same event twice
	// overwrites the earlier record.
	SaveSignal(ctx context.Context, rec SignalRecord) error
	// GetSignal returns a record by its ID.
	GetSignal(ctx context.Context, id string) (SignalRecord, error)
	// MarkProcessed records that eventID has been analyzed. It returns false
	// when the event was already marked, enabling idempotent intake.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	// ClearProcessed removes the processed marker so a failed analysis can
	// be retried. Clearing an unmarked event is a no-op.
	ClearProcessed(ctx context.Context, eventID string) error
	// RecentSignals returns the latest records for an asset, newest first.
	// Stores without query support may return an empty slice.
	RecentSignals(ctx context.Context, asset string, limit int) ([]SignalRecord, error)
	// Close releases the underlying connections.
	Close() error
}

// NewStore builds a store from config: Postgres when configured, Redis
// otherwise. An unconfigured storage section yields a memory store so the
// engine can run standalone.
func NewStore(ctx context.Context, cfg config.StorageConfig) (SignalStore, error) {
	logger := log.New(log.Writer(), "[STORE] ", log.LstdFlags)

	if dsn, err := cfg.Postgres.DSN(); err == nil {
		pg, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, err
		}
		logger.Printf("using postgres signal store")
		return pg, nil
	}

	if cfg.Redis.Addr != "" {
		rs, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Printf("using redis signal store")
		return rs, nil
	}

	logger.Printf("storage not configured, signals held in memory only")
	return NewMemoryStore(), nil
}
