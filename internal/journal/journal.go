package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/portmodel/cranelink/internal/infrastructure/database"
)

// Event kinds recorded by the gateway.
const (
	EventGatewayStart    = "gateway_start"
	EventGatewayStop     = "gateway_stop"
	EventLinkUp          = "link_up"
	EventLinkDown        = "link_down"
	EventBrokerConnected = "broker_connected"
	EventBrokerLost      = "broker_lost"
	EventPresenceOnline  = "presence_online"
	EventPresenceOffline = "presence_offline"
)

// Event is one recorded operational event.
type Event struct {
	ID         int64
	OccurredAt time.Time
	DeviceID   string
	Kind       string
	Detail     string
}

// Store persists connectivity events for one gateway instance.
//
// The store is append-mostly: events are recorded as they happen and
// pruned by age. It is written only from the bridge's control loop.
type Store struct {
	db       *database.DB
	deviceID string
}

// NewStore creates a Store recording events for the given device identity.
func NewStore(db *database.DB, deviceID string) *Store {
	return &Store{
		db:       db,
		deviceID: deviceID,
	}
}

// Record appends one event.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - kind: One of the Event* constants
//   - detail: Free-form context (e.g. the disconnect error), may be empty
//
// Returns:
//   - error: If the insert fails
func (s *Store) Record(ctx context.Context, kind, detail string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO journal_events (occurred_at, device_id, kind, detail) VALUES (?, ?, ?, ?)",
		time.Now().UTC().Format(time.RFC3339),
		s.deviceID,
		kind,
		detail,
	)
	if err != nil {
		return fmt.Errorf("recording journal event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, occurred_at, device_id, kind, detail FROM journal_events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var occurredAt string
		if err := rows.Scan(&e.ID, &occurredAt, &e.DeviceID, &e.Kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning journal event: %w", err)
		}
		e.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt) //nolint:errcheck // Format is controlled
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the retention window.
//
// Returns the number of deleted rows. Run periodically (or at startup)
// to bound database growth on long-lived gateways.
func (s *Store) Prune(ctx context.Context, retain time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retain).Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM journal_events WHERE occurred_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning journal events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned events: %w", err)
	}
	return deleted, nil
}
