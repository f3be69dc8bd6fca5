package storage

import (
	"fmt"

	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseTier is the document tier: one row per event in ledger_events
// for real-time lookups, plus a denormalized row in ledger_session_events
// per (session_id, event_id) so a session's timeline can be queried
// without joining. Grounded on the teacher's internal/database client
// construction and struct-per-table Insert idiom.
type SupabaseTier struct {
	client *supabase.Client
}

// NewSupabaseTier constructs a client against url using the service key.
func NewSupabaseTier(url, serviceKey string) (*SupabaseTier, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("storage: supabase url and service key must be set")
	}
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: creating supabase client: %w", err)
	}
	return &SupabaseTier{client: client}, nil
}

func (t *SupabaseTier) Name() string { return "supabase" }

// ledgerEventRow is the ledger_events table shape.
type ledgerEventRow struct {
	EventID      string            `json:"event_id"`
	Timestamp    string            `json:"timestamp"`
	EventType    string            `json:"event_type"`
	SessionID    string            `json:"session_id,omitempty"`
	DeviceID     string            `json:"device_id,omitempty"`
	UserID       string            `json:"user_id,omitempty"`
	DataHash     string            `json:"data_hash,omitempty"`
	Metadata     map[string]string `json:"metadata"`
	PreviousHash string            `json:"previous_hash"`
	EventHash    string            `json:"event_hash"`
	Signature    string            `json:"signature,omitempty"`
	SigningKeyID string            `json:"signing_key_id,omitempty"`
}

// ledgerSessionEventRow is the ledger_session_events table shape, a thin
// timeline projection keyed by session.
type ledgerSessionEventRow struct {
	SessionID string `json:"session_id"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	EventHash string `json:"event_hash"`
}

// Write inserts record into ledger_events, and additionally into
// ledger_session_events when the event carries a session ID.
func (t *SupabaseTier) Write(record EventRecord) error {
	row := ledgerEventRow{
		EventID:      record.EventID,
		Timestamp:    record.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00"),
		EventType:    record.EventType,
		SessionID:    record.SessionID,
		DeviceID:     record.DeviceID,
		UserID:       record.UserID,
		DataHash:     record.DataHash,
		Metadata:     record.Metadata,
		PreviousHash: record.PreviousHash,
		EventHash:    record.EventHash,
		Signature:    record.Signature,
		SigningKeyID: record.SigningKeyID,
	}

	_, _, err := t.client.From("ledger_events").Insert(row, false, "", "", "").Execute()
	if err != nil {
		return fmt.Errorf("storage: supabase insert event %s: %w", record.EventID, err)
	}

	if record.SessionID != "" {
		sessionRow := ledgerSessionEventRow{
			SessionID: record.SessionID,
			EventID:   record.EventID,
			EventType: record.EventType,
			Timestamp: row.Timestamp,
			EventHash: record.EventHash,
		}
		_, _, err := t.client.From("ledger_session_events").Insert(sessionRow, false, "", "", "").Execute()
		if err != nil {
			return fmt.Errorf("storage: supabase insert session event %s: %w", record.EventID, err)
		}
	}
	return nil
}
