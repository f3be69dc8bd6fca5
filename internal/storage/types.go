// Package storage implements the three independent-failure storage tiers
// a ledger event is fanned out to: a row-oriented KV tier for
// high-frequency point lookups, a document tier for real-time session
// views, and a columnar warehouse tier for compliance queries over long
// ranges. Each tier's Write is independent of the other two; a failure
// in one never blocks or rolls back the others (§4.J/§5).
package storage

import "time"

// EventRecord is the tier-agnostic projection of a ledger event. Tiers
// depend only on this struct, not on the ledger package, so the ledger
// package can depend on storage without a cycle.
type EventRecord struct {
	EventID      string
	Timestamp    time.Time
	EventType    string
	SessionID    string
	DeviceID     string
	UserID       string
	DataHash     string
	Metadata     map[string]string
	PreviousHash string
	EventHash    string
	Signature    string // base64, empty when unsigned
	SigningKeyID string
}

// Tier is a single storage backend a record can be written to.
type Tier interface {
	Name() string
	Write(record EventRecord) error
}
