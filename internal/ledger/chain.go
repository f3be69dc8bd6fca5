package ledger

// Canonical event hashing and chain verification. Grounded field-for-field
// on the source system's HashChain: drop empty fields, sort keys, hash the
// canonical JSON with SHA-256, and walk the chain from a genesis hash of
// 64 zeros.

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// computeEventHash reproduces HashChain.compute_event_hash: build the
// canonicalizable field set, drop anything empty, marshal with sorted
// keys, and hash the result.
func computeEventHash(e *Event, previousHash string) string {
	fields := map[string]interface{}{}
	fields["event_id"] = e.EventID
	fields["timestamp"] = e.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00")
	fields["event_type"] = string(e.EventType)
	fields["previous_hash"] = previousHash

	if e.SessionID != "" {
		fields["session_id"] = e.SessionID
	}
	if e.DeviceID != "" {
		fields["device_id"] = e.DeviceID
	}
	if e.UserID != "" {
		fields["user_id"] = e.UserID
	}
	if e.DataHash != "" {
		fields["data_hash"] = e.DataHash
	}
	if len(e.Metadata) > 0 {
		fields["metadata"] = e.Metadata
	}

	canonical := canonicalJSON(fields)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON marshals a map with keys sorted lexicographically, so the
// same field set always produces the same byte string regardless of Go's
// map iteration order.
func canonicalJSON(fields map[string]interface{}) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, _ := json.Marshal(k)
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, _ := json.Marshal(fields[k])
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf
}

// ComputeDataHash hashes raw data (e.g. a packet batch) for an event's
// DataHash field.
func ComputeDataHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyEvent checks a single event's hash against the previous hash it
// claims to chain from.
func VerifyEvent(e *Event, previousHash string) bool {
	return e.EventHash == computeEventHash(e, previousHash)
}

// VerifyChain walks events in chronological order, confirming the first
// event chains from the genesis hash and every subsequent event's
// previous_hash matches its predecessor's event_hash.
func VerifyChain(events []*Event) bool {
	return FindChainBreak(events) == nil
}

// FindChainBreak returns the index of the first event whose previous_hash
// or event_hash doesn't match expectations, or nil if the chain is
// intact.
func FindChainBreak(events []*Event) *int {
	previousHash := genesisHash
	for i, e := range events {
		if e.PreviousHash != previousHash {
			idx := i
			return &idx
		}
		if e.EventHash != computeEventHash(e, previousHash) {
			idx := i
			return &idx
		}
		previousHash = e.EventHash
	}
	return nil
}
