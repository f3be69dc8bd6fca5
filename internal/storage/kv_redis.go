package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is the row-KV tier: one Redis hash per event, keyed so a
// range scan over recent events walks newest-first without a secondary
// index. Grounded on the teacher's internal/infra redis client wiring
// (dial/read/write timeouts, pool size) and internal/fabric's
// key-prefix-plus-hash-fields idiom.
type RedisTier struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisTier dials addr and verifies connectivity before returning.
func NewRedisTier(addr, password string, db int) (*RedisTier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     20,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("storage: redis ping failed (%s): %w", addr, err)
	}
	return &RedisTier{rdb: rdb, timeout: 2 * time.Second}, nil
}

func (t *RedisTier) Name() string { return "redis" }

// rowKey reverses the timestamp so lexicographic key scans (e.g. KEYS /
// SCAN with a MATCH prefix) naturally return the most recent events
// first, matching the source's Bigtable row-key convention.
func rowKey(ts time.Time, eventID string) string {
	micros := ts.UnixMicro()
	reversed := int64(9_999_999_999_999_999) - micros
	return fmt.Sprintf("ledger:%d#%s", reversed, eventID)
}

// Write stores record as a Redis hash with three field groups
// (event:*, metadata:*, chain:*) mirroring the source's Bigtable column
// families, plus a set membership entry so a session's events can be
// listed without a full key scan.
func (t *RedisTier) Write(record EventRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	key := rowKey(record.Timestamp, record.EventID)

	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("storage: marshaling metadata for %s: %w", record.EventID, err)
	}

	fields := map[string]interface{}{
		"event:event_id":    record.EventID,
		"event:event_type":  record.EventType,
		"event:timestamp":   record.Timestamp.Format(time.RFC3339Nano),
		"event:session_id":  record.SessionID,
		"event:device_id":   record.DeviceID,
		"event:user_id":     record.UserID,
		"event:data_hash":   record.DataHash,
		"metadata:data":     string(metadataJSON),
		"chain:previous_hash": record.PreviousHash,
		"chain:event_hash":    record.EventHash,
	}
	if record.Signature != "" {
		fields["chain:signature"] = record.Signature
		fields["chain:signing_key_id"] = record.SigningKeyID
	}

	if err := t.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("storage: redis write %s: %w", record.EventID, err)
	}

	if record.SessionID != "" {
		sessionSet := "ledger:session:" + record.SessionID
		if err := t.rdb.SAdd(ctx, sessionSet, key).Err(); err != nil {
			return fmt.Errorf("storage: redis session index %s: %w", record.EventID, err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (t *RedisTier) Close() error {
	return t.rdb.Close()
}
