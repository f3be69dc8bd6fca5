package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/api/iterator"
)

// SpannerTier is the columnar warehouse tier: one row per event in a
// day-partitioned table, used for compliance-range queries and for
// recovering the hash-chain cursor on restart. Grounded on the
// teacher's internal/reputation spanner client (client construction,
// ReadWriteTransaction/ReadOnlyTransaction idiom).
type SpannerTier struct {
	client *spanner.Client
}

// NewSpannerTier dials the Spanner database at
// projects/<project>/instances/<instance>/databases/<db>.
func NewSpannerTier(ctx context.Context, project, instance, db string) (*SpannerTier, error) {
	dbPath := fmt.Sprintf("projects/%s/instances/%s/databases/%s", project, instance, db)
	client, err := spanner.NewClient(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: creating spanner client: %w", err)
	}
	return &SpannerTier{client: client}, nil
}

func (t *SpannerTier) Name() string { return "spanner" }

// partitionDate buckets a timestamp to its UTC calendar day, the table's
// partition key prefix column.
func partitionDate(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// Write mutation-inserts record into the LedgerEvents table.
func (t *SpannerTier) Write(record EventRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mutation := spanner.InsertOrUpdate("LedgerEvents",
		[]string{
			"PartitionDate", "EventId", "Timestamp", "EventType", "SessionId",
			"DeviceId", "UserId", "DataHash", "PreviousHash", "EventHash",
			"Signature", "SigningKeyId",
		},
		[]interface{}{
			partitionDate(record.Timestamp), record.EventID, record.Timestamp, record.EventType,
			record.SessionID, record.DeviceID, record.UserID, record.DataHash,
			record.PreviousHash, record.EventHash, record.Signature, record.SigningKeyID,
		},
	)

	_, err := t.client.Apply(ctx, []*spanner.Mutation{mutation})
	if err != nil {
		return fmt.Errorf("storage: spanner write %s: %w", record.EventID, err)
	}
	return nil
}

// LastEventHash queries the most recently written event's hash, used to
// recover the ledger's chain cursor on startup. It returns the genesis
// hash of 64 zeros when the table is empty.
func (t *SpannerTier) LastEventHash(ctx context.Context, genesisHash string) (string, error) {
	stmt := spanner.Statement{
		SQL: `SELECT EventHash FROM LedgerEvents ORDER BY Timestamp DESC LIMIT 1`,
	}

	roTx := t.client.Single()
	defer roTx.Close()

	iter := roTx.Query(ctx, stmt)
	defer iter.Stop()

	row, err := iter.Next()
	if err == iterator.Done {
		return genesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: spanner cursor query: %w", err)
	}

	var hash string
	if err := row.Columns(&hash); err != nil {
		return "", fmt.Errorf("storage: spanner cursor scan: %w", err)
	}
	return hash, nil
}

// Close releases the underlying Spanner client.
func (t *SpannerTier) Close() {
	t.client.Close()
}
